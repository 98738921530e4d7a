// Copyright 2018 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package binary

import (
	"bytes"
	"testing"
)

func TestExpectBytes(t *testing.T) {
	testCases := []struct {
		want  []byte
		input []byte
		match bool
	}{
		{[]byte("GAS\x01"), []byte("GAS\x01"), true},
		{[]byte("GAS\x01"), []byte("GAS\x01EXTRA"), true},
		{[]byte("GAS\x01"), []byte("GAS\x02"), false},
		{[]byte("GAS\x01"), []byte("GAS"), false},
		{[]byte("GAS\x01"), []byte(""), false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.input), func(t *testing.T) {
			err := ExpectBytes(bytes.NewReader(tc.input), tc.want)
			if err != nil && tc.match {
				t.Fatalf("ExpectBytes returned unexpected error: %v", err)
			} else if err == nil && !tc.match {
				t.Fatalf("ExpectBytes accepted mismatched input %v", tc.input)
			}
		})
	}
}

func TestString_RoundTrip(t *testing.T) {
	testCases := []string{"", "chr1", "region_data", "a longer value with spaces"}

	var buf bytes.Buffer
	for _, tc := range testCases {
		if err := WriteString(&buf, tc); err != nil {
			t.Fatalf("WriteString(%q) failed: %v", tc, err)
		}
	}
	for _, want := range testCases {
		got, err := ReadString(&buf)
		if err != nil {
			t.Fatalf("ReadString() failed: %v", err)
		}
		if got != want {
			t.Errorf("Wrong string: got %q, want %q", got, want)
		}
	}
}

func TestReadBytes_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"truncated length", []byte{1, 0}},
		{"truncated data", []byte{4, 0, 0, 0, 'a', 'b'}},
		{"too long", []byte{0xff, 0xff, 0xff, 0xff}},
		{"length beyond data", []byte{0, 0, 0, 0x40, 'a'}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ReadBytes(bytes.NewReader(tc.input)); err == nil {
				t.Fatalf("ReadBytes(): expected error, not success")
			}
		})
	}
}
