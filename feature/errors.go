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

package feature

import "errors"

var (
	// ErrNotImplemented is returned by guarded accessors of a feature that has
	// no Calculator.
	ErrNotImplemented = errors.New("calculation not implemented")
	// ErrSizeMismatch is returned when the number of supplied values does not
	// match the number of selected rows or regions.
	ErrSizeMismatch = errors.New("size mismatch")
	// ErrValueShape is returned when a value does not provide every selected
	// column.
	ErrValueShape = errors.New("bad value format")
	// ErrUnrecognizedKey is returned for row or column selectors of an
	// unsupported type.
	ErrUnrecognizedKey = errors.New("unrecognized key type")
	// ErrUnboundFilter is returned when a MatrixFilter is used before it has
	// been bound to a matrix.
	ErrUnboundFilter = errors.New("filter is not bound to a matrix")
)
