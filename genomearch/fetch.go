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

package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	scope = "https://www.googleapis.com/auth/devstorage.read_only"
)

func newFetchCommand() *cobra.Command {
	var (
		output string
		region string
	)
	cmd := &cobra.Command{
		Use:   "fetch <url>...",
		Short: "Fetch data from a genomearch server using Google credentials",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("opening output file: %w", err)
				}
				defer f.Close()
				w = f
			}

			ctx, err := withCABundle(cmd.Context(), os.Getenv("CURL_CA_BUNDLE"))
			if err != nil {
				return err
			}
			client, err := google.DefaultClient(ctx, scope)
			if err != nil {
				return fmt.Errorf("creating client: %w", err)
			}
			for _, target := range args {
				if region != "" {
					target = addParameter(target, "region", region)
				}
				n, err := fetch(client, target, w)
				if err != nil {
					return fmt.Errorf("fetching %s: %w", target, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: wrote %s\n", target, humanSize(n))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output filename")
	cmd.Flags().StringVarP(&region, "region", "r", "", "region descriptor added to every request")
	return cmd
}

// withCABundle returns a context whose OAuth2 HTTP client trusts the
// certificates in bundle as well as the system pool.  For compatibility with
// other tools, the bundle is read from the standard cURL override variable.
func withCABundle(ctx context.Context, bundle string) (context.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if bundle == "" {
		return ctx, nil
	}
	pem, err := os.ReadFile(bundle)
	if err != nil {
		return nil, fmt.Errorf("reading CA override file %q: %w", bundle, err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil {
		return nil, fmt.Errorf("initializing system certificate pool: %w", err)
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("adding certificates from bundle %q", bundle)
	}
	return context.WithValue(ctx, oauth2.HTTPClient, &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs: pool,
			}},
	}), nil
}

func fetch(client *http.Client, target string, w io.Writer) (int64, error) {
	resp, err := client.Get(target)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, errorFromResponse(resp)
	}
	return io.Copy(w, resp.Body)
}

func addParameter(input, name, value string) string {
	values := url.Values{}
	values.Set(name, value)
	if strings.Contains(input, "?") {
		return input + "&" + values.Encode()
	}
	return input + "?" + values.Encode()
}

func humanSize(n int64) string {
	kb := n / 1024
	mb := kb / 1024
	gb := mb / 1024
	if gb > 1 {
		return fmt.Sprintf("%d GB", gb)
	}
	if mb > 1 {
		return fmt.Sprintf("%d MB", mb)
	}
	if kb > 1 {
		return fmt.Sprintf("%d KB", kb)
	}
	return fmt.Sprintf("%d bytes", n)
}

func errorFromResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		v := make(map[string]string)
		if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
			return fmt.Errorf("%s: parsing response body: %v", resp.Status, err)
		}
		if message, ok := v["message"]; ok {
			return fmt.Errorf("%s: %v", v["error"], message)
		}
	}
	return fmt.Errorf("unexpected response status: %q", resp.Status)
}
