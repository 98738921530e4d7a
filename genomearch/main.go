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

// This binary inspects, converts and filters genome architecture stores, and
// fetches data from a genomearch server using Google authentication.
package main

import (
	"fmt"
	"os"

	"github.com/googlegenomics/genomearch/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:           "genomearch",
		Short:         "Work with genome architecture stores",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log_level", "warn", "log level (debug, info, warn, error)")

	logger := func() (*zap.Logger, error) {
		cfg := logging.DefaultConfig()
		cfg.Level = logLevel
		cfg.Encoding = "console"
		return logging.New(cfg)
	}
	root.AddCommand(
		newInfoCommand(logger),
		newExportCommand(logger),
		newImportCommand(logger),
		newFilterCommand(logger),
		newFetchCommand(),
	)
	return root
}
