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

// This binary provides an HTTP server for genome architecture stores held in
// GCS or in a local directory.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/googlegenomics/genomearch/api"
	"github.com/googlegenomics/genomearch/internal/config"
	"github.com/googlegenomics/genomearch/internal/logging"
	"github.com/googlegenomics/genomearch/internal/storage"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var (
		configFile string
		cfg        = config.DefaultServer()
	)
	cmd := &cobra.Command{
		Use:   "genomearch-server",
		Short: "Serve regions, tracks and matrices from genome architecture stores",
		Long: `genomearch-server serves the contents of genome architecture stores over HTTP.

Stores are read from Google Cloud Storage, or from a local directory whose
subdirectories act as buckets.  Flags override values read from --config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			merged, err := config.LoadServer(configFile)
			if err != nil {
				return err
			}
			overrideFromFlags(cmd, &merged, cfg)
			if err := merged.Validate(); err != nil {
				return err
			}
			return serve(merged)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "YAML configuration file")
	flags.IntVar(&cfg.Port, "port", cfg.Port, "HTTP service port")
	flags.StringVar(&cfg.Directory, "directory", "", "serve stores from this directory instead of GCS")
	flags.StringSliceVar(&cfg.Buckets, "buckets", nil, "if set, restricts reads to a comma-separated list of buckets")
	flags.StringVar(&cfg.Auth, "auth", cfg.Auth, "GCS authentication: public, default or bearer")
	flags.BoolVar(&cfg.Secure, "secure", false, "serve in HTTPS-only mode and forward client bearer tokens")
	flags.StringVar(&cfg.HTTPSCert, "https_cert", "", "HTTPS certificate file")
	flags.StringVar(&cfg.HTTPSKey, "https_key", "", "HTTPS key file")
	flags.IntVar(&cfg.MaxMatrixSize, "max_matrix_size", cfg.MaxMatrixSize, "maximum number of cells in a matrix response")
	flags.StringVar(&cfg.Profile, "profile", "", "write a cpu or mem profile to the working directory")
	flags.StringVar(&cfg.Logging.Level, "log_level", cfg.Logging.Level, "log level (debug, info, warn, error)")
	return cmd
}

// overrideFromFlags copies the values of the flags set on the command line
// from flagged into cfg.
func overrideFromFlags(cmd *cobra.Command, cfg *config.Server, flagged config.Server) {
	changed := cmd.Flags().Changed
	if changed("port") {
		cfg.Port = flagged.Port
	}
	if changed("directory") {
		cfg.Directory = flagged.Directory
	}
	if changed("buckets") {
		cfg.Buckets = flagged.Buckets
	}
	if changed("auth") {
		cfg.Auth = flagged.Auth
	}
	if changed("secure") {
		cfg.Secure = flagged.Secure
	}
	if changed("https_cert") {
		cfg.HTTPSCert = flagged.HTTPSCert
	}
	if changed("https_key") {
		cfg.HTTPSKey = flagged.HTTPSKey
	}
	if changed("max_matrix_size") {
		cfg.MaxMatrixSize = flagged.MaxMatrixSize
	}
	if changed("profile") {
		cfg.Profile = flagged.Profile
	}
	if changed("log_level") {
		cfg.Logging.Level = flagged.Logging.Level
	}
}

func newStorageClient(cfg config.Server) storage.NewClientFunc {
	switch {
	case cfg.Directory != "":
		return storage.NewLocalClient(cfg.Directory).NewClientFunc()
	case cfg.Secure || cfg.Auth == config.AuthBearer:
		return storage.NewClientFromBearerToken
	case cfg.Auth == config.AuthDefault:
		return storage.NewDefaultClient
	}
	return storage.NewPublicClient
}

func serve(cfg config.Server) error {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	switch cfg.Profile {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	}

	gin.SetMode(gin.ReleaseMode)
	server := api.NewServer(newStorageClient(cfg), cfg.MaxMatrixSize, logger)
	if len(cfg.Buckets) > 0 {
		server.AllowBuckets(cfg.Buckets)
	}

	address := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("starting server",
		zap.String("address", address),
		zap.Bool("secure", cfg.Secure),
		zap.String("directory", cfg.Directory),
		zap.Strings("buckets", cfg.Buckets))
	if cfg.Secure {
		if err := http.ListenAndServeTLS(address, cfg.HTTPSCert, cfg.HTTPSKey, server.Handler()); err != nil {
			return fmt.Errorf("HTTPS server returned an error: %w", err)
		}
		return nil
	}
	if err := http.ListenAndServe(address, server.Handler()); err != nil {
		return fmt.Errorf("HTTP server returned an error: %w", err)
	}
	return nil
}
