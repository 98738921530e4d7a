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

// Package config loads the YAML configuration of the server.
package config

import (
	"fmt"
	"os"

	"github.com/googlegenomics/genomearch/internal/logging"
	"gopkg.in/yaml.v3"
)

// Storage client modes.
const (
	AuthPublic  = "public"
	AuthDefault = "default"
	AuthBearer  = "bearer"
)

// Server holds the settings of genomearch-server.
type Server struct {
	Port int `yaml:"port"`
	// Directory, if set, serves store files from the local file system
	// instead of Google Cloud Storage.
	Directory string `yaml:"directory"`
	// Buckets restricts reads to the listed buckets.
	Buckets []string `yaml:"buckets"`
	// Auth selects how Google Cloud Storage is accessed.
	Auth string `yaml:"auth"`

	Secure    bool   `yaml:"secure"`
	HTTPSCert string `yaml:"https_cert"`
	HTTPSKey  string `yaml:"https_key"`

	// MaxMatrixSize limits the number of cells returned by matrix requests.
	MaxMatrixSize int `yaml:"max_matrix_size"`
	// Profile enables profiling ("cpu" or "mem").
	Profile string `yaml:"profile"`

	Logging logging.Config `yaml:"logging"`
}

// DefaultServer returns the configuration used when no file is provided.
func DefaultServer() Server {
	return Server{
		Port:          8080,
		Auth:          AuthPublic,
		MaxMatrixSize: 4000 * 4000,
		Logging:       logging.DefaultConfig(),
	}
}

// LoadServer reads the YAML configuration at path on top of the defaults.
// Unknown keys are rejected.
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()
	if path == "" {
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("opening config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that the settings are consistent.
func (cfg Server) Validate() error {
	switch cfg.Auth {
	case AuthPublic, AuthDefault, AuthBearer:
	default:
		return fmt.Errorf("invalid auth mode %q", cfg.Auth)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.Secure && (cfg.HTTPSCert == "" || cfg.HTTPSKey == "") {
		return fmt.Errorf("secure mode requires both https_cert and https_key")
	}
	switch cfg.Profile {
	case "", "cpu", "mem":
	default:
		return fmt.Errorf("invalid profile %q", cfg.Profile)
	}
	return nil
}
