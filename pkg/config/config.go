// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config binds the sync engine's runtime flags, deriving a
// SYNCENGINE_-prefixed environment variable name for each from its
// flag name.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ettle/strcase"
	"github.com/spf13/pflag"
)

// EnvPrefix namespaces every derived environment variable.
const EnvPrefix = "SYNCENGINE"

// Config holds the engine's process-wide settings.
type Config struct {
	DatabaseURL    string
	CheckoutRoot   string
	MetricsAddr    string
	LogJSON        bool
	ParseConcurrency int
}

// RegisterFlags adds the engine's flags to fs with their defaults.
func RegisterFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.DatabaseURL, "database-url", "", "PostgreSQL connection string")
	fs.StringVar(&cfg.CheckoutRoot, "checkout-root", "/var/lib/syncengine/checkouts", "root directory for repository checkouts")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", ":9090", "address to serve /metrics on")
	fs.BoolVar(&cfg.LogJSON, "log-json", true, "emit structured JSON logs")
	fs.IntVar(&cfg.ParseConcurrency, "parse-concurrency", 8, "maximum concurrent resource parses per sync (not read by the engine, which parses at most 8 files at once)")
}

// EnvName derives the environment variable name for a flag, e.g.
// "database-url" -> "SYNCENGINE_DATABASE_URL".
func EnvName(flagName string) string {
	return EnvPrefix + "_" + strcase.ToSNAKE(strings.ReplaceAll(flagName, "-", "_"))
}

// LoadEnv overlays any SYNCENGINE_* environment variables onto flags
// that were not explicitly set on the command line.
func LoadEnv(fs *pflag.FlagSet) error {
	var firstErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			return
		}
		name := EnvName(f.Name)
		val, ok := os.LookupEnv(name)
		if !ok {
			return
		}
		if err := fs.Set(f.Name, val); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("applying %s: %w", name, err)
		}
	})
	return firstErr
}
