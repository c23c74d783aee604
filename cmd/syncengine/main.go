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

// Command syncengine runs and serves the localization sync engine.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"k8s.io/klog/v2"

	"github.com/l10nplatform/syncengine/pkg/config"
	"github.com/l10nplatform/syncengine/pkg/model"
	"github.com/l10nplatform/syncengine/pkg/parser/gettext"
	"github.com/l10nplatform/syncengine/pkg/store/pgxstore"
	"github.com/l10nplatform/syncengine/pkg/synclock"
	"github.com/l10nplatform/syncengine/pkg/syncengine"
)

func main() {
	klog.InitFlags(nil)
	cfg := &config.Config{}

	root := &cobra.Command{
		Use:   "syncengine",
		Short: "Reconciles localization repositories into the translation database",
	}
	config.RegisterFlags(root.PersistentFlags(), cfg)

	root.AddCommand(syncCmd(cfg))
	root.AddCommand(serveCmd(cfg))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func syncCmd(cfg *config.Config) *cobra.Command {
	var projectSlug string
	var pull bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync for a single project and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnv(cmd.Flags()); err != nil {
				return err
			}
			ctx := cmd.Context()

			logger, err := newLogger(cfg.LogJSON)
			if err != nil {
				return err
			}
			defer logger.Sync()

			st, err := pgxstore.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer st.Close()

			engine := &syncengine.Engine{
				FS:     afero.NewOsFs(),
				VCS:    nil, // supplied by the deployment's VersionControl driver
				Parser: gettext.Parser{},
				Locks:  &synclock.Projects{},
				Logger: logger,
			}

			project := model.Project{Slug: projectSlug, CheckoutPath: cfg.CheckoutRoot}
			_, err = engine.SyncProject(ctx, st, project, nil, nil, syncengine.Options{Pull: pull})
			return err
		},
	}
	cmd.Flags().StringVar(&projectSlug, "project", "", "project slug to sync")
	cmd.Flags().BoolVar(&pull, "pull", true, "pull remote changes before reconciling")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func serveCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve Prometheus metrics (no sync is performed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnv(cmd.Flags()); err != nil {
				return err
			}
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			klog.Infof("serving metrics on %s", cfg.MetricsAddr)
			return http.ListenAndServe(cfg.MetricsAddr, mux)
		},
	}
}

func newLogger(json bool) (*zap.Logger, error) {
	if json {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
