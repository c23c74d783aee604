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

// Package syncengine wires the checkout manager, path resolver, and
// the two reconcilers into the single entry point callers use to sync
// one project (spec §2).
package syncengine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"k8s.io/klog/v2"

	"github.com/l10nplatform/syncengine/pkg/metrics"
	"github.com/l10nplatform/syncengine/pkg/model"
	"github.com/l10nplatform/syncengine/pkg/parser"
	"github.com/l10nplatform/syncengine/pkg/paths"
	"github.com/l10nplatform/syncengine/pkg/reconcile"
	"github.com/l10nplatform/syncengine/pkg/store"
	"github.com/l10nplatform/syncengine/pkg/synclock"
	"github.com/l10nplatform/syncengine/pkg/syncerr"
	"github.com/l10nplatform/syncengine/pkg/vcs"
)

// Options configures one SyncProject call.
type Options struct {
	Pull       bool // false lets tests run against a checkout already on disk
	ConfigFile string
	PathEntries []paths.PathEntry
}

// Engine holds the collaborators SyncProject needs beyond the store:
// the VCS driver, filesystem, resource parser, and the in-process lock
// registry. Parser is shared by every resource in a project; projects
// mixing formats are a stated non-goal (spec §4.6).
type Engine struct {
	FS     afero.Fs
	VCS    vcs.VersionControl
	Parser parser.ResourceParser
	Locks  *synclock.Projects
	Logger *zap.Logger
}

// SyncReport summarizes one project sync for callers and logs.
type SyncReport struct {
	ProjectID       int64
	CorrelationID   string
	StartedAt       time.Time
	Duration        time.Duration
	AddedResources  []string
	ChangedResources []string
	RemovedResources []string
	TranslationsCreated  int
	TranslationsApproved int
	TranslationsRejected int
}

// SyncProject runs one full checkout -> reconcile-entities ->
// reconcile-translations cycle for project and commits the result
// (spec §2). now is captured once and threaded through every phase so
// a single sync has one coherent timestamp (spec §9).
func (e *Engine) SyncProject(ctx context.Context, st store.Store, project model.Project, repos []model.Repository, locales []model.Locale, opts Options) (*SyncReport, error) {
	if !e.Locks.TryLock(project.ID) {
		return nil, syncerr.ErrAlreadySyncing
	}
	defer e.Locks.Unlock(project.ID)

	now := time.Now()
	correlationID := uuid.NewString()
	started := time.Now()
	report := &SyncReport{ProjectID: project.ID, CorrelationID: correlationID, StartedAt: started}

	logger := e.Logger.With(zap.Int64("project_id", project.ID), zap.String("correlation_id", correlationID))
	klog.V(2).Infof("[%s] starting sync for project %d", correlationID, project.ID)

	outcome := "success"
	defer func() {
		report.Duration = time.Since(started)
		metrics.SyncsTotal.WithLabelValues(outcome).Inc()
		metrics.SyncDurationSeconds.WithLabelValues(outcome).Observe(report.Duration.Seconds())
		logger.Info("sync finished",
			zap.String("outcome", outcome),
			zap.Duration("duration", report.Duration),
			zap.Int("resources_added", len(report.AddedResources)),
			zap.Int("resources_changed", len(report.ChangedResources)),
			zap.Int("resources_removed", len(report.RemovedResources)),
			zap.Int("translations_created", report.TranslationsCreated),
			zap.Int("translations_approved", report.TranslationsApproved),
			zap.Int("translations_rejected", report.TranslationsRejected),
		)
	}()

	if len(repos) == 0 {
		outcome = "error"
		return report, syncerr.ErrNoCheckouts
	}

	checkouts, err := vcs.GetCheckouts(ctx, e.FS, e.VCS, project, repos, locales, opts.Pull)
	if err != nil {
		outcome = "error"
		return report, err
	}

	resolver, refCheckout, err := paths.GetPaths(e.FS, project.CheckoutPath, opts.ConfigFile, checkouts, opts.PathEntries)
	if err != nil {
		outcome = "error"
		return report, fmt.Errorf("%w: %w", syncerr.ErrPathResolution, err)
	}
	localeCodes := make([]string, len(locales))
	for i, l := range locales {
		localeCodes[i] = l.Code
	}
	resolver.SetLocales(localeCodes)

	tx, err := st.BeginTx(ctx)
	if err != nil {
		outcome = "error"
		return report, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	refRoot := resolver.RefRoot()
	refChanged := make([]string, len(refCheckout.Changed))
	for i, p := range refCheckout.Changed {
		refChanged[i] = filepath.Join(refCheckout.Path, p)
	}
	refRemoved := make([]string, len(refCheckout.Removed))
	for i, p := range refCheckout.Removed {
		refRemoved[i] = filepath.Join(refCheckout.Path, p)
	}

	entityReport, err := reconcile.ReconcileEntities(ctx, tx, e.Parser, project, locales, resolver, refRoot, refChanged, refRemoved, now)
	if err != nil {
		outcome = "error"
		return report, err
	}
	report.AddedResources = entityReport.AddedResources
	report.ChangedResources = entityReport.ChangedResources
	report.RemovedResources = entityReport.RemovedResources
	metrics.EntitiesChangedTotal.WithLabelValues("added").Add(float64(len(entityReport.AddedResources)))
	metrics.EntitiesChangedTotal.WithLabelValues("changed").Add(float64(len(entityReport.ChangedResources)))
	metrics.EntitiesChangedTotal.WithLabelValues("removed").Add(float64(len(entityReport.RemovedResources)))

	translationReport, err := reconcile.SyncTranslationsFromRepo(ctx, tx, e.Parser, project, locales, checkouts, refCheckout, resolver, refRoot, now)
	if err != nil {
		outcome = "error"
		return report, err
	}
	report.TranslationsCreated = translationReport.Created
	report.TranslationsApproved = translationReport.Approved
	report.TranslationsRejected = translationReport.Rejected
	metrics.TranslationsChangedTotal.WithLabelValues("created").Add(float64(translationReport.Created))
	metrics.TranslationsChangedTotal.WithLabelValues("approved").Add(float64(translationReport.Approved))
	metrics.TranslationsChangedTotal.WithLabelValues("rejected").Add(float64(translationReport.Rejected))

	if err := tx.Commit(ctx); err != nil {
		outcome = "error"
		return report, err
	}
	committed = true

	return report, nil
}

