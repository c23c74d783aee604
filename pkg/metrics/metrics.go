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

// Package metrics exposes the sync engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncsTotal counts completed project syncs by outcome.
	SyncsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncengine",
		Name:      "syncs_total",
		Help:      "Total number of project syncs, by outcome.",
	}, []string{"outcome"})

	// SyncDurationSeconds observes the wall-clock duration of a project sync.
	SyncDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "syncengine",
		Name:      "sync_duration_seconds",
		Help:      "Duration of a project sync, in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})

	// EntitiesChangedTotal counts resources the entity reconciler
	// added, changed, or removed, by kind.
	EntitiesChangedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncengine",
		Name:      "entities_changed_total",
		Help:      "Resources added, changed, or removed by entity reconciliation across all syncs.",
	}, []string{"kind"})

	// TranslationsChangedTotal counts translation row mutations by kind.
	TranslationsChangedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncengine",
		Name:      "translations_changed_total",
		Help:      "Translations created, approved, or rejected across all syncs.",
	}, []string{"kind"})

	// ParseErrorsTotal counts isolated per-file parse failures.
	ParseErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "syncengine",
		Name:      "parse_errors_total",
		Help:      "Per-file parse failures isolated during reconciliation.",
	})
)
