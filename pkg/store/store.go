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

// Package store defines the narrow, batch-oriented persistence
// contract the reconcilers write through (spec §4.5 expansion). Every
// method takes and returns flat slices/structs, never a lazy object
// graph, per spec §9's "replace object-graph traversal with explicit
// queries" redesign flag.
package store

import (
	"context"
	"time"

	"github.com/l10nplatform/syncengine/pkg/model"
)

// EntityIdentity is the (resource, key-or-string) pair that identifies
// an Entity across syncs.
type EntityIdentity struct {
	ResourcePath string
	Key          string
}

// ResourceLocale names one (resource path, locale) pair.
type ResourceLocale struct {
	ResourcePath string
	LocaleID     int64
}

// SuggestionTuple is one (entity, locale, plural form, string) tuple to
// match existing Translation rows against.
type SuggestionTuple struct {
	EntityID   int64
	LocaleID   int64
	PluralForm *int
	String     string
}

// RejectionPredicate names every Translation row for (entity, locale,
// pluralForm) other than KeepID that should be rejected as a sibling.
type RejectionPredicate struct {
	EntityID   int64
	LocaleID   int64
	PluralForm *int
	KeepID     int64
}

// ConflictCheckRow is one currently-approved-or-pretranslated
// Translation row, flattened for the no-op comparison in spec §4.4.2
// step 4.
type ConflictCheckRow struct {
	ResourcePath string
	EntityKey    string // entity.Key, or entity.String when Key is empty
	LocaleID     int64
	PluralForm   *int
	String       string
}

// Tx is one coherent unit of work. Store.BeginTx returns a Tx; callers
// must Commit or Rollback it.
type Tx interface {
	// Entity reconciliation (spec §4.3).
	ResourcesByPath(ctx context.Context, projectID int64, paths []string) (map[string]model.Resource, error)
	DeleteResourcesByPath(ctx context.Context, projectID int64, paths []string) ([]string, error)
	BulkUpdateResourceTotalStrings(ctx context.Context, resources []model.Resource) error
	InsertResources(ctx context.Context, resources []model.Resource) ([]model.Resource, error)
	RecomputeResourceOrder(ctx context.Context, projectID int64) error

	EntitiesByResource(ctx context.Context, resourceIDs []int64) ([]model.Entity, error)
	BulkUpdateEntities(ctx context.Context, entities []model.Entity, columns []string) (int, error)
	BulkObsoleteEntities(ctx context.Context, entityIDs []int64, dateObsoleted time.Time) (int, error)
	InsertEntities(ctx context.Context, entities []model.Entity) ([]model.Entity, error)

	InsertTranslatedResources(ctx context.Context, rows []model.TranslatedResource) error
	DeleteTranslatedResources(ctx context.Context, projectID int64, pairs []ResourceLocale) (int, error)

	// Translation reconciliation (spec §4.4).
	TranslationByID(ctx context.Context, id int64) (model.Translation, bool, error)
	TranslationsForConflictCheck(ctx context.Context, pairs []ResourceLocale) ([]ConflictCheckRow, error)
	ChangedEntityLocales(ctx context.Context, projectID int64) ([]model.ChangedEntityLocale, error)
	EntitiesByKey(ctx context.Context, lookups []EntityIdentity) (map[EntityIdentity]int64, error)
	MatchingSuggestions(ctx context.Context, tuples []SuggestionTuple) ([]model.Translation, error)
	ApplyApprovals(ctx context.Context, translations []model.Translation, columns []string) (int, error)
	InsertTranslations(ctx context.Context, translations []model.Translation) ([]model.Translation, error)
	RejectSiblings(ctx context.Context, preds []RejectionPredicate, now time.Time) ([]model.Translation, error)
	InsertActionLogs(ctx context.Context, logs []model.ActionLog) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store opens transactions against the underlying database.
type Store interface {
	BeginTx(ctx context.Context) (Tx, error)
}
