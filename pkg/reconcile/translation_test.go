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

package reconcile_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l10nplatform/syncengine/pkg/model"
	"github.com/l10nplatform/syncengine/pkg/parser"
	"github.com/l10nplatform/syncengine/pkg/parser/fakeparser"
	"github.com/l10nplatform/syncengine/pkg/reconcile"
	"github.com/l10nplatform/syncengine/pkg/store"
	"github.com/l10nplatform/syncengine/pkg/store/memstore"
	"github.com/l10nplatform/syncengine/pkg/vcs"
)

// localeDirResolver maps "/target/<locale>/<relPath>" to refPath
// "<relPath>" rooted at refRoot, mirroring the on-disk convention
// pkg/paths' discoverResolver implements.
type localeDirResolver struct{ locales []string }

func (r *localeDirResolver) RefRoot() string       { return "/ref" }
func (r *localeDirResolver) Base() (string, bool)  { return "/target", true }
func (r *localeDirResolver) SetLocales(l []string) { r.locales = l }
func (r *localeDirResolver) TargetLocales(_ string) []string {
	return r.locales
}
func (r *localeDirResolver) TargetPath(refPath, localeCode string) (string, bool) {
	rel := strings.TrimPrefix(refPath, "/ref/")
	return "/target/" + localeCode + "/" + rel, true
}
func (r *localeDirResolver) FindReference(absTargetPath string) (string, map[string]string, bool) {
	rel := strings.TrimPrefix(absTargetPath, "/target/")
	parts := strings.SplitN(rel, "/", 2)
	if len(parts) != 2 {
		return "", nil, false
	}
	return "/ref/" + parts[1], map[string]string{"locale": parts[0]}, true
}

func TestSyncTranslationsFromRepo_CreatesAndApprovesTranslation(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	tx, err := st.BeginTx(ctx)
	require.NoError(t, err)

	refParser := fakeparser.New()
	refParser.Resources["/ref/messages.po"] = &parser.ParsedResource{
		Translations: []parser.ParsedTranslation{{Key: "greeting", SourceString: "Hello"}},
	}
	resolver := &localeDirResolver{}
	locales := []model.Locale{{ID: 1, Code: "fr"}}
	now := time.Now()

	_, err = reconcile.ReconcileEntities(ctx, tx, refParser, newProject(), locales, resolver, "/ref",
		[]string{"/ref/messages.po"}, nil, now)
	require.NoError(t, err)

	targetParser := fakeparser.New()
	targetParser.Resources["/target/fr/messages.po"] = &parser.ParsedResource{
		Translations: []parser.ParsedTranslation{
			{Key: "greeting", SourceString: "Hello", Strings: map[*int]string{nil: "Bonjour"}},
		},
	}

	checkouts := []vcs.Checkout{
		{LocaleCode: "fr", Path: "/target/fr", Changed: []string{"messages.po"}},
	}
	refCheckout := vcs.Checkout{IsSource: true, Path: "/ref"}

	report, err := reconcile.SyncTranslationsFromRepo(ctx, tx, targetParser, newProject(), locales,
		checkouts, refCheckout, resolver, "/ref", now)
	require.NoError(t, err)
	assert.Nil(t, report.Errors)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 0, report.Approved)
	assert.Equal(t, 0, report.Rejected)
}

func TestSyncTranslationsFromRepo_DatabaseWinsOnChangedEntityLocale(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	tx, err := st.BeginTx(ctx)
	require.NoError(t, err)

	refParser := fakeparser.New()
	refParser.Resources["/ref/messages.po"] = &parser.ParsedResource{
		Translations: []parser.ParsedTranslation{{Key: "greeting", SourceString: "Hello"}},
	}
	resolver := &localeDirResolver{}
	locales := []model.Locale{{ID: 1, Code: "fr"}}
	now := time.Now()

	_, err = reconcile.ReconcileEntities(ctx, tx, refParser, newProject(), locales, resolver, "/ref",
		[]string{"/ref/messages.po"}, nil, now)
	require.NoError(t, err)

	// A user approves a translation in the UI before the repo sync runs;
	// InsertTranslations marks the (entity, locale) pair as changed.
	resources, err := tx.ResourcesByPath(ctx, 1, []string{"messages.po"})
	require.NoError(t, err)
	entities, err := tx.EntitiesByResource(ctx, []int64{resources["messages.po"].ID})
	require.NoError(t, err)
	entityID := entities[0].ID

	_, err = tx.InsertTranslations(ctx, []model.Translation{
		{EntityID: entityID, LocaleID: 1, String: "Salut", Active: true, Approved: true, Date: now},
	})
	require.NoError(t, err)

	targetParser := fakeparser.New()
	targetParser.Resources["/target/fr/messages.po"] = &parser.ParsedResource{
		Translations: []parser.ParsedTranslation{
			{Key: "greeting", SourceString: "Hello", Strings: map[*int]string{nil: "Bonjour"}},
		},
	}
	checkouts := []vcs.Checkout{
		{LocaleCode: "fr", Path: "/target/fr", Changed: []string{"messages.po"}},
	}
	refCheckout := vcs.Checkout{IsSource: true, Path: "/ref"}

	report, err := reconcile.SyncTranslationsFromRepo(ctx, tx, targetParser, newProject(), locales,
		checkouts, refCheckout, resolver, "/ref", now)
	require.NoError(t, err)
	// The repo's "Bonjour" must not overwrite the database's "Salut".
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 0, report.Approved)
}

func TestSyncTranslationsFromRepo_DatabaseWinsOnRejectedRow(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	tx, err := st.BeginTx(ctx)
	require.NoError(t, err)

	refParser := fakeparser.New()
	refParser.Resources["/ref/messages.po"] = &parser.ParsedResource{
		Translations: []parser.ParsedTranslation{{Key: "greeting", SourceString: "Hello"}},
	}
	resolver := &localeDirResolver{}
	locales := []model.Locale{{ID: 1, Code: "fr"}}
	now := time.Now()

	_, err = reconcile.ReconcileEntities(ctx, tx, refParser, newProject(), locales, resolver, "/ref",
		[]string{"/ref/messages.po"}, nil, now)
	require.NoError(t, err)

	resources, err := tx.ResourcesByPath(ctx, 1, []string{"messages.po"})
	require.NoError(t, err)
	entities, err := tx.EntitiesByResource(ctx, []int64{resources["messages.po"].ID})
	require.NoError(t, err)
	entityID := entities[0].ID

	// A translator rejects a suggestion in the UI before the repo sync
	// runs; InsertTranslations marks the (entity, locale) pair as
	// changed even though the active row carries Rejected=true.
	inserted, err := tx.InsertTranslations(ctx, []model.Translation{
		{EntityID: entityID, LocaleID: 1, String: "Salut", Active: true, Rejected: true, Date: now},
	})
	require.NoError(t, err)

	targetParser := fakeparser.New()
	targetParser.Resources["/target/fr/messages.po"] = &parser.ParsedResource{
		Translations: []parser.ParsedTranslation{
			{Key: "greeting", SourceString: "Hello", Strings: map[*int]string{nil: "Bonjour"}},
		},
	}
	checkouts := []vcs.Checkout{
		{LocaleCode: "fr", Path: "/target/fr", Changed: []string{"messages.po"}},
	}
	refCheckout := vcs.Checkout{IsSource: true, Path: "/ref"}

	report, err := reconcile.SyncTranslationsFromRepo(ctx, tx, targetParser, newProject(), locales,
		checkouts, refCheckout, resolver, "/ref", now)
	require.NoError(t, err)
	// Database wins even when the protected row is rejected: the repo's
	// "Bonjour" must not be created, and the rejected row must be left alone.
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 0, report.Approved)

	stored, ok, err := tx.TranslationByID(ctx, inserted[0].ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, stored.Rejected)
	assert.Nil(t, stored.UnrejectedDate)
}

func TestSyncTranslationsFromRepo_NormalizesPotReferencePath(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	tx, err := st.BeginTx(ctx)
	require.NoError(t, err)

	refParser := fakeparser.New()
	refParser.Resources["/ref/messages.pot"] = &parser.ParsedResource{
		Translations: []parser.ParsedTranslation{{Key: "greeting", SourceString: "Hello"}},
	}
	resolver := &localeDirResolver{}
	locales := []model.Locale{{ID: 1, Code: "fr"}}
	now := time.Now()

	entityReport, err := reconcile.ReconcileEntities(ctx, tx, refParser, newProject(), locales, resolver, "/ref",
		[]string{"/ref/messages.pot"}, nil, now)
	require.NoError(t, err)
	require.Equal(t, []string{"messages.po"}, entityReport.AddedResources)

	resources, err := tx.ResourcesByPath(ctx, 1, []string{"messages.po"})
	require.NoError(t, err)
	_, ok := resources["messages.po"]
	require.True(t, ok, "a .pot reference file must be stored under its normalized .po path")

	targetParser := fakeparser.New()
	targetParser.Resources["/target/fr/messages.po"] = &parser.ParsedResource{
		Translations: []parser.ParsedTranslation{
			{Key: "greeting", SourceString: "Hello", Strings: map[*int]string{nil: "Bonjour"}},
		},
	}
	checkouts := []vcs.Checkout{
		{LocaleCode: "fr", Path: "/target/fr", Changed: []string{"messages.po"}},
	}
	refCheckout := vcs.Checkout{IsSource: true, Path: "/ref"}

	report, err := reconcile.SyncTranslationsFromRepo(ctx, tx, targetParser, newProject(), locales,
		checkouts, refCheckout, resolver, "/ref", now)
	require.NoError(t, err)
	assert.Nil(t, report.Errors)
	assert.Equal(t, 1, report.Created)
}

func TestSyncTranslationsFromRepo_FuzzyTranslationStaysUnapprovedAndKeepsSibling(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	tx, err := st.BeginTx(ctx)
	require.NoError(t, err)

	refParser := fakeparser.New()
	refParser.Resources["/ref/messages.po"] = &parser.ParsedResource{
		Translations: []parser.ParsedTranslation{{Key: "greeting", SourceString: "Hello"}},
	}
	resolver := &localeDirResolver{}
	locales := []model.Locale{{ID: 1, Code: "fr"}}
	now := time.Now()

	_, err = reconcile.ReconcileEntities(ctx, tx, refParser, newProject(), locales, resolver, "/ref",
		[]string{"/ref/messages.po"}, nil, now)
	require.NoError(t, err)

	resources, err := tx.ResourcesByPath(ctx, 1, []string{"messages.po"})
	require.NoError(t, err)
	entities, err := tx.EntitiesByResource(ctx, []int64{resources["messages.po"].ID})
	require.NoError(t, err)
	entityID := entities[0].ID

	// Seed an already-approved sibling translation without going through
	// InsertTranslations' Active=true path, so the (entity, locale) pair
	// is not marked changed and the repo sync below actually runs.
	inserted, err := tx.InsertTranslations(ctx, []model.Translation{
		{EntityID: entityID, LocaleID: 1, String: "Salut", Date: now},
	})
	require.NoError(t, err)
	approvedUser := model.SyncUser
	_, err = tx.ApplyApprovals(ctx, []model.Translation{
		{ID: inserted[0].ID, Active: true, Approved: true, ApprovedUser: &approvedUser, ApprovedDate: &now},
	}, []string{"active", "approved"})
	require.NoError(t, err)

	targetParser := fakeparser.New()
	targetParser.Resources["/target/fr/messages.po"] = &parser.ParsedResource{
		Translations: []parser.ParsedTranslation{
			{Key: "greeting", SourceString: "Hello", Strings: map[*int]string{nil: "Bonjour"}, Fuzzy: true},
		},
	}
	checkouts := []vcs.Checkout{
		{LocaleCode: "fr", Path: "/target/fr", Changed: []string{"messages.po"}},
	}
	refCheckout := vcs.Checkout{IsSource: true, Path: "/ref"}

	report, err := reconcile.SyncTranslationsFromRepo(ctx, tx, targetParser, newProject(), locales,
		checkouts, refCheckout, resolver, "/ref", now)
	require.NoError(t, err)
	assert.Nil(t, report.Errors)
	// A fuzzy repo string is created active-but-unapproved and must not
	// approve itself, or reject the existing approved sibling.
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 0, report.Approved)
	assert.Equal(t, 0, report.Rejected)

	sibling, ok, err := tx.TranslationByID(ctx, inserted[0].ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, sibling.Rejected)
	assert.True(t, sibling.Approved)

	matches, err := tx.MatchingSuggestions(ctx, []store.SuggestionTuple{
		{EntityID: entityID, LocaleID: 1, String: "Bonjour"},
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	fuzzyEntry := matches[0]
	assert.True(t, fuzzyEntry.Active)
	assert.False(t, fuzzyEntry.Approved)
	assert.True(t, fuzzyEntry.Fuzzy)
}

func TestSyncTranslationsFromRepo_UnrejectsMatchedSuggestion(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	tx, err := st.BeginTx(ctx)
	require.NoError(t, err)

	refParser := fakeparser.New()
	refParser.Resources["/ref/messages.po"] = &parser.ParsedResource{
		Translations: []parser.ParsedTranslation{{Key: "greeting", SourceString: "Hello"}},
	}
	resolver := &localeDirResolver{}
	locales := []model.Locale{{ID: 1, Code: "fr"}}
	now := time.Now()

	_, err = reconcile.ReconcileEntities(ctx, tx, refParser, newProject(), locales, resolver, "/ref",
		[]string{"/ref/messages.po"}, nil, now)
	require.NoError(t, err)

	resources, err := tx.ResourcesByPath(ctx, 1, []string{"messages.po"})
	require.NoError(t, err)
	entities, err := tx.EntitiesByResource(ctx, []int64{resources["messages.po"].ID})
	require.NoError(t, err)
	entityID := entities[0].ID

	// Seed a rejected suggestion with the exact string the repo will
	// reintroduce, again without marking (entity, locale) as changed.
	inserted, err := tx.InsertTranslations(ctx, []model.Translation{
		{EntityID: entityID, LocaleID: 1, String: "Bonjour", Date: now},
	})
	require.NoError(t, err)
	rejectedUser := model.SyncUser
	_, err = tx.ApplyApprovals(ctx, []model.Translation{
		{ID: inserted[0].ID, Rejected: true, RejectedUser: &rejectedUser, RejectedDate: &now},
	}, []string{"rejected"})
	require.NoError(t, err)

	targetParser := fakeparser.New()
	targetParser.Resources["/target/fr/messages.po"] = &parser.ParsedResource{
		Translations: []parser.ParsedTranslation{
			{Key: "greeting", SourceString: "Hello", Strings: map[*int]string{nil: "Bonjour"}},
		},
	}
	checkouts := []vcs.Checkout{
		{LocaleCode: "fr", Path: "/target/fr", Changed: []string{"messages.po"}},
	}
	refCheckout := vcs.Checkout{IsSource: true, Path: "/ref"}

	report, err := reconcile.SyncTranslationsFromRepo(ctx, tx, targetParser, newProject(), locales,
		checkouts, refCheckout, resolver, "/ref", now)
	require.NoError(t, err)
	assert.Nil(t, report.Errors)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 1, report.Approved)

	reapproved, ok, err := tx.TranslationByID(ctx, inserted[0].ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, reapproved.Active)
	assert.True(t, reapproved.Approved)
	assert.False(t, reapproved.Rejected)
	assert.NotNil(t, reapproved.UnrejectedDate)
}
