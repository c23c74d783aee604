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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l10nplatform/syncengine/pkg/model"
	"github.com/l10nplatform/syncengine/pkg/parser"
	"github.com/l10nplatform/syncengine/pkg/parser/fakeparser"
	"github.com/l10nplatform/syncengine/pkg/reconcile"
	"github.com/l10nplatform/syncengine/pkg/store/memstore"
)

// stubResolver is a minimal paths.Resolver for reconciler tests:
// target paths are a fixed "<locale>/<refPath>" join and every
// resource is available to every locale.
type stubResolver struct{ locales []string }

func (r *stubResolver) RefRoot() string              { return "/ref" }
func (r *stubResolver) Base() (string, bool)         { return "/target", true }
func (r *stubResolver) SetLocales(l []string)        { r.locales = l }
func (r *stubResolver) TargetLocales(_ string) []string { return r.locales }
func (r *stubResolver) TargetPath(refPath, localeCode string) (string, bool) {
	return "/target/" + localeCode + "/" + refPath, true
}
func (r *stubResolver) FindReference(absTargetPath string) (string, map[string]string, bool) {
	return absTargetPath, nil, true
}

func newProject() model.Project {
	return model.Project{ID: 1, Slug: "demo", CheckoutPath: "/ref"}
}

func TestReconcileEntities_AddsNewResourceAndEntities(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	tx, err := st.BeginTx(ctx)
	require.NoError(t, err)

	p := fakeparser.New()
	p.Resources["/ref/messages.po"] = &parser.ParsedResource{
		Translations: []parser.ParsedTranslation{
			{Key: "greeting", SourceString: "Hello"},
			{Key: "farewell", SourceString: "Goodbye"},
		},
	}

	resolver := &stubResolver{}
	locales := []model.Locale{{ID: 1, Code: "fr"}}
	resolver.SetLocales([]string{"fr"})

	now := time.Now()
	report, err := reconcile.ReconcileEntities(ctx, tx, p, newProject(), locales, resolver, "/ref",
		[]string{"/ref/messages.po"}, nil, now)
	require.NoError(t, err)
	assert.Nil(t, report.Errors)
	assert.Equal(t, []string{"messages.po"}, report.AddedResources)

	resources, err := tx.ResourcesByPath(ctx, 1, []string{"messages.po"})
	require.NoError(t, err)
	res, ok := resources["messages.po"]
	require.True(t, ok)
	assert.Equal(t, 2, res.TotalStrings)

	entities, err := tx.EntitiesByResource(ctx, []int64{res.ID})
	require.NoError(t, err)
	assert.Len(t, entities, 2)
}

func TestReconcileEntities_UpdatesChangedEntityAndObsoletesRemoved(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	tx, err := st.BeginTx(ctx)
	require.NoError(t, err)

	p := fakeparser.New()
	p.Resources["/ref/messages.po"] = &parser.ParsedResource{
		Translations: []parser.ParsedTranslation{
			{Key: "greeting", SourceString: "Hello"},
			{Key: "farewell", SourceString: "Goodbye"},
		},
	}
	resolver := &stubResolver{}
	locales := []model.Locale{{ID: 1, Code: "fr"}}
	now := time.Now()

	_, err = reconcile.ReconcileEntities(ctx, tx, p, newProject(), locales, resolver, "/ref",
		[]string{"/ref/messages.po"}, nil, now)
	require.NoError(t, err)

	// Second sync: "greeting" changes text, "farewell" disappears, "welcome" is added.
	p.Resources["/ref/messages.po"] = &parser.ParsedResource{
		Translations: []parser.ParsedTranslation{
			{Key: "greeting", SourceString: "Hi there"},
			{Key: "welcome", SourceString: "Welcome"},
		},
	}
	later := now.Add(time.Hour)
	report, err := reconcile.ReconcileEntities(ctx, tx, p, newProject(), locales, resolver, "/ref",
		[]string{"/ref/messages.po"}, nil, later)
	require.NoError(t, err)
	assert.Equal(t, []string{"messages.po"}, report.ChangedResources)

	resources, err := tx.ResourcesByPath(ctx, 1, []string{"messages.po"})
	require.NoError(t, err)
	res := resources["messages.po"]
	assert.Equal(t, 2, res.TotalStrings)

	entities, err := tx.EntitiesByResource(ctx, []int64{res.ID})
	require.NoError(t, err)
	byKey := map[string]model.Entity{}
	for _, e := range entities {
		byKey[e.IdentityKey()] = e
	}
	require.Contains(t, byKey, "greeting")
	assert.Equal(t, "Hi there", byKey["greeting"].String)
	require.Contains(t, byKey, "welcome")
	assert.NotContains(t, byKey, "farewell") // obsoleted, not returned by EntitiesByResource
}

func TestReconcileEntities_RemovedResourceObsoletesEntitiesAndDeletesResource(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	tx, err := st.BeginTx(ctx)
	require.NoError(t, err)

	p := fakeparser.New()
	p.Resources["/ref/messages.po"] = &parser.ParsedResource{
		Translations: []parser.ParsedTranslation{{Key: "greeting", SourceString: "Hello"}},
	}
	resolver := &stubResolver{}
	locales := []model.Locale{{ID: 1, Code: "fr"}}
	now := time.Now()

	_, err = reconcile.ReconcileEntities(ctx, tx, p, newProject(), locales, resolver, "/ref",
		[]string{"/ref/messages.po"}, nil, now)
	require.NoError(t, err)

	report, err := reconcile.ReconcileEntities(ctx, tx, p, newProject(), locales, resolver, "/ref",
		nil, []string{"/ref/messages.po"}, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"messages.po"}, report.RemovedResources)

	resources, err := tx.ResourcesByPath(ctx, 1, []string{"messages.po"})
	require.NoError(t, err)
	assert.Empty(t, resources)
}
