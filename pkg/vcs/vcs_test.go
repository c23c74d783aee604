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

package vcs_test

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l10nplatform/syncengine/pkg/model"
	"github.com/l10nplatform/syncengine/pkg/vcs"
	"github.com/l10nplatform/syncengine/pkg/vcs/fakevcs"
)

func TestGetCheckouts_ExpandsPerLocaleRepository(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	fake := fakevcs.New()
	fake.Revisions["/checkouts/fr"] = "rev-fr"
	fake.Revisions["/checkouts/de"] = "rev-de"

	project := model.Project{ID: 1, CheckoutPath: "/checkouts"}
	repos := []model.Repository{
		{ID: 10, ProjectID: 1, URL: "https://example.test/l10n-{locale_code}.git", CheckoutPath: "/checkouts"},
	}
	locales := []model.Locale{{ID: 1, Code: "fr"}, {ID: 2, Code: "de"}}

	checkouts, err := vcs.GetCheckouts(ctx, fs, fake, project, repos, locales, true)
	require.NoError(t, err)
	require.Len(t, checkouts, 2)
	assert.Equal(t, "fr", checkouts[0].LocaleCode)
	assert.Equal(t, "https://example.test/l10n-fr.git", checkouts[0].URL)
	assert.Equal(t, "rev-fr", checkouts[0].Commit)
	assert.Contains(t, fake.Pulls, "https://example.test/l10n-fr.git")
}

func TestGetCheckouts_FallsBackToFullWalkWithoutPriorRevision(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/checkouts/main/messages.po", []byte(""), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/checkouts/main/.git/HEAD", []byte(""), 0o644))

	fake := fakevcs.New()
	project := model.Project{ID: 1, CheckoutPath: "/checkouts"}
	repos := []model.Repository{
		{ID: 10, ProjectID: 1, URL: "https://example.test/main.git", CheckoutPath: "/checkouts/main", SourceRepo: true},
	}

	checkouts, err := vcs.GetCheckouts(ctx, fs, fake, project, repos, nil, false)
	require.NoError(t, err)
	require.Len(t, checkouts, 1)
	assert.Equal(t, []string{"messages.po"}, checkouts[0].Changed)
	assert.Empty(t, checkouts[0].Removed)
}
