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

// Package vcs materializes the per-sync Checkout objects described in
// spec §4.1, delegating the actual pull/diff work to a VersionControl
// implementation (git, hg, ...).
package vcs

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"k8s.io/klog/v2"

	"github.com/l10nplatform/syncengine/pkg/model"
)

// VersionControl is the narrow capability spec §6 requires of a VCS
// driver. Implementations live outside this module; git/hg transport
// is a stated non-goal of the sync engine itself.
type VersionControl interface {
	// Update brings the working copy at path to branch head from url.
	// Idempotent on no-change.
	Update(ctx context.Context, url, path, branch string) error
	// Revision returns the current HEAD revision, or ok=false if the
	// checkout has none yet.
	Revision(ctx context.Context, path string) (rev string, ok bool)
	// ChangedFiles returns paths relative to path, excluding
	// dot-prefixed files/dirs, changed and removed since sinceRev.
	ChangedFiles(ctx context.Context, path, sinceRev string) (changed, removed []string, err error)
}

// Checkout is an ephemeral, per-sync view of one (repository, locale?)
// pair. Its lifetime is the sync that created it.
type Checkout struct {
	Repo       model.Repository
	LocaleCode string // empty when the repository is not locale-expanded
	IsSource   bool
	URL        string
	Path       string
	PrevCommit string // empty means "no previous revision recorded"
	Commit     string
	Changed    []string
	Removed    []string
}

func (c Checkout) hasLocale() bool { return c.LocaleCode != "" }

// GetCheckouts materializes one Checkout per (repository, locale?) as
// described in spec §4.1. When pull is true, each checkout's working
// copy is first updated from its remote.
func GetCheckouts(ctx context.Context, fs afero.Fs, vc VersionControl, project model.Project, repos []model.Repository, locales []model.Locale, pull bool) ([]Checkout, error) {
	var checkouts []Checkout
	for _, repo := range repos {
		if strings.Contains(repo.URL, "{locale_code}") {
			for _, loc := range locales {
				co, err := buildCheckout(ctx, fs, vc, repo, loc.Code, pull)
				if err != nil {
					return nil, err
				}
				checkouts = append(checkouts, co)
			}
		} else {
			co, err := buildCheckout(ctx, fs, vc, repo, "", pull)
			if err != nil {
				return nil, err
			}
			checkouts = append(checkouts, co)
		}
	}
	return checkouts, nil
}

func buildCheckout(ctx context.Context, fs afero.Fs, vc VersionControl, repo model.Repository, localeCode string, pull bool) (Checkout, error) {
	co := Checkout{Repo: repo, LocaleCode: localeCode}
	if localeCode == "" {
		co.IsSource = repo.SourceRepo
		co.URL = repo.URL
		co.Path = filepath.Clean(repo.CheckoutPath)
	} else {
		co.IsSource = false
		co.URL = strings.ReplaceAll(repo.URL, "{locale_code}", localeCode)
		co.Path = filepath.Clean(filepath.Join(repo.CheckoutPath, localeCode))
	}

	key := localeCode
	if key == "" {
		key = model.SingleLocaleKey
	}
	if rev, ok := repo.LastSyncedRevisions[key]; ok {
		co.PrevCommit = rev
	}

	if pull {
		klog.V(2).Infof("Pulling updates from %s", co.URL)
		if err := vc.Update(ctx, co.URL, co.Path, repo.Branch); err != nil {
			return Checkout{}, err
		}
	}
	if rev, ok := vc.Revision(ctx, co.Path); ok {
		co.Commit = rev
	}

	if co.PrevCommit != "" {
		changed, removed, err := vc.ChangedFiles(ctx, co.Path, co.PrevCommit)
		if err == nil {
			co.Changed, co.Removed = changed, removed
			return co, nil
		}
		klog.Warningf("changed-files lookup failed for %s, falling back to full walk: %v", co.Path, err)
	}

	// Initially, and on any VCS error, consider every tracked file changed.
	all, err := walkTracked(fs, co.Path)
	if err != nil {
		return Checkout{}, err
	}
	co.Changed = all
	co.Removed = nil
	return co, nil
}

// walkTracked lists every file under root whose name and ancestor
// directory names do not begin with ".", relative to root.
func walkTracked(fs afero.Fs, root string) ([]string, error) {
	var out []string
	if err := walk(fs, root, root, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func walk(fs afero.Fs, root, dir string, out *[]string) error {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		if dir == root {
			// A checkout that does not exist yet on disk has nothing changed.
			return nil
		}
		return err
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(dir, name)
		if entry.IsDir() {
			if err := walk(fs, root, full, out); err != nil {
				return err
			}
			continue
		}
		rel, err := filepath.Rel(root, full)
		if err != nil {
			return err
		}
		*out = append(*out, rel)
	}
	return nil
}
