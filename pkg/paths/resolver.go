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

// Package paths unifies the two reference<->target path discovery
// strategies described in spec §4.2. The strategies' own pattern
// matching is the abstracted PathResolver capability of spec §6 (path
// discovery is a stated non-goal); GetPaths implements only the
// selection and construction logic that is in scope.
package paths

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/l10nplatform/syncengine/pkg/vcs"
)

// Sentinel errors from spec §7.
var (
	ErrMissingSourceDirectory = errors.New("syncengine: no source (reference) directory found")
	ErrMissingLocaleDirectory = errors.New("syncengine: no locale (target) directory found")
)

// Resolver is the Go shape of spec §6's PathResolver capability.
type Resolver interface {
	RefRoot() string
	Base() (string, bool)
	SetLocales(locales []string)
	TargetPath(refPath, localeCode string) (string, bool)
	TargetLocales(refPath string) []string
	FindReference(absTargetPath string) (refPath string, pathVars map[string]string, ok bool)
}

// GetPathLocale extracts a locale code from a Resolver.FindReference
// pathVars map, applying the android_locale conversion when that's the
// variable present, per spec §6.
func GetPathLocale(pathVars map[string]string) (string, bool) {
	if lc, ok := pathVars["locale"]; ok {
		return lc, true
	}
	if al, ok := pathVars["android_locale"]; ok {
		return ParseAndroidLocale(al), true
	}
	return "", false
}

// ToAndroidLocale converts a BCP-47-ish locale code (e.g. "pt-BR") into
// the Android resource-qualifier form ("pt-rBR").
func ToAndroidLocale(code string) string {
	parts := strings.SplitN(code, "-", 2)
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "-r" + parts[1]
}

// ParseAndroidLocale is the inverse of ToAndroidLocale.
func ParseAndroidLocale(androidLocale string) string {
	if idx := strings.Index(androidLocale, "-r"); idx >= 0 {
		return androidLocale[:idx] + "-" + androidLocale[idx+2:]
	}
	return androidLocale
}

// GetPaths implements spec §4.2's resolver selection: prefer the
// checkout flagged as source; if the project declares a configuration
// file, build a config-driven resolver (rebased onto the single
// non-reference repo when there is one); otherwise discover the
// mapping from directory structure.
func GetPaths(fs afero.Fs, projectCheckoutPath, configurationFile string, checkouts []vcs.Checkout, entries []PathEntry) (Resolver, vcs.Checkout, error) {
	var refCheckout *vcs.Checkout
	for i := range checkouts {
		if checkouts[i].IsSource {
			refCheckout = &checkouts[i]
			break
		}
	}

	if configurationFile != "" {
		if refCheckout == nil {
			var singleLocale []vcs.Checkout
			for _, co := range checkouts {
				if co.LocaleCode == "" {
					singleLocale = append(singleLocale, co)
				}
			}
			if len(singleLocale) != 1 {
				return nil, vcs.Checkout{}, ErrMissingSourceDirectory
			}
			refCheckout = &singleLocale[0]
		}

		resolver := NewConfigResolver(filepath.Join(refCheckout.Path, configurationFile), entries)

		if len(checkouts) > 1 {
			targetRepos := map[int64]vcs.Checkout{}
			for _, co := range checkouts {
				if co.Path != refCheckout.Path {
					targetRepos[co.Repo.ID] = co
				}
			}
			if len(targetRepos) != 1 {
				return nil, vcs.Checkout{}, ErrMissingLocaleDirectory
			}
			for _, co := range targetRepos {
				resolver.base = co.Repo.CheckoutPath
			}
		}
		return resolver, *refCheckout, nil
	}

	var refRoot string
	if refCheckout != nil {
		refRoot = refCheckout.Path
	}
	resolver, err := NewDiscoverResolver(fs, projectCheckoutPath, refRoot, entries)
	if err != nil {
		return nil, vcs.Checkout{}, err
	}
	if refCheckout == nil {
		for i := range checkouts {
			if isAncestor(checkouts[i].Path, resolver.RefRoot()) {
				refCheckout = &checkouts[i]
				break
			}
		}
		if refCheckout == nil {
			return nil, vcs.Checkout{}, ErrMissingSourceDirectory
		}
	}
	if _, ok := resolver.Base(); !ok {
		return nil, vcs.Checkout{}, ErrMissingLocaleDirectory
	}
	return resolver, *refCheckout, nil
}

func isAncestor(ancestor, path string) bool {
	rel, err := filepath.Rel(ancestor, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}
