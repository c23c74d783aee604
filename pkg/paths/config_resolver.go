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

package paths

import (
	"path/filepath"
	"strings"
)

// PathEntry is one reference<->target mapping rule read from a
// project's path-configuration file. L10nTemplate holds exactly one
// "{locale}" or "{android_locale}" placeholder relative to the
// resolver's base directory.
type PathEntry struct {
	Reference    string
	L10nTemplate string
}

func (e PathEntry) usesAndroidLocale() bool {
	return strings.Contains(e.L10nTemplate, "{android_locale}")
}

func (e PathEntry) placeholder() string {
	if e.usesAndroidLocale() {
		return "{android_locale}"
	}
	return "{locale}"
}

// configResolver is driven by an explicit configuration file. The
// file's own syntax is outside this module's scope (path discovery is
// an abstracted capability per spec §6); entries are supplied
// pre-parsed by the caller.
type configResolver struct {
	configPath string
	refRoot    string
	base       string
	entries    []PathEntry
	locales    []string
}

var _ Resolver = (*configResolver)(nil)

// NewConfigResolver builds a Resolver rooted at configPath's directory,
// using the android_locale<->locale transform spec §4.2 names.
func NewConfigResolver(configPath string, entries []PathEntry) *configResolver {
	return &configResolver{
		configPath: configPath,
		refRoot:    filepath.Dir(configPath),
		base:       filepath.Dir(configPath),
		entries:    entries,
	}
}

func (r *configResolver) RefRoot() string { return r.refRoot }

func (r *configResolver) Base() (string, bool) {
	if r.base == "" {
		return "", false
	}
	return r.base, true
}

func (r *configResolver) SetLocales(locales []string) { r.locales = locales }

func (r *configResolver) entryFor(refPath string) (PathEntry, bool) {
	for _, e := range r.entries {
		if e.Reference == refPath {
			return e, true
		}
	}
	return PathEntry{}, false
}

func (r *configResolver) TargetPath(refPath, localeCode string) (string, bool) {
	e, ok := r.entryFor(refPath)
	if !ok {
		return "", false
	}
	value := localeCode
	if e.usesAndroidLocale() {
		value = ToAndroidLocale(localeCode)
	}
	rel := strings.ReplaceAll(e.L10nTemplate, e.placeholder(), value)
	return filepath.Join(r.base, rel), true
}

func (r *configResolver) TargetLocales(refPath string) []string {
	if _, ok := r.entryFor(refPath); !ok {
		return nil
	}
	return r.locales
}

func (r *configResolver) FindReference(absTargetPath string) (string, map[string]string, bool) {
	rel, err := filepath.Rel(r.base, absTargetPath)
	if err != nil {
		return "", nil, false
	}
	rel = filepath.ToSlash(rel)
	for _, e := range r.entries {
		tmpl := filepath.ToSlash(e.L10nTemplate)
		prefix, suffix, found := splitOnPlaceholder(tmpl, e.placeholder())
		if !found {
			continue
		}
		if !strings.HasPrefix(rel, prefix) || !strings.HasSuffix(rel, suffix) {
			continue
		}
		value := rel[len(prefix) : len(rel)-len(suffix)]
		if value == "" {
			continue
		}
		refPath := filepath.Join(r.refRoot, e.Reference)
		if e.usesAndroidLocale() {
			return refPath, map[string]string{"android_locale": value}, true
		}
		return refPath, map[string]string{"locale": value}, true
	}
	return "", nil, false
}

func splitOnPlaceholder(tmpl, placeholder string) (prefix, suffix string, ok bool) {
	idx := strings.Index(tmpl, placeholder)
	if idx < 0 {
		return "", "", false
	}
	return tmpl[:idx], tmpl[idx+len(placeholder):], true
}
