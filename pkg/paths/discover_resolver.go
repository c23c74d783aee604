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

	"github.com/spf13/afero"
)

// sourceDirCandidates are the conventional names of the reference
// (source-language) directory when no explicit configuration file
// names one.
var sourceDirCandidates = []string{"templates", "en-US", "en"}

// discoverResolver maps reference<->target paths by directory
// structure: every immediate child of base other than refRoot is
// assumed to be a locale directory mirroring refRoot's tree.
type discoverResolver struct {
	fs      afero.Fs
	refRoot string
	base    string
	locales []string
}

var _ Resolver = (*discoverResolver)(nil)

// NewDiscoverResolver builds a Resolver by directory-structure
// discovery under checkoutRoot. If refRoot is empty, it is inferred
// from sourceDirCandidates. entries is accepted for interface
// symmetry with NewConfigResolver but unused: structural discovery
// does not need per-path rules.
func NewDiscoverResolver(fs afero.Fs, checkoutRoot, refRoot string, _ []PathEntry) (*discoverResolver, error) {
	if refRoot == "" {
		for _, candidate := range sourceDirCandidates {
			p := filepath.Join(checkoutRoot, candidate)
			if isDir(fs, p) {
				refRoot = p
				break
			}
		}
	}
	r := &discoverResolver{fs: fs, refRoot: refRoot, base: checkoutRoot}
	return r, nil
}

func isDir(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	return err == nil && info.IsDir()
}

func (r *discoverResolver) RefRoot() string { return r.refRoot }

func (r *discoverResolver) Base() (string, bool) {
	if r.refRoot == "" || r.base == "" {
		return "", false
	}
	if len(r.localeDirs()) == 0 {
		return "", false
	}
	return r.base, true
}

func (r *discoverResolver) SetLocales(locales []string) { r.locales = locales }

func (r *discoverResolver) localeDirs() []string {
	entries, err := afero.ReadDir(r.fs, r.base)
	if err != nil {
		return nil
	}
	refBase := filepath.Base(r.refRoot)
	var dirs []string
	for _, e := range entries {
		if e.IsDir() && e.Name() != refBase && !strings.HasPrefix(e.Name(), ".") {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs
}

func (r *discoverResolver) TargetPath(refPath, localeCode string) (string, bool) {
	rel, err := filepath.Rel(r.refRoot, refPath)
	if err != nil {
		return "", false
	}
	return filepath.Join(r.base, localeCode, rel), true
}

func (r *discoverResolver) TargetLocales(_ string) []string {
	return r.locales
}

func (r *discoverResolver) FindReference(absTargetPath string) (string, map[string]string, bool) {
	rel, err := filepath.Rel(r.base, absTargetPath)
	if err != nil {
		return "", nil, false
	}
	parts := strings.SplitN(filepath.ToSlash(rel), "/", 2)
	if len(parts) != 2 {
		return "", nil, false
	}
	localeCode, remainder := parts[0], parts[1]
	refPath := filepath.Join(r.refRoot, remainder)
	return refPath, map[string]string{"locale": localeCode}, true
}
