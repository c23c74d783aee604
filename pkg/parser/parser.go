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

// Package parser defines the uniform ResourceParser capability (spec
// §6). Format internals (po, xliff, Android XML, FTL, properties) are
// a stated non-goal of the sync engine; this package only fixes the
// closed shape every format adapter must produce.
package parser

import (
	"context"

	"github.com/l10nplatform/syncengine/pkg/model"
)

// ParsedTranslation is one logical string extracted from a resource
// file. It is a closed record: optional fields are explicit, empty
// zero values rather than duck-typed attributes (spec §9).
type ParsedTranslation struct {
	Key                string
	SourceString       string
	SourceStringPlural string
	Comments           []string
	GroupComments      []string
	ResourceComments   []string
	Source             string
	Order              *int
	Context            string

	// Strings and Fuzzy are populated only for target-side parses.
	// The map key is the plural form (nil for singular).
	Strings map[*int]string
	Fuzzy   bool
}

// ParsedResource is the uniform yield of a ResourceParser.Parse call.
type ParsedResource struct {
	Translations []ParsedTranslation
}

// ParseError marks a reference-side parse failure; callers isolate it
// per file per spec §7.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "parse " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// ResourceParser parses one resource file. For a reference-side parse,
// refPath and locale are nil. For a target-side parse, refPath is the
// corresponding reference file and locale is the file's locale.
type ResourceParser interface {
	Parse(ctx context.Context, absPath string, refPath *string, locale *model.Locale) (*ParsedResource, error)
}
