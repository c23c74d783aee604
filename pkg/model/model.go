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

// Package model holds the persistent entities reconciled by the sync
// engine. Every type stores identifiers only; there is no lazy,
// ORM-style navigation between them, so a Store implementation can
// materialize any of them from a flat query.
package model

import "time"

// SyncUser is the well-known actor recorded against every write the
// sync engine itself performs.
const SyncUser = "syncengine-bot"

// SingleLocaleKey is the sentinel used in Repository.LastSyncedRevisions
// for repositories that are not expanded per-locale.
const SingleLocaleKey = "single_locale"

// Bilingual formats carry both source string and translation in the
// same file. When a resource of one of these formats is first added,
// a TranslatedResource row is seeded for every locale the resolver
// maps to a target path; whether that target file exists on disk is
// not checked. Resources of other formats get no seeded rows.
const (
	FormatPO      = "po"
	FormatXLIFF   = "xliff"
	FormatAndroid = "android"
	FormatFTL     = "ftl"
	FormatProps   = "properties"
)

// BilingualFormats is the governing set from spec §6.
var BilingualFormats = map[string]bool{
	FormatPO:    true,
	FormatXLIFF: true,
}

// Locale is a project's target (or source) language.
type Locale struct {
	ID   int64
	Code string
}

// Project owns a set of Repositories and Locales.
type Project struct {
	ID                int64
	Slug              string
	CheckoutPath      string
	ConfigurationFile string // relative path; empty means "discover"
}

// Repository belongs to a Project.
type Repository struct {
	ID                  int64
	ProjectID           int64
	Type                string
	URL                 string // may contain the literal token "{locale_code}"
	Branch              string
	CheckoutPath        string
	SourceRepo          bool
	LastSyncedRevisions map[string]string // locale code or SingleLocaleKey -> revision
}

// Resource belongs to a Project. Path is normalized: a trailing ".pot"
// suffix is always rewritten to ".po" before storage.
type Resource struct {
	ID           int64
	ProjectID    int64
	Path         string
	Format       string
	TotalStrings int
	Order        int
}

// Entity belongs to a Resource. Its logical identity within the
// resource is Key, falling back to String when Key is empty.
type Entity struct {
	ID              int64
	ResourceID      int64
	String          string
	StringPlural    string
	Key             string
	Comment         string
	Source          string
	GroupComment    string
	ResourceComment string
	Context         string
	Order           int
	Obsolete        bool
	DateObsoleted   *time.Time
	DateCreated     time.Time
}

// IdentityKey returns the (key-or-string) value used to match an
// Entity across syncs.
func (e Entity) IdentityKey() string {
	if e.Key != "" {
		return e.Key
	}
	return e.String
}

// Same reports whether two entities have identical source-derived
// attributes, per spec §4.3.
func (e Entity) Same(o Entity) bool {
	return e.String == o.String &&
		e.StringPlural == o.StringPlural &&
		e.Comment == o.Comment &&
		e.Source == o.Source &&
		e.GroupComment == o.GroupComment &&
		e.ResourceComment == o.ResourceComment &&
		e.Context == o.Context
}

// Translation belongs to (Entity, Locale, PluralForm).
type Translation struct {
	ID       int64
	EntityID int64
	LocaleID int64

	String     string
	PluralForm *int // nil for singular

	Active       bool
	Approved     bool
	Pretranslated bool
	Fuzzy        bool
	Rejected     bool

	Date time.Time

	ApprovedUser   *string
	ApprovedDate   *time.Time
	UnapprovedUser *string
	UnapprovedDate *time.Time
	RejectedUser   *string
	RejectedDate   *time.Time
	UnrejectedUser *string
	UnrejectedDate *time.Time
}

// TranslatedResource marks (Resource, Locale) as expected to be
// translated.
type TranslatedResource struct {
	ID           int64
	ResourceID   int64
	LocaleID     int64
	TotalStrings int
}

// ChangedEntityLocale records a recent user-side change not yet
// pushed to the repository; its presence triggers database-wins.
type ChangedEntityLocale struct {
	EntityID int64
	LocaleID int64
}

// ActionType enumerates ActionLog rows.
type ActionType string

const (
	ActionTranslationCreated    ActionType = "TRANSLATION_CREATED"
	ActionTranslationApproved   ActionType = "TRANSLATION_APPROVED"
	ActionTranslationUnrejected ActionType = "TRANSLATION_UNREJECTED"
	ActionTranslationRejected   ActionType = "TRANSLATION_REJECTED"
)

// ActionLog is an append-only audit row.
type ActionLog struct {
	ID            int64
	ActionType    ActionType
	PerformedBy   string
	TranslationID int64
	CreatedAt     time.Time
}
