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

package reconcile

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/l10nplatform/syncengine/pkg/model"
	"github.com/l10nplatform/syncengine/pkg/parser"
	"github.com/l10nplatform/syncengine/pkg/paths"
	"github.com/l10nplatform/syncengine/pkg/store"
	"github.com/l10nplatform/syncengine/pkg/vcs"
)

// TranslationReport summarizes one SyncTranslationsFromRepo call.
type TranslationReport struct {
	Created  int
	Approved int
	Rejected int
	Errors   error // multierr of isolated per-file failures (parse or store)
}

// SyncTranslationsFromRepo folds target-locale repo changes into the
// translations table (spec §4.4). The database always wins: an entity
// whose locale appears in ChangedEntityLocales, or whose repo value
// already matches the live translation, is left untouched.
func SyncTranslationsFromRepo(
	ctx context.Context,
	tx store.Tx,
	p parser.ResourceParser,
	project model.Project,
	locales []model.Locale,
	checkouts []vcs.Checkout,
	refCheckout vcs.Checkout,
	resolver paths.Resolver,
	refRoot string,
	now time.Time,
) (*TranslationReport, error) {
	report := &TranslationReport{}

	changedLocales, err := tx.ChangedEntityLocales(ctx, project.ID)
	if err != nil {
		return report, err
	}
	protected := map[[2]int64]bool{}
	for _, c := range changedLocales {
		protected[[2]int64{c.EntityID, c.LocaleID}] = true
	}

	localeByCode := map[string]model.Locale{}
	for _, l := range locales {
		localeByCode[l.Code] = l
	}

	for _, checkout := range checkouts {
		if checkout.IsSource {
			continue
		}
		locale, ok := localeByCode[checkout.LocaleCode]
		if !ok {
			continue
		}

		if len(checkout.Removed) > 0 {
			pairs := make([]store.ResourceLocale, 0, len(checkout.Removed))
			for _, removedPath := range checkout.Removed {
				refPath, _, ok := resolver.FindReference(filepath.Join(checkout.Path, removedPath))
				if !ok {
					continue
				}
				dbPath, ok := dbPathFromRef(refRoot, refPath)
				if !ok {
					continue
				}
				pairs = append(pairs, store.ResourceLocale{ResourcePath: dbPath, LocaleID: locale.ID})
			}
			if len(pairs) > 0 {
				if _, err := tx.DeleteTranslatedResources(ctx, project.ID, pairs); err != nil {
					report.Errors = multierr.Append(report.Errors, err)
				}
			}
		}

		for _, changedPath := range checkout.Changed {
			absTarget := filepath.Join(checkout.Path, changedPath)
			refPath, _, ok := resolver.FindReference(absTarget)
			if !ok {
				continue
			}
			dbPath, ok := dbPathFromRef(refRoot, refPath)
			if !ok {
				continue
			}
			if err := syncOneTargetFile(ctx, tx, p, locale, absTarget, refPath, dbPath, protected, now, report); err != nil {
				report.Errors = multierr.Append(report.Errors, err)
			}
		}
	}

	return report, nil
}

// dbPathFromRef converts the absolute reference path
// paths.Resolver.FindReference returns into the normalized database
// path the reference side stores resources under (spec
// §4.4.1/§4.4.2, and §3/§8's pot-to-po normalization).
func dbPathFromRef(refRoot, refPath string) (string, bool) {
	rel, err := filepath.Rel(refRoot, refPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return normalizePotPath(rel), true
}

func syncOneTargetFile(
	ctx context.Context,
	tx store.Tx,
	p parser.ResourceParser,
	locale model.Locale,
	absTarget, refPath, dbPath string,
	protected map[[2]int64]bool,
	now time.Time,
	report *TranslationReport,
) error {
	parsed, err := p.Parse(ctx, absTarget, &refPath, &locale)
	if err != nil {
		return err
	}

	lookups := make([]store.EntityIdentity, 0, len(parsed.Translations))
	for _, pt := range parsed.Translations {
		key := pt.Key
		if key == "" {
			key = pt.SourceString
		}
		lookups = append(lookups, store.EntityIdentity{ResourcePath: dbPath, Key: key})
	}
	entityIDs, err := tx.EntitiesByKey(ctx, lookups)
	if err != nil {
		return err
	}

	pairs := []store.ResourceLocale{{ResourcePath: dbPath, LocaleID: locale.ID}}
	currentActive, err := tx.TranslationsForConflictCheck(ctx, pairs)
	if err != nil {
		return err
	}
	currentByKeyAndForm := map[string]store.ConflictCheckRow{}
	for _, row := range currentActive {
		currentByKeyAndForm[conflictKey(row.EntityKey, row.PluralForm)] = row
	}

	for _, pt := range parsed.Translations {
		key := pt.Key
		if key == "" {
			key = pt.SourceString
		}
		entityID, ok := entityIDs[store.EntityIdentity{ResourcePath: dbPath, Key: key}]
		if !ok {
			continue // entity not known on the reference side; skip
		}

		for pluralForm, value := range pt.Strings {
			if value == "" {
				continue
			}
			if protected[[2]int64{entityID, locale.ID}] {
				continue
			}
			if row, ok := currentByKeyAndForm[conflictKey(key, pluralForm)]; ok && row.String == value {
				continue // repo agrees with the database; no-op
			}

			if err := applyIncomingTranslation(ctx, tx, entityID, locale.ID, pluralForm, value, pt.Fuzzy, now, report); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyIncomingTranslation reconciles one (entity, locale, plural
// form) string from the repo: reuse a matching existing row if one
// exists, otherwise create one (spec §4.4.2 steps 5-7). A fuzzy repo
// string (glossary: "stored active but not approved") is stored
// active without being approved and never rejects its siblings; only a
// non-fuzzy string is approved and rejects them. A matched suggestion
// that was rejected is unrejected in either case.
func applyIncomingTranslation(
	ctx context.Context,
	tx store.Tx,
	entityID, localeID int64,
	pluralForm *int,
	value string,
	fuzzy bool,
	now time.Time,
	report *TranslationReport,
) error {
	suggestions, err := tx.MatchingSuggestions(ctx, []store.SuggestionTuple{
		{EntityID: entityID, LocaleID: localeID, PluralForm: pluralForm, String: value},
	})
	if err != nil {
		return err
	}

	var kept model.Translation
	var logs []model.ActionLog

	if len(suggestions) > 0 {
		kept = suggestions[0]
		wasRejected := kept.Rejected
		kept.Active = true
		kept.Fuzzy = fuzzy
		columns := []string{"active", "fuzzy"}

		if !fuzzy {
			kept.Approved = true
			kept.Pretranslated = false
			approvedUser := model.SyncUser
			kept.ApprovedUser = &approvedUser
			kept.ApprovedDate = &now
			columns = append(columns, "approved", "pretranslated")
		}
		if wasRejected {
			kept.Rejected = false
			unrejectedUser := model.SyncUser
			kept.UnrejectedUser = &unrejectedUser
			kept.UnrejectedDate = &now
			columns = append(columns, "rejected")
		}
		if _, err := tx.ApplyApprovals(ctx, []model.Translation{kept}, columns); err != nil {
			return err
		}
		if wasRejected {
			logs = append(logs, model.ActionLog{ActionType: model.ActionTranslationUnrejected, PerformedBy: model.SyncUser, TranslationID: kept.ID, CreatedAt: now})
		}
		if !fuzzy {
			report.Approved++
			logs = append(logs, model.ActionLog{ActionType: model.ActionTranslationApproved, PerformedBy: model.SyncUser, TranslationID: kept.ID, CreatedAt: now})
		}
	} else {
		created := model.Translation{
			EntityID:   entityID,
			LocaleID:   localeID,
			String:     value,
			PluralForm: pluralForm,
			Active:     true,
			Approved:   !fuzzy,
			Fuzzy:      fuzzy,
			Date:       now,
		}
		if !fuzzy {
			approvedUser := model.SyncUser
			created.ApprovedUser = &approvedUser
			created.ApprovedDate = &now
		}
		inserted, err := tx.InsertTranslations(ctx, []model.Translation{created})
		if err != nil {
			return err
		}
		kept = inserted[0]
		report.Created++
		logs = append(logs, model.ActionLog{ActionType: model.ActionTranslationCreated, PerformedBy: model.SyncUser, TranslationID: kept.ID, CreatedAt: now})
	}

	if !fuzzy {
		rejected, err := tx.RejectSiblings(ctx, []store.RejectionPredicate{
			{EntityID: entityID, LocaleID: localeID, PluralForm: pluralForm, KeepID: kept.ID},
		}, now)
		if err != nil {
			return err
		}
		report.Rejected += len(rejected)
		for _, r := range rejected {
			logs = append(logs, model.ActionLog{ActionType: model.ActionTranslationRejected, PerformedBy: model.SyncUser, TranslationID: r.ID, CreatedAt: now})
		}
	}

	return tx.InsertActionLogs(ctx, logs)
}

func conflictKey(entityKey string, pluralForm *int) string {
	if pluralForm == nil {
		return entityKey + "#"
	}
	return entityKey + "#" + string(rune('0'+*pluralForm))
}
