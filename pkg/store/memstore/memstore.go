// Package memstore is a second, real implementation of the store.Tx /
// store.Store contract, kept entirely in process memory. It backs the
// reconciler test suites so spec scenarios can run without a
// database.
package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/l10nplatform/syncengine/pkg/model"
	"github.com/l10nplatform/syncengine/pkg/store"
)

// Store is an in-memory store.Store. The zero value is not usable;
// call New.
type Store struct {
	mu   *sequence
	data *database
}

type sequence struct {
	resourceID    int64
	entityID      int64
	translationID int64
	actionLogID   int64
}

// database holds every row, keyed by ID.
type database struct {
	resources          map[int64]model.Resource
	entities           map[int64]model.Entity
	translations       map[int64]model.Translation
	translatedResource map[[2]int64]model.TranslatedResource // (resourceID, localeID)
	changedEntityLoc   map[[2]int64]bool                      // (entityID, localeID)
	actionLogs         []model.ActionLog
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		mu: &sequence{},
		data: &database{
			resources:          map[int64]model.Resource{},
			entities:           map[int64]model.Entity{},
			translations:       map[int64]model.Translation{},
			translatedResource: map[[2]int64]model.TranslatedResource{},
			changedEntityLoc:   map[[2]int64]bool{},
		},
	}
}

var _ store.Store = (*Store)(nil)

// BeginTx implements store.Store. memstore has no real transaction
// isolation; it returns a handle to the shared database, every write
// applies immediately, and Rollback does not undo writes already made.
func (s *Store) BeginTx(_ context.Context) (store.Tx, error) {
	return &tx{seq: s.mu, db: s.data, committed: false}, nil
}

type tx struct {
	seq       *sequence
	db        *database
	committed bool
}

var _ store.Tx = (*tx)(nil)

func (t *tx) Commit(_ context.Context) error {
	t.committed = true
	return nil
}

func (t *tx) Rollback(_ context.Context) error {
	return nil
}

func (t *tx) ResourcesByPath(_ context.Context, projectID int64, paths []string) (map[string]model.Resource, error) {
	want := map[string]bool{}
	for _, p := range paths {
		want[p] = true
	}
	out := map[string]model.Resource{}
	for _, r := range t.db.resources {
		if r.ProjectID == projectID && want[r.Path] {
			out[r.Path] = r
		}
	}
	return out, nil
}

func (t *tx) DeleteResourcesByPath(_ context.Context, projectID int64, paths []string) ([]string, error) {
	want := map[string]bool{}
	for _, p := range paths {
		want[p] = true
	}
	var deleted []string
	for id, r := range t.db.resources {
		if r.ProjectID == projectID && want[r.Path] {
			delete(t.db.resources, id)
			deleted = append(deleted, r.Path)
		}
	}
	return deleted, nil
}

func (t *tx) BulkUpdateResourceTotalStrings(_ context.Context, resources []model.Resource) error {
	for _, r := range resources {
		existing, ok := t.db.resources[r.ID]
		if !ok {
			continue
		}
		existing.TotalStrings = r.TotalStrings
		t.db.resources[r.ID] = existing
	}
	return nil
}

func (t *tx) InsertResources(_ context.Context, resources []model.Resource) ([]model.Resource, error) {
	out := make([]model.Resource, 0, len(resources))
	for _, r := range resources {
		t.seq.resourceID++
		r.ID = t.seq.resourceID
		t.db.resources[r.ID] = r
		out = append(out, r)
	}
	return out, nil
}

func (t *tx) RecomputeResourceOrder(_ context.Context, projectID int64) error {
	var ids []int64
	for id, r := range t.db.resources {
		if r.ProjectID == projectID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return t.db.resources[ids[i]].Path < t.db.resources[ids[j]].Path
	})
	for i, id := range ids {
		r := t.db.resources[id]
		r.Order = i
		t.db.resources[id] = r
	}
	return nil
}

func (t *tx) EntitiesByResource(_ context.Context, resourceIDs []int64) ([]model.Entity, error) {
	want := map[int64]bool{}
	for _, id := range resourceIDs {
		want[id] = true
	}
	var out []model.Entity
	for _, e := range t.db.entities {
		if want[e.ResourceID] && !e.Obsolete {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) BulkUpdateEntities(_ context.Context, entities []model.Entity, columns []string) (int, error) {
	want := columnSet(columns)
	n := 0
	for _, e := range entities {
		existing, ok := t.db.entities[e.ID]
		if !ok {
			continue
		}
		if want["string"] {
			existing.String = e.String
		}
		if want["string_plural"] {
			existing.StringPlural = e.StringPlural
		}
		if want["comment"] {
			existing.Comment = e.Comment
		}
		if want["source"] {
			existing.Source = e.Source
		}
		if want["group_comment"] {
			existing.GroupComment = e.GroupComment
		}
		if want["resource_comment"] {
			existing.ResourceComment = e.ResourceComment
		}
		if want["context"] {
			existing.Context = e.Context
		}
		if want["order"] {
			existing.Order = e.Order
		}
		t.db.entities[e.ID] = existing
		n++
	}
	return n, nil
}

func (t *tx) BulkObsoleteEntities(_ context.Context, entityIDs []int64, dateObsoleted time.Time) (int, error) {
	n := 0
	for _, id := range entityIDs {
		e, ok := t.db.entities[id]
		if !ok || e.Obsolete {
			continue
		}
		e.Obsolete = true
		dt := dateObsoleted
		e.DateObsoleted = &dt
		t.db.entities[id] = e
		n++
	}
	return n, nil
}

func (t *tx) InsertEntities(_ context.Context, entities []model.Entity) ([]model.Entity, error) {
	out := make([]model.Entity, 0, len(entities))
	for _, e := range entities {
		t.seq.entityID++
		e.ID = t.seq.entityID
		t.db.entities[e.ID] = e
		out = append(out, e)
	}
	return out, nil
}

func (t *tx) InsertTranslatedResources(_ context.Context, rows []model.TranslatedResource) error {
	for _, r := range rows {
		key := [2]int64{r.ResourceID, r.LocaleID}
		if _, exists := t.db.translatedResource[key]; exists {
			continue
		}
		t.db.translatedResource[key] = r
	}
	return nil
}

func (t *tx) DeleteTranslatedResources(_ context.Context, _ int64, pairs []store.ResourceLocale) (int, error) {
	n := 0
	for _, p := range pairs {
		var resourceID int64 = -1
		for id, r := range t.db.resources {
			if r.Path == p.ResourcePath {
				resourceID = id
				break
			}
		}
		key := [2]int64{resourceID, p.LocaleID}
		if _, ok := t.db.translatedResource[key]; ok {
			delete(t.db.translatedResource, key)
			n++
		}
	}
	return n, nil
}

func (t *tx) TranslationByID(_ context.Context, id int64) (model.Translation, bool, error) {
	tr, ok := t.db.translations[id]
	return tr, ok, nil
}

func (t *tx) TranslationsForConflictCheck(_ context.Context, pairs []store.ResourceLocale) ([]store.ConflictCheckRow, error) {
	wantLocale := map[int64]bool{}
	for _, p := range pairs {
		wantLocale[p.LocaleID] = true
	}
	resourcePath := func(resourceID int64) string {
		return t.db.resources[resourceID].Path
	}
	var out []store.ConflictCheckRow
	for _, tr := range t.db.translations {
		if !tr.Active || !wantLocale[tr.LocaleID] {
			continue
		}
		e, ok := t.db.entities[tr.EntityID]
		if !ok {
			continue
		}
		path := resourcePath(e.ResourceID)
		matched := false
		for _, p := range pairs {
			if p.ResourcePath == path && p.LocaleID == tr.LocaleID {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		out = append(out, store.ConflictCheckRow{
			ResourcePath: path,
			EntityKey:    e.IdentityKey(),
			LocaleID:     tr.LocaleID,
			PluralForm:   tr.PluralForm,
			String:       tr.String,
		})
	}
	return out, nil
}

func (t *tx) ChangedEntityLocales(_ context.Context, projectID int64) ([]model.ChangedEntityLocale, error) {
	var out []model.ChangedEntityLocale
	for key := range t.db.changedEntityLoc {
		e, ok := t.db.entities[key[0]]
		if !ok {
			continue
		}
		if t.db.resources[e.ResourceID].ProjectID != projectID {
			continue
		}
		out = append(out, model.ChangedEntityLocale{EntityID: key[0], LocaleID: key[1]})
	}
	return out, nil
}

func (t *tx) EntitiesByKey(_ context.Context, lookups []store.EntityIdentity) (map[store.EntityIdentity]int64, error) {
	out := map[store.EntityIdentity]int64{}
	for _, l := range lookups {
		for id, e := range t.db.entities {
			if e.Obsolete {
				continue
			}
			if t.db.resources[e.ResourceID].Path == l.ResourcePath && e.IdentityKey() == l.Key {
				out[l] = id
				break
			}
		}
	}
	return out, nil
}

func (t *tx) MatchingSuggestions(_ context.Context, tuples []store.SuggestionTuple) ([]model.Translation, error) {
	var out []model.Translation
	for _, tup := range tuples {
		for _, tr := range t.db.translations {
			if tr.Approved || tr.Pretranslated {
				continue
			}
			if tr.EntityID == tup.EntityID && tr.LocaleID == tup.LocaleID &&
				samePluralForm(tr.PluralForm, tup.PluralForm) && tr.String == tup.String {
				out = append(out, tr)
			}
		}
	}
	return out, nil
}

func (t *tx) ApplyApprovals(_ context.Context, translations []model.Translation, columns []string) (int, error) {
	want := columnSet(columns)
	n := 0
	for _, tr := range translations {
		existing, ok := t.db.translations[tr.ID]
		if !ok {
			continue
		}
		if want["active"] {
			existing.Active = tr.Active
		}
		if want["approved"] {
			existing.Approved = tr.Approved
			existing.ApprovedUser = tr.ApprovedUser
			existing.ApprovedDate = tr.ApprovedDate
		}
		if want["pretranslated"] {
			existing.Pretranslated = tr.Pretranslated
		}
		if want["fuzzy"] {
			existing.Fuzzy = tr.Fuzzy
		}
		if want["rejected"] {
			existing.Rejected = tr.Rejected
			existing.RejectedUser = tr.RejectedUser
			existing.RejectedDate = tr.RejectedDate
			existing.UnrejectedUser = tr.UnrejectedUser
			existing.UnrejectedDate = tr.UnrejectedDate
		}
		t.db.translations[tr.ID] = existing
		n++
	}
	return n, nil
}

func (t *tx) InsertTranslations(_ context.Context, translations []model.Translation) ([]model.Translation, error) {
	out := make([]model.Translation, 0, len(translations))
	for _, tr := range translations {
		t.seq.translationID++
		tr.ID = t.seq.translationID
		t.db.translations[tr.ID] = tr
		if tr.Active {
			t.db.changedEntityLoc[[2]int64{tr.EntityID, tr.LocaleID}] = true
		}
		out = append(out, tr)
	}
	return out, nil
}

func (t *tx) RejectSiblings(_ context.Context, preds []store.RejectionPredicate, now time.Time) ([]model.Translation, error) {
	var rejected []model.Translation
	for _, p := range preds {
		for id, tr := range t.db.translations {
			if tr.ID == p.KeepID || tr.EntityID != p.EntityID || tr.LocaleID != p.LocaleID {
				continue
			}
			if !samePluralForm(tr.PluralForm, p.PluralForm) {
				continue
			}
			if tr.Rejected {
				continue
			}
			tr.Active = false
			tr.Approved = false
			tr.Pretranslated = false
			tr.Rejected = true
			rejectedUser := model.SyncUser
			tr.RejectedUser = &rejectedUser
			when := now
			tr.RejectedDate = &when
			t.db.translations[id] = tr
			rejected = append(rejected, tr)
		}
	}
	return rejected, nil
}

func (t *tx) InsertActionLogs(_ context.Context, logs []model.ActionLog) error {
	for _, l := range logs {
		t.seq.actionLogID++
		l.ID = t.seq.actionLogID
		t.db.actionLogs = append(t.db.actionLogs, l)
	}
	return nil
}

func samePluralForm(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func columnSet(cols []string) map[string]bool {
	out := map[string]bool{}
	for _, c := range cols {
		out[c] = true
	}
	return out
}
