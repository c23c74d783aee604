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

// Package pgxstore is the PostgreSQL-backed implementation of
// store.Store/store.Tx, built on jackc/pgx's pool and batch APIs
// (spec §4.5, §9). Bulk inserts and updates are sent as one batch;
// the per-tuple lookups (EntitiesByKey, TranslationsForConflictCheck,
// MatchingSuggestions), RejectSiblings and DeleteTranslatedResources
// issue one statement per input item.
package pgxstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/l10nplatform/syncengine/pkg/model"
	"github.com/l10nplatform/syncengine/pkg/store"
)

// Store opens transactions against a pgxpool.Pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// Open creates a pool for connString and pings it.
func Open(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool's connections.
func (s *Store) Close() { s.pool.Close() }

func (s *Store) BeginTx(ctx context.Context) (store.Tx, error) {
	pgxTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	return &tx{pgxTx: pgxTx}, nil
}

type tx struct {
	pgxTx pgx.Tx
}

var _ store.Tx = (*tx)(nil)

func (t *tx) Commit(ctx context.Context) error   { return t.pgxTx.Commit(ctx) }
func (t *tx) Rollback(ctx context.Context) error { return t.pgxTx.Rollback(ctx) }

func (t *tx) ResourcesByPath(ctx context.Context, projectID int64, paths []string) (map[string]model.Resource, error) {
	rows, err := t.pgxTx.Query(ctx,
		`SELECT id, project_id, path, format, total_strings, "order"
		   FROM resources WHERE project_id = $1 AND path = ANY($2)`,
		projectID, paths)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]model.Resource{}
	for rows.Next() {
		var r model.Resource
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Path, &r.Format, &r.TotalStrings, &r.Order); err != nil {
			return nil, err
		}
		out[r.Path] = r
	}
	return out, rows.Err()
}

func (t *tx) DeleteResourcesByPath(ctx context.Context, projectID int64, paths []string) ([]string, error) {
	rows, err := t.pgxTx.Query(ctx,
		`DELETE FROM resources WHERE project_id = $1 AND path = ANY($2) RETURNING path`,
		projectID, paths)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *tx) BulkUpdateResourceTotalStrings(ctx context.Context, resources []model.Resource) error {
	batch := &pgx.Batch{}
	for _, r := range resources {
		batch.Queue(`UPDATE resources SET total_strings = $1 WHERE id = $2`, r.TotalStrings, r.ID)
	}
	return t.pgxTx.SendBatch(ctx, batch).Close()
}

func (t *tx) InsertResources(ctx context.Context, resources []model.Resource) ([]model.Resource, error) {
	out := make([]model.Resource, len(resources))
	batch := &pgx.Batch{}
	for _, r := range resources {
		batch.Queue(
			`INSERT INTO resources (project_id, path, format, total_strings, "order")
			   VALUES ($1, $2, $3, $4, 0) RETURNING id`,
			r.ProjectID, r.Path, r.Format, r.TotalStrings)
	}
	br := t.pgxTx.SendBatch(ctx, batch)
	defer br.Close()
	for i, r := range resources {
		if err := br.QueryRow().Scan(&r.ID); err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func (t *tx) RecomputeResourceOrder(ctx context.Context, projectID int64) error {
	_, err := t.pgxTx.Exec(ctx, `
		WITH ranked AS (
			SELECT id, row_number() OVER (ORDER BY path) - 1 AS rn
			  FROM resources WHERE project_id = $1
		)
		UPDATE resources SET "order" = ranked.rn
		  FROM ranked WHERE resources.id = ranked.id`, projectID)
	return err
}

func (t *tx) EntitiesByResource(ctx context.Context, resourceIDs []int64) ([]model.Entity, error) {
	rows, err := t.pgxTx.Query(ctx, `
		SELECT id, resource_id, string, string_plural, key, comment, source,
		       group_comment, resource_comment, context, "order", date_created
		  FROM entities WHERE resource_id = ANY($1) AND NOT obsolete
		  ORDER BY id`, resourceIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		var e model.Entity
		if err := rows.Scan(&e.ID, &e.ResourceID, &e.String, &e.StringPlural, &e.Key, &e.Comment,
			&e.Source, &e.GroupComment, &e.ResourceComment, &e.Context, &e.Order, &e.DateCreated); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *tx) BulkUpdateEntities(ctx context.Context, entities []model.Entity, _ []string) (int, error) {
	batch := &pgx.Batch{}
	for _, e := range entities {
		batch.Queue(`
			UPDATE entities SET string = $1, string_plural = $2, comment = $3, source = $4,
			       group_comment = $5, resource_comment = $6, context = $7, "order" = $8
			  WHERE id = $9`,
			e.String, e.StringPlural, e.Comment, e.Source, e.GroupComment, e.ResourceComment, e.Context, e.Order, e.ID)
	}
	br := t.pgxTx.SendBatch(ctx, batch)
	defer br.Close()
	n := 0
	for range entities {
		tag, err := br.Exec()
		if err != nil {
			return n, err
		}
		n += int(tag.RowsAffected())
	}
	return n, nil
}

func (t *tx) BulkObsoleteEntities(ctx context.Context, entityIDs []int64, dateObsoleted time.Time) (int, error) {
	tag, err := t.pgxTx.Exec(ctx,
		`UPDATE entities SET obsolete = true, date_obsoleted = $1 WHERE id = ANY($2) AND NOT obsolete`,
		dateObsoleted, entityIDs)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (t *tx) InsertEntities(ctx context.Context, entities []model.Entity) ([]model.Entity, error) {
	out := make([]model.Entity, len(entities))
	batch := &pgx.Batch{}
	for _, e := range entities {
		batch.Queue(`
			INSERT INTO entities (resource_id, string, string_plural, key, comment, source,
			                       group_comment, resource_comment, context, "order", date_created)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now()) RETURNING id, date_created`,
			e.ResourceID, e.String, e.StringPlural, e.Key, e.Comment, e.Source,
			e.GroupComment, e.ResourceComment, e.Context, e.Order)
	}
	br := t.pgxTx.SendBatch(ctx, batch)
	defer br.Close()
	for i, e := range entities {
		if err := br.QueryRow().Scan(&e.ID, &e.DateCreated); err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func (t *tx) InsertTranslatedResources(ctx context.Context, rows []model.TranslatedResource) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO translated_resources (resource_id, locale_id, total_strings)
			  VALUES ($1, $2, 0)
			  ON CONFLICT (resource_id, locale_id) DO NOTHING`,
			r.ResourceID, r.LocaleID)
	}
	return t.pgxTx.SendBatch(ctx, batch).Close()
}

func (t *tx) DeleteTranslatedResources(ctx context.Context, projectID int64, pairs []store.ResourceLocale) (int, error) {
	n := 0
	for _, p := range pairs {
		tag, err := t.pgxTx.Exec(ctx, `
			DELETE FROM translated_resources tr
			  USING resources r
			  WHERE tr.resource_id = r.id AND r.project_id = $1 AND r.path = $2 AND tr.locale_id = $3`,
			projectID, p.ResourcePath, p.LocaleID)
		if err != nil {
			return n, err
		}
		n += int(tag.RowsAffected())
	}
	return n, nil
}

func (t *tx) TranslationByID(ctx context.Context, id int64) (model.Translation, bool, error) {
	var tr model.Translation
	err := t.pgxTx.QueryRow(ctx, `
		SELECT id, entity_id, locale_id, string, plural_form, active, approved, approved_user, approved_date,
		       pretranslated, fuzzy, rejected, rejected_user, rejected_date, unrejected_user, unrejected_date, date
		  FROM translations WHERE id = $1`, id).Scan(
		&tr.ID, &tr.EntityID, &tr.LocaleID, &tr.String, &tr.PluralForm, &tr.Active, &tr.Approved, &tr.ApprovedUser, &tr.ApprovedDate,
		&tr.Pretranslated, &tr.Fuzzy, &tr.Rejected, &tr.RejectedUser, &tr.RejectedDate, &tr.UnrejectedUser, &tr.UnrejectedDate, &tr.Date)
	if err == pgx.ErrNoRows {
		return model.Translation{}, false, nil
	}
	if err != nil {
		return model.Translation{}, false, err
	}
	return tr, true, nil
}

func (t *tx) TranslationsForConflictCheck(ctx context.Context, pairs []store.ResourceLocale) ([]store.ConflictCheckRow, error) {
	var out []store.ConflictCheckRow
	for _, p := range pairs {
		rows, err := t.pgxTx.Query(ctx, `
			SELECT r.path, coalesce(nullif(e.key, ''), e.string), t.locale_id, t.plural_form, t.string
			  FROM translations t
			  JOIN entities e ON e.id = t.entity_id
			  JOIN resources r ON r.id = e.resource_id
			 WHERE r.path = $1 AND t.locale_id = $2 AND t.active`,
			p.ResourcePath, p.LocaleID)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var row store.ConflictCheckRow
			if err := rows.Scan(&row.ResourcePath, &row.EntityKey, &row.LocaleID, &row.PluralForm, &row.String); err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, row)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *tx) ChangedEntityLocales(ctx context.Context, projectID int64) ([]model.ChangedEntityLocale, error) {
	rows, err := t.pgxTx.Query(ctx, `
		SELECT cel.entity_id, cel.locale_id
		  FROM changed_entity_locales cel
		  JOIN entities e ON e.id = cel.entity_id
		  JOIN resources r ON r.id = e.resource_id
		 WHERE r.project_id = $1`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ChangedEntityLocale
	for rows.Next() {
		var c model.ChangedEntityLocale
		if err := rows.Scan(&c.EntityID, &c.LocaleID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *tx) EntitiesByKey(ctx context.Context, lookups []store.EntityIdentity) (map[store.EntityIdentity]int64, error) {
	out := map[store.EntityIdentity]int64{}
	for _, l := range lookups {
		var id int64
		err := t.pgxTx.QueryRow(ctx, `
			SELECT e.id FROM entities e
			  JOIN resources r ON r.id = e.resource_id
			 WHERE r.path = $1 AND coalesce(nullif(e.key, ''), e.string) = $2 AND NOT e.obsolete`,
			l.ResourcePath, l.Key).Scan(&id)
		if err == pgx.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[l] = id
	}
	return out, nil
}

func (t *tx) MatchingSuggestions(ctx context.Context, tuples []store.SuggestionTuple) ([]model.Translation, error) {
	var out []model.Translation
	for _, tup := range tuples {
		rows, err := t.pgxTx.Query(ctx, `
			SELECT id, entity_id, locale_id, string, plural_form, active, approved, pretranslated, fuzzy, rejected, date
			  FROM translations
			 WHERE entity_id = $1 AND locale_id = $2 AND string = $3
			   AND plural_form IS NOT DISTINCT FROM $4
			   AND NOT approved AND NOT pretranslated`,
			tup.EntityID, tup.LocaleID, tup.String, tup.PluralForm)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var tr model.Translation
			if err := rows.Scan(&tr.ID, &tr.EntityID, &tr.LocaleID, &tr.String, &tr.PluralForm,
				&tr.Active, &tr.Approved, &tr.Pretranslated, &tr.Fuzzy, &tr.Rejected, &tr.Date); err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, tr)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *tx) ApplyApprovals(ctx context.Context, translations []model.Translation, _ []string) (int, error) {
	batch := &pgx.Batch{}
	for _, tr := range translations {
		batch.Queue(`
			UPDATE translations SET active = $1, approved = $2, approved_user = $3, approved_date = $4,
			       fuzzy = $5, pretranslated = $6, rejected = $7, rejected_user = $8, rejected_date = $9,
			       unrejected_user = $10, unrejected_date = $11
			  WHERE id = $12`,
			tr.Active, tr.Approved, tr.ApprovedUser, tr.ApprovedDate, tr.Fuzzy, tr.Pretranslated,
			tr.Rejected, tr.RejectedUser, tr.RejectedDate, tr.UnrejectedUser, tr.UnrejectedDate, tr.ID)
	}
	br := t.pgxTx.SendBatch(ctx, batch)
	defer br.Close()
	n := 0
	for range translations {
		tag, err := br.Exec()
		if err != nil {
			return n, err
		}
		n += int(tag.RowsAffected())
	}
	return n, nil
}

func (t *tx) InsertTranslations(ctx context.Context, translations []model.Translation) ([]model.Translation, error) {
	out := make([]model.Translation, len(translations))
	batch := &pgx.Batch{}
	for _, tr := range translations {
		batch.Queue(`
			INSERT INTO translations (entity_id, locale_id, string, plural_form, active, approved,
			                           approved_user, approved_date, fuzzy, date)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
			tr.EntityID, tr.LocaleID, tr.String, tr.PluralForm, tr.Active, tr.Approved,
			tr.ApprovedUser, tr.ApprovedDate, tr.Fuzzy, tr.Date)
	}
	br := t.pgxTx.SendBatch(ctx, batch)
	defer br.Close()
	for i, tr := range translations {
		if err := br.QueryRow().Scan(&tr.ID); err != nil {
			return nil, err
		}
		out[i] = tr
	}
	return out, nil
}

func (t *tx) RejectSiblings(ctx context.Context, preds []store.RejectionPredicate, now time.Time) ([]model.Translation, error) {
	var out []model.Translation
	for _, p := range preds {
		rows, err := t.pgxTx.Query(ctx, `
			UPDATE translations
			   SET active = false, approved = false, pretranslated = false,
			       rejected = true, rejected_user = $1, rejected_date = $2
			 WHERE entity_id = $3 AND locale_id = $4 AND id <> $5 AND NOT rejected
			   AND plural_form IS NOT DISTINCT FROM $6
			 RETURNING id, entity_id, locale_id, string, plural_form, active, approved, rejected`,
			model.SyncUser, now, p.EntityID, p.LocaleID, p.KeepID, p.PluralForm)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var tr model.Translation
			if err := rows.Scan(&tr.ID, &tr.EntityID, &tr.LocaleID, &tr.String, &tr.PluralForm,
				&tr.Active, &tr.Approved, &tr.Rejected); err != nil {
				rows.Close()
				return nil, err
			}
			out = append(out, tr)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *tx) InsertActionLogs(ctx context.Context, logs []model.ActionLog) error {
	batch := &pgx.Batch{}
	for _, l := range logs {
		batch.Queue(`
			INSERT INTO action_log (action_type, performed_by, translation_id, created_at)
			  VALUES ($1, $2, $3, $4)`,
			l.ActionType, l.PerformedBy, l.TranslationID, l.CreatedAt)
	}
	return t.pgxTx.SendBatch(ctx, batch).Close()
}
