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

// Package reconcile holds the Entity Reconciler and Translation
// Reconciler (spec §4.3, §4.4): the core diff-driven logic that folds
// a repo checkout's parsed resources into the database, database-wins
// on every conflict.
package reconcile

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/elliotchance/orderedmap/v2"
	"go.uber.org/multierr"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"github.com/l10nplatform/syncengine/pkg/fieldset"
	"github.com/l10nplatform/syncengine/pkg/model"
	"github.com/l10nplatform/syncengine/pkg/parser"
	"github.com/l10nplatform/syncengine/pkg/paths"
	"github.com/l10nplatform/syncengine/pkg/store"
)

// parseConcurrency bounds how many resource files are parsed at once
// during one ReconcileEntities call (spec §5).
const parseConcurrency = 8

// columnSnapshot mirrors the mutable columns of an entities row; its
// json tags are the column names fieldset.Changed reports.
type columnSnapshot struct {
	String          string `json:"string"`
	StringPlural    string `json:"string_plural"`
	Comment         string `json:"comment"`
	Source          string `json:"source"`
	GroupComment    string `json:"group_comment"`
	ResourceComment string `json:"resource_comment"`
	Context         string `json:"context"`
	Order           int    `json:"order"`
}

func entitySnapshot(e model.Entity) columnSnapshot {
	return columnSnapshot{
		String: e.String, StringPlural: e.StringPlural, Comment: e.Comment, Source: e.Source,
		GroupComment: e.GroupComment, ResourceComment: e.ResourceComment, Context: e.Context, Order: e.Order,
	}
}

// changedColumns returns the column names whose values differ between
// before and after, trimming the leading "/" fieldset.Changed reports
// for top-level JSON fields.
func changedColumns(before, after columnSnapshot) ([]string, error) {
	paths, err := fieldset.Changed(before, after)
	if err != nil {
		return nil, err
	}
	cols := make([]string, len(paths))
	for i, p := range paths {
		cols[i] = strings.TrimPrefix(p, "/")
	}
	return cols, nil
}

// EntityReport summarizes one ReconcileEntities call.
type EntityReport struct {
	AddedResources   []string
	ChangedResources []string
	RemovedResources []string
	Errors           error // multierr of per-file parse failures
}

// ReconcileEntities folds reference-side repo changes into the
// resources/entities tables (spec §4.3). changed and removed are
// absolute paths of files the checkout manager reported; paths outside
// refRoot (e.g. target-locale files reached via the same changeset) are
// ignored here and handled by SyncTranslationsFromRepo.
func ReconcileEntities(
	ctx context.Context,
	tx store.Tx,
	p parser.ResourceParser,
	project model.Project,
	locales []model.Locale,
	resolver paths.Resolver,
	refRoot string,
	changed, removed []string,
	now time.Time,
) (*EntityReport, error) {
	report := &EntityReport{}

	removedFiles := referencePaths(refRoot, removed)
	if len(removedFiles) > 0 {
		removedDBPaths := make([]string, len(removedFiles))
		for i, f := range removedFiles {
			removedDBPaths[i] = f.dbPath
		}
		deleted, err := removeResources(ctx, tx, project.ID, removedDBPaths, now)
		if err != nil {
			return report, err
		}
		report.RemovedResources = deleted
	}

	changedFiles := referencePaths(refRoot, changed)
	dbPaths := make([]string, len(changedFiles))
	relPaths := make([]string, len(changedFiles))
	relPathByDBPath := make(map[string]string, len(changedFiles))
	for i, f := range changedFiles {
		dbPaths[i] = f.dbPath
		relPaths[i] = f.relPath
		relPathByDBPath[f.dbPath] = f.relPath
	}

	existing, err := tx.ResourcesByPath(ctx, project.ID, dbPaths)
	if err != nil {
		return report, err
	}

	parsed := parseConcurrently(ctx, p, refRoot, relPaths)

	var toCreate []model.Resource
	for _, f := range changedFiles {
		result := parsed[f.relPath]
		if result.err != nil {
			report.Errors = multierr.Append(report.Errors, result.err)
			continue
		}

		res, ok := existing[f.dbPath]
		if !ok {
			res = model.Resource{ProjectID: project.ID, Path: f.dbPath, Format: formatForPath(f.relPath)}
			toCreate = append(toCreate, res)
			continue
		}
		if err := reconcileResourceEntities(ctx, tx, res, result.resource, now); err != nil {
			report.Errors = multierr.Append(report.Errors, err)
			continue
		}
		report.ChangedResources = append(report.ChangedResources, f.dbPath)
	}

	if len(toCreate) > 0 {
		inserted, err := tx.InsertResources(ctx, toCreate)
		if err != nil {
			return report, err
		}
		for _, res := range inserted {
			absPath := filepath.Join(refRoot, relPathByDBPath[res.Path])
			parsed, perr := p.Parse(ctx, absPath, nil, nil)
			if perr != nil {
				report.Errors = multierr.Append(report.Errors, perr)
				continue
			}
			if err := reconcileResourceEntities(ctx, tx, res, parsed, now); err != nil {
				report.Errors = multierr.Append(report.Errors, err)
				continue
			}
			if model.BilingualFormats[res.Format] {
				if err := seedTranslatedResources(ctx, tx, res, resolver, refRoot, locales); err != nil {
					report.Errors = multierr.Append(report.Errors, err)
				}
			}
			report.AddedResources = append(report.AddedResources, res.Path)
		}
	}

	if len(removedFiles) > 0 || len(toCreate) > 0 {
		if err := tx.RecomputeResourceOrder(ctx, project.ID); err != nil {
			return report, err
		}
	}

	return report, nil
}

type parseOutcome struct {
	resource *parser.ParsedResource
	err      error
}

// parseConcurrently parses every changed reference file in parallel,
// bounded by parseConcurrency (spec §5). A per-file parse failure is
// carried in that file's outcome rather than aborting its siblings.
func parseConcurrently(ctx context.Context, p parser.ResourceParser, refRoot string, relPaths []string) map[string]parseOutcome {
	outcomes := make([]parseOutcome, len(relPaths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parseConcurrency)
	for i, relPath := range relPaths {
		i, relPath := i, relPath
		g.Go(func() error {
			absPath := filepath.Join(refRoot, relPath)
			resource, err := p.Parse(gctx, absPath, nil, nil)
			outcomes[i] = parseOutcome{resource: resource, err: err}
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]parseOutcome, len(relPaths))
	for i, relPath := range relPaths {
		out[relPath] = outcomes[i]
	}
	return out
}

func removeResources(ctx context.Context, tx store.Tx, projectID int64, dbPaths []string, now time.Time) ([]string, error) {
	resources, err := tx.ResourcesByPath(ctx, projectID, dbPaths)
	if err != nil {
		return nil, err
	}
	var resourceIDs []int64
	for _, r := range resources {
		resourceIDs = append(resourceIDs, r.ID)
	}
	entities, err := tx.EntitiesByResource(ctx, resourceIDs)
	if err != nil {
		return nil, err
	}
	var entityIDs []int64
	for _, e := range entities {
		entityIDs = append(entityIDs, e.ID)
	}
	if len(entityIDs) > 0 {
		if _, err := tx.BulkObsoleteEntities(ctx, entityIDs, now); err != nil {
			return nil, err
		}
	}
	return tx.DeleteResourcesByPath(ctx, projectID, dbPaths)
}

// reconcileResourceEntities reconciles one resource's Entity rows
// against its freshly-parsed reference content: update changed rows in
// place, obsolete rows no longer present, insert new rows, and
// recompute total_strings.
func reconcileResourceEntities(ctx context.Context, tx store.Tx, res model.Resource, parsed *parser.ParsedResource, now time.Time) error {
	current, err := tx.EntitiesByResource(ctx, []int64{res.ID})
	if err != nil {
		return err
	}
	byKey := orderedmap.NewOrderedMap[string, model.Entity]()
	for _, e := range current {
		byKey.Set(e.IdentityKey(), e)
	}

	seen := map[string]bool{}
	var toUpdate []model.Entity
	var toCreate []model.Entity
	touchedCols := map[string]bool{}
	for i, pt := range parsed.Translations {
		e := entityFromSource(res.ID, i, pt)
		seen[e.IdentityKey()] = true
		existing, ok := byKey.Get(e.IdentityKey())
		if !ok {
			toCreate = append(toCreate, e)
			continue
		}
		if !existing.Same(e) || existing.Order != e.Order {
			before := entitySnapshot(existing)
			existing.String = e.String
			existing.StringPlural = e.StringPlural
			existing.Comment = e.Comment
			existing.Source = e.Source
			existing.GroupComment = e.GroupComment
			existing.ResourceComment = e.ResourceComment
			existing.Context = e.Context
			existing.Order = e.Order
			if cols, err := changedColumns(before, entitySnapshot(existing)); err == nil {
				for _, c := range cols {
					touchedCols[c] = true
				}
			}
			toUpdate = append(toUpdate, existing)
		}
	}

	var toObsolete []int64
	for el := byKey.Front(); el != nil; el = el.Next() {
		if !seen[el.Key] {
			toObsolete = append(toObsolete, el.Value.ID)
		}
	}

	if len(toUpdate) > 0 {
		cols := make([]string, 0, len(touchedCols))
		for c := range touchedCols {
			cols = append(cols, c)
		}
		slices.Sort(cols)
		if _, err := tx.BulkUpdateEntities(ctx, toUpdate, cols); err != nil {
			return err
		}
	}
	if len(toObsolete) > 0 {
		if _, err := tx.BulkObsoleteEntities(ctx, toObsolete, now); err != nil {
			return err
		}
	}
	if len(toCreate) > 0 {
		if _, err := tx.InsertEntities(ctx, toCreate); err != nil {
			return err
		}
	}

	res.TotalStrings = len(parsed.Translations)
	return tx.BulkUpdateResourceTotalStrings(ctx, []model.Resource{res})
}

func entityFromSource(resourceID int64, order int, pt parser.ParsedTranslation) model.Entity {
	e := model.Entity{
		ResourceID:      resourceID,
		String:          pt.SourceString,
		StringPlural:    pt.SourceStringPlural,
		Key:             pt.Key,
		Comment:         strings.Join(pt.Comments, "\n"),
		Source:          pt.Source,
		GroupComment:    strings.Join(pt.GroupComments, "\n"),
		ResourceComment: strings.Join(pt.ResourceComments, "\n"),
		Context:         pt.Context,
		Order:           order,
	}
	if pt.Order != nil {
		e.Order = *pt.Order
	}
	return e
}

// seedTranslatedResources creates a TranslatedResource row for every
// locale that already has (or could have) a file for this resource,
// per spec §4.3's bilingual-format seeding rule: a freshly discovered
// bilingual resource gets an empty TranslatedResource for each locale
// so the translation reconciler has somewhere to record counts even
// before any target file exists.
func seedTranslatedResources(ctx context.Context, tx store.Tx, res model.Resource, resolver paths.Resolver, refRoot string, locales []model.Locale) error {
	absRefPath := filepath.Join(refRoot, res.Path)
	var rows []model.TranslatedResource
	for _, loc := range locales {
		if _, ok := resolver.TargetPath(absRefPath, loc.Code); !ok {
			continue
		}
		rows = append(rows, model.TranslatedResource{ResourceID: res.ID, LocaleID: loc.ID})
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.InsertTranslatedResources(ctx, rows)
}

// refFile pairs a reference file's actual on-disk path (relative to
// refRoot, used to locate and parse it) with its normalized database
// path (spec §3's pot-to-po rule, used for every resources-table
// lookup and for Resource.Path itself).
type refFile struct {
	relPath string
	dbPath  string
}

// referencePaths filters changeset entries down to those rooted under
// refRoot, returning them relative to refRoot in stable sorted order
// together with their normalized database path.
func referencePaths(refRoot string, paths []string) []refFile {
	var out []refFile
	for _, p := range paths {
		rel, err := filepath.Rel(refRoot, p)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		out = append(out, refFile{relPath: rel, dbPath: normalizePotPath(rel)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].dbPath < out[j].dbPath })
	return out
}

// normalizePotPath rewrites a trailing ".pot" suffix to ".po" (spec
// §3, §4.3, §8's pot-normalization invariant); every other path is
// returned unchanged.
func normalizePotPath(relPath string) string {
	if strings.EqualFold(filepath.Ext(relPath), ".pot") {
		return strings.TrimSuffix(relPath, filepath.Ext(relPath)) + ".po"
	}
	return relPath
}

func formatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".po", ".pot":
		return model.FormatPO
	case ".xliff", ".xlf":
		return model.FormatXLIFF
	case ".ftl":
		return model.FormatFTL
	case ".properties":
		return model.FormatProps
	case ".xml":
		return model.FormatAndroid
	default:
		return model.FormatPO
	}
}
