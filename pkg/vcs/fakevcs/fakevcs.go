// Package fakevcs is a deterministic, in-memory VersionControl test
// double used by the checkout manager's tests.
package fakevcs

import (
	"context"
	"fmt"

	"github.com/l10nplatform/syncengine/pkg/vcs"
)

// Delta is the canned (changed, removed) pair returned for one
// (path, sinceRev) pair.
type Delta struct {
	Changed []string
	Removed []string
	Err     error
}

// VCS is a table-driven VersionControl: callers pre-populate Revisions
// and Deltas before handing it to the checkout manager.
type VCS struct {
	// Revisions maps checkout path -> current revision.
	Revisions map[string]string
	// Deltas maps "path@sinceRev" -> Delta.
	Deltas map[string]Delta
	// Pulls records every Update call, for assertions.
	Pulls []string
}

var _ vcs.VersionControl = (*VCS)(nil)

// New returns an empty VCS double.
func New() *VCS {
	return &VCS{
		Revisions: map[string]string{},
		Deltas:    map[string]Delta{},
	}
}

func (v *VCS) Update(_ context.Context, url, path, _ string) error {
	v.Pulls = append(v.Pulls, fmt.Sprintf("%s<-%s", path, url))
	return nil
}

func (v *VCS) Revision(_ context.Context, path string) (string, bool) {
	rev, ok := v.Revisions[path]
	return rev, ok
}

func (v *VCS) ChangedFiles(_ context.Context, path, sinceRev string) ([]string, []string, error) {
	d, ok := v.Deltas[path+"@"+sinceRev]
	if !ok {
		return nil, nil, fmt.Errorf("fakevcs: no delta registered for %s@%s", path, sinceRev)
	}
	if d.Err != nil {
		return nil, nil, d.Err
	}
	return d.Changed, d.Removed, nil
}
