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

// Package syncerr names the sync engine's error taxonomy (spec §7):
// fatal, sync-aborting errors versus per-file errors that are isolated
// and accumulated so one bad resource cannot block the rest.
package syncerr

import (
	"errors"

	"go.uber.org/multierr"
)

// Sentinel errors for conditions that abort a whole sync.
var (
	// ErrAlreadySyncing is returned when a project sync is requested
	// while another is already running for the same project.
	ErrAlreadySyncing = errors.New("syncengine: project sync already in progress")

	// ErrNoCheckouts is returned when a project has no repositories to
	// check out.
	ErrNoCheckouts = errors.New("syncengine: project has no repositories configured")

	// ErrPathResolution wraps a failure to build a Resolver for a
	// project (spec §4.2's ErrMissingSourceDirectory / ErrMissingLocaleDirectory).
	ErrPathResolution = errors.New("syncengine: could not resolve project paths")
)

// PhaseErrors accumulates the per-file/per-entity errors isolated
// during one reconciliation phase (spec §7: a bad resource or
// translation file never aborts the rest of the sync). It is a thin
// named wrapper over multierr so callers can type-assert on phase
// without caring about multierr's internal representation.
type PhaseErrors struct {
	Phase string
	err   error
}

// NewPhaseErrors returns an empty accumulator for the named phase.
func NewPhaseErrors(phase string) *PhaseErrors {
	return &PhaseErrors{Phase: phase}
}

// Add appends err, if non-nil, to the accumulator.
func (p *PhaseErrors) Add(err error) {
	if err == nil {
		return
	}
	p.err = multierr.Append(p.err, err)
}

// Err returns nil if nothing was added, else an error whose message
// lists every accumulated failure for this phase.
func (p *PhaseErrors) Err() error {
	if p.err == nil {
		return nil
	}
	return multierr.Append(nil, p.err)
}

// Len reports how many errors have been accumulated.
func (p *PhaseErrors) Len() int {
	return len(multierr.Errors(p.err))
}
