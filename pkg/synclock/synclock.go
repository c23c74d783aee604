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

// Package synclock guards against two concurrent syncs of the same
// project within one process (spec §5). Cross-process exclusion is a
// deployment concern left to the caller (e.g. a database advisory
// lock), not this package.
package synclock

import "sync"

// Projects is a registry of per-project exclusion locks, keyed by
// project ID. The zero value is ready to use.
type Projects struct {
	mu    sync.Mutex
	inUse map[int64]bool
}

// TryLock reports whether projectID was free and, if so, marks it busy.
// Callers must call Unlock when the sync finishes.
func (p *Projects) TryLock(projectID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inUse == nil {
		p.inUse = map[int64]bool{}
	}
	if p.inUse[projectID] {
		return false
	}
	p.inUse[projectID] = true
	return true
}

// Unlock frees projectID for a future sync.
func (p *Projects) Unlock(projectID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inUse, projectID)
}
