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

// Package fieldset enumerates the leaf JSON fields of a value and
// diffs two values down to the field paths that actually changed. The
// reconcilers use it to compute the narrow column list a bulk update
// needs to touch instead of rewriting every column on every row (spec
// §9's "explicit, targeted updates" redesign flag).
package fieldset

import (
	"encoding/json"
	"sort"
	"strings"
)

const (
	fieldSeparator = ", "
	slash          = "/"

	tilde       = "~"
	escapeSlash = "~1"
	escapeTilde = "~0"
)

// PathSet is a set of JSON Pointer (RFC 6901) field paths.
type PathSet []string

// Of returns the fieldSet of any JSON-marshalable value.
func Of(v any, ignoreList ...string) (PathSet, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var node interface{}
	if err := json.Unmarshal(bytes, &node); err != nil {
		return nil, err
	}
	return toFieldSet(node, ignoreList...), nil
}

// Changed marshals old and updated to JSON and returns the leaf field
// paths whose values differ between them. A field present in one but
// absent in the other counts as changed.
func Changed(old, updated any) (PathSet, error) {
	oldFields, err := Of(old)
	if err != nil {
		return nil, err
	}
	updatedFields, err := Of(updated)
	if err != nil {
		return nil, err
	}

	oldValues, err := leafValues(old)
	if err != nil {
		return nil, err
	}
	updatedValues, err := leafValues(updated)
	if err != nil {
		return nil, err
	}

	all := map[string]struct{}{}
	for _, p := range oldFields {
		all[p] = struct{}{}
	}
	for _, p := range updatedFields {
		all[p] = struct{}{}
	}

	var changed PathSet
	for p := range all {
		ov, oOk := oldValues[p]
		uv, uOk := updatedValues[p]
		if oOk != uOk || ov != uv {
			changed = append(changed, p)
		}
	}
	SortFieldSet(changed)
	return changed, nil
}

func leafValues(v any) (map[string]string, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var node interface{}
	if err := json.Unmarshal(bytes, &node); err != nil {
		return nil, err
	}
	out := map[string]string{}
	collectLeafValues(node, slash, out)
	return out, nil
}

func collectLeafValues(node any, ancestorPath string, out map[string]string) {
	if m, ok := node.(map[string]interface{}); ok {
		for k, v := range m {
			collectLeafValues(v, newPath(ancestorPath, k), out)
		}
		return
	}
	bytes, _ := json.Marshal(node)
	out[ancestorPath] = string(bytes)
}

// toFieldSet returns a set containing every leaf field path except
// those in ignoreList. Empty nested objects are not leaves (a newly
// added nested field is not itself a change); empty lists are leaves.
func toFieldSet(node any, ignoreList ...string) PathSet {
	leafPaths := map[string]struct{}{}
	traverseCurrentNode(node, slash, &leafPaths)

	var pathSet PathSet
	for _, ignore := range ignoreList {
		delete(leafPaths, ignore)
	}
	for path := range leafPaths {
		pathSet = append(pathSet, path)
	}
	SortFieldSet(pathSet)
	return pathSet
}

// SortFieldSet sorts the set so the result is stable.
func SortFieldSet(set PathSet) {
	sort.Slice(set, func(i, j int) bool {
		return strings.Compare(set[i], set[j]) < 0
	})
}

// PathSetToString serializes the PathSet into a string representation.
func PathSetToString(set PathSet) string {
	return strings.Join(set, fieldSeparator)
}

// PathSetFromString returns the PathSet from the string representation.
func PathSetFromString(s string) PathSet {
	return strings.Split(s, fieldSeparator)
}

// EscapeField escapes a JSON Pointer segment per RFC 6901.
func EscapeField(key string) string {
	r := strings.NewReplacer(tilde, escapeTilde, slash, escapeSlash)
	return r.Replace(key)
}

// UnescapeField reverses EscapeField.
func UnescapeField(key string) string {
	r := strings.NewReplacer(escapeTilde, tilde, escapeSlash, slash)
	return r.Replace(key)
}

func newPath(prefix, curPath string) string {
	if len(prefix) != 1 {
		prefix += slash
	}
	return prefix + EscapeField(curPath)
}

// traverseCurrentNode iterates each JSON node to compute the field
// path of every leaf node. A JSON list is always a leaf.
func traverseCurrentNode(node any, ancestorPath string, leafPaths *map[string]struct{}) {
	switch val := node.(type) {
	case map[string]interface{}:
		for k, v := range val {
			traverseCurrentNode(v, newPath(ancestorPath, k), leafPaths)
		}
	default:
		(*leafPaths)[ancestorPath] = struct{}{}
	}
}
