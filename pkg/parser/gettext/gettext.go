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

// Package gettext is the one concrete ResourceParser implementation
// this module ships (spec §4.6): it adapts
// github.com/chai2010/gettext-go/po to the uniform ParsedResource
// shape for ".po"/".pot" files, the bilingual format most of this
// platform's resources use.
package gettext

import (
	"context"
	"fmt"
	"strings"

	"github.com/chai2010/gettext-go/po"

	"github.com/l10nplatform/syncengine/pkg/model"
	"github.com/l10nplatform/syncengine/pkg/parser"
)

// Parser parses gettext PO/POT files.
type Parser struct{}

var _ parser.ResourceParser = Parser{}

// Parse implements parser.ResourceParser.
func (Parser) Parse(_ context.Context, absPath string, refPath *string, _ *model.Locale) (*parser.ParsedResource, error) {
	f, err := po.Load(absPath)
	if err != nil {
		if refPath == nil {
			return nil, &parser.ParseError{Path: absPath, Err: err}
		}
		return nil, fmt.Errorf("parsing %s against %s: %w", absPath, *refPath, err)
	}

	var out parser.ParsedResource
	for _, msg := range f.Messages {
		if msg.MsgId == "" {
			continue // header entry
		}
		tx := parser.ParsedTranslation{
			Key:                msg.MsgContext,
			SourceString:       msg.MsgId,
			SourceStringPlural: msg.MsgIdPlural,
			Context:            msg.MsgContext,
			Comments:           splitNonEmpty(msg.TranslatorComment),
			GroupComments:      splitNonEmpty(msg.ExtractedComment),
			Source:             strings.Join(msg.ReferenceFile, " "),
		}

		if refPath != nil {
			tx.Fuzzy = hasFlag(msg.Flags, "fuzzy")
			tx.Strings = map[*int]string{}
			if msg.MsgIdPlural == "" {
				if msg.MsgStr != "" {
					tx.Strings[nil] = msg.MsgStr
				}
			} else {
				for i, s := range msg.MsgStrPlural {
					if s == "" {
						continue
					}
					n := i
					tx.Strings[&n] = s
				}
			}
		}

		out.Translations = append(out.Translations, tx)
	}
	return &out, nil
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if strings.TrimSpace(f) == want {
			return true
		}
	}
	return false
}
