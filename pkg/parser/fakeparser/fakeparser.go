// Package fakeparser is a deterministic, table-driven ResourceParser
// test double used by the reconciler test suites.
package fakeparser

import (
	"context"
	"fmt"

	"github.com/l10nplatform/syncengine/pkg/model"
	"github.com/l10nplatform/syncengine/pkg/parser"
)

// Parser returns a pre-registered *parser.ParsedResource (or error) for
// every absPath handed to Parse.
type Parser struct {
	Resources map[string]*parser.ParsedResource
	Errors    map[string]error
}

var _ parser.ResourceParser = (*Parser)(nil)

// New returns an empty Parser double.
func New() *Parser {
	return &Parser{
		Resources: map[string]*parser.ParsedResource{},
		Errors:    map[string]error{},
	}
}

func (p *Parser) Parse(_ context.Context, absPath string, _ *string, _ *model.Locale) (*parser.ParsedResource, error) {
	if err, ok := p.Errors[absPath]; ok {
		return nil, err
	}
	res, ok := p.Resources[absPath]
	if !ok {
		return nil, fmt.Errorf("fakeparser: no resource registered for %s", absPath)
	}
	return res, nil
}
