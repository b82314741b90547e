// Package parser turns free-form transaction text into a draft.
//
// Two strategies are provided. Marker reads explicit "#account" and
// "@category" sigils plus relative date words and is meant to run on every
// keystroke. Keyword infers direction and category from a vocabulary and is
// meant to run once, on submit. Neither returns errors: unrecognised input
// leaves the corresponding draft field at its default.
package parser

import (
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/ArionMiles/pocketledger/pkg/api"
	"github.com/ArionMiles/pocketledger/pkg/draft"
)

// Context carries the reference data a parse resolves against.
type Context struct {
	Accounts   []api.Account
	Categories []string
	Today      civil.Date
}

// Parser converts text into a draft.
type Parser interface {
	Name() string
	Parse(text string, pc Context) draft.Draft
}

var constructors = map[string]func() (Parser, error){
	MarkerName:  func() (Parser, error) { return NewMarker(), nil },
	KeywordName: func() (Parser, error) { return NewKeyword(DefaultRules()), nil },
}

// ByName returns the parser registered under name. An empty name selects the
// marker parser.
func ByName(name string) (Parser, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = MarkerName
	}
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown parser %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return ctor()
}

// Names returns the registered parser names in sorted order.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolve returns the first known name containing word, ignoring case, or
// the word itself when nothing matches.
func resolve(word string, known []string) (string, int) {
	needle := strings.ToLower(word)
	for i, name := range known {
		if strings.Contains(strings.ToLower(name), needle) {
			return name, i
		}
	}
	return word, -1
}
