package parser

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

//go:embed rules.json
var defaultRulesJSON []byte

// Bucket is one category of the keyword classifier.
type Bucket struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Keywords []string `json:"keywords"`
}

// Rules is the keyword classifier vocabulary. Buckets are tried in order and
// the first one with a matching keyword wins.
type Rules struct {
	Income   []string `json:"income"`
	Buckets  []Bucket `json:"buckets"`
	Fallback string   `json:"fallback"`
}

// DefaultRules returns the built-in vocabulary.
func DefaultRules() Rules {
	rules, err := ParseRules(defaultRulesJSON)
	if err != nil {
		panic(fmt.Sprintf("embedded keyword rules are invalid: %v", err))
	}
	return rules
}

// LoadRulesFile reads a rules document from path. An empty path returns the
// built-in vocabulary.
func LoadRulesFile(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("reading rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes and normalizes a rules document.
// Keywords are lower-cased and blank entries dropped.
func ParseRules(data []byte) (Rules, error) {
	var rules Rules
	if err := json.Unmarshal(data, &rules); err != nil {
		return Rules{}, fmt.Errorf("parsing rules JSON: %w", err)
	}

	rules.Income = normalizeKeywords(rules.Income)
	if rules.Fallback = strings.TrimSpace(rules.Fallback); rules.Fallback == "" {
		rules.Fallback = "Other"
	}

	if len(rules.Buckets) == 0 {
		return Rules{}, errors.New("rules define no buckets")
	}
	seen := make(map[string]bool, len(rules.Buckets))
	for i := range rules.Buckets {
		b := &rules.Buckets[i]
		b.Name = strings.TrimSpace(b.Name)
		b.Label = strings.TrimSpace(b.Label)
		b.Keywords = normalizeKeywords(b.Keywords)

		if b.Label == "" {
			return Rules{}, fmt.Errorf("bucket %d (%q) has no label", i, b.Name)
		}
		if len(b.Keywords) == 0 {
			return Rules{}, fmt.Errorf("bucket %q has no keywords", b.Label)
		}
		if b.Name == "" {
			b.Name = strings.ToLower(b.Label)
		}
		if seen[b.Name] {
			return Rules{}, fmt.Errorf("duplicate bucket %q", b.Name)
		}
		seen[b.Name] = true
	}
	return rules, nil
}

func normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, kw := range in {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
