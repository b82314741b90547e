package parser

import (
	"regexp"
	"strings"

	"github.com/ArionMiles/pocketledger/pkg/api"
	"github.com/ArionMiles/pocketledger/pkg/draft"
)

// KeywordName is the registry name of the keyword classifier.
const KeywordName = "keyword"

var keywordAmountPattern = regexp.MustCompile(`\$?(\d+(?:\.\d{2})?)`)

// Keyword classifies a sentence such as "Received $500 salary" by looking
// for known words. It never infers transfers.
type Keyword struct {
	rules Rules
}

// NewKeyword returns a classifier using rules.
func NewKeyword(rules Rules) *Keyword {
	return &Keyword{rules: rules}
}

func (k *Keyword) Name() string { return KeywordName }

// Parse classifies text. The amount falls back to "0" and the category to
// the rules' fallback label; the description is the whole trimmed input.
func (k *Keyword) Parse(text string, pc Context) draft.Draft {
	d := draft.New(pc.Today)
	d.Description = strings.TrimSpace(text)

	d.Amount = "0"
	if m := keywordAmountPattern.FindStringSubmatch(text); m != nil {
		d.Amount = m[1]
	}

	lower := strings.ToLower(text)
	if containsAny(lower, k.rules.Income) {
		d.Type = api.TypeIncome
	}

	d.Category = k.rules.Fallback
	for _, b := range k.rules.Buckets {
		if containsAny(lower, b.Keywords) {
			d.Category = b.Label
			break
		}
	}
	for _, known := range pc.Categories {
		if strings.EqualFold(known, d.Category) {
			d.Category = known
			break
		}
	}
	return d
}

// containsAny reports whether some keyword occurs anywhere in text, so
// "cheeseburger" hits "burger" and "unpaid" hits "paid".
func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
