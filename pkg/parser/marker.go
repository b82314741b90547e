package parser

import (
	"regexp"
	"strings"

	"github.com/ArionMiles/pocketledger/pkg/draft"
)

// MarkerName is the registry name of the marker parser.
const MarkerName = "marker"

var (
	markerAmountPattern = regexp.MustCompile(`[$€£¥₹]?\b(\d+(?:\.\d{2})?)\b`)
	accountPattern      = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)
	categoryPattern     = regexp.MustCompile(`@([\p{L}\p{N}_]+)`)
	dateWordPattern     = regexp.MustCompile(`(?i)\b(today|yesterday|tomorrow)\b`)
)

var dateOffsets = map[string]int{
	"today":     0,
	"yesterday": -1,
	"tomorrow":  1,
}

// Marker extracts fields from shorthand such as "200 #Bank @Grocery eggs today".
//
// Each rule takes its first match: an amount with an optional currency
// symbol, an account after "#", a category after "@" and one of today,
// yesterday or tomorrow. Markers are resolved against the known accounts and
// categories by case-insensitive substring, first in list order wins, and
// fall back to the literal word. Whatever is left becomes the description.
type Marker struct{}

// NewMarker returns a marker parser.
func NewMarker() *Marker {
	return &Marker{}
}

func (m *Marker) Name() string { return MarkerName }

// Parse extracts a draft from text. Type is left at the draft default.
func (m *Marker) Parse(text string, pc Context) draft.Draft {
	d := draft.New(pc.Today)
	var claimed spans

	if match := claimed.first(accountPattern, text); match != nil {
		word := text[match[2]:match[3]]
		d.Account = word
		names := make([]string, len(pc.Accounts))
		for i, a := range pc.Accounts {
			names[i] = a.Name
		}
		if name, idx := resolve(word, names); idx >= 0 {
			d.Account = name
			d.AccountID = pc.Accounts[idx].ID.String()
		}
	}

	if match := claimed.first(categoryPattern, text); match != nil {
		d.Category, _ = resolve(text[match[2]:match[3]], pc.Categories)
	}

	if match := claimed.first(dateWordPattern, text); match != nil {
		offset := dateOffsets[strings.ToLower(text[match[2]:match[3]])]
		d.Date = pc.Today.AddDays(offset)
	}

	if match := claimed.first(markerAmountPattern, text); match != nil {
		d.Amount = text[match[2]:match[3]]
	}

	d.Description = claimed.strip(text)
	return d
}

type span struct{ start, end int }

// spans records the byte ranges already consumed by a rule.
type spans []span

// first returns the submatch indices of the first match of re that does not
// overlap a claimed span, and claims it.
func (s *spans) first(re *regexp.Regexp, text string) []int {
	for _, match := range re.FindAllStringSubmatchIndex(text, -1) {
		candidate := span{match[0], match[1]}
		if s.overlaps(candidate) {
			continue
		}
		*s = append(*s, candidate)
		return match
	}
	return nil
}

func (s spans) overlaps(c span) bool {
	for _, sp := range s {
		if c.start < sp.end && sp.start < c.end {
			return true
		}
	}
	return false
}

// strip removes the claimed spans from text and collapses whitespace.
func (s spans) strip(text string) string {
	if len(s) == 0 {
		return strings.Join(strings.Fields(text), " ")
	}

	var b strings.Builder
	for i := 0; i < len(text); i++ {
		if s.overlaps(span{i, i + 1}) {
			b.WriteByte(' ')
			continue
		}
		b.WriteByte(text[i])
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
