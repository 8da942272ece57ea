package classify

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
)

// DefaultTerms is the built-in alarm-term set, used when the config supplies
// none.
var DefaultTerms = []string{
	"trapped", "unconscious", "fire", "injured", "can't breathe",
	"emergency", "urgent", "help", "attack", "bleeding",
	"collapse", "flood", "rescue",
}

// Keyword flags text containing any configured alarm term as a
// case-insensitive substring. Deterministic and local; it cannot fail.
type Keyword struct {
	terms  []string
	folder cases.Caser
}

// NewKeyword creates a keyword classifier. Terms are folded once so matching
// is case-insensitive for non-ASCII input as well.
func NewKeyword(terms []string) *Keyword {
	if len(terms) == 0 {
		terms = DefaultTerms
	}
	folder := cases.Fold()
	folded := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		folded = append(folded, folder.String(term))
	}
	return &Keyword{terms: folded, folder: cases.Fold()}
}

func (k *Keyword) Name() string { return StrategyKeyword }

func (k *Keyword) Classify(_ context.Context, text string) (bool, error) {
	if text == "" {
		return false, nil
	}
	folded := k.folder.String(text)
	for _, term := range k.terms {
		if strings.Contains(folded, term) {
			return true, nil
		}
	}
	return false, nil
}
