// Package query filters the rank-ordered document queue for pagination.
package query

import (
	"strings"

	"github.com/cognicore/lexnorm/pkg/lexnorm/annotate"
	"github.com/cognicore/lexnorm/pkg/lexnorm/store"
)

// Filter narrows a page of documents. Zero value matches everything.
type Filter struct {
	// Search matches documents whose original text or current token
	// display values contain the term (case-insensitive).
	Search string
	// Saved, when set, matches only documents with that saved state.
	Saved *bool
	// OnlyCandidates matches only documents that still have at least
	// one candidate token.
	OnlyCandidates bool
}

// Matches reports whether a document passes the filter. tokens is the
// document's full token set.
func (f Filter) Matches(doc store.Doc, tokens []store.Token) bool {
	if f.Saved != nil && doc.Saved != *f.Saved {
		return false
	}

	if f.OnlyCandidates {
		found := false
		for _, t := range tokens {
			if t.Active && annotate.IsCandidate(t) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if strings.Contains(strings.ToLower(doc.Original), needle) {
			return true
		}
		for _, t := range tokens {
			if !t.Active {
				continue
			}
			if strings.Contains(strings.ToLower(annotate.CurrentValue(t)), needle) {
				return true
			}
		}
		return false
	}

	return true
}
