package annotate

import (
	"context"
	"fmt"

	"github.com/cognicore/lexnorm/pkg/lexnorm/internalerr"
	"github.com/cognicore/lexnorm/pkg/lexnorm/store"
)

// CurrentValue returns the display value of a token under the precedence
// chain replacement → suggestion → value. Every place that needs a
// token's effective value goes through here.
func CurrentValue(t store.Token) string {
	if t.Replacement != "" {
		return t.Replacement
	}
	if t.Suggestion != "" {
		return t.Suggestion
	}
	return t.Value
}

// IsCandidate reports whether a token still needs attention: no true
// category tag and no replacement.
func IsCandidate(t store.Token) bool {
	if t.Replacement != "" {
		return false
	}
	for _, on := range t.Tags {
		if on {
			return false
		}
	}
	return true
}

// IsAnnotated reports whether any annotation activity has occurred on a
// document's tokens: a true tag, a replacement, or a suggestion on at
// least one active token. Any activity makes the document eligible to be
// marked saved; this is deliberately the permissive reading.
func IsAnnotated(tokens []store.Token) bool {
	for _, t := range tokens {
		if !t.Active {
			continue
		}
		if t.Replacement != "" || t.Suggestion != "" {
			return true
		}
		for _, on := range t.Tags {
			if on {
				return true
			}
		}
	}
	return false
}

// Tracker maintains per-token correction state through a store.
type Tracker struct {
	store store.Store
}

// NewTracker creates a tracker over the given store.
func NewTracker(s store.Store) *Tracker {
	return &Tracker{store: s}
}

// SetReplacement sets a confirmed replacement on a token and clears any
// pending suggestion. Idempotent.
func (tr *Tracker) SetReplacement(ctx context.Context, tokenID, value string) error {
	if value == "" {
		return fmt.Errorf("set replacement: empty value: %w", internalerr.ErrInvalidInput)
	}
	return tr.update(ctx, tokenID, func(t *store.Token) {
		t.Replacement = value
		t.Suggestion = ""
	})
}

// SuggestReplacement records a suggestion on a token unless a confirmed
// replacement is already present (a replacement always wins).
func (tr *Tracker) SuggestReplacement(ctx context.Context, tokenID, value string) error {
	if value == "" {
		return fmt.Errorf("suggest replacement: empty value: %w", internalerr.ErrInvalidInput)
	}
	return tr.update(ctx, tokenID, func(t *store.Token) {
		if t.Replacement == "" {
			t.Suggestion = value
		}
	})
}

// ConfirmSuggestion promotes a token's suggestion to its replacement.
func (tr *Tracker) ConfirmSuggestion(ctx context.Context, tokenID string) error {
	tok, err := tr.store.GetToken(ctx, tokenID)
	if err != nil {
		return err
	}
	if tok.Suggestion == "" {
		return fmt.Errorf("confirm suggestion: token %s has none: %w", tokenID, internalerr.ErrInvalidInput)
	}
	tok.Replacement = tok.Suggestion
	tok.Suggestion = ""
	return tr.store.UpdateToken(ctx, tok)
}

// ClearToken removes both replacement and suggestion, reverting the
// token's display value to its original value.
func (tr *Tracker) ClearToken(ctx context.Context, tokenID string) error {
	return tr.update(ctx, tokenID, func(t *store.Token) {
		t.Replacement = ""
		t.Suggestion = ""
	})
}

// DeleteReplacement clears only the confirmed replacement.
func (tr *Tracker) DeleteReplacement(ctx context.Context, tokenID string) error {
	return tr.update(ctx, tokenID, func(t *store.Token) {
		t.Replacement = ""
	})
}

// DeleteSuggestion clears only the pending suggestion.
func (tr *Tracker) DeleteSuggestion(ctx context.Context, tokenID string) error {
	return tr.update(ctx, tokenID, func(t *store.Token) {
		t.Suggestion = ""
	})
}

// TagToken sets one boolean category flag on a token.
func (tr *Tracker) TagToken(ctx context.Context, tokenID, category string, on bool) error {
	if category == "" {
		return fmt.Errorf("tag token: empty category: %w", internalerr.ErrInvalidInput)
	}
	return tr.update(ctx, tokenID, func(t *store.Token) {
		if t.Tags == nil {
			t.Tags = make(map[string]bool)
		}
		t.Tags[category] = on
	})
}

// ApplyReplacementToAll sets replacement on every active token in the
// project whose original value equals value. The store applies the bulk
// update atomically; no partial application is observable. Returns the
// number of tokens changed.
func (tr *Tracker) ApplyReplacementToAll(ctx context.Context, projectID, value, replacement string) (int, error) {
	if replacement == "" {
		return 0, fmt.Errorf("apply replacement to all: empty value: %w", internalerr.ErrInvalidInput)
	}
	return tr.store.UpdateTokensByValue(ctx, projectID, value, func(t *store.Token) {
		t.Replacement = replacement
		t.Suggestion = ""
	})
}

// DeleteReplacementFromAll clears the replacement on every active token
// in the project whose original value equals value.
func (tr *Tracker) DeleteReplacementFromAll(ctx context.Context, projectID, value string) (int, error) {
	return tr.store.UpdateTokensByValue(ctx, projectID, value, func(t *store.Token) {
		t.Replacement = ""
	})
}

// SuggestReplacementToAll records a suggestion on every matching active
// token that has no confirmed replacement. Used to propagate an accepted
// correction across the corpus without overriding reviewed tokens.
func (tr *Tracker) SuggestReplacementToAll(ctx context.Context, projectID, value, suggestion string) (int, error) {
	if suggestion == "" {
		return 0, fmt.Errorf("suggest replacement to all: empty value: %w", internalerr.ErrInvalidInput)
	}
	return tr.store.UpdateTokensByValue(ctx, projectID, value, func(t *store.Token) {
		if t.Replacement == "" {
			t.Suggestion = suggestion
		}
	})
}

// DeleteSuggestionFromAll clears the suggestion on every matching active
// token in the project.
func (tr *Tracker) DeleteSuggestionFromAll(ctx context.Context, projectID, value string) (int, error) {
	return tr.store.UpdateTokensByValue(ctx, projectID, value, func(t *store.Token) {
		t.Suggestion = ""
	})
}

func (tr *Tracker) update(ctx context.Context, tokenID string, fn func(*store.Token)) error {
	tok, err := tr.store.GetToken(ctx, tokenID)
	if err != nil {
		return err
	}
	fn(&tok)
	return tr.store.UpdateToken(ctx, tok)
}
