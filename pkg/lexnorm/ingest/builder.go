package ingest

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/lexnorm/pkg/lexnorm/internalerr"
	"github.com/cognicore/lexnorm/pkg/lexnorm/lexicon"
	"github.com/cognicore/lexnorm/pkg/lexnorm/store"
)

// CategoryEnglish is the in-vocabulary category that the digit policy
// forces on purely numeric tokens.
const CategoryEnglish = "english"

var digitOnly = regexp.MustCompile(`^[0-9]+$`)

// Builder converts a raw document string into an ordered, zero-indexed
// token sequence, applying pre-annotation from the project's lexicon sets
// and replacement map.
type Builder struct {
	lexicons      *lexicon.Collection
	replacements  *lexicon.ReplacementMap
	digitsInVocab bool
	entropy       *ulid.MonotonicEntropy
}

// NewBuilder creates a builder over the given lexicon collection and
// optional replacement map (nil disables replacement prefill).
func NewBuilder(lexicons *lexicon.Collection, replacements *lexicon.ReplacementMap) *Builder {
	return &Builder{
		lexicons:     lexicons,
		replacements: replacements,
		entropy:      ulid.Monotonic(rand.Reader, 0),
	}
}

// SetDigitsInVocabulary enables the policy that treats purely numeric
// tokens as in-vocabulary (english tag forced true) rather than candidates.
func (b *Builder) SetDigitsInVocabulary(enabled bool) {
	b.digitsInVocab = enabled
}

// NewID returns a fresh token identifier.
func (b *Builder) NewID() string {
	return ulid.MustNew(ulid.Now(), b.entropy).String()
}

// TagsFor computes the category tag map for a token value, applying the
// digit policy on top of lexicon membership.
func (b *Builder) TagsFor(value string) map[string]bool {
	tags := b.lexicons.TagsFor(value)
	if b.digitsInVocab && digitOnly.MatchString(value) {
		tags[CategoryEnglish] = true
	}
	return tags
}

// Build tokenizes text into one token per whitespace-delimited segment,
// in original left-to-right order, with index = position in split order.
// Whitespace runs are collapsed, so no token ever has an empty value.
func (b *Builder) Build(docID, text string) ([]store.Token, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("build tokens: empty document: %w", internalerr.ErrInvalidInput)
	}

	segments := strings.Fields(text)
	tokens := make([]store.Token, 0, len(segments))
	for i, seg := range segments {
		tok := store.Token{
			ID:     b.NewID(),
			DocID:  docID,
			Index:  i,
			Value:  seg,
			Tags:   b.TagsFor(seg),
			Active: true,
		}
		if repl, ok := b.replacements.Lookup(seg); ok {
			tok.Replacement = repl
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}
