// Package export produces token-aligned output for a document: the
// original whitespace split paired with same-length output and class
// label sequences. Merge history entries are replayed to insert
// placeholder slots for tokens that were merged away; split pieces are
// folded back into their origin slot.
package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cognicore/lexnorm/pkg/lexnorm/annotate"
	"github.com/cognicore/lexnorm/pkg/lexnorm/internalerr"
	"github.com/cognicore/lexnorm/pkg/lexnorm/store"
)

// SlotPad fills output and label positions whose original token was
// merged into an earlier slot.
const SlotPad = "<pad>"

// Class labels assigned per aligned slot.
const (
	LabelReplaced = "replaced"
	LabelOOV      = "oov"
)

// Aligned is the token-aligned export triple. Input is the original
// whitespace split; Output and Labels have the same length.
type Aligned struct {
	Input  []string
	Output []string
	Labels []string
}

// span tracks which original positions one current token covers.
type span struct {
	origins []int
}

// Align maps a document's current tokens back onto its original
// segmentation using the retokenization history.
func Align(original string, tokens []store.Token, history []store.HistoryEntry) (Aligned, error) {
	input := strings.Fields(original)
	if len(input) == 0 {
		return Aligned{}, fmt.Errorf("align: empty document: %w", internalerr.ErrInvalidInput)
	}

	spans := make([]span, len(input))
	for i := range spans {
		spans[i] = span{origins: []int{i}}
	}

	var err error
	for _, entry := range history {
		spans, err = applyEntry(spans, entry)
		if err != nil {
			return Aligned{}, err
		}
	}

	active := store.ActiveTokens(tokens)
	if len(active) != len(spans) {
		return Aligned{}, fmt.Errorf("align: history yields %d slots for %d active tokens: %w",
			len(spans), len(active), internalerr.ErrInvalidInput)
	}

	out := Aligned{
		Input:  input,
		Output: make([]string, len(input)),
		Labels: make([]string, len(input)),
	}
	for i := range input {
		out.Output[i] = SlotPad
		out.Labels[i] = SlotPad
	}

	for j, tok := range active {
		origins := spans[j].origins
		if len(origins) == 0 {
			continue
		}
		pos := origins[0]
		for _, o := range origins[1:] {
			if o < pos {
				pos = o
			}
		}
		if pos < 0 || pos >= len(input) {
			return Aligned{}, fmt.Errorf("align: slot %d out of range: %w", pos, internalerr.ErrInvalidInput)
		}
		display := annotate.CurrentValue(tok)
		if out.Output[pos] == SlotPad {
			out.Output[pos] = display
			out.Labels[pos] = labelFor(tok)
		} else {
			// A later split piece folding back into a shared slot.
			out.Output[pos] += " " + display
		}
	}

	return out, nil
}

func applyEntry(spans []span, entry store.HistoryEntry) ([]span, error) {
	switch entry.Kind {
	case store.HistoryMerge:
		i0, k := entry.OriginalIndex, len(entry.Pieces)
		if k < 2 || i0 < 0 || i0+k > len(spans) {
			return nil, fmt.Errorf("align: merge entry at %d width %d out of range: %w",
				i0, k, internalerr.ErrInvalidInput)
		}
		var merged []int
		for _, s := range spans[i0 : i0+k] {
			merged = append(merged, s.origins...)
		}
		out := make([]span, 0, len(spans)-k+1)
		out = append(out, spans[:i0]...)
		out = append(out, span{origins: merged})
		out = append(out, spans[i0+k:]...)
		return out, nil

	case store.HistorySplit:
		p, k := entry.OriginalIndex, len(entry.Pieces)
		if k < 2 || p < 0 || p >= len(spans) {
			return nil, fmt.Errorf("align: split entry at %d out of range: %w",
				p, internalerr.ErrInvalidInput)
		}
		origin := spans[p].origins
		out := make([]span, 0, len(spans)+k-1)
		out = append(out, spans[:p]...)
		for i := 0; i < k; i++ {
			out = append(out, span{origins: origin})
		}
		out = append(out, spans[p+1:]...)
		return out, nil

	default:
		return nil, fmt.Errorf("align: unknown history kind %q: %w",
			entry.Kind, internalerr.ErrInvalidInput)
	}
}

// labelFor classifies one token for the export: replaced, its first true
// category tag, or oov.
func labelFor(t store.Token) string {
	if t.Replacement != "" {
		return LabelReplaced
	}
	cats := make([]string, 0, len(t.Tags))
	for cat, on := range t.Tags {
		if on {
			cats = append(cats, cat)
		}
	}
	if len(cats) > 0 {
		sort.Strings(cats)
		return cats[0]
	}
	return LabelOOV
}
