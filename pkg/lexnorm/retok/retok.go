// Package retok applies structural edits (merge, split) to a document's
// token sequence. All functions are pure with respect to their inputs:
// they return a full replacement token set plus history entries, and the
// caller commits both as one transactional unit.
package retok

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cognicore/lexnorm/pkg/lexnorm/annotate"
	"github.com/cognicore/lexnorm/pkg/lexnorm/internalerr"
	"github.com/cognicore/lexnorm/pkg/lexnorm/store"
)

// Retokenizer creates replacement tokens during merges and splits. The
// identifier and tag functions are injected so the new tokens carry the
// same ID scheme and lexicon pre-annotation as the originals.
type Retokenizer struct {
	newID func() string
	tags  func(string) map[string]bool
}

// New creates a retokenizer with the given ID generator and tag function.
func New(newID func() string, tags func(string) map[string]bool) *Retokenizer {
	return &Retokenizer{newID: newID, tags: tags}
}

// Result is the outcome of one retokenization: the document's complete
// new token set (active and inactive) and the history entries to append.
type Result struct {
	Tokens  []store.Token
	History []store.HistoryEntry
}

// Merge collapses each group of adjacent active token indices into a
// single new token whose value is the concatenation of the members'
// display values. Groups must be pairwise disjoint and internally
// contiguous; members are deactivated, not deleted. The surviving
// sequence is renumbered from zero.
//
// History entries for one call are recorded in descending index order so
// that sequential replay (export alignment) sees stable coordinates.
func (r *Retokenizer) Merge(tokens []store.Token, groups [][]int) (Result, error) {
	if len(groups) == 0 {
		return Result{}, fmt.Errorf("merge: no groups: %w", internalerr.ErrInvalidGroup)
	}

	work := cloneTokens(tokens)
	byIndex := make(map[int]*store.Token)
	for i := range work {
		if work[i].Active {
			byIndex[work[i].Index] = &work[i]
		}
	}

	sorted, err := validateGroups(groups, byIndex)
	if err != nil {
		return Result{}, err
	}

	// Highest group first: edits at larger indices leave smaller ones
	// untouched, so replayed entries apply cleanly in order.
	sort.Slice(sorted, func(i, j int) bool { return sorted[i][0] > sorted[j][0] })

	var history []store.HistoryEntry
	var created []store.Token
	now := time.Now().UTC()

	for _, group := range sorted {
		pieces := make([]store.Piece, 0, len(group))
		var concat strings.Builder
		var docID string
		for _, idx := range group {
			member := byIndex[idx]
			pieces = append(pieces, store.Piece{Index: idx, Value: member.Value})
			concat.WriteString(annotate.CurrentValue(*member))
			member.Active = false
			docID = member.DocID
		}

		value := concat.String()
		created = append(created, store.Token{
			ID:     r.newID(),
			DocID:  docID,
			Index:  group[0],
			Value:  value,
			Tags:   r.tags(value),
			Active: true,
		})
		history = append(history, store.HistoryEntry{
			Kind:          store.HistoryMerge,
			OriginalIndex: group[0],
			Pieces:        pieces,
			At:            now,
		})
	}

	work = append(work, created...)
	reindex(work)
	if err := CheckContiguity(work); err != nil {
		return Result{}, err
	}
	return Result{Tokens: work, History: history}, nil
}

// Split replaces one active token with the whitespace-separated pieces of
// its user-edited value, shifting subsequent indices. The original token
// is deactivated and a split history entry records the new pieces.
func (r *Retokenizer) Split(tokens []store.Token, tokenID, edited string) (Result, error) {
	if strings.TrimSpace(edited) == "" {
		return Result{}, fmt.Errorf("split: empty value: %w", internalerr.ErrInvalidInput)
	}
	parts := strings.Fields(edited)
	if len(parts) < 2 {
		return Result{}, fmt.Errorf("split token %s: %w", tokenID, internalerr.ErrNoWhitespace)
	}

	work := cloneTokens(tokens)
	var orig *store.Token
	for i := range work {
		if work[i].ID == tokenID {
			orig = &work[i]
			break
		}
	}
	if orig == nil {
		return Result{}, fmt.Errorf("split token %s: %w", tokenID, internalerr.ErrNotFound)
	}
	if !orig.Active {
		return Result{}, fmt.Errorf("split token %s: inactive: %w", tokenID, internalerr.ErrInvalidGroup)
	}

	origIndex := orig.Index
	orig.Active = false

	pieces := make([]store.Piece, 0, len(parts))
	created := make([]store.Token, 0, len(parts))
	for i, part := range parts {
		created = append(created, store.Token{
			ID:     r.newID(),
			DocID:  orig.DocID,
			Index:  origIndex,
			Value:  part,
			Tags:   r.tags(part),
			Active: true,
		})
		pieces = append(pieces, store.Piece{Index: origIndex + i, Value: part})
	}

	work = append(work, created...)
	reindex(work)
	if err := CheckContiguity(work); err != nil {
		return Result{}, err
	}
	return Result{
		Tokens: work,
		History: []store.HistoryEntry{{
			Kind:          store.HistorySplit,
			OriginalIndex: origIndex,
			Pieces:        pieces,
			At:            time.Now().UTC(),
		}},
	}, nil
}

// CheckContiguity asserts that the active tokens' indices form exactly
// {0 .. n-1}. A violation is an internal invariant breach, not a user
// error.
func CheckContiguity(tokens []store.Token) error {
	seen := make(map[int]bool)
	n := 0
	for _, t := range tokens {
		if !t.Active {
			continue
		}
		if seen[t.Index] {
			return fmt.Errorf("duplicate index %d: %w", t.Index, internalerr.ErrIndexGap)
		}
		seen[t.Index] = true
		n++
	}
	for i := 0; i < n; i++ {
		if !seen[i] {
			return fmt.Errorf("missing index %d of %d: %w", i, n, internalerr.ErrIndexGap)
		}
	}
	return nil
}

// reindex renumbers active tokens sequentially from zero, ordered by
// current index with insertion order breaking ties (split pieces share
// their origin's index until renumbered). Inactive tokens keep the index
// they were retired at so history stays resolvable.
func reindex(tokens []store.Token) {
	active := make([]*store.Token, 0, len(tokens))
	for i := range tokens {
		if tokens[i].Active {
			active = append(active, &tokens[i])
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Index < active[j].Index })
	for i, t := range active {
		t.Index = i
	}
}

func validateGroups(groups [][]int, byIndex map[int]*store.Token) ([][]int, error) {
	used := make(map[int]bool)
	sorted := make([][]int, 0, len(groups))
	for _, group := range groups {
		if len(group) < 2 {
			return nil, fmt.Errorf("merge: group needs at least two members: %w", internalerr.ErrInvalidGroup)
		}
		g := append([]int(nil), group...)
		sort.Ints(g)
		for i, idx := range g {
			if _, ok := byIndex[idx]; !ok {
				return nil, fmt.Errorf("merge: index %d inactive or missing: %w", idx, internalerr.ErrInvalidGroup)
			}
			if used[idx] {
				return nil, fmt.Errorf("merge: index %d in more than one group: %w", idx, internalerr.ErrInvalidGroup)
			}
			used[idx] = true
			if i > 0 && g[i-1]+1 != idx {
				return nil, fmt.Errorf("merge: group not contiguous at index %d: %w", idx, internalerr.ErrInvalidGroup)
			}
		}
		sorted = append(sorted, g)
	}
	return sorted, nil
}

func cloneTokens(tokens []store.Token) []store.Token {
	out := make([]store.Token, len(tokens))
	for i, t := range tokens {
		out[i] = t.Clone()
	}
	return out
}
