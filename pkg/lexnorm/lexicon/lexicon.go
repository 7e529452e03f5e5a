package lexicon

import (
	"sort"
	"strings"

	"github.com/tchap/go-patricia/v2/patricia"
)

// Set is a named set of known-good strings for one category (e.g.
// "english", "domain"). Membership is exact-match; the trie backing also
// supports prefix lookup for correction suggestions.
//
// Sets are built once at project creation and treated as immutable
// snapshots afterwards. They are not safe for concurrent mutation.
type Set struct {
	category string
	trie     *patricia.Trie
	size     int
}

// NewSet creates an empty set for the given category.
func NewSet(category string) *Set {
	return &Set{
		category: category,
		trie:     patricia.NewTrie(),
	}
}

// Category returns the set's category name.
func (s *Set) Category() string {
	return s.category
}

// Add inserts a term. Terms are stored as-is; callers normalize case
// upstream if the corpus calls for it.
func (s *Set) Add(term string) {
	if term == "" {
		return
	}
	if s.trie.Insert(patricia.Prefix(term), struct{}{}) {
		s.size++
	}
}

// Contains reports exact membership.
func (s *Set) Contains(term string) bool {
	return s.trie.Get(patricia.Prefix(term)) != nil
}

// Len returns the number of terms in the set.
func (s *Set) Len() int {
	return s.size
}

// SuggestByPrefix returns up to limit terms starting with prefix, sorted
// lexicographically. Used to offer correction candidates while annotating.
func (s *Set) SuggestByPrefix(prefix string, limit int) []string {
	if prefix == "" || limit <= 0 {
		return nil
	}
	var out []string
	s.trie.VisitSubtree(patricia.Prefix(prefix), func(p patricia.Prefix, _ patricia.Item) error {
		out = append(out, string(p))
		return nil
	})
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Collection holds the named lexicon sets of one project.
type Collection struct {
	sets map[string]*Set
}

// NewCollection creates an empty collection.
func NewCollection() *Collection {
	return &Collection{sets: make(map[string]*Set)}
}

// AddSet registers a set under its category, replacing any previous set
// for that category.
func (c *Collection) AddSet(s *Set) {
	c.sets[s.Category()] = s
}

// Get returns the set for a category, or nil if absent.
func (c *Collection) Get(category string) *Set {
	return c.sets[category]
}

// Categories returns the registered category names, sorted.
func (c *Collection) Categories() []string {
	out := make([]string, 0, len(c.sets))
	for cat := range c.sets {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}

// TagsFor computes the per-category membership map for a token value.
func (c *Collection) TagsFor(value string) map[string]bool {
	tags := make(map[string]bool, len(c.sets))
	for cat, set := range c.sets {
		tags[cat] = set.Contains(value)
	}
	return tags
}

// ReplacementMap is a 1:1 mapping from original strings to their
// normalised forms, supplied at project creation.
type ReplacementMap struct {
	mapping map[string]string
}

// NewReplacementMap builds a replacement map from the given pairs.
func NewReplacementMap(pairs map[string]string) *ReplacementMap {
	mapping := make(map[string]string, len(pairs))
	for k, v := range pairs {
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		mapping[k] = v
	}
	return &ReplacementMap{mapping: mapping}
}

// Lookup returns the normalised form for original, if one is known.
func (r *ReplacementMap) Lookup(original string) (string, bool) {
	if r == nil {
		return "", false
	}
	v, ok := r.mapping[original]
	return v, ok
}

// Len returns the number of mappings.
func (r *ReplacementMap) Len() int {
	if r == nil {
		return 0
	}
	return len(r.mapping)
}

// Keys returns the original-string side of the map, sorted. The key set
// doubles as a lexicon of strings known to need replacement.
func (r *ReplacementMap) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.mapping))
	for k := range r.mapping {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
