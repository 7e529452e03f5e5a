// Package analytics aggregates project-level annotation progress stats:
// vocabulary sizes, candidate rates, and the candidate values worth
// bulk-fixing first.
package analytics

import (
	"sort"

	"github.com/cognicore/lexnorm/pkg/lexnorm/annotate"
	"github.com/cognicore/lexnorm/pkg/lexnorm/store"
)

// Analyzer aggregates document-level token/state stats.
type Analyzer struct {
	totalDocs    int64
	savedDocs    int64
	totalTokens  int64
	replaced     int64
	suggested    int64
	vocab        map[string]int64 // active value -> occurrences
	candidates   map[string]int64 // candidate value -> occurrences
	tagCounts    map[string]int64 // category -> true-tag count
	historyEdits int64
}

// NewAnalyzer creates an empty analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		vocab:      make(map[string]int64),
		candidates: make(map[string]int64),
		tagCounts:  make(map[string]int64),
	}
}

// Process consumes one document's current state.
func (a *Analyzer) Process(doc store.Doc, tokens []store.Token, history []store.HistoryEntry) {
	a.totalDocs++
	if doc.Saved {
		a.savedDocs++
	}
	a.historyEdits += int64(len(history))

	for _, t := range tokens {
		if !t.Active {
			continue
		}
		a.totalTokens++
		a.vocab[t.Value]++
		if t.Replacement != "" {
			a.replaced++
		}
		if t.Suggestion != "" {
			a.suggested++
		}
		for cat, on := range t.Tags {
			if on {
				a.tagCounts[cat]++
			}
		}
		if annotate.IsCandidate(t) {
			a.candidates[t.Value]++
		}
	}
}

// ValueCount pairs a token value with its corpus occurrence count.
type ValueCount struct {
	Value string
	Count int64
}

// Report summarizes everything processed so far.
type Report struct {
	Docs          int64
	SavedDocs     int64
	Tokens        int64
	Replaced      int64
	Suggested     int64
	Edits         int64
	VocabSize     int
	CandidateSize int
	CandidateRate float64 // candidate occurrences / active occurrences
	TagCounts     map[string]int64
	TopCandidates []ValueCount
}

// Report builds the summary, listing at most topK candidate values by
// descending occurrence count (value order breaks ties).
func (a *Analyzer) Report(topK int) Report {
	rep := Report{
		Docs:          a.totalDocs,
		SavedDocs:     a.savedDocs,
		Tokens:        a.totalTokens,
		Replaced:      a.replaced,
		Suggested:     a.suggested,
		Edits:         a.historyEdits,
		VocabSize:     len(a.vocab),
		CandidateSize: len(a.candidates),
		TagCounts:     make(map[string]int64, len(a.tagCounts)),
	}
	for cat, n := range a.tagCounts {
		rep.TagCounts[cat] = n
	}

	var candidateOcc int64
	for _, n := range a.candidates {
		candidateOcc += n
	}
	if a.totalTokens > 0 {
		rep.CandidateRate = float64(candidateOcc) / float64(a.totalTokens)
	}

	top := make([]ValueCount, 0, len(a.candidates))
	for v, n := range a.candidates {
		top = append(top, ValueCount{Value: v, Count: n})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Value < top[j].Value
	})
	if topK > 0 && len(top) > topK {
		top = top[:topK]
	}
	rep.TopCandidates = top

	return rep
}
