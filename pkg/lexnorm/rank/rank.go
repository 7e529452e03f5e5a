// Package rank computes per-document annotation-priority weights from a
// masked tf-idf statistic: term frequencies are counted only over tokens
// that are still candidates (no tag, no replacement) somewhere in the
// project, so resolved vocabulary stops contributing to a document's
// expected annotation effort.
package rank

import (
	"context"
	"sort"
	"strings"

	"github.com/cognicore/lexnorm/pkg/lexnorm/annotate"
	"github.com/cognicore/lexnorm/pkg/lexnorm/store"
	"github.com/cognicore/lexnorm/pkg/lexnorm/tfidf"
)

// NoCandidateWeight is the sentinel weight for documents with no
// candidate tokens left; it sorts after every real weight.
const NoCandidateWeight = -1.0

// DocSnapshot is the per-document input to a ranking pass: the immutable
// original text plus the document's current token set.
type DocSnapshot struct {
	DocID    string
	Order    int
	Original string
	Tokens   []store.Token
}

// DocRank is one document's ranking outcome.
type DocRank struct {
	DocID  string
	Weight float64
	Rank   int
}

// Result holds a complete ranking pass over a project.
type Result struct {
	Ranks          []DocRank
	CandidateCount int // distinct candidate values in the universe
}

// Ranker produces weight and rank assignments. A pass is a pure function
// of its snapshot, so it can be cancelled and restarted from scratch.
type Ranker struct {
	calc *tfidf.Calculator
}

// NewRanker creates a ranker.
func NewRanker() *Ranker {
	return &Ranker{calc: tfidf.NewCalculator()}
}

// Run executes one ranking pass. Documents are sorted by descending
// weight with insertion order breaking ties; Rank is the 0-based position
// in that order. The context is checked between documents.
func (r *Ranker) Run(ctx context.Context, docs []DocSnapshot) (Result, error) {
	universe := candidateUniverse(docs)

	counter := tfidf.NewCounter()
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		counter.AddDocument(uniqueCandidates(doc.Original, universe))
	}

	ranks := make([]DocRank, 0, len(docs))
	order := make(map[string]int, len(docs))
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		tf := make(map[string]int64)
		for _, seg := range strings.Fields(doc.Original) {
			if _, ok := universe[seg]; ok {
				tf[seg]++
			}
		}

		weight := NoCandidateWeight
		if len(tf) > 0 {
			weight = 0
			for term, count := range tf {
				weight += r.calc.Weight(count, counter.TermDF(term), counter.TotalDocs())
			}
		}

		ranks = append(ranks, DocRank{DocID: doc.DocID, Weight: weight})
		order[doc.DocID] = doc.Order
	}

	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].Weight != ranks[j].Weight {
			return ranks[i].Weight > ranks[j].Weight
		}
		return order[ranks[i].DocID] < order[ranks[j].DocID]
	})
	for i := range ranks {
		ranks[i].Rank = i
	}

	return Result{Ranks: ranks, CandidateCount: len(universe)}, nil
}

// candidateUniverse collects the distinct values of still-unresolved
// active tokens across the whole project, computed once per pass.
func candidateUniverse(docs []DocSnapshot) map[string]struct{} {
	universe := make(map[string]struct{})
	for _, doc := range docs {
		for _, t := range doc.Tokens {
			if t.Active && annotate.IsCandidate(t) {
				universe[t.Value] = struct{}{}
			}
		}
	}
	return universe
}

func uniqueCandidates(original string, universe map[string]struct{}) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, seg := range strings.Fields(original) {
		if _, ok := universe[seg]; !ok {
			continue
		}
		if _, dup := seen[seg]; dup {
			continue
		}
		seen[seg] = struct{}{}
		out = append(out, seg)
	}
	return out
}
