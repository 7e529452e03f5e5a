package maintenance

import (
	"context"
	"errors"

	"github.com/cognicore/lexnorm/pkg/lexnorm/store"
)

// DocSource abstracts how we iterate documents for re-tagging.
type DocSource interface {
	Next(ctx context.Context) (store.Doc, bool, error)
}

// Retagger replays lexicon membership over a project's tokens after the
// lexicon sets change. Re-tagging is an explicit batch command, applied
// one document at a time so each document's token swap stays atomic.
type Retagger struct {
	Store  store.Store
	Tags   func(value string) map[string]bool
	Source DocSource
}

// Result summarizes the re-tag run.
type Result struct {
	Processed int
	Updated   int
	Errors    int
}

// Retag replays docs from the source, recomputing category tags on
// active tokens. User-set flags survive only if the lexicon still agrees;
// this is a full recomputation, not a merge.
func (r *Retagger) Retag(ctx context.Context) (Result, error) {
	var res Result
	if r.Store == nil || r.Tags == nil || r.Source == nil {
		return res, errors.New("retagger: invalid configuration")
	}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		// A source failure is terminal: retrying the same cursor would
		// spin, and the run is safe to restart from scratch.
		doc, ok, err := r.Source.Next(ctx)
		if err != nil {
			res.Errors++
			return res, err
		}
		if !ok {
			break
		}
		res.Processed++

		tokens, err := r.Store.GetDocTokens(ctx, doc.ID)
		if err != nil {
			res.Errors++
			continue
		}

		changed := false
		for i := range tokens {
			if !tokens[i].Active {
				continue
			}
			fresh := r.Tags(tokens[i].Value)
			if !tagsEqual(tokens[i].Tags, fresh) {
				tokens[i].Tags = fresh
				changed = true
			}
		}
		if !changed {
			continue
		}

		if err := r.Store.ReplaceDocTokens(ctx, doc.ID, tokens); err != nil {
			res.Errors++
			continue
		}
		res.Updated++
	}
	return res, nil
}

func tagsEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// ListSource iterates a fixed slice of documents.
type ListSource struct {
	Docs []store.Doc
	pos  int
}

// Next implements DocSource.
func (s *ListSource) Next(ctx context.Context) (store.Doc, bool, error) {
	if s.pos >= len(s.Docs) {
		return store.Doc{}, false, nil
	}
	doc := s.Docs[s.pos]
	s.pos++
	return doc, true, nil
}
