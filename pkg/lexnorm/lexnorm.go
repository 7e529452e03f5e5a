// Package lexnorm is a collaborative lexical-normalisation engine: it
// tokenizes a corpus into uniquely-indexed sequences, pre-annotates them
// from lexicon sets, applies user-driven split/merge edits with full
// history, and ranks documents by expected annotation effort.
package lexnorm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cognicore/lexnorm/pkg/lexnorm/analytics"
	"github.com/cognicore/lexnorm/pkg/lexnorm/annotate"
	"github.com/cognicore/lexnorm/pkg/lexnorm/export"
	"github.com/cognicore/lexnorm/pkg/lexnorm/ingest"
	"github.com/cognicore/lexnorm/pkg/lexnorm/internalerr"
	"github.com/cognicore/lexnorm/pkg/lexnorm/lexicon"
	"github.com/cognicore/lexnorm/pkg/lexnorm/maintenance"
	"github.com/cognicore/lexnorm/pkg/lexnorm/query"
	"github.com/cognicore/lexnorm/pkg/lexnorm/rank"
	"github.com/cognicore/lexnorm/pkg/lexnorm/retok"
	"github.com/cognicore/lexnorm/pkg/lexnorm/store"
)

// Engine is the annotation engine facade.
type Engine struct {
	store    store.Store
	builder  *ingest.Builder
	lexicons *lexicon.Collection
	retok    *retok.Retokenizer
	tracker  *annotate.Tracker
	ranker   *rank.Ranker
	locks    docLocks
}

// Options configures an Engine instance
type Options struct {
	Store    store.Store
	Builder  *ingest.Builder
	Lexicons *lexicon.Collection
}

// New creates an Engine with the given dependencies
func New(opts Options) *Engine {
	return &Engine{
		store:    opts.Store,
		builder:  opts.Builder,
		lexicons: opts.Lexicons,
		retok:    retok.New(opts.Builder.NewID, opts.Builder.TagsFor),
		tracker:  annotate.NewTracker(opts.Store),
		ranker:   rank.NewRanker(),
	}
}

// Close cleanly shuts down the engine
func (e *Engine) Close() error {
	return e.store.Close()
}

// CorpusDoc is one raw document to be ingested.
type CorpusDoc struct {
	Original    string
	Reference   string
	Identifiers []string
}

// CreateProjectRequest carries a corpus to ingest
type CreateProjectRequest struct {
	Name string
	Docs []CorpusDoc
}

// CreateProject tokenizes and stores a corpus, then runs the initial
// ranking pass. Documents keep their request order as insertion order.
func (e *Engine) CreateProject(ctx context.Context, req CreateProjectRequest) (store.Project, error) {
	if len(req.Docs) == 0 {
		return store.Project{}, fmt.Errorf("create project: empty corpus: %w", internalerr.ErrInvalidInput)
	}

	proj := store.Project{
		ID:         e.builder.NewID(),
		Name:       req.Name,
		Categories: e.lexicons.Categories(),
		CreatedAt:  time.Now().UTC(),
	}

	// Build every token sequence before the first write, so a malformed
	// document rejects the whole request with no partial state.
	docs := make([]store.Doc, 0, len(req.Docs))
	sequences := make([][]store.Token, 0, len(req.Docs))
	for i, raw := range req.Docs {
		doc := store.Doc{
			ID:          e.builder.NewID(),
			ProjectID:   proj.ID,
			Original:    raw.Original,
			Reference:   raw.Reference,
			Identifiers: raw.Identifiers,
			Order:       i,
		}
		tokens, err := e.builder.Build(doc.ID, doc.Original)
		if err != nil {
			return store.Project{}, fmt.Errorf("doc %d: %w", i, err)
		}
		docs = append(docs, doc)
		sequences = append(sequences, tokens)
	}

	if err := e.store.UpsertProject(ctx, proj); err != nil {
		return store.Project{}, err
	}
	for i, doc := range docs {
		if err := e.store.InsertDoc(ctx, doc); err != nil {
			return store.Project{}, err
		}
		if err := e.store.SaveTokens(ctx, doc.ID, sequences[i]); err != nil {
			return store.Project{}, err
		}
	}

	if _, err := e.RunRanking(ctx, proj.ID); err != nil {
		return store.Project{}, err
	}
	return proj, nil
}

// MergeTokens merges each group of adjacent active token indices of the
// document into a single token, appending history and renumbering the
// sequence. The whole edit commits atomically per document.
func (e *Engine) MergeTokens(ctx context.Context, docID string, groups [][]int) error {
	unlock := e.locks.lock(docID)
	defer unlock()

	tokens, err := e.store.GetDocTokens(ctx, docID)
	if err != nil {
		return err
	}
	res, err := e.retok.Merge(tokens, groups)
	if err != nil {
		return err
	}
	return e.commitRetok(ctx, docID, res)
}

// SplitToken splits one active token on the whitespace of its edited
// value, shifting subsequent indices.
func (e *Engine) SplitToken(ctx context.Context, docID, tokenID, edited string) error {
	unlock := e.locks.lock(docID)
	defer unlock()

	tokens, err := e.store.GetDocTokens(ctx, docID)
	if err != nil {
		return err
	}
	res, err := e.retok.Split(tokens, tokenID, edited)
	if err != nil {
		return err
	}
	return e.commitRetok(ctx, docID, res)
}

func (e *Engine) commitRetok(ctx context.Context, docID string, res retok.Result) error {
	if err := e.store.ReplaceDocTokens(ctx, docID, res.Tokens); err != nil {
		return err
	}
	return e.store.AppendHistory(ctx, docID, res.History)
}

// ResetDocument rebuilds a document's token sequence from its immutable
// original text, discarding all current tokens and history. Undo is a
// full reset, not a step back.
func (e *Engine) ResetDocument(ctx context.Context, docID string) error {
	unlock := e.locks.lock(docID)
	defer unlock()

	doc, err := e.store.GetDoc(ctx, docID)
	if err != nil {
		return err
	}
	tokens, err := e.builder.Build(docID, doc.Original)
	if err != nil {
		return err
	}
	if err := e.store.ReplaceDocTokens(ctx, docID, tokens); err != nil {
		return err
	}
	if err := e.store.ClearHistory(ctx, docID); err != nil {
		return err
	}
	return e.store.SetDocSaved(ctx, docID, false)
}

// SetReplacement sets a confirmed replacement on a token.
func (e *Engine) SetReplacement(ctx context.Context, tokenID, value string) error {
	return e.withTokenLock(ctx, tokenID, func() error {
		return e.tracker.SetReplacement(ctx, tokenID, value)
	})
}

// SuggestReplacement records a suggestion on a token.
func (e *Engine) SuggestReplacement(ctx context.Context, tokenID, value string) error {
	return e.withTokenLock(ctx, tokenID, func() error {
		return e.tracker.SuggestReplacement(ctx, tokenID, value)
	})
}

// ConfirmSuggestion promotes a token's suggestion to its replacement.
func (e *Engine) ConfirmSuggestion(ctx context.Context, tokenID string) error {
	return e.withTokenLock(ctx, tokenID, func() error {
		return e.tracker.ConfirmSuggestion(ctx, tokenID)
	})
}

// ClearToken removes a token's replacement and suggestion.
func (e *Engine) ClearToken(ctx context.Context, tokenID string) error {
	return e.withTokenLock(ctx, tokenID, func() error {
		return e.tracker.ClearToken(ctx, tokenID)
	})
}

// DeleteReplacement clears only a token's replacement.
func (e *Engine) DeleteReplacement(ctx context.Context, tokenID string) error {
	return e.withTokenLock(ctx, tokenID, func() error {
		return e.tracker.DeleteReplacement(ctx, tokenID)
	})
}

// DeleteSuggestion clears only a token's suggestion.
func (e *Engine) DeleteSuggestion(ctx context.Context, tokenID string) error {
	return e.withTokenLock(ctx, tokenID, func() error {
		return e.tracker.DeleteSuggestion(ctx, tokenID)
	})
}

// TagToken sets one category flag on a token.
func (e *Engine) TagToken(ctx context.Context, tokenID, category string, on bool) error {
	return e.withTokenLock(ctx, tokenID, func() error {
		return e.tracker.TagToken(ctx, tokenID, category, on)
	})
}

// ApplyReplacementToAll sets replacement on every active token in the
// project with the given original value. Returns the number changed.
// The pass holds every document's lock so it cannot interleave with a
// retokenization's read-modify-write on any document.
func (e *Engine) ApplyReplacementToAll(ctx context.Context, projectID, value, replacement string) (int, error) {
	unlock, err := e.lockProject(ctx, projectID)
	if err != nil {
		return 0, err
	}
	defer unlock()
	return e.tracker.ApplyReplacementToAll(ctx, projectID, value, replacement)
}

// DeleteReplacementFromAll clears replacements across the project.
func (e *Engine) DeleteReplacementFromAll(ctx context.Context, projectID, value string) (int, error) {
	unlock, err := e.lockProject(ctx, projectID)
	if err != nil {
		return 0, err
	}
	defer unlock()
	return e.tracker.DeleteReplacementFromAll(ctx, projectID, value)
}

// SuggestReplacementToAll propagates a correction as a suggestion to
// every matching token without a confirmed replacement.
func (e *Engine) SuggestReplacementToAll(ctx context.Context, projectID, value, suggestion string) (int, error) {
	unlock, err := e.lockProject(ctx, projectID)
	if err != nil {
		return 0, err
	}
	defer unlock()
	return e.tracker.SuggestReplacementToAll(ctx, projectID, value, suggestion)
}

// DeleteSuggestionFromAll clears suggestions across the project.
func (e *Engine) DeleteSuggestionFromAll(ctx context.Context, projectID, value string) (int, error) {
	unlock, err := e.lockProject(ctx, projectID)
	if err != nil {
		return 0, err
	}
	defer unlock()
	return e.tracker.DeleteSuggestionFromAll(ctx, projectID, value)
}

// SaveDocument marks a document saved. Saving requires some annotation
// activity on the document (a tag, replacement, or suggestion).
func (e *Engine) SaveDocument(ctx context.Context, docID string, saved bool) error {
	unlock := e.locks.lock(docID)
	defer unlock()

	if saved {
		tokens, err := e.store.GetDocTokens(ctx, docID)
		if err != nil {
			return err
		}
		if !annotate.IsAnnotated(tokens) {
			return fmt.Errorf("save doc %s: no annotation activity: %w", docID, internalerr.ErrInvalidInput)
		}
	}
	return e.store.SetDocSaved(ctx, docID, saved)
}

// RunRanking executes a full ranking pass over the project and persists
// the resulting weights and ranks. The pass is pure over a snapshot and
// safe to cancel and restart.
func (e *Engine) RunRanking(ctx context.Context, projectID string) (rank.Result, error) {
	docs, err := e.store.ListDocs(ctx, projectID)
	if err != nil {
		return rank.Result{}, err
	}
	tokens, err := e.store.GetProjectTokens(ctx, projectID)
	if err != nil {
		return rank.Result{}, err
	}

	byDoc := make(map[string][]store.Token)
	for _, t := range tokens {
		byDoc[t.DocID] = append(byDoc[t.DocID], t)
	}

	snapshot := make([]rank.DocSnapshot, 0, len(docs))
	for _, d := range docs {
		snapshot = append(snapshot, rank.DocSnapshot{
			DocID:    d.ID,
			Order:    d.Order,
			Original: d.Original,
			Tokens:   byDoc[d.ID],
		})
	}

	res, err := e.ranker.Run(ctx, snapshot)
	if err != nil {
		return rank.Result{}, err
	}
	for _, dr := range res.Ranks {
		if err := e.store.SetDocRank(ctx, dr.DocID, dr.Weight, dr.Rank); err != nil {
			return rank.Result{}, err
		}
	}
	return res, nil
}

// Page returns one rank-ordered page of a project's documents after
// filtering. Offset and limit count filtered documents.
func (e *Engine) Page(ctx context.Context, projectID string, f query.Filter, offset, limit int) ([]store.Doc, error) {
	docs, err := e.store.ListDocs(ctx, projectID)
	if err != nil {
		return nil, err
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Rank < docs[j].Rank })

	var filtered []store.Doc
	for _, d := range docs {
		tokens, err := e.store.GetDocTokens(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		if f.Matches(d, tokens) {
			filtered = append(filtered, d)
		}
	}

	if offset < 0 {
		offset = 0
	}
	if offset >= len(filtered) {
		return nil, nil
	}
	filtered = filtered[offset:]
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

// ExportDocument produces the token-aligned (input, output, labels)
// triple for one document.
func (e *Engine) ExportDocument(ctx context.Context, docID string) (export.DocExport, error) {
	doc, err := e.store.GetDoc(ctx, docID)
	if err != nil {
		return export.DocExport{}, err
	}
	tokens, err := e.store.GetDocTokens(ctx, docID)
	if err != nil {
		return export.DocExport{}, err
	}
	history, err := e.store.GetHistory(ctx, docID)
	if err != nil {
		return export.DocExport{}, err
	}
	aligned, err := export.Align(doc.Original, tokens, history)
	if err != nil {
		return export.DocExport{}, err
	}
	return export.DocExport{
		DocID:  docID,
		Input:  aligned.Input,
		Output: aligned.Output,
		Labels: aligned.Labels,
	}, nil
}

// ExportProject exports every document of a project in insertion order.
func (e *Engine) ExportProject(ctx context.Context, projectID string) ([]export.DocExport, error) {
	docs, err := e.store.ListDocs(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := make([]export.DocExport, 0, len(docs))
	for _, d := range docs {
		exp, err := e.ExportDocument(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, exp)
	}
	return out, nil
}

// DocTokens returns a document's full token set, active tokens first by
// index.
func (e *Engine) DocTokens(ctx context.Context, docID string) ([]store.Token, error) {
	return e.store.GetDocTokens(ctx, docID)
}

// Stats aggregates progress metrics across the project, listing at most
// topK candidate values.
func (e *Engine) Stats(ctx context.Context, projectID string, topK int) (analytics.Report, error) {
	docs, err := e.store.ListDocs(ctx, projectID)
	if err != nil {
		return analytics.Report{}, err
	}
	analyzer := analytics.NewAnalyzer()
	for _, d := range docs {
		tokens, err := e.store.GetDocTokens(ctx, d.ID)
		if err != nil {
			return analytics.Report{}, err
		}
		history, err := e.store.GetHistory(ctx, d.ID)
		if err != nil {
			return analytics.Report{}, err
		}
		analyzer.Process(d, tokens, history)
	}
	return analyzer.Report(topK), nil
}

// Retag recomputes lexicon tags across the project after the lexicon
// sets change. An explicit batch command, one document at a time.
func (e *Engine) Retag(ctx context.Context, projectID string) (maintenance.Result, error) {
	docs, err := e.store.ListDocs(ctx, projectID)
	if err != nil {
		return maintenance.Result{}, err
	}
	retagger := maintenance.Retagger{
		Store:  e.store,
		Tags:   e.builder.TagsFor,
		Source: &maintenance.ListSource{Docs: docs},
	}
	return retagger.Retag(ctx)
}

// SuggestCorrections returns lexicon terms starting with prefix from one
// category, for offering correction candidates while annotating.
func (e *Engine) SuggestCorrections(category, prefix string, limit int) []string {
	set := e.lexicons.Get(category)
	if set == nil {
		return nil
	}
	return set.SuggestByPrefix(prefix, limit)
}

// lockProject serialises a project-wide bulk mutation against edits on
// every document in the project. Locks are acquired in a stable order so
// two concurrent bulk passes cannot deadlock; single-document edits take
// one lock at a time and never conflict with the ordering.
func (e *Engine) lockProject(ctx context.Context, projectID string) (func(), error) {
	docs, err := e.store.ListDocs(ctx, projectID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	sort.Strings(ids)

	unlocks := make([]func(), 0, len(ids))
	for _, id := range ids {
		unlocks = append(unlocks, e.locks.lock(id))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}, nil
}

// withTokenLock resolves a token's document and serialises the mutation
// against other edits on the same document.
func (e *Engine) withTokenLock(ctx context.Context, tokenID string, fn func() error) error {
	tok, err := e.store.GetToken(ctx, tokenID)
	if err != nil {
		return err
	}
	unlock := e.locks.lock(tok.DocID)
	defer unlock()
	return fn()
}

// docLocks provides per-document mutual exclusion.
type docLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (l *docLocks) lock(docID string) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[string]*sync.Mutex)
	}
	dm, ok := l.m[docID]
	if !ok {
		dm = &sync.Mutex{}
		l.m[docID] = dm
	}
	l.mu.Unlock()

	dm.Lock()
	return dm.Unlock
}
