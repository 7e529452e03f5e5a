package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cognicore/lexnorm/pkg/lexnorm/internalerr"
	"github.com/cognicore/lexnorm/pkg/lexnorm/store"
)

// Store is an in-memory implementation of store.Store for tests and the
// runnable examples.
type Store struct {
	mu       sync.RWMutex
	projects map[string]store.Project
	docs     map[string]store.Doc
	tokens   map[string]store.Token // by token ID
	docToks  map[string][]string    // doc ID -> token IDs in insertion order
	history  map[string][]store.HistoryEntry
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		projects: make(map[string]store.Project),
		docs:     make(map[string]store.Doc),
		tokens:   make(map[string]store.Token),
		docToks:  make(map[string][]string),
		history:  make(map[string][]store.HistoryEntry),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// UpsertProject inserts or updates a project.
func (s *Store) UpsertProject(ctx context.Context, p store.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		return fmt.Errorf("upsert project: %w", internalerr.ErrInvalidInput)
	}
	s.projects[p.ID] = p
	return nil
}

// GetProject returns a project by ID.
func (s *Store) GetProject(ctx context.Context, id string) (store.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return store.Project{}, fmt.Errorf("project %s: %w", id, internalerr.ErrNotFound)
	}
	return p, nil
}

// InsertDoc stores a new document.
func (s *Store) InsertDoc(ctx context.Context, d store.Doc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		return fmt.Errorf("insert doc: %w", internalerr.ErrInvalidInput)
	}
	s.docs[d.ID] = copyDoc(d)
	return nil
}

// GetDoc returns a document by ID.
func (s *Store) GetDoc(ctx context.Context, id string) (store.Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	if !ok {
		return store.Doc{}, fmt.Errorf("doc %s: %w", id, internalerr.ErrNotFound)
	}
	return copyDoc(d), nil
}

// ListDocs returns a project's documents ordered by insertion order.
func (s *Store) ListDocs(ctx context.Context, projectID string) ([]store.Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.Doc
	for _, d := range s.docs {
		if d.ProjectID == projectID {
			out = append(out, copyDoc(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

// SetDocSaved updates a document's saved flag.
func (s *Store) SetDocSaved(ctx context.Context, docID string, saved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[docID]
	if !ok {
		return fmt.Errorf("doc %s: %w", docID, internalerr.ErrNotFound)
	}
	d.Saved = saved
	s.docs[docID] = d
	return nil
}

// SetDocRank updates a document's weight and rank.
func (s *Store) SetDocRank(ctx context.Context, docID string, weight float64, rank int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[docID]
	if !ok {
		return fmt.Errorf("doc %s: %w", docID, internalerr.ErrNotFound)
	}
	d.Weight = weight
	d.Rank = rank
	s.docs[docID] = d
	return nil
}

// SaveTokens stores a document's initial token sequence.
func (s *Store) SaveTokens(ctx context.Context, docID string, tokens []store.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[docID]; !ok {
		return fmt.Errorf("doc %s: %w", docID, internalerr.ErrNotFound)
	}
	ids := make([]string, 0, len(tokens))
	for _, t := range tokens {
		s.tokens[t.ID] = t.Clone()
		ids = append(ids, t.ID)
	}
	s.docToks[docID] = append(s.docToks[docID], ids...)
	return nil
}

// ReplaceDocTokens swaps a document's complete token set in one step.
func (s *Store) ReplaceDocTokens(ctx context.Context, docID string, tokens []store.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[docID]; !ok {
		return fmt.Errorf("doc %s: %w", docID, internalerr.ErrNotFound)
	}
	for _, id := range s.docToks[docID] {
		delete(s.tokens, id)
	}
	ids := make([]string, 0, len(tokens))
	for _, t := range tokens {
		s.tokens[t.ID] = t.Clone()
		ids = append(ids, t.ID)
	}
	s.docToks[docID] = ids
	return nil
}

// GetDocTokens returns all of a document's tokens, active first by
// index, then inactive.
func (s *Store) GetDocTokens(ctx context.Context, docID string) ([]store.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.docs[docID]; !ok {
		return nil, fmt.Errorf("doc %s: %w", docID, internalerr.ErrNotFound)
	}
	out := make([]store.Token, 0, len(s.docToks[docID]))
	for _, id := range s.docToks[docID] {
		if t, ok := s.tokens[id]; ok {
			out = append(out, t.Clone())
		}
	}
	sortTokens(out)
	return out, nil
}

// GetProjectTokens returns every token in a project.
func (s *Store) GetProjectTokens(ctx context.Context, projectID string) ([]store.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.Token
	for _, d := range s.docs {
		if d.ProjectID != projectID {
			continue
		}
		for _, id := range s.docToks[d.ID] {
			if t, ok := s.tokens[id]; ok {
				out = append(out, t.Clone())
			}
		}
	}
	return out, nil
}

// GetToken returns a token by ID.
func (s *Store) GetToken(ctx context.Context, tokenID string) (store.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[tokenID]
	if !ok {
		return store.Token{}, fmt.Errorf("token %s: %w", tokenID, internalerr.ErrNotFound)
	}
	return t.Clone(), nil
}

// UpdateToken overwrites a stored token.
func (s *Store) UpdateToken(ctx context.Context, t store.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[t.ID]; !ok {
		return fmt.Errorf("token %s: %w", t.ID, internalerr.ErrNotFound)
	}
	s.tokens[t.ID] = t.Clone()
	return nil
}

// UpdateTokensByValue applies fn to every active token in the project
// whose original value matches, under one lock so no partial application
// is observable. Returns the number of tokens changed.
func (s *Store) UpdateTokensByValue(ctx context.Context, projectID, value string, fn func(*store.Token)) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, d := range s.docs {
		if d.ProjectID != projectID {
			continue
		}
		for _, id := range s.docToks[d.ID] {
			t, ok := s.tokens[id]
			if !ok || !t.Active || t.Value != value {
				continue
			}
			updated := t.Clone()
			fn(&updated)
			s.tokens[id] = updated
			count++
		}
	}
	return count, nil
}

// AppendHistory appends retokenization history entries for a document.
func (s *Store) AppendHistory(ctx context.Context, docID string, entries []store.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[docID]; !ok {
		return fmt.Errorf("doc %s: %w", docID, internalerr.ErrNotFound)
	}
	s.history[docID] = append(s.history[docID], entries...)
	return nil
}

// GetHistory returns a document's history entries in append order.
func (s *Store) GetHistory(ctx context.Context, docID string) ([]store.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.HistoryEntry, len(s.history[docID]))
	copy(out, s.history[docID])
	return out, nil
}

// ClearHistory drops a document's history (full-reset undo).
func (s *Store) ClearHistory(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.history, docID)
	return nil
}

func copyDoc(d store.Doc) store.Doc {
	out := d
	out.Identifiers = append([]string(nil), d.Identifiers...)
	return out
}

func sortTokens(tokens []store.Token) {
	sort.SliceStable(tokens, func(i, j int) bool {
		if tokens[i].Active != tokens[j].Active {
			return tokens[i].Active
		}
		return tokens[i].Index < tokens[j].Index
	})
}
