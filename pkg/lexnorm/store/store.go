package store

import (
	"context"
	"sort"
	"time"
)

// Store is the main interface for persisting and querying annotation data
type Store interface {
	Close() error

	// Projects
	UpsertProject(ctx context.Context, p Project) error
	GetProject(ctx context.Context, id string) (Project, error)

	// Docs
	InsertDoc(ctx context.Context, d Doc) error
	GetDoc(ctx context.Context, id string) (Doc, error)
	ListDocs(ctx context.Context, projectID string) ([]Doc, error)
	SetDocSaved(ctx context.Context, docID string, saved bool) error
	SetDocRank(ctx context.Context, docID string, weight float64, rank int) error

	// Tokens
	SaveTokens(ctx context.Context, docID string, tokens []Token) error
	ReplaceDocTokens(ctx context.Context, docID string, tokens []Token) error
	GetDocTokens(ctx context.Context, docID string) ([]Token, error)
	GetProjectTokens(ctx context.Context, projectID string) ([]Token, error)
	GetToken(ctx context.Context, tokenID string) (Token, error)
	UpdateToken(ctx context.Context, t Token) error
	UpdateTokensByValue(ctx context.Context, projectID, value string, fn func(*Token)) (int, error)

	// History
	AppendHistory(ctx context.Context, docID string, entries []HistoryEntry) error
	GetHistory(ctx context.Context, docID string) ([]HistoryEntry, error)
	ClearHistory(ctx context.Context, docID string) error
}

// Project groups a corpus of documents annotated against one set of
// lexicon categories.
type Project struct {
	ID         string
	Name       string
	Categories []string
	CreatedAt  time.Time
}

// Doc represents one corpus document. Original is the immutable source
// string; Reference is the optional parallel-corpus counterpart. Order is
// the insertion position within the project and breaks ranking ties.
type Doc struct {
	ID          string
	ProjectID   string
	Original    string
	Reference   string
	Identifiers []string
	Saved       bool
	Weight      float64
	Rank        int
	Order       int
}

// Token is one whitespace-delimited unit of a document. Index is the
// position within the document's live sequence; inactive tokens keep the
// index they had when they were superseded. Replacement and Suggestion use
// the empty string as "unset" (the engine never stores empty corrections).
type Token struct {
	ID          string
	DocID       string
	Index       int
	Value       string
	Tags        map[string]bool
	Replacement string
	Suggestion  string
	Active      bool
}

// Clone returns a deep copy of the token.
func (t Token) Clone() Token {
	out := t
	if t.Tags != nil {
		out.Tags = make(map[string]bool, len(t.Tags))
		for k, v := range t.Tags {
			out.Tags[k] = v
		}
	}
	return out
}

// HistoryKind discriminates retokenization history entries.
type HistoryKind string

const (
	HistoryMerge HistoryKind = "merge"
	HistorySplit HistoryKind = "split"
)

// Piece is one (index, value) cell of a history entry. For merges the
// pieces are the deactivated member tokens captured before the edit; for
// splits they are the newly created tokens.
type Piece struct {
	Index int
	Value string
}

// HistoryEntry records one retokenization edit. Entries are append-only;
// OriginalIndex is the sequence position the edit applied to at the time
// it ran.
type HistoryEntry struct {
	Kind          HistoryKind
	OriginalIndex int
	Pieces        []Piece
	At            time.Time
}

// ActiveTokens filters tokens down to the live sequence, ordered by index.
func ActiveTokens(tokens []Token) []Token {
	out := make([]Token, 0, len(tokens))
	for _, t := range tokens {
		if t.Active {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
