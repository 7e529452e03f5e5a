package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/lexnorm/pkg/lexnorm/internalerr"
	"github.com/cognicore/lexnorm/pkg/lexnorm/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// Open opens a SQLite database with WAL mode enabled and initializes the
// schema.
func Open(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %v: %w", path, err, internalerr.ErrStoreUnavailable)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %v: %w", path, err, internalerr.ErrStoreUnavailable)
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %v: %w", path, err, internalerr.ErrStoreUnavailable)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %v: %w", path, err, internalerr.ErrStoreUnavailable)
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT,
	categories TEXT,
	created_at TEXT
);

CREATE TABLE IF NOT EXISTS docs (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	original TEXT NOT NULL,
	reference TEXT DEFAULT '',
	identifiers TEXT DEFAULT '[]',
	saved INTEGER DEFAULT 0,
	weight REAL DEFAULT 0,
	rank INTEGER DEFAULT 0,
	ord INTEGER NOT NULL,
	FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_docs_project ON docs(project_id);

CREATE TABLE IF NOT EXISTS tokens (
	id TEXT PRIMARY KEY,
	doc_id TEXT NOT NULL,
	idx INTEGER NOT NULL,
	value TEXT NOT NULL,
	tags TEXT DEFAULT '{}',
	replacement TEXT DEFAULT '',
	suggestion TEXT DEFAULT '',
	active INTEGER NOT NULL,
	FOREIGN KEY(doc_id) REFERENCES docs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_tokens_doc ON tokens(doc_id);
CREATE INDEX IF NOT EXISTS idx_tokens_value ON tokens(value);

CREATE TABLE IF NOT EXISTS history (
	doc_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	original_index INTEGER NOT NULL,
	pieces TEXT NOT NULL,
	at TEXT,
	FOREIGN KEY(doc_id) REFERENCES docs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_history_doc ON history(doc_id);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// UpsertProject inserts or updates a project
func (s *sqliteStore) UpsertProject(ctx context.Context, p store.Project) error {
	if p.ID == "" {
		return fmt.Errorf("upsert project: %w", internalerr.ErrInvalidInput)
	}
	cats, err := json.Marshal(p.Categories)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, categories, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, categories=excluded.categories`,
		p.ID, p.Name, string(cats), p.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// GetProject returns a project by ID
func (s *sqliteStore) GetProject(ctx context.Context, id string) (store.Project, error) {
	var p store.Project
	var cats, createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, categories, created_at FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &cats, &createdAt)
	if err == sql.ErrNoRows {
		return store.Project{}, fmt.Errorf("project %s: %w", id, internalerr.ErrNotFound)
	}
	if err != nil {
		return store.Project{}, err
	}
	if err := json.Unmarshal([]byte(cats), &p.Categories); err != nil {
		return store.Project{}, err
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return p, nil
}

// InsertDoc stores a new document
func (s *sqliteStore) InsertDoc(ctx context.Context, d store.Doc) error {
	if d.ID == "" {
		return fmt.Errorf("insert doc: %w", internalerr.ErrInvalidInput)
	}
	ids, err := json.Marshal(d.Identifiers)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO docs (id, project_id, original, reference, identifiers, saved, weight, rank, ord)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ProjectID, d.Original, d.Reference, string(ids),
		boolToInt(d.Saved), d.Weight, d.Rank, d.Order)
	return err
}

// GetDoc returns a document by ID
func (s *sqliteStore) GetDoc(ctx context.Context, id string) (store.Doc, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, original, reference, identifiers, saved, weight, rank, ord
		FROM docs WHERE id = ?`, id)
	d, err := scanDoc(row)
	if err == sql.ErrNoRows {
		return store.Doc{}, fmt.Errorf("doc %s: %w", id, internalerr.ErrNotFound)
	}
	return d, err
}

// ListDocs returns a project's documents in insertion order
func (s *sqliteStore) ListDocs(ctx context.Context, projectID string) ([]store.Doc, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, original, reference, identifiers, saved, weight, rank, ord
		FROM docs WHERE project_id = ? ORDER BY ord`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Doc
	for rows.Next() {
		d, err := scanDoc(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SetDocSaved updates a document's saved flag
func (s *sqliteStore) SetDocSaved(ctx context.Context, docID string, saved bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE docs SET saved = ? WHERE id = ?`, boolToInt(saved), docID)
	if err != nil {
		return err
	}
	return requireRow(res, docID)
}

// SetDocRank updates a document's weight and rank
func (s *sqliteStore) SetDocRank(ctx context.Context, docID string, weight float64, rank int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE docs SET weight = ?, rank = ? WHERE id = ?`, weight, rank, docID)
	if err != nil {
		return err
	}
	return requireRow(res, docID)
}

// SaveTokens stores a document's initial token sequence
func (s *sqliteStore) SaveTokens(ctx context.Context, docID string, tokens []store.Token) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertTokens(ctx, tx, docID, tokens); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceDocTokens swaps a document's complete token set in one
// transaction
func (s *sqliteStore) ReplaceDocTokens(ctx context.Context, docID string, tokens []store.Token) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tokens WHERE doc_id = ?`, docID); err != nil {
		return err
	}
	if err := insertTokens(ctx, tx, docID, tokens); err != nil {
		return err
	}
	return tx.Commit()
}

func insertTokens(ctx context.Context, tx *sql.Tx, docID string, tokens []store.Token) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tokens (id, doc_id, idx, value, tags, replacement, suggestion, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range tokens {
		tags, err := json.Marshal(t.Tags)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, t.ID, docID, t.Index, t.Value,
			string(tags), t.Replacement, t.Suggestion, boolToInt(t.Active)); err != nil {
			return err
		}
	}
	return nil
}

// GetDocTokens returns all of a document's tokens, active first by index
func (s *sqliteStore) GetDocTokens(ctx context.Context, docID string) ([]store.Token, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM docs WHERE id = ?`, docID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("doc %s: %w", docID, internalerr.ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, doc_id, idx, value, tags, replacement, suggestion, active
		FROM tokens WHERE doc_id = ? ORDER BY active DESC, idx, rowid`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTokens(rows)
}

// GetProjectTokens returns every token in a project
func (s *sqliteStore) GetProjectTokens(ctx context.Context, projectID string) ([]store.Token, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.doc_id, t.idx, t.value, t.tags, t.replacement, t.suggestion, t.active
		FROM tokens t JOIN docs d ON t.doc_id = d.id
		WHERE d.project_id = ? ORDER BY d.ord, t.active DESC, t.idx, t.rowid`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTokens(rows)
}

// GetToken returns a token by ID
func (s *sqliteStore) GetToken(ctx context.Context, tokenID string) (store.Token, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, doc_id, idx, value, tags, replacement, suggestion, active
		FROM tokens WHERE id = ?`, tokenID)
	t, err := scanToken(row)
	if err == sql.ErrNoRows {
		return store.Token{}, fmt.Errorf("token %s: %w", tokenID, internalerr.ErrNotFound)
	}
	return t, err
}

// UpdateToken overwrites a stored token
func (s *sqliteStore) UpdateToken(ctx context.Context, t store.Token) error {
	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE tokens SET idx = ?, value = ?, tags = ?, replacement = ?, suggestion = ?, active = ?
		WHERE id = ?`,
		t.Index, t.Value, string(tags), t.Replacement, t.Suggestion, boolToInt(t.Active), t.ID)
	if err != nil {
		return err
	}
	return requireRow(res, t.ID)
}

// UpdateTokensByValue applies fn to every matching active token in the
// project inside one transaction, so readers never observe a partial
// application
func (s *sqliteStore) UpdateTokensByValue(ctx context.Context, projectID, value string, fn func(*store.Token)) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT t.id, t.doc_id, t.idx, t.value, t.tags, t.replacement, t.suggestion, t.active
		FROM tokens t JOIN docs d ON t.doc_id = d.id
		WHERE d.project_id = ? AND t.value = ? AND t.active = 1`, projectID, value)
	if err != nil {
		return 0, err
	}
	tokens, err := scanTokens(rows)
	rows.Close()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE tokens SET tags = ?, replacement = ?, suggestion = ? WHERE id = ?`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i := range tokens {
		fn(&tokens[i])
		tags, err := json.Marshal(tokens[i].Tags)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, string(tags),
			tokens[i].Replacement, tokens[i].Suggestion, tokens[i].ID); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(tokens), nil
}

// AppendHistory appends retokenization history entries for a document
func (s *sqliteStore) AppendHistory(ctx context.Context, docID string, entries []store.HistoryEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO history (doc_id, kind, original_index, pieces, at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		pieces, err := json.Marshal(e.Pieces)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, docID, string(e.Kind), e.OriginalIndex,
			string(pieces), e.At.UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetHistory returns a document's history entries in append order
func (s *sqliteStore) GetHistory(ctx context.Context, docID string) ([]store.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, original_index, pieces, at FROM history
		WHERE doc_id = ? ORDER BY rowid`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.HistoryEntry
	for rows.Next() {
		var e store.HistoryEntry
		var kind, pieces, at string
		if err := rows.Scan(&kind, &e.OriginalIndex, &pieces, &at); err != nil {
			return nil, err
		}
		e.Kind = store.HistoryKind(kind)
		if err := json.Unmarshal([]byte(pieces), &e.Pieces); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClearHistory drops a document's history
func (s *sqliteStore) ClearHistory(ctx context.Context, docID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE doc_id = ?`, docID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDoc(row rowScanner) (store.Doc, error) {
	var d store.Doc
	var ids string
	var saved int
	err := row.Scan(&d.ID, &d.ProjectID, &d.Original, &d.Reference, &ids,
		&saved, &d.Weight, &d.Rank, &d.Order)
	if err != nil {
		return store.Doc{}, err
	}
	if err := json.Unmarshal([]byte(ids), &d.Identifiers); err != nil {
		return store.Doc{}, err
	}
	d.Saved = saved != 0
	return d, nil
}

func scanToken(row rowScanner) (store.Token, error) {
	var t store.Token
	var tags string
	var active int
	err := row.Scan(&t.ID, &t.DocID, &t.Index, &t.Value, &tags,
		&t.Replacement, &t.Suggestion, &active)
	if err != nil {
		return store.Token{}, err
	}
	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		return store.Token{}, err
	}
	t.Active = active != 0
	return t, nil
}

func scanTokens(rows *sql.Rows) ([]store.Token, error) {
	var out []store.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, internalerr.ErrNotFound)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
