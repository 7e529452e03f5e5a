package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/cognicore/lexnorm/pkg/lexnorm/internalerr"
	"github.com/cognicore/lexnorm/pkg/lexnorm/store"
)

func TestProjectRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	p := store.Project{ID: "p1", Name: "demo", Categories: []string{"english"}}
	if err := s.UpsertProject(ctx, p); err != nil {
		t.Fatalf("UpsertProject failed: %v", err)
	}

	got, err := s.GetProject(ctx, "p1")
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if got.Name != "demo" {
		t.Errorf("Name %q, want demo", got.Name)
	}

	if _, err := s.GetProject(ctx, "absent"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := s.UpsertProject(ctx, store.Project{}); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("Empty ID: expected ErrInvalidInput, got %v", err)
	}
}

func TestDocOrderingAndFlags(t *testing.T) {
	ctx := context.Background()
	s := New()

	// Insert out of order; ListDocs sorts by insertion order.
	for _, d := range []store.Doc{
		{ID: "d2", ProjectID: "p1", Order: 1},
		{ID: "d1", ProjectID: "p1", Order: 0},
		{ID: "x1", ProjectID: "other", Order: 0},
	} {
		if err := s.InsertDoc(ctx, d); err != nil {
			t.Fatalf("InsertDoc failed: %v", err)
		}
	}

	docs, err := s.ListDocs(ctx, "p1")
	if err != nil {
		t.Fatalf("ListDocs failed: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "d1" || docs[1].ID != "d2" {
		t.Errorf("ListDocs = %v", docs)
	}

	if err := s.SetDocSaved(ctx, "d1", true); err != nil {
		t.Fatalf("SetDocSaved failed: %v", err)
	}
	if err := s.SetDocRank(ctx, "d1", 2.5, 0); err != nil {
		t.Fatalf("SetDocRank failed: %v", err)
	}
	d, _ := s.GetDoc(ctx, "d1")
	if !d.Saved || d.Weight != 2.5 || d.Rank != 0 {
		t.Errorf("Doc flags %+v", d)
	}

	if err := s.SetDocSaved(ctx, "absent", true); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func seedTokens(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	if err := s.InsertDoc(ctx, store.Doc{ID: "d1", ProjectID: "p1"}); err != nil {
		t.Fatalf("InsertDoc failed: %v", err)
	}
	tokens := []store.Token{
		{ID: "t0", DocID: "d1", Index: 0, Value: "helo", Active: true},
		{ID: "t1", DocID: "d1", Index: 1, Value: "teh", Active: true},
	}
	if err := s.SaveTokens(ctx, "d1", tokens); err != nil {
		t.Fatalf("SaveTokens failed: %v", err)
	}
}

func TestTokenStorage(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedTokens(t, s)

	tokens, err := s.GetDocTokens(ctx, "d1")
	if err != nil {
		t.Fatalf("GetDocTokens failed: %v", err)
	}
	if len(tokens) != 2 || tokens[0].ID != "t0" {
		t.Errorf("GetDocTokens = %v", tokens)
	}

	tok, err := s.GetToken(ctx, "t1")
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	tok.Replacement = "the"
	if err := s.UpdateToken(ctx, tok); err != nil {
		t.Fatalf("UpdateToken failed: %v", err)
	}
	tok, _ = s.GetToken(ctx, "t1")
	if tok.Replacement != "the" {
		t.Errorf("Replacement %q after update", tok.Replacement)
	}

	if err := s.UpdateToken(ctx, store.Token{ID: "absent"}); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestReplaceDocTokensDropsOldSet(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedTokens(t, s)

	if err := s.ReplaceDocTokens(ctx, "d1", []store.Token{
		{ID: "n0", DocID: "d1", Index: 0, Value: "helloteh", Active: true},
	}); err != nil {
		t.Fatalf("ReplaceDocTokens failed: %v", err)
	}

	if _, err := s.GetToken(ctx, "t0"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("Old token should be gone, got %v", err)
	}
	tokens, _ := s.GetDocTokens(ctx, "d1")
	if len(tokens) != 1 || tokens[0].ID != "n0" {
		t.Errorf("GetDocTokens = %v", tokens)
	}
}

func TestGetDocTokensOrdersActiveFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.InsertDoc(ctx, store.Doc{ID: "d1", ProjectID: "p1"}); err != nil {
		t.Fatalf("InsertDoc failed: %v", err)
	}
	if err := s.SaveTokens(ctx, "d1", []store.Token{
		{ID: "r0", DocID: "d1", Index: 0, Value: "old", Active: false},
		{ID: "a1", DocID: "d1", Index: 1, Value: "b", Active: true},
		{ID: "a0", DocID: "d1", Index: 0, Value: "a", Active: true},
	}); err != nil {
		t.Fatalf("SaveTokens failed: %v", err)
	}

	tokens, _ := s.GetDocTokens(ctx, "d1")
	if tokens[0].ID != "a0" || tokens[1].ID != "a1" || tokens[2].ID != "r0" {
		t.Errorf("Order = %s %s %s, want a0 a1 r0", tokens[0].ID, tokens[1].ID, tokens[2].ID)
	}
}

func TestUpdateTokensByValue(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedTokens(t, s)
	// Second doc in the same project plus a doc in another project.
	if err := s.InsertDoc(ctx, store.Doc{ID: "d2", ProjectID: "p1"}); err != nil {
		t.Fatalf("InsertDoc failed: %v", err)
	}
	if err := s.SaveTokens(ctx, "d2", []store.Token{
		{ID: "t2", DocID: "d2", Index: 0, Value: "teh", Active: true},
		{ID: "t3", DocID: "d2", Index: 1, Value: "teh", Active: false},
	}); err != nil {
		t.Fatalf("SaveTokens failed: %v", err)
	}
	if err := s.InsertDoc(ctx, store.Doc{ID: "x1", ProjectID: "other"}); err != nil {
		t.Fatalf("InsertDoc failed: %v", err)
	}
	if err := s.SaveTokens(ctx, "x1", []store.Token{
		{ID: "x0", DocID: "x1", Index: 0, Value: "teh", Active: true},
	}); err != nil {
		t.Fatalf("SaveTokens failed: %v", err)
	}

	n, err := s.UpdateTokensByValue(ctx, "p1", "teh", func(tok *store.Token) {
		tok.Replacement = "the"
	})
	if err != nil {
		t.Fatalf("UpdateTokensByValue failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Changed %d, want 2 (inactive and other-project tokens skipped)", n)
	}

	inactive, _ := s.GetToken(ctx, "t3")
	if inactive.Replacement != "" {
		t.Error("Inactive token must not change")
	}
	other, _ := s.GetToken(ctx, "x0")
	if other.Replacement != "" {
		t.Error("Other project's token must not change")
	}
}

func TestHistoryAppendAndClear(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedTokens(t, s)

	entries := []store.HistoryEntry{
		{Kind: store.HistoryMerge, OriginalIndex: 0},
		{Kind: store.HistorySplit, OriginalIndex: 1},
	}
	if err := s.AppendHistory(ctx, "d1", entries[:1]); err != nil {
		t.Fatalf("AppendHistory failed: %v", err)
	}
	if err := s.AppendHistory(ctx, "d1", entries[1:]); err != nil {
		t.Fatalf("AppendHistory failed: %v", err)
	}

	got, err := s.GetHistory(ctx, "d1")
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(got) != 2 || got[0].Kind != store.HistoryMerge || got[1].Kind != store.HistorySplit {
		t.Errorf("History = %v", got)
	}

	if err := s.ClearHistory(ctx, "d1"); err != nil {
		t.Fatalf("ClearHistory failed: %v", err)
	}
	got, _ = s.GetHistory(ctx, "d1")
	if len(got) != 0 {
		t.Errorf("History after clear = %v", got)
	}

	if err := s.AppendHistory(ctx, "absent", entries); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStoredTokensAreIsolatedCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedTokens(t, s)

	tok, _ := s.GetToken(ctx, "t0")
	tok.Value = "mutated"

	again, _ := s.GetToken(ctx, "t0")
	if again.Value != "helo" {
		t.Error("Mutating a returned token must not affect the store")
	}
}
