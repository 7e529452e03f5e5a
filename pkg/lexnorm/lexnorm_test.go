package lexnorm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cognicore/lexnorm/pkg/lexnorm"
	"github.com/cognicore/lexnorm/pkg/lexnorm/annotate"
	"github.com/cognicore/lexnorm/pkg/lexnorm/export"
	"github.com/cognicore/lexnorm/pkg/lexnorm/ingest"
	"github.com/cognicore/lexnorm/pkg/lexnorm/internalerr"
	"github.com/cognicore/lexnorm/pkg/lexnorm/lexicon"
	"github.com/cognicore/lexnorm/pkg/lexnorm/query"
	"github.com/cognicore/lexnorm/pkg/lexnorm/store"
	"github.com/cognicore/lexnorm/pkg/lexnorm/store/memstore"
)

func newTestEngine(t *testing.T, words ...string) *lexnorm.Engine {
	t.Helper()
	set := lexicon.NewSet("english")
	for _, w := range words {
		set.Add(w)
	}
	col := lexicon.NewCollection()
	col.AddSet(set)

	return lexnorm.New(lexnorm.Options{
		Store:    memstore.New(),
		Builder:  ingest.NewBuilder(col, nil),
		Lexicons: col,
	})
}

func createProject(t *testing.T, e *lexnorm.Engine, texts ...string) (store.Project, []store.Doc) {
	t.Helper()
	ctx := context.Background()
	docs := make([]lexnorm.CorpusDoc, len(texts))
	for i, txt := range texts {
		docs[i] = lexnorm.CorpusDoc{Original: txt}
	}
	proj, err := e.CreateProject(ctx, lexnorm.CreateProjectRequest{Name: "test", Docs: docs})
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	page, err := e.Page(ctx, proj.ID, query.Filter{}, 0, 0)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	if len(page) != len(texts) {
		t.Fatalf("Project has %d docs, want %d", len(page), len(texts))
	}
	return proj, page
}

func docByOrder(docs []store.Doc, order int) store.Doc {
	for _, d := range docs {
		if d.Order == order {
			return d
		}
	}
	return store.Doc{}
}

func TestCreateProjectTokenizesAndRanks(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, "the", "cat")
	_, docs := createProject(t, e, "teh cat sat", "the cat")

	d0 := docByOrder(docs, 0)
	tokens, err := e.DocTokens(ctx, d0.ID)
	if err != nil {
		t.Fatalf("DocTokens failed: %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("Doc 0 has %d tokens, want 3", len(tokens))
	}
	if tokens[0].Value != "teh" || tokens[0].Index != 0 {
		t.Errorf("Token 0 = %q index %d", tokens[0].Value, tokens[0].Index)
	}
	if tokens[1].Value != "cat" || !tokens[1].Tags["english"] {
		t.Errorf("cat should be tagged english: %+v", tokens[1])
	}

	// Doc 0 still has candidates, doc 1 is fully in-vocabulary, so the
	// initial ranking puts doc 0 first.
	if d0.Rank != 0 {
		t.Errorf("Doc 0 rank %d, want 0", d0.Rank)
	}
	d1 := docByOrder(docs, 1)
	if d1.Weight != -1 {
		t.Errorf("Resolved doc weight %f, want -1 sentinel", d1.Weight)
	}
}

func TestCreateProjectRejectsEmptyCorpus(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.CreateProject(context.Background(), lexnorm.CreateProjectRequest{Name: "empty"})
	if !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestMergeAndExport(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, "hello", "world")
	_, docs := createProject(t, e, "helo wor ld")
	docID := docs[0].ID

	if err := e.MergeTokens(ctx, docID, [][]int{{1, 2}}); err != nil {
		t.Fatalf("MergeTokens failed: %v", err)
	}

	tokens, _ := e.DocTokens(ctx, docID)
	active := store.ActiveTokens(tokens)
	if len(active) != 2 || active[1].Value != "world" {
		t.Fatalf("Active after merge: %v", active)
	}

	exp, err := e.ExportDocument(ctx, docID)
	if err != nil {
		t.Fatalf("ExportDocument failed: %v", err)
	}
	wantOut := []string{"helo", "world", export.SlotPad}
	for i := range wantOut {
		if exp.Output[i] != wantOut[i] {
			t.Errorf("Output[%d] = %q, want %q", i, exp.Output[i], wantOut[i])
		}
	}
	if exp.Labels[1] != "english" {
		t.Errorf("Merged token label %q, want english", exp.Labels[1])
	}
}

func TestSplitThenAnnotate(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, "hello", "world")
	_, docs := createProject(t, e, "helloworld again")
	docID := docs[0].ID

	tokens, _ := e.DocTokens(ctx, docID)
	if err := e.SplitToken(ctx, docID, tokens[0].ID, "hello world"); err != nil {
		t.Fatalf("SplitToken failed: %v", err)
	}

	tokens, _ = e.DocTokens(ctx, docID)
	active := store.ActiveTokens(tokens)
	if len(active) != 3 {
		t.Fatalf("Active after split: %v", active)
	}
	if !active[0].Tags["english"] || !active[1].Tags["english"] {
		t.Error("Split pieces should be re-tagged against the lexicon")
	}
	if active[2].Value != "again" || active[2].Index != 2 {
		t.Errorf("Following token = %q index %d, want again index 2", active[2].Value, active[2].Index)
	}

	exp, err := e.ExportDocument(ctx, docID)
	if err != nil {
		t.Fatalf("ExportDocument failed: %v", err)
	}
	if exp.Output[0] != "hello world" || exp.Output[1] != "again" {
		t.Errorf("Export output %v", exp.Output)
	}
}

func TestApplyReplacementToAllAcrossDocs(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, "the")
	proj, docs := createProject(t, e,
		"teh cat saw teh dog",
		"teh end",
		"teh teh",
	)

	n, err := e.ApplyReplacementToAll(ctx, proj.ID, "teh", "the")
	if err != nil {
		t.Fatalf("ApplyReplacementToAll failed: %v", err)
	}
	if n != 5 {
		t.Errorf("Changed %d tokens, want 5", n)
	}

	for _, d := range docs {
		tokens, _ := e.DocTokens(ctx, d.ID)
		for _, tok := range tokens {
			if tok.Value == "teh" && tok.Replacement != "the" {
				t.Errorf("Token %s in doc %s missing replacement", tok.ID, d.ID)
			}
			if tok.Value != "teh" && tok.Replacement != "" {
				t.Errorf("Token %q should be untouched", tok.Value)
			}
		}
	}

	rep, err := e.Stats(ctx, proj.ID, 10)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if rep.Replaced != 5 {
		t.Errorf("Stats replaced %d, want 5", rep.Replaced)
	}
	for _, vc := range rep.TopCandidates {
		if vc.Value == "teh" {
			t.Error("teh should no longer be a candidate value")
		}
	}
}

func TestSaveDocumentRequiresAnnotation(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	_, docs := createProject(t, e, "wrld")
	docID := docs[0].ID

	err := e.SaveDocument(ctx, docID, true)
	if !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("Untouched doc: expected ErrInvalidInput, got %v", err)
	}

	tokens, _ := e.DocTokens(ctx, docID)
	if err := e.SetReplacement(ctx, tokens[0].ID, "world"); err != nil {
		t.Fatalf("SetReplacement failed: %v", err)
	}
	if err := e.SaveDocument(ctx, docID, true); err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}

	page, _ := e.Page(ctx, docs[0].ProjectID, query.Filter{}, 0, 0)
	if !page[0].Saved {
		t.Error("Doc should be saved")
	}

	// Unsaving is always allowed.
	if err := e.SaveDocument(ctx, docID, false); err != nil {
		t.Fatalf("Unsave failed: %v", err)
	}
}

func TestResetDocument(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, "hello")
	_, docs := createProject(t, e, "helo wor")
	docID := docs[0].ID

	if err := e.MergeTokens(ctx, docID, [][]int{{0, 1}}); err != nil {
		t.Fatalf("MergeTokens failed: %v", err)
	}
	tokens, _ := e.DocTokens(ctx, docID)
	if err := e.SetReplacement(ctx, tokens[0].ID, "helloworld"); err != nil {
		t.Fatalf("SetReplacement failed: %v", err)
	}
	if err := e.SaveDocument(ctx, docID, true); err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}

	if err := e.ResetDocument(ctx, docID); err != nil {
		t.Fatalf("ResetDocument failed: %v", err)
	}

	tokens, _ = e.DocTokens(ctx, docID)
	if len(tokens) != 2 {
		t.Fatalf("After reset: %d tokens, want 2 fresh ones", len(tokens))
	}
	for _, tok := range tokens {
		if !tok.Active || tok.Replacement != "" {
			t.Errorf("Reset token %+v should be fresh", tok)
		}
	}

	exp, err := e.ExportDocument(ctx, docID)
	if err != nil {
		t.Fatalf("ExportDocument after reset failed: %v", err)
	}
	if exp.Output[0] != "helo" || exp.Output[1] != "wor" {
		t.Errorf("Export after reset %v", exp.Output)
	}

	page, _ := e.Page(ctx, docs[0].ProjectID, query.Filter{}, 0, 0)
	if page[0].Saved {
		t.Error("Reset must clear the saved flag")
	}
}

func TestRunRankingReordersQueue(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, "the", "cat")
	proj, docs := createProject(t, e, "wrld wrld", "the cat", "wrld")

	d0 := docByOrder(docs, 0)
	if d0.Rank != 0 {
		t.Fatalf("Doc with most candidate mass should rank first, got %d", d0.Rank)
	}

	// Resolve "wrld" everywhere and re-rank: every doc collapses to the
	// sentinel and insertion order takes over.
	if _, err := e.ApplyReplacementToAll(ctx, proj.ID, "wrld", "world"); err != nil {
		t.Fatalf("ApplyReplacementToAll failed: %v", err)
	}
	if _, err := e.RunRanking(ctx, proj.ID); err != nil {
		t.Fatalf("RunRanking failed: %v", err)
	}

	page, _ := e.Page(ctx, proj.ID, query.Filter{}, 0, 0)
	for i, d := range page {
		if d.Order != i {
			t.Errorf("Queue position %d holds order %d, want insertion order", i, d.Order)
		}
		if d.Weight != -1 {
			t.Errorf("Doc order %d weight %f, want sentinel", d.Order, d.Weight)
		}
	}
}

func TestPageFilterAndPagination(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, "the")
	proj, _ := createProject(t, e, "aa bb", "cc dd", "the")

	saved := false
	page, err := e.Page(ctx, proj.ID, query.Filter{Saved: &saved, OnlyCandidates: true}, 0, 0)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("Filtered page has %d docs, want 2 (fully resolved doc excluded)", len(page))
	}

	page, _ = e.Page(ctx, proj.ID, query.Filter{}, 1, 1)
	if len(page) != 1 {
		t.Errorf("Offset/limit page has %d docs, want 1", len(page))
	}
	page, _ = e.Page(ctx, proj.ID, query.Filter{}, 99, 1)
	if len(page) != 0 {
		t.Errorf("Out-of-range offset should give empty page, got %d", len(page))
	}
}

func TestExportProject(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	proj, _ := createProject(t, e, "aa bb", "cc")

	exps, err := e.ExportProject(ctx, proj.ID)
	if err != nil {
		t.Fatalf("ExportProject failed: %v", err)
	}
	if len(exps) != 2 {
		t.Fatalf("Exported %d docs, want 2", len(exps))
	}
	if len(exps[0].Input) != 2 || len(exps[1].Input) != 1 {
		t.Errorf("Export inputs %v / %v", exps[0].Input, exps[1].Input)
	}
	for _, exp := range exps {
		if len(exp.Output) != len(exp.Input) || len(exp.Labels) != len(exp.Input) {
			t.Errorf("Doc %s alignment lengths differ", exp.DocID)
		}
	}
}

func TestRetagAfterLexiconChange(t *testing.T) {
	ctx := context.Background()

	set := lexicon.NewSet("english")
	col := lexicon.NewCollection()
	col.AddSet(set)
	builder := ingest.NewBuilder(col, nil)
	e := lexnorm.New(lexnorm.Options{Store: memstore.New(), Builder: builder, Lexicons: col})

	proj, docs := createProject(t, e, "hello wrld")

	// The lexicon learns "hello" after ingestion.
	set.Add("hello")
	res, err := e.Retag(ctx, proj.ID)
	if err != nil {
		t.Fatalf("Retag failed: %v", err)
	}
	if res.Processed != 1 || res.Updated != 1 {
		t.Errorf("Retag result %+v", res)
	}

	tokens, _ := e.DocTokens(ctx, docs[0].ID)
	if !tokens[0].Tags["english"] {
		t.Error("hello should be tagged after retag")
	}
	if tokens[1].Tags["english"] {
		t.Error("wrld should stay untagged")
	}
}

func TestSuggestCorrections(t *testing.T) {
	e := newTestEngine(t, "hello", "help", "world")

	got := e.SuggestCorrections("english", "hel", 10)
	if len(got) != 2 || got[0] != "hello" || got[1] != "help" {
		t.Errorf("SuggestCorrections = %v", got)
	}
	if e.SuggestCorrections("absent", "hel", 10) != nil {
		t.Error("Unknown category should suggest nothing")
	}
}

// hookStore lets a test run code at the start of a retokenization's
// read-modify-write window.
type hookStore struct {
	store.Store
	hook func()
}

func (h *hookStore) GetDocTokens(ctx context.Context, docID string) ([]store.Token, error) {
	if h.hook != nil {
		fn := h.hook
		h.hook = nil
		fn()
	}
	return h.Store.GetDocTokens(ctx, docID)
}

func TestBulkReplacementSurvivesConcurrentMerge(t *testing.T) {
	ctx := context.Background()
	set := lexicon.NewSet("english")
	col := lexicon.NewCollection()
	col.AddSet(set)
	hs := &hookStore{Store: memstore.New()}
	e := lexnorm.New(lexnorm.Options{
		Store:    hs,
		Builder:  ingest.NewBuilder(col, nil),
		Lexicons: col,
	})
	proj, docs := createProject(t, e, "aa bb cc teh")
	docID := docs[0].ID

	// Fire a bulk replacement while the merge holds the document lock:
	// it must wait for the merge to commit rather than land inside the
	// merge's stale token snapshot and be overwritten.
	var bulkErr error
	done := make(chan int, 1)
	hs.hook = func() {
		go func() {
			n, err := e.ApplyReplacementToAll(ctx, proj.ID, "teh", "the")
			bulkErr = err
			done <- n
		}()
		time.Sleep(50 * time.Millisecond)
	}

	if err := e.MergeTokens(ctx, docID, [][]int{{0, 1}}); err != nil {
		t.Fatalf("MergeTokens failed: %v", err)
	}
	n := <-done
	if bulkErr != nil {
		t.Fatalf("ApplyReplacementToAll failed: %v", bulkErr)
	}
	if n != 1 {
		t.Errorf("Changed %d tokens, want 1", n)
	}

	tokens, _ := e.DocTokens(ctx, docID)
	found := false
	for _, tok := range tokens {
		if tok.Active && tok.Value == "teh" {
			found = true
			if tok.Replacement != "the" {
				t.Errorf("teh replacement %q, want 'the' (bulk write lost to merge commit)", tok.Replacement)
			}
		}
	}
	if !found {
		t.Fatal("teh token should survive the merge of an unrelated group")
	}
}

// countingStore records how many writes reach the store.
type countingStore struct {
	store.Store
	writes int
}

func (c *countingStore) UpsertProject(ctx context.Context, p store.Project) error {
	c.writes++
	return c.Store.UpsertProject(ctx, p)
}

func (c *countingStore) InsertDoc(ctx context.Context, d store.Doc) error {
	c.writes++
	return c.Store.InsertDoc(ctx, d)
}

func (c *countingStore) SaveTokens(ctx context.Context, docID string, tokens []store.Token) error {
	c.writes++
	return c.Store.SaveTokens(ctx, docID, tokens)
}

func TestCreateProjectRejectsBeforeAnyWrite(t *testing.T) {
	ctx := context.Background()
	set := lexicon.NewSet("english")
	col := lexicon.NewCollection()
	col.AddSet(set)
	cs := &countingStore{Store: memstore.New()}
	e := lexnorm.New(lexnorm.Options{
		Store:    cs,
		Builder:  ingest.NewBuilder(col, nil),
		Lexicons: col,
	})

	_, err := e.CreateProject(ctx, lexnorm.CreateProjectRequest{
		Name: "broken",
		Docs: []lexnorm.CorpusDoc{
			{Original: "fine doc"},
			{Original: "   "},
			{Original: "also fine"},
		},
	})
	if !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Fatalf("Expected ErrInvalidInput, got %v", err)
	}
	if cs.writes != 0 {
		t.Errorf("Rejected request reached the store %d times, want no writes", cs.writes)
	}
}

func TestSuggestionLifecycleThroughEngine(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	_, docs := createProject(t, e, "wrld")
	docID := docs[0].ID

	tokens, _ := e.DocTokens(ctx, docID)
	id := tokens[0].ID

	if err := e.SuggestReplacement(ctx, id, "world"); err != nil {
		t.Fatalf("SuggestReplacement failed: %v", err)
	}
	tokens, _ = e.DocTokens(ctx, docID)
	if annotate.CurrentValue(tokens[0]) != "world" {
		t.Errorf("Display value %q, want suggestion", annotate.CurrentValue(tokens[0]))
	}

	if err := e.ConfirmSuggestion(ctx, id); err != nil {
		t.Fatalf("ConfirmSuggestion failed: %v", err)
	}
	tokens, _ = e.DocTokens(ctx, docID)
	if tokens[0].Replacement != "world" || tokens[0].Suggestion != "" {
		t.Errorf("After confirm: %+v", tokens[0])
	}

	if err := e.ClearToken(ctx, id); err != nil {
		t.Fatalf("ClearToken failed: %v", err)
	}
	tokens, _ = e.DocTokens(ctx, docID)
	if annotate.CurrentValue(tokens[0]) != "wrld" {
		t.Errorf("Display value %q after clear, want original", annotate.CurrentValue(tokens[0]))
	}
}
