package query

import (
	"testing"

	"github.com/cognicore/lexnorm/pkg/lexnorm/store"
)

func boolPtr(b bool) *bool { return &b }

func testDoc() (store.Doc, []store.Token) {
	doc := store.Doc{ID: "d1", Original: "helo wrld", Saved: false}
	tokens := []store.Token{
		{ID: "t0", Index: 0, Value: "helo", Active: true},
		{ID: "t1", Index: 1, Value: "wrld", Active: true},
	}
	return doc, tokens
}

func TestZeroFilterMatchesEverything(t *testing.T) {
	doc, tokens := testDoc()
	if !(Filter{}).Matches(doc, tokens) {
		t.Error("Zero filter must match any document")
	}
}

func TestSavedFilter(t *testing.T) {
	doc, tokens := testDoc()

	if (Filter{Saved: boolPtr(true)}).Matches(doc, tokens) {
		t.Error("Unsaved doc must not match saved=true")
	}
	if !(Filter{Saved: boolPtr(false)}).Matches(doc, tokens) {
		t.Error("Unsaved doc must match saved=false")
	}

	doc.Saved = true
	if !(Filter{Saved: boolPtr(true)}).Matches(doc, tokens) {
		t.Error("Saved doc must match saved=true")
	}
}

func TestOnlyCandidatesFilter(t *testing.T) {
	doc, tokens := testDoc()

	if !(Filter{OnlyCandidates: true}).Matches(doc, tokens) {
		t.Error("Doc with candidate tokens must match")
	}

	// Resolve everything.
	tokens[0].Tags = map[string]bool{"english": true}
	tokens[1].Replacement = "world"
	if (Filter{OnlyCandidates: true}).Matches(doc, tokens) {
		t.Error("Fully resolved doc must not match OnlyCandidates")
	}
}

func TestSearchFilter(t *testing.T) {
	doc, tokens := testDoc()

	if !(Filter{Search: "HELO"}).Matches(doc, tokens) {
		t.Error("Search is case-insensitive over the original text")
	}
	if (Filter{Search: "world"}).Matches(doc, tokens) {
		t.Error("'world' appears nowhere yet")
	}

	// A replacement makes the corrected form searchable.
	tokens[1].Replacement = "world"
	if !(Filter{Search: "world"}).Matches(doc, tokens) {
		t.Error("Search should see token display values")
	}

	// Inactive tokens are not searched.
	tokens[1].Active = false
	if (Filter{Search: "world"}).Matches(doc, tokens) {
		t.Error("Inactive tokens must be invisible to search")
	}
}

func TestCombinedFilter(t *testing.T) {
	doc, tokens := testDoc()
	f := Filter{Search: "helo", Saved: boolPtr(false), OnlyCandidates: true}
	if !f.Matches(doc, tokens) {
		t.Error("All clauses hold, doc should match")
	}

	doc.Saved = true
	if f.Matches(doc, tokens) {
		t.Error("Saved clause fails, doc should not match")
	}
}
