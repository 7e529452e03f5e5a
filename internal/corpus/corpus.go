// Package corpus loads raw corpora for ingestion. It owns the
// preprocessing the engine expects from its caller: HTML stripping and
// whitespace collapsing, so no empty segments ever reach tokenization.
package corpus

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/net/html"
)

// Doc is one raw corpus document before ingestion.
type Doc struct {
	Original    string   `json:"original"`
	Reference   string   `json:"reference"`
	Identifiers []string `json:"identifiers"`
}

// Options controls corpus preprocessing.
type Options struct {
	StripHTML bool
}

// LoadFromText loads documents from a plain text file, one per line.
// Blank lines are skipped.
func LoadFromText(path string, opts Options) ([]Doc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}

	var docs []Doc
	for _, line := range strings.Split(string(data), "\n") {
		original := Normalize(line, opts)
		if original == "" {
			continue
		}
		docs = append(docs, Doc{Original: original})
	}
	return docs, nil
}

// LoadFromJSONL loads documents from a JSONL file. Malformed lines are
// skipped with a warning so one bad record never sinks an import.
func LoadFromJSONL(path string, opts Options) ([]Doc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}

	var docs []Doc
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var doc Doc
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			log.Printf("Warning: skipping malformed JSON at line %d in %s: %v", i+1, path, err)
			continue
		}
		doc.Original = Normalize(doc.Original, opts)
		doc.Reference = Normalize(doc.Reference, opts)
		if doc.Original == "" {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Normalize applies the preprocessing contract: optional HTML stripping,
// then collapsing all whitespace runs to single spaces.
func Normalize(s string, opts Options) string {
	if opts.StripHTML {
		s = stripHTML(s)
	}
	return strings.Join(strings.Fields(s), " ")
}

func stripHTML(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		// Fallback to string if parsing fails
		return s
	}

	var buf strings.Builder
	var extractText func(*html.Node)
	extractText = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
			buf.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extractText(c)
		}
	}
	extractText(doc)

	return strings.TrimSpace(buf.String())
}
