package main

import (
	"context"
	"flag"
	"os"

	"github.com/charmbracelet/log"

	"github.com/cognicore/lexnorm/internal/corpus"
	"github.com/cognicore/lexnorm/pkg/lexnorm"
	"github.com/cognicore/lexnorm/pkg/lexnorm/config"
	"github.com/cognicore/lexnorm/pkg/lexnorm/store/sqlite"
)

func main() {
	var (
		dbPath      = flag.String("db", "", "Database path (required)")
		projectPath = flag.String("project", "", "Project YAML path (required)")
		corpusPath  = flag.String("corpus", "", "Corpus file path (required)")
		format      = flag.String("format", "text", "Corpus format: text or jsonl")
		stripHTML   = flag.Bool("strip-html", false, "Strip HTML tags from corpus text")
	)
	flag.Parse()

	if *dbPath == "" || *projectPath == "" || *corpusPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()

	loader := config.Loader{Path: *projectPath}
	components, err := loader.Load()
	if err != nil {
		log.Fatal("Failed to load project configuration", "err", err)
	}

	opts := corpus.Options{StripHTML: *stripHTML}
	var docs []corpus.Doc
	switch *format {
	case "text":
		docs, err = corpus.LoadFromText(*corpusPath, opts)
	case "jsonl":
		docs, err = corpus.LoadFromJSONL(*corpusPath, opts)
	default:
		log.Fatal("Unknown corpus format", "format", *format)
	}
	if err != nil {
		log.Fatal("Failed to load corpus", "err", err)
	}
	log.Info("Corpus loaded", "docs", len(docs))

	st, err := sqlite.Open(ctx, *dbPath)
	if err != nil {
		log.Fatal("Failed to open database", "err", err)
	}

	engine := lexnorm.New(lexnorm.Options{
		Store:    st,
		Builder:  components.Builder,
		Lexicons: components.Lexicons,
	})
	defer engine.Close()

	req := lexnorm.CreateProjectRequest{Name: components.Project.Name}
	for _, d := range docs {
		req.Docs = append(req.Docs, lexnorm.CorpusDoc{
			Original:    d.Original,
			Reference:   d.Reference,
			Identifiers: d.Identifiers,
		})
	}

	proj, err := engine.CreateProject(ctx, req)
	if err != nil {
		log.Fatal("Failed to create project", "err", err)
	}

	report, err := engine.Stats(ctx, proj.ID, 10)
	if err != nil {
		log.Fatal("Failed to compute stats", "err", err)
	}

	log.Info("Project created",
		"id", proj.ID,
		"name", proj.Name,
		"docs", report.Docs,
		"tokens", report.Tokens,
		"vocab", report.VocabSize,
		"candidates", report.CandidateSize)
}
