package main

import (
	"context"
	"flag"
	"os"

	"github.com/charmbracelet/log"

	"github.com/cognicore/lexnorm/pkg/lexnorm"
	"github.com/cognicore/lexnorm/pkg/lexnorm/config"
	"github.com/cognicore/lexnorm/pkg/lexnorm/export"
	"github.com/cognicore/lexnorm/pkg/lexnorm/store/sqlite"
)

func main() {
	var (
		dbPath      = flag.String("db", "", "Database path (required)")
		projectPath = flag.String("project", "", "Project YAML path (required)")
		projectID   = flag.String("id", "", "Project ID (required)")
		docID       = flag.String("doc", "", "Export a single document instead of the project")
		format      = flag.String("format", "json", "Output format: json or msgpack")
		outPath     = flag.String("out", "", "Output file (default stdout)")
	)
	flag.Parse()

	if *dbPath == "" || *projectPath == "" || (*projectID == "" && *docID == "") {
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()

	loader := config.Loader{Path: *projectPath}
	components, err := loader.Load()
	if err != nil {
		log.Fatal("Failed to load project configuration", "err", err)
	}

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

	var docs []export.DocExport
	if *docID != "" {
		doc, err := engine.ExportDocument(ctx, *docID)
		if err != nil {
			log.Fatal("Export failed", "doc", *docID, "err", err)
		}
		docs = []export.DocExport{doc}
	} else {
		docs, err = engine.ExportProject(ctx, *projectID)
		if err != nil {
			log.Fatal("Export failed", "project", *projectID, "err", err)
		}
	}

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			log.Fatal("Failed to create output file", "err", err)
		}
		defer f.Close()
		out = f
	}

	switch *format {
	case "json":
		err = export.WriteJSON(out, docs)
	case "msgpack":
		err = export.WriteMsgpack(out, docs)
	default:
		log.Fatal("Unknown output format", "format", *format)
	}
	if err != nil {
		log.Fatal("Failed to write export", "err", err)
	}
	log.Info("Export complete", "docs", len(docs), "format", *format)
}
