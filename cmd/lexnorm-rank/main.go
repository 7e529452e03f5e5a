package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/cognicore/lexnorm/pkg/lexnorm"
	"github.com/cognicore/lexnorm/pkg/lexnorm/config"
	"github.com/cognicore/lexnorm/pkg/lexnorm/store/sqlite"
)

func main() {
	var (
		dbPath      = flag.String("db", "", "Database path (required)")
		projectPath = flag.String("project", "", "Project YAML path (required)")
		projectID   = flag.String("id", "", "Project ID (required)")
		top         = flag.Int("top", 20, "Number of queue entries to print")
	)
	flag.Parse()

	if *dbPath == "" || *projectPath == "" || *projectID == "" {
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

	res, err := engine.RunRanking(ctx, *projectID)
	if err != nil {
		log.Fatal("Ranking pass failed", "err", err)
	}
	log.Info("Ranking pass complete",
		"docs", len(res.Ranks), "candidate_values", res.CandidateCount)

	fmt.Printf("%-5s %-28s %s\n", "RANK", "DOC", "WEIGHT")
	for i, dr := range res.Ranks {
		if i >= *top {
			break
		}
		fmt.Printf("%-5d %-28s %.4f\n", dr.Rank, dr.DocID, dr.Weight)
	}

	report, err := engine.Stats(ctx, *projectID, 10)
	if err != nil {
		log.Fatal("Failed to compute stats", "err", err)
	}
	fmt.Printf("\nsaved %d/%d docs, %d tokens, %.1f%% candidates\n",
		report.SavedDocs, report.Docs, report.Tokens, report.CandidateRate*100)
	if len(report.TopCandidates) > 0 {
		fmt.Println("top candidates:")
		for _, vc := range report.TopCandidates {
			fmt.Printf("  %-20s %d\n", vc.Value, vc.Count)
		}
	}
}
