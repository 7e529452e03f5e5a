// Command lexnorm-annotate is an interactive annotation shell: it pages
// through the rank-ordered document queue and applies replacements,
// tags, splits, and merges against a project database.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/peterh/liner"

	"github.com/cognicore/lexnorm/pkg/lexnorm"
	"github.com/cognicore/lexnorm/pkg/lexnorm/annotate"
	"github.com/cognicore/lexnorm/pkg/lexnorm/config"
	"github.com/cognicore/lexnorm/pkg/lexnorm/query"
	"github.com/cognicore/lexnorm/pkg/lexnorm/store/sqlite"
)

const (
	historyFile = ".lexnorm_history"
	prompt      = "lexnorm> "
)

const helpText = `
Commands:
  docs [page]                     list documents by rank (filtered page)
  show <doc>                      print a document's token sequence
  replace <token> <value>         set a confirmed replacement
  suggest <token> <value>         record a suggestion
  confirm <token>                 promote suggestion to replacement
  clear <token>                   drop replacement and suggestion
  tag <token> <category> <t|f>    set a category flag
  all <value> <replacement>       replace every matching token
  propagate <value> <replacement> suggest on every matching token
  merge <doc> <i> <j> [..]        merge adjacent token indices
  split <doc> <token> <text..>    split a token on whitespace
  save <doc>                      mark a document saved
  reset <doc>                     rebuild a document from its original
  rank                            re-run the ranking pass
  stats                           print progress metrics
  complete <prefix>               lexicon completions for a prefix
  quit                            exit
`

type session struct {
	engine    *lexnorm.Engine
	projectID string
	settings  Settings
}

func main() {
	var (
		dbPath       = flag.String("db", "", "Database path (required)")
		projectPath  = flag.String("project", "", "Project YAML path (required)")
		projectID    = flag.String("id", "", "Project ID (required)")
		settingsPath = flag.String("settings", "", "TOML settings file (optional)")
	)
	flag.Parse()

	if *dbPath == "" || *projectPath == "" || *projectID == "" {
		flag.Usage()
		os.Exit(2)
	}

	settings, err := loadSettings(*settingsPath)
	if err != nil {
		log.Fatal("Failed to load settings", "err", err)
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

	sess := &session{engine: engine, projectID: *projectID, settings: settings}

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	histPath := filepath.Join(os.TempDir(), historyFile)
	if f, err := os.Open(histPath); err == nil {
		ln.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			ln.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Println("lexnorm annotation shell. Type 'help' for commands, Ctrl+D to exit.")

	for {
		line, err := ln.Prompt(prompt)
		if err == io.EOF {
			fmt.Println()
			return
		}
		if err == liner.ErrPromptAborted {
			continue
		}
		if err != nil {
			log.Error("Read failed", "err", err)
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ln.AppendHistory(line)

		if line == "quit" || line == "exit" {
			return
		}
		if err := sess.dispatch(ctx, line); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func (s *session) dispatch(ctx context.Context, line string) error {
	args := strings.Fields(line)
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "help":
		fmt.Print(helpText)
		return nil
	case "docs":
		page := 0
		if len(rest) > 0 {
			page, _ = strconv.Atoi(rest[0])
		}
		return s.listDocs(ctx, page)
	case "show":
		if len(rest) != 1 {
			return fmt.Errorf("usage: show <doc>")
		}
		return s.showDoc(ctx, rest[0])
	case "replace":
		if len(rest) != 2 {
			return fmt.Errorf("usage: replace <token> <value>")
		}
		return s.engine.SetReplacement(ctx, rest[0], rest[1])
	case "suggest":
		if len(rest) != 2 {
			return fmt.Errorf("usage: suggest <token> <value>")
		}
		return s.engine.SuggestReplacement(ctx, rest[0], rest[1])
	case "confirm":
		if len(rest) != 1 {
			return fmt.Errorf("usage: confirm <token>")
		}
		return s.engine.ConfirmSuggestion(ctx, rest[0])
	case "clear":
		if len(rest) != 1 {
			return fmt.Errorf("usage: clear <token>")
		}
		return s.engine.ClearToken(ctx, rest[0])
	case "tag":
		if len(rest) != 3 {
			return fmt.Errorf("usage: tag <token> <category> <t|f>")
		}
		on := rest[2] == "t" || rest[2] == "true"
		return s.engine.TagToken(ctx, rest[0], rest[1], on)
	case "all":
		if len(rest) != 2 {
			return fmt.Errorf("usage: all <value> <replacement>")
		}
		n, err := s.engine.ApplyReplacementToAll(ctx, s.projectID, rest[0], rest[1])
		if err != nil {
			return err
		}
		fmt.Printf("replaced %d tokens\n", n)
		return nil
	case "propagate":
		if len(rest) != 2 {
			return fmt.Errorf("usage: propagate <value> <replacement>")
		}
		n, err := s.engine.SuggestReplacementToAll(ctx, s.projectID, rest[0], rest[1])
		if err != nil {
			return err
		}
		fmt.Printf("suggested on %d tokens\n", n)
		return nil
	case "merge":
		if len(rest) < 3 {
			return fmt.Errorf("usage: merge <doc> <i> <j> [..]")
		}
		group := make([]int, 0, len(rest)-1)
		for _, a := range rest[1:] {
			i, err := strconv.Atoi(a)
			if err != nil {
				return fmt.Errorf("bad index %q", a)
			}
			group = append(group, i)
		}
		return s.engine.MergeTokens(ctx, rest[0], [][]int{group})
	case "split":
		if len(rest) < 3 {
			return fmt.Errorf("usage: split <doc> <token> <text..>")
		}
		return s.engine.SplitToken(ctx, rest[0], rest[1], strings.Join(rest[2:], " "))
	case "save":
		if len(rest) != 1 {
			return fmt.Errorf("usage: save <doc>")
		}
		return s.engine.SaveDocument(ctx, rest[0], true)
	case "reset":
		if len(rest) != 1 {
			return fmt.Errorf("usage: reset <doc>")
		}
		return s.engine.ResetDocument(ctx, rest[0])
	case "rank":
		res, err := s.engine.RunRanking(ctx, s.projectID)
		if err != nil {
			return err
		}
		fmt.Printf("ranked %d docs, %d candidate values\n", len(res.Ranks), res.CandidateCount)
		return nil
	case "stats":
		report, err := s.engine.Stats(ctx, s.projectID, s.settings.CLI.SuggestLimit)
		if err != nil {
			return err
		}
		fmt.Printf("docs %d (saved %d), tokens %d, vocab %d, candidates %d (%.1f%%), edits %d\n",
			report.Docs, report.SavedDocs, report.Tokens, report.VocabSize,
			report.CandidateSize, report.CandidateRate*100, report.Edits)
		for _, vc := range report.TopCandidates {
			fmt.Printf("  %-20s %d\n", vc.Value, vc.Count)
		}
		return nil
	case "complete":
		if len(rest) != 1 {
			return fmt.Errorf("usage: complete <prefix>")
		}
		terms := s.engine.SuggestCorrections(s.settings.CLI.SuggestCategory, rest[0], s.settings.CLI.SuggestLimit)
		if len(terms) == 0 {
			fmt.Println("no completions")
			return nil
		}
		fmt.Println(strings.Join(terms, " "))
		return nil
	default:
		return fmt.Errorf("unknown command %q, try 'help'", cmd)
	}
}

func (s *session) listDocs(ctx context.Context, page int) error {
	size := s.settings.CLI.PageSize
	docs, err := s.engine.Page(ctx, s.projectID, query.Filter{}, page*size, size)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("no documents on this page")
		return nil
	}
	for _, d := range docs {
		state := " "
		if d.Saved {
			state = "*"
		}
		fmt.Printf("%s %-4d %-28s %.3f  %s\n", state, d.Rank, d.ID, d.Weight, truncate(d.Original, 48))
	}
	return nil
}

func (s *session) showDoc(ctx context.Context, docID string) error {
	exp, err := s.engine.ExportDocument(ctx, docID)
	if err != nil {
		return err
	}
	tokens, err := s.engine.DocTokens(ctx, docID)
	if err != nil {
		return err
	}
	for _, t := range tokens {
		if !t.Active && !s.settings.CLI.ShowInactive {
			continue
		}
		marker := " "
		if !t.Active {
			marker = "x"
		}
		display := annotate.CurrentValue(t)
		extra := ""
		if display != t.Value {
			extra = " <- " + t.Value
		}
		fmt.Printf("%s %-3d %-26s %s%s\n", marker, t.Index, t.ID, display, extra)
	}
	fmt.Printf("aligned: %s\n", strings.Join(exp.Output, " "))
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
