package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kamusis/sentari/internal/analysis"
	"github.com/kamusis/sentari/internal/diary"
	"github.com/kamusis/sentari/internal/search"
)

var (
	flagSearchKeyword  bool
	flagSearchSemantic bool
	flagSearchK        int
	flagSearchMinScore float64
	flagSearchDebug    bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search past entries by keyword or semantic similarity",
	Args:  cobra.MinimumNArgs(0),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().BoolVar(&flagSearchKeyword, "keyword", false, "Force keyword search only")
	searchCmd.Flags().BoolVar(&flagSearchSemantic, "semantic", false, "Force semantic search only (error if unavailable)")
	searchCmd.Flags().IntVar(&flagSearchK, "k", 5, "Number of results to show")
	searchCmd.Flags().Float64Var(&flagSearchMinScore, "min-score", 0, "Minimum cosine similarity score to include (semantic only)")
	searchCmd.Flags().BoolVar(&flagSearchDebug, "debug", false, "Print debug information")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}
	query := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	user, err := resolveUser(cfg)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.LoadRecent(context.Background(), user, 0)
	if err != nil {
		return fmt.Errorf("cannot load history: %w", err)
	}

	minScore := resolveSemanticMinScore(cmd)

	// Keyword-only mode.
	if flagSearchKeyword {
		printSearchResults(query, search.KeywordSearch(entries, query, flagSearchK))
		return nil
	}

	// Default: attempt semantic; fallback to keyword on failure.
	res, err := semanticSearch(entries, query, minScore)
	if err != nil {
		if flagSearchSemantic {
			return err
		}
		if flagSearchDebug {
			printInfo("", fmt.Sprintf("semantic search unavailable, falling back to keyword: %v", err))
		}
		res = search.KeywordSearch(entries, query, flagSearchK)
	}
	printSearchResults(query, res)
	return nil
}

func semanticSearch(entries []diary.HistoryEntry, query string, minScore float64) ([]search.Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	prov, err := openProvider(ctx)
	if err != nil {
		return nil, err
	}
	qv, err := prov.Embed(ctx, analysis.Normalize(query))
	if err != nil {
		return nil, err
	}
	results, err := search.SemanticSearch(entries, qv, minScore, flagSearchK)
	if err != nil {
		return nil, fmt.Errorf("embeddings model mismatch with stored entries (provider %s): %w", prov.ModelID(), err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no semantic results above min score %.3f", minScore)
	}
	if flagSearchDebug {
		printInfo("", fmt.Sprintf("semantic search used: %s", prov.ModelID()))
	}
	return results, nil
}

func resolveSemanticMinScore(cmd *cobra.Command) float64 {
	const defaultMinScore = 0.30

	// If user explicitly sets --min-score, always honor it.
	if cmd.Flags().Changed("min-score") {
		return flagSearchMinScore
	}

	// If user explicitly sets --k, do not apply any default filtering.
	if cmd.Flags().Changed("k") {
		return 0
	}

	// Otherwise apply a default threshold to avoid irrelevant tail results.
	return defaultMinScore
}

func printSearchResults(query string, results []search.Result) {
	fmt.Printf("\nsentari search %q\n\n", query)
	fmt.Printf("Results (%d found):\n", len(results))
	if len(results) == 0 {
		return
	}
	entries := make([]diary.HistoryEntry, len(results))
	scores := make([]string, len(results))
	for i, r := range results {
		entries[i] = r.Entry
		if r.Why == search.WhySemantic {
			scores[i] = fmt.Sprintf("[%.3f]", r.Score)
		}
	}
	printEntries(entries, scores)
}
