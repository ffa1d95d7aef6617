package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kamusis/sentari/internal/diary"
)

var (
	flagHistoryN    int
	flagHistoryJSON bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent entries, newest first",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&flagHistoryN, "limit", "n", 10, "Number of entries to show (0 for all)")
	historyCmd.Flags().BoolVar(&flagHistoryJSON, "json", false, "Print entries as JSON")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(_ *cobra.Command, _ []string) error {
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

	entries, err := st.LoadRecent(context.Background(), user, flagHistoryN)
	if err != nil {
		return fmt.Errorf("cannot load history: %w", err)
	}
	if flagHistoryJSON {
		if entries == nil {
			entries = []diary.HistoryEntry{}
		}
		return printJSON(entries)
	}

	printSection(fmt.Sprintf("History: %s (%d shown)", user, len(entries)))
	if len(entries) == 0 {
		printMiss("", "no entries yet")
		return nil
	}
	printEntries(entries, nil)
	return nil
}

// printEntries prints one block per entry; scores, when given, are shown
// next to the timestamp.
func printEntries(entries []diary.HistoryEntry, scores []string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for i, e := range entries {
		marks := ""
		if e.CarryIn {
			marks += " ↺"
		}
		if e.EmotionalFlip {
			marks += " ⇅"
		}
		score := ""
		if i < len(scores) {
			score = scores[i]
		}
		fmt.Fprintf(w, "\n  %d.\t%s\t%s%s\n", i+1, e.Timestamp.Local().Format("2006-01-02 15:04"), score, marks)
		fmt.Fprintf(w, "  - %s\n", oneLine(e.RawText))
		fmt.Fprintf(w, "    %s | %s\n", joinOrDash(e.Classified.Theme), joinOrDash(e.Classified.Vibe))
		if e.ResponseText != "" {
			fmt.Fprintf(w, "    → %s\n", e.ResponseText)
		}
	}
	_ = w.Flush()
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "(empty)"
	}
	return s
}
