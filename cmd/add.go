package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kamusis/sentari/internal/metrics"
	"github.com/kamusis/sentari/internal/pipeline"
)

var (
	flagAddJSON    bool
	flagAddMetrics bool
)

var addCmd = &cobra.Command{
	Use:   "add [text...]",
	Short: "Process one diary entry and print the reply",
	Long: `Process one diary transcript: tag it, check it against recent entries and
the profile, store it, and print a short empathic reply.

The entry text is taken from the arguments, or from stdin when none are given:
  sentari add "Long day, but I finally shipped the release!"
  echo "Feeling calm tonight." | sentari add`,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().BoolVar(&flagAddJSON, "json", false, "Print the published payload {entryId, responseText, carryIn} as JSON")
	addCmd.Flags().BoolVar(&flagAddMetrics, "metrics", false, "Print the per-stage cost and latency breakdown")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	text, err := readText(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.pipeline.Run(ctx, a.user, text)
	if err != nil {
		return err
	}

	if flagAddJSON {
		if err := printJSON(res.Published()); err != nil {
			return err
		}
	} else {
		printEntryResult(res)
	}
	if flagAddMetrics {
		printMetrics(res.Metrics)
	}
	return nil
}

func printEntryResult(res *pipeline.Result) {
	c := res.Entry.Classified
	fmt.Printf("\n%s\n\n", res.ResponseText)
	printInfo("theme", joinOrDash(c.Theme))
	printInfo("vibe", joinOrDash(c.Vibe))
	printInfo("intent", c.Intent)
	printInfo("subtext", c.Subtext)
	if res.CarryIn {
		printOK("carry-in", "continues a recent entry")
	}
	if res.EmotionalFlip {
		printWarn("flip", "mood differs from your usual vibe")
	}
	printSkip("entry", res.EntryID)
}

func printMetrics(s metrics.Summary) {
	printSection("Cost & Latency")
	fmt.Printf("  Total latency:    %s\n", s.TotalLatency)
	fmt.Printf("  Total cost:       $%.4f\n", s.TotalCost)
	fmt.Printf("  AI tokens:        %d\n", s.TotalAITokens)
	fmt.Printf("  Processing units: %d\n", s.TotalProcessingUnits)
	printBullet("Step-by-step:")
	for _, step := range s.Steps {
		unit := "processing units"
		if step.Kind == metrics.KindAI {
			unit = "AI tokens"
		}
		fmt.Fprintf(os.Stdout, "  %-15s %10s | $%.4f | %d %s | %s (%s)\n",
			step.Stage, step.Latency, step.Cost, step.Units, unit, step.Description, step.Kind)
	}
}
