package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kamusis/sentari/internal/importer"
)

var flagImportDryRun bool

var importCmd = &cobra.Command{
	Use:   "import <file-or-dir>",
	Short: "Replay transcript files through the pipeline, one entry per line",
	Long: `Replay diary transcripts through the pipeline in order.

Each non-empty line is one entry; lines starting with '#' are comments.
A directory is walked in lexical order, skipping hidden and temporary files.
Lines already present in the user's history are skipped, so importing the
same file twice is safe.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVar(&flagImportDryRun, "dry-run", false, "List the entries that would be imported without processing them")
	rootCmd.AddCommand(importCmd)
}

func runImport(_ *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	history, err := a.store.LoadRecent(ctx, a.user, 0)
	if err != nil {
		return fmt.Errorf("cannot load history: %w", err)
	}
	seen := make(map[string]bool, len(history))
	for _, e := range history {
		seen[importer.Fingerprint(e.RawText)] = true
	}

	res, err := importer.Collect(args[0], seen, importer.DefaultExcludes)
	if err != nil {
		return err
	}

	printSection(fmt.Sprintf("Import %s", args[0]))
	printInfo("", fmt.Sprintf("%d file(s), %d new entr(ies), %d already stored, %d comment(s), %d blank line(s)",
		res.Files, len(res.Entries), res.Duplicates, res.Comments, res.Blank))
	if len(res.Entries) == 0 {
		printSkip("", "nothing to import")
		return nil
	}

	printBullet("Entries:")
	var failed int
	for _, e := range res.Entries {
		loc := fmt.Sprintf("%s:%d", e.Source, e.Line)
		if flagImportDryRun {
			printSkip(loc, e.Text)
			continue
		}
		out, err := a.pipeline.Run(ctx, a.user, e.Text)
		if err != nil {
			printErr(loc, err.Error())
			failed++
			continue
		}
		printOK(loc, out.ResponseText)
	}

	fmt.Println()
	if failed > 0 {
		return fmt.Errorf("%d entr(ies) could not be imported", failed)
	}
	return nil
}
