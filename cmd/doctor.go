package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kamusis/sentari/internal/analysis"
	"github.com/kamusis/sentari/internal/config"
	"github.com/kamusis/sentari/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run pre-flight environment checks",
	Long: `Check that Sentari's config, rule tables, store and embeddings provider are
correctly set up. Run this command when something seems wrong, or before
filing a bug report.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// minFreeBytes is the free space below which doctor warns about the data dir.
const minFreeBytes = 64 << 20

func runDoctor(_ *cobra.Command, _ []string) error {
	allOK := true
	failD := func(format string, args ...any) {
		printErr("", fmt.Sprintf(format, args...))
		allOK = false
	}

	printSection("sentari doctor")
	fmt.Println()

	// ── Check 1: config file exists ───────────────────────────────────────────
	fmt.Println("[ Sentari directory ]")
	dir, err := config.SentariDir()
	if err != nil {
		failD("cannot determine home directory: %v", err)
	} else {
		cfgPath, _ := config.ConfigPath()
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			failD("~/.sentari/sentari.yaml not found — run 'sentari init' first")
		} else {
			printOK("", fmt.Sprintf("~/.sentari/ exists: %s", dir))
		}
	}
	fmt.Println()

	// ── Check 2: sentari.yaml is valid ────────────────────────────────────────
	fmt.Println("[ sentari.yaml ]")
	cfg, loadErr := config.Load()
	if loadErr != nil {
		failD("cannot load sentari.yaml: %v", loadErr)
	} else {
		printOK("", fmt.Sprintf("valid — store %s, window %d, threshold %.2f, profile replies after %d entries",
			cfg.Store, cfg.RecentWindow, cfg.CarryInThreshold, cfg.ProfileReplyAfter))
	}
	fmt.Println()

	// ── Check 3: rule tables ──────────────────────────────────────────────────
	fmt.Println("[ Rule tables ]")
	if loadErr == nil {
		var rules *analysis.Rules
		var err error
		source := "built-in"
		if cfg.RulesFile != "" {
			source = cfg.RulesFile
			rules, err = analysis.LoadRules(cfg.RulesFile)
		} else {
			rules, err = analysis.DefaultRules()
		}
		if err == nil {
			_, err = analysis.NewClassifier(rules)
		}
		if err != nil {
			failD("cannot load rules (%s): %v", source, err)
		} else {
			printOK("", fmt.Sprintf("%s: %d themes, %d vibes, %d intents, %d subtexts, %d traits, %d buckets",
				source, len(rules.Themes), len(rules.Vibes), len(rules.Intents), len(rules.Subtexts), len(rules.Traits), len(rules.Buckets)))
		}
	} else {
		printWarn("", "skipped (sentari.yaml not loaded)")
	}
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// ── Check 4: store opens and answers ──────────────────────────────────────
	fmt.Println("[ Store ]")
	var storedDim int
	if loadErr == nil {
		user, userErr := resolveUser(cfg)
		st, err := openStore(cfg)
		switch {
		case userErr != nil:
			failD("%v", userErr)
		case err != nil:
			failD("%v", err)
		default:
			defer st.Close()
			n, err := st.Count(ctx, user)
			if err != nil {
				failD("cannot count entries for %s: %v", user, err)
			} else {
				printOK(user, fmt.Sprintf("%d entr(ies) in %s store at %s", n, cfg.Store, cfg.DataDir))
			}
			if free, err := diskFree(cfg.DataDir); err == nil {
				if free < minFreeBytes {
					printWarn(cfg.DataDir, fmt.Sprintf("only %d MiB free", free>>20))
				} else {
					printOK(cfg.DataDir, fmt.Sprintf("%d MiB free", free>>20))
				}
			}
			if recent, err := st.LoadRecent(ctx, user, 1); err == nil && len(recent) == 1 {
				storedDim = len(recent[0].Embedding)
			}
			if locker, ok := st.(store.Locker); ok {
				unlock, err := locker.Lock(ctx, user)
				if err != nil {
					printWarn(user, fmt.Sprintf("user lock is held by another process: %v", err))
				} else {
					unlock()
					printOK(user, "user lock available")
				}
			}
		}
	} else {
		printWarn("", "skipped (sentari.yaml not loaded)")
	}
	fmt.Println()

	// ── Check 5: embeddings provider ──────────────────────────────────────────
	fmt.Println("[ Embeddings ]")
	prov, err := openProvider(ctx)
	if err != nil {
		failD("cannot configure embeddings provider: %v", err)
	} else {
		v, err := prov.Embed(ctx, "sentari doctor probe")
		switch {
		case err != nil:
			failD("[%s] probe failed: %v", prov.ModelID(), err)
		case storedDim > 0 && storedDim != len(v):
			failD("[%s] returns %d dims but stored entries have %d; carry-in will reject new entries",
				prov.ModelID(), len(v), storedDim)
		default:
			printOK(prov.ModelID(), fmt.Sprintf("%d dims", len(v)))
		}
	}
	fmt.Println()

	// ── Summary ───────────────────────────────────────────────────────────────
	fmt.Println("===================")
	if allOK {
		fmt.Println("✓  All checks passed. Sentari is ready to use.")
	} else {
		fmt.Fprintln(os.Stderr, "✗  One or more checks failed. See details above.")
		return fmt.Errorf("doctor found issues")
	}
	return nil
}
