package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kamusis/sentari/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create ~/.sentari with a default config and data store",
	Long: `Initialize Sentari at ~/.sentari/.

Writes sentari.yaml (if missing), an empty .env template for embeddings
provider settings, and prepares the configured history store.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var flagInitStore string

func init() {
	initCmd.Flags().StringVar(&flagInitStore, "store", "", "Store backend for a new config: jsonl, sqlite or memory")
	rootCmd.AddCommand(initCmd)
}

func runInit(_ *cobra.Command, _ []string) error {
	// ── 1. Resolve ~/.sentari directory ───────────────────────────────────────
	dir, err := config.SentariDir()
	if err != nil {
		return err
	}
	cfgPath, err := config.ConfigPath()
	if err != nil {
		return err
	}

	// ── 2. Create ~/.sentari/ if it doesn't exist ─────────────────────────────
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	printOK("", fmt.Sprintf("Sentari directory ready: %s", dir))

	// ── 3. Write sentari.yaml if missing ──────────────────────────────────────
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg, err := config.DefaultConfig()
		if err != nil {
			return err
		}
		if flagInitStore != "" {
			cfg.Store = flagInitStore
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return err
		}
		printOK("", fmt.Sprintf("Config written: %s", cfgPath))
	} else {
		printSkip("", fmt.Sprintf("Config already exists: %s", cfgPath))
	}

	// ── 4. Write .env template ────────────────────────────────────────────────
	envPath, err := config.DotEnvPath()
	if err != nil {
		return err
	}
	if err := config.EnsureDotEnvTemplate(); err != nil {
		return err
	}
	printOK("", fmt.Sprintf("Embeddings settings: %s", envPath))

	// ── 5. Load final config and prepare the store ────────────────────────────
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	if err := st.Close(); err != nil {
		return fmt.Errorf("cannot close store: %w", err)
	}
	printOK("", fmt.Sprintf("%s store ready: %s", cfg.Store, cfg.DataDir))

	fmt.Println("\n✓  sentari init complete. Run 'sentari add \"...\"' to write your first entry.")
	return nil
}
