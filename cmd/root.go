package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kamusis/sentari/internal/config"
)

var (
	flagUser    string
	flagVerbose bool

	// logger is built in PersistentPreRunE and is never nil.
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:          "sentari",
	Short:        "Sentari: empathic replies and a living profile for voice-diary entries",
	SilenceUsage: true, // don't print usage on operational errors
	Long: `Sentari reads diary transcripts, tags each entry with themes, vibes and
intent, notices when a topic carries over from recent entries or the mood
flips, keeps a per-user profile and answers with a short empathic reply.

History and profiles live under ~/.sentari/data/.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level := config.DefaultLogLevel
		if cfg, err := config.LoadOrDefault(); err == nil && cfg.LogLevel != "" {
			level = cfg.LogLevel
		}
		l, err := newLogger(level, flagVerbose)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagUser, "user", "", "Diary owner (defaults to 'user' in sentari.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log pipeline stages and trace records at debug level")
}

// newLogger builds the production zap logger at level; verbose forces debug.
func newLogger(level string, verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log_level %q: %w", level, err)
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	l, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return l, nil
}

// Execute is called by main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
