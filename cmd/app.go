package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kamusis/sentari/internal/analysis"
	"github.com/kamusis/sentari/internal/config"
	"github.com/kamusis/sentari/internal/embeddings"
	"github.com/kamusis/sentari/internal/metrics"
	"github.com/kamusis/sentari/internal/pipeline"
	"github.com/kamusis/sentari/internal/reply"
	"github.com/kamusis/sentari/internal/store"
)

// app bundles what the entry commands share. Close releases the store.
type app struct {
	cfg      *config.Config
	user     string
	store    store.Store
	provider embeddings.Provider
	pipeline *pipeline.Pipeline
}

// loadConfig loads sentari.yaml, telling the user how to create it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("cannot load config: %w\nRun 'sentari init' first.", err)
	}
	return cfg, nil
}

// resolveUser picks --user over the configured default.
func resolveUser(cfg *config.Config) (string, error) {
	user := flagUser
	if user == "" {
		user = cfg.User
	}
	if user == "" {
		user = config.DefaultUser
	}
	if err := store.ValidateUserID(user); err != nil {
		return "", err
	}
	return user, nil
}

// openStore opens the configured backend.
func openStore(cfg *config.Config) (store.Store, error) {
	st, err := store.Open(cfg.Store, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s store in %s: %w", cfg.Store, cfg.DataDir, err)
	}
	return st, nil
}

// openProvider builds the embeddings provider from env and ~/.sentari/.env.
func openProvider(ctx context.Context) (embeddings.Provider, error) {
	embCfg, err := embeddings.LoadConfig()
	if err != nil {
		return nil, err
	}
	return embeddings.NewFromConfig(ctx, embCfg)
}

// loadClassifier uses rules_file when configured, else the built-in tables.
func loadClassifier(cfg *config.Config) (*analysis.Classifier, error) {
	if cfg.RulesFile == "" {
		return analysis.NewClassifier(nil)
	}
	rules, err := analysis.LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	return analysis.NewClassifier(rules)
}

// metricsSink logs every report and also appends it to metrics_file when set.
func metricsSink(cfg *config.Config) metrics.Sink {
	sinks := metrics.MultiSink{metrics.LogSink{Logger: logger}}
	if cfg.MetricsFile != "" {
		sinks = append(sinks, metrics.NewFileSink(cfg.MetricsFile))
	}
	return sinks
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	user, err := resolveUser(cfg)
	if err != nil {
		return nil, err
	}
	classifier, err := loadClassifier(cfg)
	if err != nil {
		return nil, err
	}
	prov, err := openProvider(ctx)
	if err != nil {
		return nil, err
	}
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	p, err := pipeline.New(st, prov, pipeline.Options{
		Window:     cfg.RecentWindow,
		Threshold:  cfg.CarryInThreshold,
		Policy:     reply.Policy{ProfileAfter: cfg.ProfileReplyAfter, MaxChars: cfg.ReplyMaxChars},
		Timeout:    cfg.Timeout,
		Classifier: classifier,
		Logger:     logger,
		Sink:       metricsSink(cfg),
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return &app{cfg: cfg, user: user, store: st, provider: prov, pipeline: p}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// readText joins args, or reads all of r when there are none.
func readText(args []string, r io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("cannot read entry from stdin: %w", err)
	}
	return string(b), nil
}
