package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Report is one completed run as seen by a Sink.
type Report struct {
	Time    time.Time `json:"time"`
	UserID  string    `json:"user_id"`
	EntryID string    `json:"entry_id"`
	Summary
}

// Sink receives run reports. Sinks are observational: a failing sink never
// fails the run that produced the report.
type Sink interface {
	Record(ctx context.Context, r Report) error
}

// NopSink discards reports.
type NopSink struct{}

func (NopSink) Record(context.Context, Report) error { return nil }

// LogSink writes reports to a zap logger: one Info line per run and one
// Debug line per stage.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Record(_ context.Context, r Report) error {
	logger := s.Logger
	if logger == nil {
		return nil
	}
	logger.Info("pipeline metrics",
		zap.String("category", "cost_latency_log"),
		zap.String("user", r.UserID),
		zap.String("entry_id", r.EntryID),
		zap.Duration("latency", r.TotalLatency),
		zap.Float64("cost", r.TotalCost),
		zap.Int("ai_tokens", r.TotalAITokens),
		zap.Int("processing_units", r.TotalProcessingUnits),
	)
	for _, step := range r.Steps {
		logger.Debug("pipeline stage",
			zap.String("category", "cost_latency_log"),
			zap.String("stage", step.Stage),
			zap.String("kind", string(step.Kind)),
			zap.Duration("latency", step.Latency),
			zap.Float64("cost", step.Cost),
			zap.Int("units", step.Units),
		)
	}
	return nil
}

// FileSink appends one JSON line per report to a file.
type FileSink struct {
	path string
	mu   sync.Mutex
}

// NewFileSink returns a sink appending to path. The parent directory is
// created on first write.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

func (s *FileSink) Record(_ context.Context, r Report) error {
	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("cannot marshal metrics report: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("cannot create metrics dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("cannot open metrics file %s: %w", s.path, err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("cannot write metrics file %s: %w", s.path, err)
	}
	return f.Close()
}

// MultiSink fans a report out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Record(ctx context.Context, r Report) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
