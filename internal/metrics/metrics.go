// Package metrics records per-stage latency and estimated cost for each
// pipeline run and hands the result to a Sink.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// Kind classifies a stage for cost accounting.
type Kind string

const (
	KindAI       Kind = "ai"
	KindLocal    Kind = "local"
	KindDatabase Kind = "database"
)

// StageRecord is the cost and latency of one pipeline stage. Units holds AI
// tokens for KindAI stages and processing units otherwise.
type StageRecord struct {
	Stage       string        `json:"stage"`
	Latency     time.Duration `json:"latency_ns"`
	Cost        float64       `json:"cost"`
	Units       int           `json:"units"`
	Kind        Kind          `json:"kind"`
	Description string        `json:"description,omitempty"`

	start time.Time
}

// Summary aggregates the stage records of one run.
type Summary struct {
	TotalLatency         time.Duration `json:"total_latency_ns"`
	TotalCost            float64       `json:"total_cost"`
	TotalAITokens        int           `json:"total_ai_tokens"`
	TotalProcessingUnits int           `json:"total_processing_units"`
	Steps                []StageRecord `json:"steps"`
}

// Summarize totals records. total is the wall-clock latency of the whole
// run, which is less than the sum of stage latencies when stages overlap.
func Summarize(records []StageRecord, total time.Duration) Summary {
	s := Summary{TotalLatency: total, Steps: append([]StageRecord(nil), records...)}
	for _, r := range records {
		s.TotalCost += r.Cost
		if r.Kind == KindAI {
			s.TotalAITokens += r.Units
		} else {
			s.TotalProcessingUnits += r.Units
		}
	}
	return s
}

// Tracker collects stage records from concurrent stages.
type Tracker struct {
	mu      sync.Mutex
	now     func() time.Time
	records []StageRecord
}

// NewTracker returns a Tracker reading time from now (time.Now when nil).
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now}
}

// Start marks the beginning of a stage.
func (t *Tracker) Start() time.Time {
	return t.now()
}

// AI records a stage billed by tokens at pricePer1K.
func (t *Tracker) AI(stage, desc string, start time.Time, tokens int, pricePer1K float64) {
	t.add(StageRecord{
		Stage:       stage,
		Cost:        TokenCost(tokens, pricePer1K),
		Units:       tokens,
		Kind:        KindAI,
		Description: desc,
	}, start)
}

// Local records a rule-based stage.
func (t *Tracker) Local(stage string, op Operation, desc string, start time.Time, size int) {
	t.add(StageRecord{
		Stage:       stage,
		Cost:        InfrastructureCost(op),
		Units:       ProcessingUnits(op, size),
		Kind:        KindLocal,
		Description: desc,
	}, start)
}

// Database records a store read or write.
func (t *Tracker) Database(stage string, op Operation, desc string, start time.Time, size int) {
	t.add(StageRecord{
		Stage:       stage,
		Cost:        InfrastructureCost(op),
		Units:       ProcessingUnits(op, size),
		Kind:        KindDatabase,
		Description: desc,
	}, start)
}

func (t *Tracker) add(r StageRecord, start time.Time) {
	end := t.now()
	r.start = start
	r.Latency = end.Sub(start)
	if r.Latency < 0 {
		r.Latency = 0
	}
	t.mu.Lock()
	t.records = append(t.records, r)
	t.mu.Unlock()
}

// Records returns a copy of the recorded stages ordered by start time.
func (t *Tracker) Records() []StageRecord {
	t.mu.Lock()
	out := append([]StageRecord(nil), t.records...)
	t.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].start.Before(out[j].start) })
	return out
}
