package metrics

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-12 }

func TestEstimateTokens(t *testing.T) {
	tests := map[string]int{
		"":      0,
		"abc":   1,
		"abcd":  1,
		"abcde": 2,
		"héllo": 2,
	}
	for in, want := range tests {
		if got := EstimateTokens(in); got != want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestProcessingUnitsAndCost(t *testing.T) {
	tests := []struct {
		op    Operation
		size  int
		units int
		cost  float64
	}{
		{OpTextValidation, 25, 8, 0.0001},
		{OpDatabaseRead, 5, 16, 0.0002},
		{OpDatabaseWrite, 0, 20, 0.0004},
		{OpTextAnalysis, 9, 12, 0.0003},
		{OpPatternMatching, 40, 35, 0.0010},
		{OpSimilarityCalc, 4, 22, 0.0004},
		{OpDataUpdate, 6, 16, 0.0006},
		{OpResponsePackage, 55, 8, 0.0001},
		{Operation("unknown"), 1000, 10, 0.0001},
		{OpDatabaseRead, -3, 15, 0.0002},
	}
	for _, tt := range tests {
		if got := ProcessingUnits(tt.op, tt.size); got != tt.units {
			t.Errorf("ProcessingUnits(%s, %d) = %d, want %d", tt.op, tt.size, got, tt.units)
		}
		if got := InfrastructureCost(tt.op); !approx(got, tt.cost) {
			t.Errorf("InfrastructureCost(%s) = %v, want %v", tt.op, got, tt.cost)
		}
	}
	if got := TokenCost(2000, EmbeddingPricePer1K); !approx(got, 0.0002) {
		t.Fatalf("TokenCost = %v", got)
	}
}

func TestSummarize_SplitsTokensAndUnits(t *testing.T) {
	records := []StageRecord{
		{Stage: "EMBEDDING", Latency: 50 * time.Millisecond, Cost: 0.002, Units: 100, Kind: KindAI},
		{Stage: "PARSE_ENTRY", Latency: 10 * time.Millisecond, Cost: 0.001, Units: 30, Kind: KindLocal},
		{Stage: "SAVE_ENTRY", Latency: 5 * time.Millisecond, Cost: 0.0004, Units: 20, Kind: KindDatabase},
	}
	s := Summarize(records, 60*time.Millisecond)
	if s.TotalLatency != 60*time.Millisecond {
		t.Fatalf("TotalLatency = %s", s.TotalLatency)
	}
	if !approx(s.TotalCost, 0.0034) {
		t.Fatalf("TotalCost = %v", s.TotalCost)
	}
	if s.TotalAITokens != 100 || s.TotalProcessingUnits != 50 {
		t.Fatalf("tokens=%d units=%d", s.TotalAITokens, s.TotalProcessingUnits)
	}
	records[0].Stage = "mutated"
	if s.Steps[0].Stage != "EMBEDDING" {
		t.Fatalf("Summarize must copy records")
	}
}

func TestTracker_RecordsLatencyInStartOrder(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	tr := NewTracker(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	})

	// Each clock read advances 1ms: starts at 1ms and 2ms, ends at 3ms and 4ms.
	first := tr.Start()
	second := tr.Start()
	tr.Local("PARSE_ENTRY", OpPatternMatching, "classify", second, 8)
	tr.AI("EMBEDDING", "embed", first, 12, EmbeddingPricePer1K)

	got := tr.Records()
	if len(got) != 2 {
		t.Fatalf("got %d records", len(got))
	}
	if got[0].Stage != "EMBEDDING" || got[1].Stage != "PARSE_ENTRY" {
		t.Fatalf("records not in start order: %s, %s", got[0].Stage, got[1].Stage)
	}
	if got[0].Latency != 3*time.Millisecond || got[1].Latency != time.Millisecond {
		t.Fatalf("latencies = %s, %s", got[0].Latency, got[1].Latency)
	}
	if got[0].Kind != KindAI || got[0].Units != 12 {
		t.Fatalf("unexpected AI record: %+v", got[0])
	}
	if got[1].Units != 27 || !approx(got[1].Cost, 0.0010) {
		t.Fatalf("unexpected local record: %+v", got[1])
	}
}

func TestFileSink_AppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "metrics.jsonl")
	sink := NewFileSink(path)
	for _, id := range []string{"e1", "e2"} {
		r := Report{UserID: "u", EntryID: id, Summary: Summarize([]StageRecord{{Stage: "REPLY", Kind: KindLocal, Units: 5}}, time.Second)}
		if err := sink.Record(context.Background(), r); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var got struct {
			EntryID      string `json:"entry_id"`
			TotalLatency int64  `json:"total_latency_ns"`
			Steps        []struct {
				Stage string `json:"stage"`
			} `json:"steps"`
		}
		if err := json.Unmarshal(sc.Bytes(), &got); err != nil {
			t.Fatalf("line is not JSON: %v", err)
		}
		if got.TotalLatency != int64(time.Second) || len(got.Steps) != 1 || got.Steps[0].Stage != "REPLY" {
			t.Fatalf("unexpected line: %s", sc.Text())
		}
		ids = append(ids, got.EntryID)
	}
	if len(ids) != 2 || ids[0] != "e1" || ids[1] != "e2" {
		t.Fatalf("ids = %v", ids)
	}
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := LogSink{Logger: zap.New(core)}
	r := Report{UserID: "u", EntryID: "e", Summary: Summarize([]StageRecord{
		{Stage: "EMBEDDING", Kind: KindAI, Units: 3},
		{Stage: "REPLY", Kind: KindLocal, Units: 5},
	}, time.Millisecond)}
	if err := sink.Record(context.Background(), r); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if n := logs.FilterMessage("pipeline metrics").Len(); n != 1 {
		t.Fatalf("expected 1 summary line, got %d", n)
	}
	if n := logs.FilterMessage("pipeline stage").Len(); n != 2 {
		t.Fatalf("expected 2 stage lines, got %d", n)
	}
	entry := logs.FilterMessage("pipeline metrics").All()[0]
	if entry.ContextMap()["ai_tokens"] != int64(3) || entry.ContextMap()["processing_units"] != int64(5) {
		t.Fatalf("unexpected fields: %v", entry.ContextMap())
	}
}

type failingSink struct{ err error }

func (f failingSink) Record(context.Context, Report) error { return f.err }

func TestMultiSink_JoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	core, logs := observer.New(zapcore.InfoLevel)
	m := MultiSink{NopSink{}, nil, failingSink{boom}, LogSink{Logger: zap.New(core)}}
	err := m.Record(context.Background(), Report{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined boom, got %v", err)
	}
	if logs.Len() != 1 {
		t.Fatalf("sinks after a failure must still run, got %d logs", logs.Len())
	}
}
