package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kamusis/sentari/internal/diary"
	"github.com/kamusis/sentari/internal/embeddings"
	"github.com/kamusis/sentari/internal/metrics"
	"github.com/kamusis/sentari/internal/reply"
	"github.com/kamusis/sentari/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// Started at init by the cloud SDK pulled in through the genai provider.
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

// oneHot embeds every call into a new basis vector, so no two entries are
// similar and carry-in depends on labels alone.
type oneHot struct {
	mu    sync.Mutex
	next  int
	calls int
}

func (p *oneHot) ModelID() string { return "test:one-hot" }
func (p *oneHot) Dim() int        { return 64 }

func (p *oneHot) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := make([]float32, 64)
	v[p.next%64] = 1
	p.next++
	p.calls++
	return v, nil
}

// constant embeds every text to the same vector.
type constant struct{ dim int }

func (p constant) ModelID() string { return "test:constant" }
func (p constant) Dim() int        { return p.dim }

func (p constant) Embed(context.Context, string) ([]float32, error) {
	v := make([]float32, p.dim)
	for i := range v {
		v[i] = 1
	}
	return v, nil
}

// blocking waits for cancellation.
type blocking struct{}

func (blocking) ModelID() string { return "test:blocking" }
func (blocking) Dim() int        { return 1 }

func (blocking) Embed(ctx context.Context, _ string) ([]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// slow waits d before embedding, widening the window between the profile
// read and the commit.
type slow struct {
	constant
	d time.Duration
}

func (p slow) Embed(ctx context.Context, text string) ([]float32, error) {
	select {
	case <-time.After(p.d):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return p.constant.Embed(ctx, text)
}

// failingCommit rejects every Commit.
type failingCommit struct {
	*store.MemoryStore
}

var errDiskFull = errors.New("disk full")

func (failingCommit) Commit(context.Context, string, diary.HistoryEntry, *diary.Profile) error {
	return errDiskFull
}

type recordingSink struct {
	mu      sync.Mutex
	reports []metrics.Report
}

func (s *recordingSink) Record(_ context.Context, r metrics.Report) error {
	s.mu.Lock()
	s.reports = append(s.reports, r)
	s.mu.Unlock()
	return nil
}

// stepClock advances one second per read and is safe for concurrent use.
func stepClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newPipeline(t *testing.T, st store.Store, prov embeddings.Provider, opts Options) *Pipeline {
	t.Helper()
	if opts.Clock == nil {
		opts.Clock = stepClock()
	}
	p, err := New(st, prov, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestRun_EndToEndScenario(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	p := newPipeline(t, st, &oneHot{}, Options{})

	stress := []string{
		"I've been overwhelmed with work lately, but I'm determined to push through and finish strong.",
		"Stress is really building up these days, but I'm trying to stay focused and get things done.",
		"It's a tough week, and I'm feeling the pressure, but I know I have to keep moving forward.",
		"Lots on my plate right now, feeling a bit anxious, but I'm motivated to tackle it all.",
		"The workload is intense, and I'm starting to become sad.",
	}
	for i, text := range stress {
		res, err := p.Run(ctx, "alice", text)
		if err != nil {
			t.Fatalf("Run(%d): %v", i, err)
		}
		if i == 0 && res.CarryIn {
			t.Fatalf("first entry cannot carry in")
		}
	}

	sad, err := p.Run(ctx, "alice", "With everything going on, I feel sad and depressed.")
	if err != nil {
		t.Fatalf("Run(sad): %v", err)
	}
	if !sad.CarryIn {
		t.Fatalf("sad entry should carry in from the stress history")
	}
	if got := sad.Entry.Classified.Vibe; !diary.Contains(got, "sad") {
		t.Fatalf("sad entry vibes = %v", got)
	}
	if sad.ResponseText != "I hear you. Better days are coming! 🌅" || sad.Strategy != reply.StrategyDefault {
		t.Fatalf("sad reply = %q (%s)", sad.ResponseText, sad.Strategy)
	}
	if !sad.EmotionalFlip {
		t.Fatalf("sad entry leaves out the dominant vibe %q and should flip", "driven")
	}

	grateful, err := p.Run(ctx, "alice", "I'm grateful and appreciative because I feel amazing.")
	if err != nil {
		t.Fatalf("Run(grateful): %v", err)
	}
	if grateful.CarryIn {
		t.Fatalf("grateful entry shares nothing with the last five entries")
	}
	if grateful.ResponseText != "You're doing great! Keep shining! ✨" {
		t.Fatalf("grateful reply = %q", grateful.ResponseText)
	}

	if n, err := st.Count(ctx, "alice"); err != nil || n != 7 {
		t.Fatalf("Count = %d, %v; want 7", n, err)
	}
	prof, err := st.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if prof.DominantVibe != "driven" {
		t.Fatalf("DominantVibe = %q, want driven", prof.DominantVibe)
	}
	if got := prof.LastTheme; len(got) != 1 || got[0] != "technology" {
		t.Fatalf("LastTheme = %v", got)
	}
	recent, err := st.LoadRecent(ctx, "alice", 1)
	if err != nil || len(recent) != 1 || recent[0].ID != grateful.EntryID {
		t.Fatalf("newest stored entry = %v, %v", recent, err)
	}
}

func TestRun_ExcitedEntry(t *testing.T) {
	p := newPipeline(t, store.NewMemory(), &oneHot{}, Options{})
	res, err := p.Run(context.Background(), "bob", "I'm so excited about the new project launch!")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ResponseText != "That's amazing! Your energy is contagious! 🌟" {
		t.Fatalf("reply = %q", res.ResponseText)
	}
	if !res.Entry.Meta.HasFlag(diary.FlagExclamation) {
		t.Fatalf("flags = %v", res.Entry.Meta.PunctuationFlags)
	}
	if !diary.Contains(res.Entry.Classified.Vibe, "excited") || !diary.Contains(res.Entry.Classified.Theme, "productivity") {
		t.Fatalf("classified = %+v", res.Entry.Classified)
	}
	if len(res.Entry.Embedding) != 64 {
		t.Fatalf("embedding not stored: %d dims", len(res.Entry.Embedding))
	}
}

func TestRun_EmptyTextSkipsEmbedding(t *testing.T) {
	prov := &oneHot{}
	st := store.NewMemory()
	p := newPipeline(t, st, prov, Options{})

	res, err := p.Run(context.Background(), "carol", "   \n ")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if prov.calls != 0 {
		t.Fatalf("provider called %d times for empty text", prov.calls)
	}
	e := res.Entry
	if e.RawText != "" || e.Embedding != nil {
		t.Fatalf("unexpected entry %+v", e)
	}
	if e.Classified.Theme[0] != diary.DefaultTheme || e.Classified.Vibe[0] != diary.DefaultVibe {
		t.Fatalf("fallback labels missing: %+v", e.Classified)
	}
	if e.Meta.WordCount != 0 || e.Meta.PunctuationFlags[0] != diary.NoFlags {
		t.Fatalf("meta = %+v", e.Meta)
	}
	if res.ResponseText != reply.Fallback {
		t.Fatalf("reply = %q", res.ResponseText)
	}
}

func TestRun_CarryInBySimilarity(t *testing.T) {
	p := newPipeline(t, store.NewMemory(), constant{dim: 8}, Options{})
	ctx := context.Background()
	if _, err := p.Run(ctx, "dana", "I'm so excited about the new project launch!"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	res, err := p.Run(ctx, "dana", "With everything going on, I feel sad and depressed.")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.CarryIn {
		t.Fatalf("identical embeddings should carry in without label overlap")
	}
}

func TestRun_CommitFailureLeavesStateUntouched(t *testing.T) {
	mem := store.NewMemory()
	p := newPipeline(t, failingCommit{mem}, &oneHot{}, Options{})

	_, err := p.Run(context.Background(), "erin", "I'm so excited about the new project launch!")
	var ce *diary.CollaboratorError
	if !errors.As(err, &ce) || ce.Op != "save entry" || !errors.Is(err, errDiskFull) {
		t.Fatalf("expected save entry collaborator error, got %v", err)
	}
	if n, _ := mem.Count(context.Background(), "erin"); n != 0 {
		t.Fatalf("history changed: %d entries", n)
	}
	prof, _ := mem.Load(context.Background(), "erin")
	if prof.ThemeCount.Len() != 0 || prof.DominantVibe != diary.DefaultVibe {
		t.Fatalf("profile changed: %+v", prof)
	}
}

func TestRun_VectorLengthMismatchIsValidationError(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	first := newPipeline(t, mem, constant{dim: 4}, Options{})
	if _, err := first.Run(ctx, "finn", "hello there"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	second := newPipeline(t, mem, constant{dim: 8}, Options{})
	_, err := second.Run(ctx, "finn", "hello again")
	if !errors.Is(err, diary.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if n, _ := mem.Count(ctx, "finn"); n != 1 {
		t.Fatalf("failed run persisted an entry: count %d", n)
	}
}

func TestRun_TimeoutIsCollaboratorError(t *testing.T) {
	mem := store.NewMemory()
	p := newPipeline(t, mem, blocking{}, Options{Timeout: 20 * time.Millisecond})

	_, err := p.Run(context.Background(), "gail", "this will never embed")
	var ce *diary.CollaboratorError
	if !errors.As(err, &ce) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline collaborator error, got %v", err)
	}
	if n, _ := mem.Count(context.Background(), "gail"); n != 0 {
		t.Fatalf("timed out run persisted an entry")
	}
}

func TestRun_InvalidUser(t *testing.T) {
	p := newPipeline(t, store.NewMemory(), &oneHot{}, Options{})
	_, err := p.Run(context.Background(), "../etc", "hi")
	if !errors.Is(err, diary.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var ce *diary.CollaboratorError
	if errors.As(err, &ce) {
		t.Fatalf("validation errors must not be wrapped as collaborator errors")
	}
}

func TestRun_ProfileStrategyAfterThreshold(t *testing.T) {
	p := newPipeline(t, store.NewMemory(), &oneHot{}, Options{
		Policy: reply.Policy{ProfileAfter: 2, MaxChars: 55},
	})
	ctx := context.Background()
	var last *Result
	for i := 0; i < 3; i++ {
		res, err := p.Run(ctx, "hana", "I'm so excited about the new project launch!")
		if err != nil {
			t.Fatalf("Run(%d): %v", i, err)
		}
		want := reply.StrategyDefault
		if i >= 2 {
			want = reply.StrategyProfile
		}
		if res.Strategy != want {
			t.Fatalf("entry %d strategy = %s, want %s", i, res.Strategy, want)
		}
		last = res
	}
	if last.ResponseText != "You're really exploring this! Love the consistency 🔄" {
		t.Fatalf("profile reply = %q", last.ResponseText)
	}
}

func TestRun_SameUserAcrossSQLiteHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentari.db")
	ctx := context.Background()

	const perHandle = 6
	var wg sync.WaitGroup
	errs := make(chan error, 2*perHandle)
	for h := 0; h < 2; h++ {
		st, err := store.NewSQLite(path)
		if err != nil {
			t.Fatalf("NewSQLite: %v", err)
		}
		t.Cleanup(func() { _ = st.Close() })
		p := newPipeline(t, st, slow{constant: constant{dim: 4}, d: 20 * time.Millisecond}, Options{})

		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perHandle; i++ {
				if _, err := p.Run(ctx, "ivan", "I'm so excited about the new project launch!"); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Run: %v", err)
	}

	st, err := store.NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer st.Close()
	if c, _ := st.Count(ctx, "ivan"); c != 2*perHandle {
		t.Fatalf("Count = %d, want %d", c, 2*perHandle)
	}
	prof, err := st.Load(ctx, "ivan")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := prof.VibeCount.Get("excited"); got != 2*perHandle {
		t.Fatalf("excited count = %d, want %d (lost update)", got, 2*perHandle)
	}
}

func TestRun_ConcurrentSameUser(t *testing.T) {
	mem := store.NewMemory()
	p := newPipeline(t, mem, &oneHot{}, Options{})
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Run(ctx, "ivan", "I'm so excited about the new project launch!"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Run: %v", err)
	}

	if c, _ := mem.Count(ctx, "ivan"); c != n {
		t.Fatalf("Count = %d, want %d", c, n)
	}
	prof, err := mem.Load(ctx, "ivan")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := prof.VibeCount.Get("excited"); got != n {
		t.Fatalf("excited count = %d, want %d (lost update)", got, n)
	}
	if got := prof.ThemeCount.Get("productivity"); got != n {
		t.Fatalf("productivity count = %d, want %d", got, n)
	}
	if p.locks.len() != 0 {
		t.Fatalf("user locks leaked: %d", p.locks.len())
	}
}

func TestRun_MetricsAndTrace(t *testing.T) {
	sink := &recordingSink{}
	core, logs := observer.New(zapcore.DebugLevel)
	p := newPipeline(t, store.NewMemory(), &oneHot{}, Options{Sink: sink, Logger: zap.New(core)})

	text := "I'm so excited about the new project launch!"
	res, err := p.Run(context.Background(), "jo", text)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sink.reports) != 1 || sink.reports[0].EntryID != res.EntryID || sink.reports[0].UserID != "jo" {
		t.Fatalf("sink reports = %+v", sink.reports)
	}
	stages := map[string]bool{}
	for _, s := range res.Metrics.Steps {
		stages[s.Stage] = true
	}
	for _, want := range []string{
		StageRawTextIn, StageEmbedding, StageFetchRecent, StageFetchProfile, StageCount,
		StageMetaExtract, StageParseEntry, StageCarryIn, StageContrastCheck,
		StageProfileUpdate, StageReply, StageSaveEntry, StagePublish,
	} {
		if !stages[want] {
			t.Errorf("missing stage %s", want)
		}
	}
	if res.Metrics.TotalAITokens != metrics.EstimateTokens(text) {
		t.Fatalf("ai tokens = %d", res.Metrics.TotalAITokens)
	}
	if res.Metrics.TotalLatency <= 0 || res.Metrics.TotalCost <= 0 {
		t.Fatalf("totals not computed: %+v", res.Metrics)
	}

	if logs.FilterMessage("carry-in evaluated").Len() != 1 {
		t.Fatalf("missing carry-in trace record")
	}
	if logs.FilterMessage("contrast evaluated").Len() != 1 {
		t.Fatalf("missing contrast trace record")
	}
	if logs.FilterMessage("entry processed").Len() != 1 {
		t.Fatalf("missing run summary")
	}
}

func TestResult_Published(t *testing.T) {
	p := newPipeline(t, store.NewMemory(), &oneHot{}, Options{NewID: func() string { return "entry-1" }})
	res, err := p.Run(context.Background(), "kim", "Just a quiet day.")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	b, err := json.Marshal(res.Published())
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got["entryId"] != "entry-1" || got["responseText"] != res.ResponseText || got["carryIn"] != false {
		t.Fatalf("published = %s", b)
	}
}

func TestUserLocks_CancelWhileWaiting(t *testing.T) {
	l := newUserLocks()
	unlock, err := l.lock(context.Background(), "u")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.lock(ctx, "u"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline while waiting, got %v", err)
	}
	unlock()
	if l.len() != 0 {
		t.Fatalf("lock entries leaked: %d", l.len())
	}
}
