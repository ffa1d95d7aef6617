// Package pipeline runs one diary entry through every stage: fetch context,
// analyse, detect continuity, update the profile, reply and commit.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kamusis/sentari/internal/analysis"
	"github.com/kamusis/sentari/internal/continuity"
	"github.com/kamusis/sentari/internal/diary"
	"github.com/kamusis/sentari/internal/embeddings"
	"github.com/kamusis/sentari/internal/metrics"
	"github.com/kamusis/sentari/internal/profile"
	"github.com/kamusis/sentari/internal/reply"
	"github.com/kamusis/sentari/internal/store"
)

// Stage names, in execution order. The four fetch stages run concurrently.
const (
	StageRawTextIn     = "RAW_TEXT_IN"
	StageEmbedding     = "EMBEDDING"
	StageFetchRecent   = "FETCH_RECENT"
	StageFetchProfile  = "FETCH_PROFILE"
	StageCount         = "COUNT"
	StageMetaExtract   = "META_EXTRACT"
	StageParseEntry    = "PARSE_ENTRY"
	StageCarryIn       = "CARRY_IN"
	StageContrastCheck = "CONTRAST_CHECK"
	StageProfileUpdate = "PROFILE_UPDATE"
	StageReply         = "REPLY"
	StageSaveEntry     = "SAVE_ENTRY"
	StagePublish       = "PUBLISH"
)

// DefaultWindow is how many recent entries carry-in looks at.
const DefaultWindow = 5

// Options tunes a Pipeline. Zero values select defaults.
type Options struct {
	Window     int
	Threshold  float64
	Policy     reply.Policy
	Timeout    time.Duration
	Classifier *analysis.Classifier
	Clock      func() time.Time
	NewID      func() string
	Logger     *zap.Logger
	Sink       metrics.Sink
}

// Pipeline is safe for concurrent use. Runs for the same user are
// serialized; runs for different users proceed in parallel.
type Pipeline struct {
	store      store.Store
	provider   embeddings.Provider
	classifier *analysis.Classifier
	detector   *continuity.Detector
	checker    *continuity.Checker
	policy     reply.Policy
	window     int
	timeout    time.Duration
	clock      func() time.Time
	newID      func() string
	logger     *zap.Logger
	sink       metrics.Sink
	locks      *userLocks
}

// Result is everything a run produced.
type Result struct {
	EntryID       string             `json:"entry_id"`
	ResponseText  string             `json:"response_text"`
	CarryIn       bool               `json:"carry_in"`
	EmotionalFlip bool               `json:"emotional_flip"`
	Strategy      reply.Strategy     `json:"strategy"`
	Entry         diary.HistoryEntry `json:"entry"`
	Profile       *diary.Profile     `json:"profile"`
	Metrics       metrics.Summary    `json:"metrics"`
}

// Published is the outward payload of a run.
type Published struct {
	EntryID      string `json:"entryId"`
	ResponseText string `json:"responseText"`
	CarryIn      bool   `json:"carryIn"`
}

// Published packages r for clients.
func (r *Result) Published() Published {
	return Published{EntryID: r.EntryID, ResponseText: r.ResponseText, CarryIn: r.CarryIn}
}

// New builds a pipeline over st and prov.
func New(st store.Store, prov embeddings.Provider, opts Options) (*Pipeline, error) {
	if st == nil {
		return nil, errors.New("pipeline needs a store")
	}
	if prov == nil {
		return nil, errors.New("pipeline needs an embeddings provider")
	}
	classifier := opts.Classifier
	if classifier == nil {
		c, err := analysis.NewClassifier(nil)
		if err != nil {
			return nil, err
		}
		classifier = c
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	window := opts.Window
	if window <= 0 {
		window = DefaultWindow
	}
	policy := opts.Policy
	if policy == (reply.Policy{}) {
		policy = reply.DefaultPolicy()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	sink := opts.Sink
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Pipeline{
		store:      st,
		provider:   prov,
		classifier: classifier,
		detector:   continuity.NewDetector(opts.Threshold, logger),
		checker:    continuity.NewChecker(logger),
		policy:     policy,
		window:     window,
		timeout:    opts.Timeout,
		clock:      clock,
		newID:      newID,
		logger:     logger,
		sink:       sink,
		locks:      newUserLocks(),
	}, nil
}

// fetched is the context gathered before analysis.
type fetched struct {
	embedding []float32
	recent    []diary.HistoryEntry
	profile   *diary.Profile
	count     int
}

// Run processes raw for userID and commits the new entry and profile
// together. Empty or whitespace-only text is valid and gets fallback
// labels. Nothing is persisted when Run returns an error.
func (p *Pipeline) Run(ctx context.Context, userID, raw string) (*Result, error) {
	if err := store.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	unlock, err := p.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	began := p.clock()
	tr := metrics.NewTracker(p.clock)
	log := p.logger.With(zap.String("user", userID))

	start := tr.Start()
	text := analysis.Normalize(raw)
	tr.Local(StageRawTextIn, metrics.OpTextValidation, "normalize transcript", start, len(text))

	f, err := p.fetch(ctx, tr, userID, text)
	if err != nil {
		log.Debug("fetch failed", zap.Error(err))
		return nil, err
	}

	start = tr.Start()
	meta := analysis.ExtractMetadata(text)
	tr.Local(StageMetaExtract, metrics.OpTextAnalysis, "top words, length, punctuation flags", start, meta.WordCount)

	start = tr.Start()
	parsed := p.classifier.Classify(text)
	tr.Local(StageParseEntry, metrics.OpPatternMatching, "rule-based classification", start, len(text))

	start = tr.Start()
	carryIn, err := p.detector.CarryIn(parsed, f.embedding, f.recent)
	if err != nil {
		return nil, err
	}
	tr.Local(StageCarryIn, metrics.OpSimilarityCalc, "theme/vibe overlap or cosine similarity", start, len(f.recent))

	start = tr.Start()
	flip := p.checker.Flip(parsed, f.profile)
	tr.Local(StageContrastCheck, metrics.OpSimilarityCalc, "new vibe vs dominant vibe", start, len(parsed.Vibe))

	start = tr.Start()
	next := profile.Aggregate(f.profile, parsed)
	tr.Local(StageProfileUpdate, metrics.OpDataUpdate, "fold entry into profile", start, len(parsed.Theme)+len(parsed.Vibe))

	start = tr.Start()
	rep := p.policy.Select(reply.Input{
		RawText:    text,
		Entry:      &parsed,
		Meta:       &meta,
		CarryIn:    carryIn,
		Flip:       flip,
		Profile:    f.profile,
		EntryIndex: f.count,
	})
	tr.Local(StageReply, metrics.OpPatternMatching, "select "+string(rep.Strategy)+" reply", start, len(rep.Text))

	entry := diary.HistoryEntry{
		ID:            p.newID(),
		UserID:        userID,
		RawText:       text,
		Classified:    parsed,
		Meta:          meta,
		Embedding:     f.embedding,
		Timestamp:     p.clock().UTC(),
		CarryIn:       carryIn,
		EmotionalFlip: flip,
		ResponseText:  rep.Text,
	}

	start = tr.Start()
	if err := ctx.Err(); err != nil {
		return nil, diary.Collaborator("save entry", err)
	}
	if err := p.store.Commit(ctx, userID, entry, next); err != nil {
		return nil, diary.Collaborator("save entry", err)
	}
	tr.Database(StageSaveEntry, metrics.OpDatabaseWrite, "append entry and save profile", start, len(text))

	start = tr.Start()
	res := &Result{
		EntryID:       entry.ID,
		ResponseText:  rep.Text,
		CarryIn:       carryIn,
		EmotionalFlip: flip,
		Strategy:      rep.Strategy,
		Entry:         entry.Clone(),
		Profile:       next,
	}
	tr.Local(StagePublish, metrics.OpResponsePackage, "package entryId, responseText, carryIn", start, len(rep.Text))

	records := tr.Records()
	for _, r := range records {
		log.Debug("stage done", zap.String("stage", r.Stage), zap.Duration("latency", r.Latency))
	}
	res.Metrics = metrics.Summarize(records, p.clock().Sub(began))
	if err := p.sink.Record(ctx, metrics.Report{
		Time:    entry.Timestamp,
		UserID:  userID,
		EntryID: entry.ID,
		Summary: res.Metrics,
	}); err != nil {
		log.Warn("cannot record metrics", zap.Error(err))
	}

	log.Info("entry processed",
		zap.String("entry_id", entry.ID),
		zap.Bool("carry_in", carryIn),
		zap.Bool("emotional_flip", flip),
		zap.String("strategy", string(rep.Strategy)),
		zap.Duration("latency", res.Metrics.TotalLatency))
	return res, nil
}

// lock takes the in-process lock for userID, then the store's cross-process
// lock when the store has one.
func (p *Pipeline) lock(ctx context.Context, userID string) (func(), error) {
	unlock, err := p.locks.lock(ctx, userID)
	if err != nil {
		return nil, diary.Collaborator("lock user", err)
	}
	locker, ok := p.store.(store.Locker)
	if !ok {
		return unlock, nil
	}
	unlockStore, err := locker.Lock(ctx, userID)
	if err != nil {
		unlock()
		return nil, diary.Collaborator("lock user", err)
	}
	return func() {
		unlockStore()
		unlock()
	}, nil
}

// fetch runs the embedding, history, profile and count lookups
// concurrently. The first failure cancels the rest.
func (p *Pipeline) fetch(ctx context.Context, tr *metrics.Tracker, userID, text string) (*fetched, error) {
	var f fetched
	g, gctx := errgroup.WithContext(ctx)

	if text != "" {
		g.Go(func() error {
			start := tr.Start()
			emb, err := p.provider.Embed(gctx, text)
			if err != nil {
				return diary.Collaborator("embed entry", err)
			}
			f.embedding = emb
			tr.AI(StageEmbedding, p.provider.ModelID(), start, metrics.EstimateTokens(text), metrics.EmbeddingPricePer1K)
			return nil
		})
	}
	g.Go(func() error {
		start := tr.Start()
		recent, err := p.store.LoadRecent(gctx, userID, p.window)
		if err != nil {
			return diary.Collaborator("load recent entries", err)
		}
		f.recent = recent
		tr.Database(StageFetchRecent, metrics.OpDatabaseRead, "last entries", start, len(recent))
		return nil
	})
	g.Go(func() error {
		start := tr.Start()
		prof, err := p.store.Load(gctx, userID)
		if err != nil {
			return diary.Collaborator("load profile", err)
		}
		f.profile = prof
		tr.Database(StageFetchProfile, metrics.OpDatabaseRead, "load or init profile", start, prof.ThemeCount.Len())
		return nil
	})
	g.Go(func() error {
		start := tr.Start()
		n, err := p.store.Count(gctx, userID)
		if err != nil {
			return diary.Collaborator("count entries", err)
		}
		f.count = n
		tr.Database(StageCount, metrics.OpDatabaseRead, "entry index", start, 0)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if f.profile == nil {
		f.profile = diary.NewProfile()
	}
	return &f, nil
}
