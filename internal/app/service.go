// Package service drives a generation batch: it plans tasks, feeds them to a
// worker pool that runs one conversation per task, and persists the results.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/callgen/internal/adapters/mq/queue"
	workerpool "github.com/okian/callgen/internal/adapters/mq/worker"
	"github.com/okian/callgen/internal/adapters/repository"
	"github.com/okian/callgen/internal/domain/arbiter"
	"github.com/okian/callgen/internal/domain/dedupe"
	"github.com/okian/callgen/internal/domain/dialogue"
	"github.com/okian/callgen/internal/domain/model"
	"github.com/okian/callgen/internal/domain/persona"
	"github.com/okian/callgen/internal/domain/sampling"
	"github.com/okian/callgen/pkg/logger"
	"github.com/okian/callgen/pkg/metrics"
)

// Summary reports a finished run.
type Summary struct {
	RunID     string           `json:"run_id"`
	Planned   int              `json:"planned"`
	Skipped   int              `json:"skipped"`
	Completed int              `json:"completed"`
	Failed    int              `json:"failed"`
	Cancelled int              `json:"cancelled"`
	Elapsed   time.Duration    `json:"elapsed"`
	Quality   sampling.Quality `json:"-"`
	Stats     repository.Stats `json:"stats"`
}

// Service runs one batch. It is not reusable: create a new one per run.
type Service struct {
	mu sync.RWMutex

	completer Completer
	store     repository.Store

	// Configuration
	workerCount   int
	queueSize     int
	counts        map[model.Kind]int
	mode          string
	turns         map[model.Kind]TurnRange
	seed          int64
	seen          []string
	templates     persona.Templates
	policy        persona.Policy
	arbiterOpts   []arbiter.Option
	sessionOpts   []dialogue.Option
	samplerOpts   []sampling.Option
	scenarioPrior map[string]map[string]float64

	// State
	runID   string
	started time.Time
	running bool
	planned int
	skipped int
	queue   eventqueue.Queue
	pool    *workerpool.Pool
	records *recordingSink

	logger logger.Logger
}

// New constructs a Service. store receives every finished conversation.
func New(c Completer, store repository.Store, opts ...Option) *Service {
	s := &Service{
		completer:   c,
		store:       store,
		workerCount: min(runtime.NumCPU(), 3),
		queueSize:   256,
		counts:      map[model.Kind]int{model.KindFraud: 10},
		mode:        ModeStratified,
		turns:       map[model.Kind]TurnRange{},
		templates:   persona.Default(),
		policy:      persona.Policy{MinTurns: 6, StagnationWindow: 4, Strictness: "balanced"},
		runID:       uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	return s
}

// RunID identifies this batch in logs.
func (s *Service) RunID() string { return s.runID }

// Plan builds the task list for the configured counts, fraud first.
func (s *Service) Plan(_ context.Context) ([]model.Task, sampling.Quality) {
	sampler := s.sampler()
	planner := NewPlanner(sampler, s.mode, s.turns)

	var tasks []model.Task
	for _, kind := range []model.Kind{model.KindFraud, model.KindNormal} {
		tasks = append(tasks, planner.Plan(kind, s.counts[kind])...)
	}
	profiles := make([]model.Profile, len(tasks))
	for i := range tasks {
		profiles[i] = tasks[i].Profile
	}
	return tasks, sampler.Validate(profiles)
}

func (s *Service) sampler() *sampling.Sampler {
	opts := append([]sampling.Option(nil), s.samplerOpts...)
	if s.seed != 0 {
		opts = append(opts, sampling.WithSeed(s.seed))
	}
	if len(s.scenarioPrior) > 0 {
		opts = append(opts, sampling.WithScenarioWeights(s.scenarioPrior))
	}
	return sampling.New(opts...)
}

// Run plans the batch, skips tasks whose IDs were already written, and blocks
// until every remaining task has completed or failed. Cancelling ctx stops
// submission; conversations in flight end early and are not persisted.
func (s *Service) Run(ctx context.Context) (Summary, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return Summary{}, fmt.Errorf("run %s already started", s.runID)
	}
	s.running = true
	s.started = time.Now()
	s.mu.Unlock()

	log := s.logger
	log.Info(ctx, "starting generation run",
		logger.String("run_id", s.runID),
		logger.Int("fraud", s.counts[model.KindFraud]),
		logger.Int("normal", s.counts[model.KindNormal]),
		logger.String("mode", s.mode),
		logger.Int("workers", s.workerCount),
	)

	runner, err := s.runner()
	if err != nil {
		return Summary{}, err
	}

	tasks, quality := s.Plan(ctx)
	s.logPlan(ctx, log, tasks, quality)

	deduper := dedupe.NewInMemoryDeduper(dedupe.WithSeen(s.seen...))
	pending := tasks[:0]
	for _, t := range tasks {
		if deduper.SeenAndRecord(ctx, t.ID) {
			metrics.RecordTaskSkipped()
			s.skipped++
			continue
		}
		pending = append(pending, t)
	}
	metrics.UpdateTasksPlanned(len(pending))
	if s.skipped > 0 {
		log.Info(ctx, "resuming run", logger.Int("skipped", s.skipped), logger.Int("remaining", len(pending)))
	}

	queue := eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	records := &recordingSink{next: s.store}
	pool := workerpool.NewPool(s.workerCount, queue, runner, records)

	s.mu.Lock()
	s.planned = len(pending)
	s.queue, s.pool, s.records = queue, pool, records
	s.mu.Unlock()

	pool.Start(ctx)

	submitErr := s.submit(ctx, queue, deduper, pending)
	_ = queue.Close()

	// Workers return once the queue drains or ctx is cancelled.
	_ = pool.Wait(context.Background())

	summary := s.summary(quality)
	s.logSummary(ctx, log, summary)
	if submitErr != nil {
		return summary, submitErr
	}
	return summary, ctx.Err()
}

func (s *Service) submit(ctx context.Context, q eventqueue.Queue, d dedupe.Deduper, tasks []model.Task) error {
	for i, t := range tasks {
		if err := q.EnqueueWait(ctx, t); err != nil {
			for _, rest := range tasks[i:] {
				d.Unrecord(ctx, rest.ID)
			}
			return fmt.Errorf("submit %s: %w", t.ID, err)
		}
	}
	return nil
}

func (s *Service) runner() (*conversationRunner, error) {
	personas, err := persona.NewBuilder(s.templates)
	if err != nil {
		return nil, err
	}
	system, err := personas.Arbiter(s.policy)
	if err != nil {
		return nil, fmt.Errorf("arbiter prompt: %w", err)
	}
	aopts := append([]arbiter.Option{arbiter.WithSystemPrompt(system)}, s.arbiterOpts...)

	return &conversationRunner{
		completer: s.completer,
		evaluator: arbiter.New(s.completer, aopts...),
		personas:  personas,
		opts:      s.sessionOpts,
	}, nil
}

func (s *Service) summary(q sampling.Quality) Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := s.pool.Counts()
	return Summary{
		RunID:     s.runID,
		Planned:   s.planned,
		Skipped:   s.skipped,
		Completed: int(counts.Completed),
		Failed:    int(counts.Failed),
		Cancelled: int(counts.Cancelled),
		Elapsed:   time.Since(s.started),
		Quality:   q,
		Stats:     repository.Summarize(s.records.snapshot()),
	}
}

// GetStats returns run progress for the /stats endpoint.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"run_id":      s.runID,
		"running":     s.running,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"mode":        s.mode,
		"planned":     s.planned,
		"skipped":     s.skipped,
	}
	if s.pool != nil {
		counts := s.pool.Counts()
		stats["completed"] = counts.Completed
		stats["failed"] = counts.Failed
		stats["cancelled"] = counts.Cancelled
		stats["queueLength"] = s.queue.Len(context.Background())
		stats["elapsed"] = time.Since(s.started).Round(time.Second).String()
	}
	return stats
}

func (s *Service) logPlan(ctx context.Context, log logger.Logger, tasks []model.Task, q sampling.Quality) {
	profiles := make([]model.Profile, len(tasks))
	for i := range tasks {
		profiles[i] = tasks[i].Profile
	}
	dist := sampling.Analyze(profiles)
	log.Info(ctx, "sampling plan",
		logger.Int("tasks", len(tasks)),
		logger.Float64("quality", q.Score),
		logger.Int("realistic", q.Realistic),
		logger.Any("age_ranges", dist.AgeRange),
		logger.Any("awareness", dist.Awareness),
		logger.Any("occupations", topN(dist.Occupation, 5)),
	)
	for _, issue := range q.Issues {
		log.Warn(ctx, "unrealistic profile", logger.String("issue", issue))
	}
}

func (s *Service) logSummary(ctx context.Context, log logger.Logger, sum Summary) {
	rate := 0.0
	if done := sum.Completed + sum.Failed; done > 0 {
		rate = float64(sum.Completed) * 100 / float64(done)
	}
	log.Info(ctx, "generation run finished",
		logger.String("run_id", sum.RunID),
		logger.Int("completed", sum.Completed),
		logger.Int("failed", sum.Failed),
		logger.Int("cancelled", sum.Cancelled),
		logger.Int("skipped", sum.Skipped),
		logger.Float64("success_rate", rate),
		logger.Duration("elapsed", sum.Elapsed),
		logger.Any("terminators", sum.Stats.Terminators),
		logger.Any("scenarios", sum.Stats.Scenarios),
		logger.Any("age_ranges", sum.Stats.AgeRanges),
		logger.Float64("avg_turns", sum.Stats.AvgTurns),
	)
}

// topN keeps the n largest entries of m.
func topN(m map[string]int, n int) map[string]int {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	out := make(map[string]int, n)
	for i := 0; i < len(keys) && i < n; i++ {
		out[keys[i]] = m[keys[i]]
	}
	return out
}

// recordingSink forwards to the store and keeps records for run statistics.
type recordingSink struct {
	mu      sync.Mutex
	next    repository.Store
	records []model.Record
}

func (r *recordingSink) Save(ctx context.Context, d model.FullDialogue) error {
	if err := r.next.Save(ctx, d); err != nil {
		return err
	}
	r.mu.Lock()
	r.records = append(r.records, d.Record)
	r.mu.Unlock()
	return nil
}

func (r *recordingSink) SaveFailure(ctx context.Context, f model.Failure) error {
	return r.next.SaveFailure(ctx, f)
}

func (r *recordingSink) snapshot() []model.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Record(nil), r.records...)
}
