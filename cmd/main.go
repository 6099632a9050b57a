package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/callgen/internal/adapters/genai"
	"github.com/okian/callgen/internal/adapters/http/api"
	"github.com/okian/callgen/internal/adapters/repository"
	app "github.com/okian/callgen/internal/app"
	"github.com/okian/callgen/internal/config"
	"github.com/okian/callgen/internal/domain/arbiter"
	"github.com/okian/callgen/internal/domain/dialogue"
	"github.com/okian/callgen/internal/domain/model"
	"github.com/okian/callgen/internal/domain/persona"
	"github.com/okian/callgen/pkg/logger"
	"github.com/okian/callgen/pkg/metrics"
)

const (
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file (default: $CALLGEN_CONFIG)")
		ov         overrides
	)
	flag.BoolVar(&ov.resume, "resume", false, "Append to the output file and skip IDs it already holds")
	flag.IntVar(&ov.fraud, "fraud", -1, "Number of fraud conversations (overrides config)")
	flag.IntVar(&ov.normal, "normal", -1, "Number of benign conversations (overrides config)")
	flag.IntVar(&ov.total, "total", -1, "Total conversations split by -fraud-ratio (overrides -fraud and -normal)")
	flag.Float64Var(&ov.fraudRatio, "fraud-ratio", 0.5, "Share of fraud conversations when -total is set")
	flag.StringVar(&ov.output, "output", "", "Output JSONL file (overrides config)")
	flag.Parse()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := *configPath
	if path == "" {
		path = os.Getenv(config.EnvPrefix + "CONFIG")
	}
	cfg, err := config.LoadFile(ctx, path)
	if err != nil {
		// Logger isn't configured yet.
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(2)
	}
	if err := applyFlags(cfg, ov); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	if err := logger.Init(logger.WithFile(cfg.LogFile), logger.WithJSON(cfg.LogJSON)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn(ctx, "run interrupted; rerun with -resume to continue")
			os.Exit(130)
		}
		log.Error(ctx, "run failed", logger.Error(err))
		os.Exit(1)
	}
}

// overrides holds command-line values. Negative counts mean unset.
type overrides struct {
	resume     bool
	fraud      int
	normal     int
	total      int
	fraudRatio float64
	output     string
}

// applyFlags overlays command-line values on the loaded config. A total is
// split into int(total*ratio) fraud calls and the rest benign.
func applyFlags(cfg *config.Config, ov overrides) error {
	if ov.resume {
		cfg.Resume = true
	}
	if ov.fraud >= 0 {
		cfg.FraudCount = ov.fraud
	}
	if ov.normal >= 0 {
		cfg.NormalCount = ov.normal
	}
	if ov.total >= 0 {
		if ov.fraudRatio < 0 || ov.fraudRatio > 1 {
			return fmt.Errorf("fraud-ratio must be in [0, 1], got %v", ov.fraudRatio)
		}
		cfg.FraudCount = int(float64(ov.total) * ov.fraudRatio)
		cfg.NormalCount = ov.total - cfg.FraudCount
	}
	if ov.output != "" {
		cfg.Output = ov.output
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	templates, err := persona.Load(cfg.PromptsFile)
	if err != nil {
		return err
	}

	var completed []string
	if cfg.Resume {
		if completed, err = repository.ReadIDs(cfg.Output); err != nil {
			return fmt.Errorf("read existing output: %w", err)
		}
	}

	store, err := repository.Open(cfg.Output,
		repository.WithAppend(cfg.Resume),
		repository.WithFullDialogueDir(cfg.FullDialogueDir),
		repository.WithFailuresPath(cfg.FailuresPath),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "closing output", logger.Error(err))
		}
	}()

	svc := app.New(newClient(cfg), store, serviceOptions(cfg, templates, completed)...)

	go startSystemMetricsUpdater(ctx)

	if cfg.MetricsAddr != "" {
		srvCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := api.NewServer(svc).Serve(srvCtx, cfg.MetricsAddr); err != nil {
				log.Error(ctx, "metrics server failed", logger.Error(err))
			}
		}()
	}

	sum, err := svc.Run(ctx)
	log.Info(ctx, "output written",
		logger.String("output", cfg.Output),
		logger.Int("records", store.Count()),
		logger.Int("failed", sum.Failed),
	)
	return err
}

func newClient(cfg *config.Config) *genai.Client {
	limiter := genai.NewRateLimiter(
		genai.WithInterval(cfg.MinInterval),
		genai.WithMaxInterval(cfg.MaxInterval),
		genai.WithJitter(cfg.Jitter),
	)
	return genai.New(limiter,
		genai.WithBaseURL(cfg.BaseURL),
		genai.WithModel(cfg.Model),
		genai.WithAPIKey(cfg.APIKey),
		genai.WithAttemptTimeout(cfg.RequestTimeout),
		genai.WithMaxAttempts(cfg.MaxRetries),
		genai.WithBackoffUnit(cfg.BackoffUnit),
		genai.WithSeed(cfg.Seed),
		genai.WithGeneration(model.Generation{
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			TopP:        cfg.TopP,
			TopK:        cfg.TopK,
		}),
	)
}

func serviceOptions(cfg *config.Config, templates persona.Templates, completed []string) []app.Option {
	return []app.Option{
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithCounts(cfg.FraudCount, cfg.NormalCount),
		app.WithMode(cfg.Mode),
		app.WithSeed(cfg.Seed),
		app.WithTurnRange(model.KindFraud, cfg.FraudMinTurns, cfg.FraudMaxTurns),
		app.WithTurnRange(model.KindNormal, cfg.NormalMinTurns, cfg.NormalMaxTurns),
		app.WithScenarioWeights(cfg.ScenarioWeights),
		app.WithCompleted(completed),
		app.WithTemplates(templates),
		app.WithArbiterPolicy(persona.Policy{
			MinTurns:         cfg.ArbiterMinTurns,
			StagnationWindow: cfg.StagnationWindow,
			Strictness:       cfg.Strictness,
		}),
		app.WithArbiterOptions(
			arbiter.WithAttempts(cfg.ArbiterRetries),
			arbiter.WithRetryDelay(cfg.ArbiterRetryDelay),
			arbiter.WithStagnation(cfg.StagnationWindow, cfg.StagnationSimilarity),
		),
		app.WithSessionOptions(
			dialogue.WithArbitrationInterval(cfg.ArbitrationInterval),
			dialogue.WithArbitrationFrom(cfg.ArbitrationFrom),
		),
	}
}

// startSystemMetricsUpdater refreshes process metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
