// Command merge combines fraud and benign transcript files into one labeled,
// shuffled dataset and writes a statistics summary next to it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/okian/callgen/internal/adapters/repository"
	"github.com/okian/callgen/internal/domain/model"
	"github.com/okian/callgen/pkg/logger"
)

type options struct {
	fraud  string
	normal string
	output string
	stats  string
	seed   int64
}

func main() {
	var opts options
	flag.StringVar(&opts.fraud, "fraud", "data/fraud.jsonl", "Fraud transcripts (JSONL)")
	flag.StringVar(&opts.normal, "normal", "data/normal.jsonl", "Benign transcripts (JSONL)")
	flag.StringVar(&opts.output, "output", "data/dataset.jsonl", "Merged dataset (JSONL)")
	flag.StringVar(&opts.stats, "stats", "", "Statistics file (default: statistics.json next to -output)")
	flag.Int64Var(&opts.seed, "seed", 0, "Shuffle seed (0 uses the clock)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, opts); err != nil {
		logger.Get().Error(ctx, "merge failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	log := logger.Get()
	if opts.fraud == "" && opts.normal == "" {
		return errors.New("at least one of -fraud or -normal is required")
	}
	if opts.stats == "" {
		opts.stats = filepath.Join(filepath.Dir(opts.output), "statistics.json")
	}
	if opts.seed == 0 {
		opts.seed = time.Now().UnixNano()
	}

	var inputs []repository.Input
	if opts.fraud != "" {
		inputs = append(inputs, repository.Input{Path: opts.fraud, Label: model.KindFraud})
	}
	if opts.normal != "" {
		inputs = append(inputs, repository.Input{Path: opts.normal, Label: model.KindNormal})
	}

	if err := os.MkdirAll(filepath.Dir(opts.output), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	out, err := os.Create(opts.output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	stats, err := repository.Merge(ctx, out, rand.New(rand.NewSource(opts.seed)), inputs...)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	sf, err := os.Create(opts.stats)
	if err != nil {
		return fmt.Errorf("create stats: %w", err)
	}
	defer sf.Close()
	if err := repository.WriteJSON(sf, stats); err != nil {
		return err
	}

	log.Info(ctx, "dataset merged",
		logger.String("output", opts.output),
		logger.String("stats", opts.stats),
		logger.Int("total", stats.Total),
		logger.Int("fraud", stats.Labels[string(model.KindFraud)]),
		logger.Int("normal", stats.Labels[string(model.KindNormal)]),
	)
	return nil
}
