// Package config defines generator configuration and its loading layers.
//
// Conventions:
// - New() returns a Config populated with defaults.
// - Load layers a YAML file and CALLGEN_* environment variables on top.
// - Validation failures wrap ErrInvalidConfig; loading failures wrap ErrLoadConfig.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Sampling modes.
const (
	ModeGrid       = "grid"
	ModeStratified = "stratified"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFile tees logs to a file when set.
	LogFile string `koanf:"log_file"`
	LogJSON bool   `koanf:"log_json"`

	// Remote model endpoint.
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`

	// RequestTimeout bounds one HTTP attempt.
	RequestTimeout time.Duration `koanf:"request_timeout"`
	MaxRetries     int           `koanf:"max_retries"`
	BackoffUnit    time.Duration `koanf:"backoff_unit"`

	// Shared rate limiter.
	MinInterval time.Duration `koanf:"min_interval"`
	MaxInterval time.Duration `koanf:"max_interval"`
	Jitter      time.Duration `koanf:"jitter"`

	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
	TopP        float64 `koanf:"top_p"`
	TopK        int     `koanf:"top_k"`

	// WorkerCount sets the number of concurrent conversations.
	WorkerCount int `koanf:"worker_count"`
	// QueueSize bounds the in-memory task queue.
	QueueSize int `koanf:"queue_size"`

	FraudCount  int    `koanf:"fraud_count"`
	NormalCount int    `koanf:"normal_count"`
	Mode        string `koanf:"sampling_mode"`
	// Seed drives sampling and shuffling. Zero picks a time-based seed.
	Seed int64 `koanf:"seed"`

	FraudMinTurns  int `koanf:"fraud_min_turns"`
	FraudMaxTurns  int `koanf:"fraud_max_turns"`
	NormalMinTurns int `koanf:"normal_min_turns"`
	NormalMaxTurns int `koanf:"normal_max_turns"`

	ArbitrationInterval int `koanf:"arbitration_interval"`
	ArbitrationFrom     int `koanf:"arbitration_from"`

	ArbiterMinTurns      int           `koanf:"arbiter_min_turns"`
	StagnationWindow     int           `koanf:"stagnation_window"`
	StagnationSimilarity float64       `koanf:"stagnation_similarity"`
	Strictness           string        `koanf:"arbiter_strictness"`
	ArbiterRetries       int           `koanf:"arbiter_retries"`
	ArbiterRetryDelay    time.Duration `koanf:"arbiter_retry_delay"`

	// Output is the JSONL file of records.
	Output          string `koanf:"output"`
	FullDialogueDir string `koanf:"full_dialogue_dir"`
	FailuresPath    string `koanf:"failures_path"`
	// Resume appends to Output and skips IDs it already holds.
	Resume bool `koanf:"resume"`

	// PromptsFile overrides prompt templates.
	PromptsFile string `koanf:"prompts_file"`

	// MetricsAddr serves /metrics, /healthz and /stats when set, e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr"`

	// ScenarioWeights overrides occupation weights per scenario.
	ScenarioWeights map[string]map[string]float64 `koanf:"scenario_weights"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		BaseURL:              "https://generativelanguage.googleapis.com/v1beta",
		Model:                "gemini-2.0-flash",
		RequestTimeout:       90 * time.Second,
		MaxRetries:           5,
		BackoffUnit:          time.Second,
		MinInterval:          500 * time.Millisecond,
		MaxInterval:          2 * time.Second,
		Jitter:               200 * time.Millisecond,
		Temperature:          0.8,
		MaxTokens:            2048,
		TopP:                 0.9,
		TopK:                 40,
		WorkerCount:          min(runtime.NumCPU(), 3),
		QueueSize:            256,
		FraudCount:           10,
		NormalCount:          0,
		Mode:                 ModeStratified,
		FraudMinTurns:        20,
		FraudMaxTurns:        30,
		NormalMinTurns:       15,
		NormalMaxTurns:       25,
		ArbitrationInterval:  2,
		ArbitrationFrom:      4,
		ArbiterMinTurns:      6,
		StagnationWindow:     4,
		StagnationSimilarity: 0.8,
		Strictness:           "balanced",
		ArbiterRetries:       3,
		ArbiterRetryDelay:    5 * time.Second,
		Output:               "data/conversations.jsonl",
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	switch {
	case c.APIKey == "":
		return invalid("api_key must not be empty")
	case c.Output == "":
		return invalid("output must not be empty")
	case c.Mode != ModeGrid && c.Mode != ModeStratified:
		return invalid("sampling_mode %q must be %s or %s", c.Mode, ModeGrid, ModeStratified)
	case c.FraudCount < 0 || c.NormalCount < 0:
		return invalid("counts must not be negative")
	case c.FraudCount+c.NormalCount == 0:
		return invalid("nothing to generate")
	case c.WorkerCount < 1:
		return invalid("worker_count must be positive")
	case c.QueueSize < 1:
		return invalid("queue_size must be positive")
	case c.MaxRetries < 1 || c.ArbiterRetries < 1:
		return invalid("retry counts must be positive")
	case c.RequestTimeout <= 0:
		return invalid("request_timeout must be positive")
	case c.MinInterval < 0 || c.MaxInterval < c.MinInterval:
		return invalid("rate limit intervals must satisfy 0 <= min_interval <= max_interval")
	case c.FraudMinTurns < 2 || c.FraudMaxTurns < c.FraudMinTurns:
		return invalid("fraud turn range %d-%d", c.FraudMinTurns, c.FraudMaxTurns)
	case c.NormalMinTurns < 2 || c.NormalMaxTurns < c.NormalMinTurns:
		return invalid("normal turn range %d-%d", c.NormalMinTurns, c.NormalMaxTurns)
	case c.ArbitrationInterval < 1:
		return invalid("arbitration_interval must be positive")
	case c.StagnationSimilarity <= 0 || c.StagnationSimilarity > 1:
		return invalid("stagnation_similarity must be in (0, 1]")
	}
	return nil
}
