// Package settings loads the project settings module: the installed-apps list
// that drives task autodiscovery, worker options and the periodic schedule.
package settings

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Validate
const (
	DefaultConcurrency = 4
	DefaultQueue       = "celery"
	DefaultPollTimeout = time.Second
	DefaultHealthPort  = 8080
)

// Settings represents the top-level settings file
type Settings struct {
	Version       string               `yaml:"version"`
	InstalledApps []string             `yaml:"installed_apps"`
	DefaultQueue  string               `yaml:"default_queue,omitempty"`
	ResultExpires time.Duration        `yaml:"result_expires,omitempty"` // 0 = result backend default
	Worker        *WorkerSettings      `yaml:"worker,omitempty"`
	BeatSchedule  map[string]BeatEntry `yaml:"beat_schedule,omitempty"`
}

// WorkerSettings specifies how the worker consumes queues
type WorkerSettings struct {
	Concurrency int           `yaml:"concurrency,omitempty"`
	Queues      []string      `yaml:"queues,omitempty"`
	PollTimeout time.Duration `yaml:"poll_timeout,omitempty"` // How long a worker blocks on an empty queue before re-checking for shutdown
	HealthPort  int           `yaml:"health_port,omitempty"`
}

// BeatEntry is one periodic task
type BeatEntry struct {
	Task     string `yaml:"task"`
	Schedule string `yaml:"schedule"` // Standard cron expression or descriptor such as "@every 30s"
	Args     any    `yaml:"args,omitempty"`
	Queue    string `yaml:"queue,omitempty"`
}

// envOverrides are applied on top of the file. Zero values mean "not set".
type envOverrides struct {
	Concurrency int      `env:"BACKEND_WORKER_CONCURRENCY"`
	Queues      []string `env:"BACKEND_WORKER_QUEUES" envSeparator:","`
	HealthPort  int      `env:"BACKEND_HEALTH_PORT"`
}

// Validate performs strict validation and fills in defaults
func (s *Settings) Validate() error {
	if s.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", s.Version)
	}

	seen := make(map[string]bool, len(s.InstalledApps))
	for i, label := range s.InstalledApps {
		if label == "" {
			return fmt.Errorf("installed_apps[%d]: app label cannot be empty", i)
		}
		if seen[label] {
			return fmt.Errorf("installed_apps: duplicate app '%s'", label)
		}
		seen[label] = true
	}

	if s.DefaultQueue == "" {
		s.DefaultQueue = DefaultQueue
	}

	if s.ResultExpires < 0 {
		return fmt.Errorf("result_expires must be >= 0, got %s", s.ResultExpires)
	}

	if s.Worker == nil {
		s.Worker = &WorkerSettings{}
	}
	if err := s.Worker.validate(s.DefaultQueue); err != nil {
		return err
	}

	for name, entry := range s.BeatSchedule {
		if err := entry.Validate(name); err != nil {
			return err
		}
	}

	return nil
}

func (w *WorkerSettings) validate(defaultQueue string) error {
	if w.Concurrency == 0 {
		w.Concurrency = DefaultConcurrency
	}
	if w.Concurrency < 1 {
		return fmt.Errorf("worker.concurrency must be >= 1, got %d", w.Concurrency)
	}

	if len(w.Queues) == 0 {
		w.Queues = []string{defaultQueue}
	}
	for i, q := range w.Queues {
		if q == "" {
			return fmt.Errorf("worker.queues[%d]: queue name cannot be empty", i)
		}
	}

	if w.PollTimeout == 0 {
		w.PollTimeout = DefaultPollTimeout
	}
	if w.PollTimeout < time.Second {
		return fmt.Errorf("worker.poll_timeout must be >= 1s, got %s", w.PollTimeout)
	}

	if w.HealthPort == 0 {
		w.HealthPort = DefaultHealthPort
	}
	if w.HealthPort < 0 || w.HealthPort > 65535 {
		return fmt.Errorf("worker.health_port out of range: %d", w.HealthPort)
	}

	return nil
}

// Validate checks a single beat entry
func (b *BeatEntry) Validate(name string) error {
	if b.Task == "" {
		return fmt.Errorf("beat_schedule '%s': task is required", name)
	}

	if b.Schedule == "" {
		return fmt.Errorf("beat_schedule '%s': schedule is required", name)
	}

	if _, err := cron.ParseStandard(b.Schedule); err != nil {
		return fmt.Errorf("beat_schedule '%s': invalid schedule %q: %w", name, b.Schedule, err)
	}

	return nil
}

// Load reads the settings file, applies environment overrides and validates the result
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := s.applyEnv(); err != nil {
		return nil, err
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	return &s, nil
}

func (s *Settings) applyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	if o.Concurrency == 0 && len(o.Queues) == 0 && o.HealthPort == 0 {
		return nil
	}

	if s.Worker == nil {
		s.Worker = &WorkerSettings{}
	}
	if o.Concurrency != 0 {
		s.Worker.Concurrency = o.Concurrency
	}
	if len(o.Queues) > 0 {
		s.Worker.Queues = o.Queues
	}
	if o.HealthPort != 0 {
		s.Worker.HealthPort = o.HealthPort
	}

	return nil
}
