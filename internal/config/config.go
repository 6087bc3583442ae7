package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"lab-quiz-player/internal/validator"
)

// Record sinks a player can save completion records to.
const (
	SinkMemory   = "memory"
	SinkPostgres = "postgres"
	SinkSQLite   = "sqlite"
	SinkQueue    = "queue"
	SinkRabbitMQ = "rabbitmq"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
		Format string `yaml:"format" validate:"omitempty,oneof=json pretty"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"gte=0"`
		TTL      string `yaml:"ttl"`
		Queue    string `yaml:"queue"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	RabbitMQ struct {
		URL   string `yaml:"url"`
		Queue string `yaml:"queue"`
	} `yaml:"rabbitmq"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Timings struct {
		Countdown    string `yaml:"countdown"`
		Tick         string `yaml:"tick"`
		CorrectDwell string `yaml:"correct_dwell"`
		RevealDwell  string `yaml:"reveal_dwell"`
	} `yaml:"timings"`
	Records struct {
		Sink        string `yaml:"sink" validate:"omitempty,oneof=memory postgres sqlite queue rabbitmq"`
		SaveTimeout string `yaml:"save_timeout"`
	} `yaml:"records"`
	Worker struct {
		Enabled      bool   `yaml:"enabled"`
		BatchSize    int    `yaml:"batch_size" validate:"gte=0,lte=1000"`
		PollInterval string `yaml:"poll_interval"`
	} `yaml:"worker"`
}

// Load reads YAML config from path and validates it.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field values and that the selected record sink is configured.
func (c Config) Validate() error {
	if err := validator.Struct(c); err != nil {
		return err
	}
	switch c.Records.Sink {
	case SinkPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("records.sink %q requires postgres.url", c.Records.Sink)
		}
	case SinkSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("records.sink %q requires sqlite.path", c.Records.Sink)
		}
	case SinkQueue:
		if c.Redis.Addr == "" {
			return fmt.Errorf("records.sink %q requires redis.addr", c.Records.Sink)
		}
	case SinkRabbitMQ:
		if c.RabbitMQ.URL == "" {
			return fmt.Errorf("records.sink %q requires rabbitmq.url", c.Records.Sink)
		}
	}
	if c.Worker.Enabled && (c.Redis.Addr == "" || c.Postgres.URL == "") {
		return fmt.Errorf("worker requires redis.addr and postgres.url")
	}
	for name, raw := range map[string]string{
		"redis.ttl": c.Redis.TTL,
		"quiz.ttl":  c.Quiz.TTL,
	} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	// timers and tickers need a positive interval
	for name, raw := range map[string]string{
		"timings.countdown":     c.Timings.Countdown,
		"timings.tick":          c.Timings.Tick,
		"timings.correct_dwell": c.Timings.CorrectDwell,
		"timings.reveal_dwell":  c.Timings.RevealDwell,
		"records.save_timeout":  c.Records.SaveTimeout,
		"worker.poll_interval":  c.Worker.PollInterval,
	} {
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, raw)
		}
	}
	return nil
}

// RecordSink returns the configured sink, defaulting to postgres when a
// database is configured and to memory otherwise.
func (c Config) RecordSink() string {
	if c.Records.Sink != "" {
		return c.Records.Sink
	}
	if c.Postgres.URL != "" {
		return SinkPostgres
	}
	return SinkMemory
}

// RedisQueue is the list key completion records are queued on.
func (c Config) RedisQueue() string {
	if c.Redis.Queue == "" {
		return "quiz:records"
	}
	return c.Redis.Queue
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
