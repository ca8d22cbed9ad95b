package testsupport

import (
	"path/filepath"
	"testing"

	"mqas/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config backed by a SQLite file in a per-test temp
// directory. It applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Store.Backend = config.BackendSQLite
	cfgVal.Store.SQLitePath = filepath.Join(base, "jobs.db")
	cfgVal.Logging.Dir = ""
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.Worker.Heartbeat = 0.01

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithChannel sets the default channel for queues built from the config.
func WithChannel(channel string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.Channel = channel
	}
}

// WithConsumerID sets the partition consumer id.
func WithConsumerID(id string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.ConsumerID = id
	}
}

// WithMaxAttempts sets the default retry budget.
func WithMaxAttempts(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.MaxAttempts = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Store.SQLitePath)
}
