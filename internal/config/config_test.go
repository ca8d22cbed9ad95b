package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"mqas/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantDB := filepath.Join(tempHome, ".local", "share", "mqas", "jobs.db")
	if cfg.Store.SQLitePath != wantDB {
		t.Fatalf("unexpected sqlite path: got %q want %q", cfg.Store.SQLitePath, wantDB)
	}
	if cfg.Store.Backend != config.BackendSQLite {
		t.Fatalf("expected sqlite backend by default, got %q", cfg.Store.Backend)
	}
	if cfg.Queue.ConsumerID != "default-customer-id" {
		t.Fatalf("unexpected consumer id: %q", cfg.Queue.ConsumerID)
	}
	if cfg.Queue.Channel != "default" {
		t.Fatalf("unexpected channel: %q", cfg.Queue.Channel)
	}
	if cfg.Queue.MaxAttempts != 1 {
		t.Fatalf("unexpected max attempts: %d", cfg.Queue.MaxAttempts)
	}
	if cfg.Queue.FailureTTL != 31536000 {
		t.Fatalf("unexpected failure ttl: %d", cfg.Queue.FailureTTL)
	}
	if cfg.HeartbeatInterval() != time.Second {
		t.Fatalf("unexpected heartbeat: %s", cfg.HeartbeatInterval())
	}
	if cfg.Worker.Verbosity != "error" {
		t.Fatalf("unexpected verbosity: %q", cfg.Worker.Verbosity)
	}
}

func TestLoadCustomConfigOverrides(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(tempHome, "config.toml")
	content := []byte(`[store]
backend = "PostgreSQL"
postgres_dsn = "postgres://localhost/mqas"

[queue]
consumer_id = "billing"
channel = "invoices"
priority = 3
max_attempts = 4

[worker]
channels = ["invoices", " ", "refunds"]
heartbeat = 0.25
verbosity = "Error,Completed"

[logging]
format = "JSON"
dir = "~/logs"
`)
	if err := os.WriteFile(configPath, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config to be read from %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Store.Backend != config.BackendPostgres {
		t.Fatalf("expected backend alias to normalize, got %q", cfg.Store.Backend)
	}
	if cfg.Queue.ConsumerID != "billing" || cfg.Queue.Channel != "invoices" || cfg.Queue.Priority != 3 {
		t.Fatalf("unexpected queue section: %+v", cfg.Queue)
	}
	if len(cfg.Worker.Channels) != 2 || cfg.Worker.Channels[1] != "refunds" {
		t.Fatalf("expected blank channels to be dropped, got %v", cfg.Worker.Channels)
	}
	if cfg.HeartbeatInterval() != 250*time.Millisecond {
		t.Fatalf("unexpected heartbeat: %s", cfg.HeartbeatInterval())
	}
	if cfg.Worker.Verbosity != "error,completed" {
		t.Fatalf("unexpected verbosity: %q", cfg.Worker.Verbosity)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
	if cfg.Logging.Dir != filepath.Join(tempHome, "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Logging.Dir)
	}
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("MQAS_STORE_BACKEND", "mongo")
	t.Setenv("MQAS_STORE_MONGO_URI", "mongodb://db.internal:27017")
	t.Setenv("MQAS_QUEUE_CONSUMER_ID", "env-consumer")
	t.Setenv("MQAS_WORKER_CHANNELS", "a,b,c")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Store.Backend != config.BackendMongo {
		t.Fatalf("expected env backend, got %q", cfg.Store.Backend)
	}
	if cfg.Store.MongoURI != "mongodb://db.internal:27017" {
		t.Fatalf("unexpected mongo uri: %q", cfg.Store.MongoURI)
	}
	if cfg.Queue.ConsumerID != "env-consumer" {
		t.Fatalf("unexpected consumer id: %q", cfg.Queue.ConsumerID)
	}
	if strings.Join(cfg.Worker.Channels, ",") != "a,b,c" {
		t.Fatalf("unexpected channels: %v", cfg.Worker.Channels)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"backend", func(c *config.Config) { c.Store.Backend = "redis" }, "store.backend"},
		{"postgres dsn", func(c *config.Config) { c.Store.Backend = config.BackendPostgres }, "store.postgres_dsn"},
		{"max attempts", func(c *config.Config) { c.Queue.MaxAttempts = 0 }, "queue.max_attempts"},
		{"durations", func(c *config.Config) { c.Queue.ResultTTL = -1 }, "negative"},
		{"concurrency", func(c *config.Config) { c.Worker.Concurrency = 0 }, "worker.concurrency"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"public bind", func(c *config.Config) { c.API.Bind = "0.0.0.0:7480" }, "api.token"},
		{"bad bind", func(c *config.Config) { c.API.Bind = "7480" }, "api.bind"},
		{"command name", func(c *config.Config) {
			c.Registry.Commands = []config.Command{{Name: "build", Argv: []string{"true"}}}
		}, "registry.commands[0].name"},
		{"command argv", func(c *config.Config) {
			c.Registry.Commands = []config.Command{{Name: "reports.build"}}
		}, "argv"},
		{"command twice", func(c *config.Config) {
			c.Registry.Commands = []config.Command{
				{Name: "reports.build", Argv: []string{"true"}},
				{Name: "reports.build", Argv: []string{"false"}},
			}
		}, "defined twice"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "jobs.db")
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadRegistryAndAPIGuard(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	configPath := filepath.Join(tempHome, "config.toml")
	content := []byte(`[api]
bind = "0.0.0.0:7480"
token = "s3cret"

[[registry.commands]]
name = "reports.build"
argv = ["build-report", "--pdf"]
dir = "~/reports"
env = ["BUCKET=archive"]
`)
	if err := os.WriteFile(configPath, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Worker.AllowExec {
		t.Fatal("allow_exec must default to false")
	}
	if len(cfg.Registry.Commands) != 1 {
		t.Fatalf("unexpected commands %#v", cfg.Registry.Commands)
	}
	cmd := cfg.Registry.Commands[0]
	if cmd.Name != "reports.build" || len(cmd.Argv) != 2 || cmd.Dir != filepath.Join(tempHome, "reports") || cmd.Env[0] != "BUCKET=archive" {
		t.Fatalf("unexpected command %#v", cmd)
	}

	t.Setenv("MQAS_API_TOKEN", "")
	if err := os.WriteFile(configPath, []byte("[api]\nbind = \"0.0.0.0:7480\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil || !strings.Contains(err.Error(), "api.token") {
		t.Fatalf("expected public bind without token to fail, got %v", err)
	}
}

func TestSampleConfigRoundTrip(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(tempHome, ".config", "mqas", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded map[string]any
	if err := toml.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected sample at default path, got %q (exists=%v)", resolved, exists)
	}
	if cfg.API.Bind != "127.0.0.1:7480" {
		t.Fatalf("unexpected api bind: %q", cfg.API.Bind)
	}

	encoded, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if !strings.Contains(string(encoded), "consumer_id") {
		t.Fatalf("expected encoded config to include queue keys, got %s", encoded)
	}
}
