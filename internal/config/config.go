package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Store selects and addresses the persistent store shared by producers and workers.
type Store struct {
	Backend        string `toml:"backend" env:"BACKEND"`
	SQLitePath     string `toml:"sqlite_path" env:"SQLITE_PATH"`
	MongoURI       string `toml:"mongo_uri" env:"MONGO_URI"`
	PostgresDSN    string `toml:"postgres_dsn" env:"POSTGRES_DSN"`
	Database       string `toml:"database" env:"DATABASE"`
	Collection     string `toml:"collection" env:"COLLECTION"`
	ConnectTimeout int    `toml:"connect_timeout" env:"CONNECT_TIMEOUT"`
}

// Queue holds partition identity and enqueue defaults applied by every Queue
// built from this config. Durations are whole seconds; zero means unset.
type Queue struct {
	ConsumerID  string `toml:"consumer_id" env:"CONSUMER_ID"`
	Channel     string `toml:"channel" env:"CHANNEL"`
	Lang        string `toml:"lang" env:"LANG"`
	Priority    int    `toml:"priority" env:"PRIORITY"`
	JobTimeout  int    `toml:"job_timeout" env:"JOB_TIMEOUT"`
	ResultTTL   int    `toml:"result_ttl" env:"RESULT_TTL"`
	TTL         int    `toml:"ttl" env:"TTL"`
	FailureTTL  int    `toml:"failure_ttl" env:"FAILURE_TTL"`
	MaxAttempts int    `toml:"max_attempts" env:"MAX_ATTEMPTS"`
}

// Worker controls the poll loop.
type Worker struct {
	Channels    []string `toml:"channels" env:"CHANNELS"`
	Heartbeat   float64  `toml:"heartbeat" env:"HEARTBEAT"`
	Concurrency int      `toml:"concurrency" env:"CONCURRENCY"`
	Verbose     bool     `toml:"verbose" env:"VERBOSE"`
	Verbosity   string   `toml:"verbosity" env:"VERBOSITY"`
	Logger      string   `toml:"logger" env:"LOGGER"`
	// AllowExec registers builtin.exec, which runs arbitrary commands named
	// by job arguments.
	AllowExec bool `toml:"allow_exec" env:"ALLOW_EXEC"`
}

// Command maps a job function identifier onto a fixed program. Job
// positional arguments are appended to Argv; keyword arguments become
// environment variables.
type Command struct {
	Name string   `toml:"name"`
	Argv []string `toml:"argv"`
	Dir  string   `toml:"dir"`
	Env  []string `toml:"env"`
}

// Registry lists the job functions a worker can run beyond the builtins.
type Registry struct {
	Commands []Command `toml:"commands"`
}

// API contains the HTTP surface settings.
type API struct {
	Bind  string `toml:"bind" env:"BIND"`
	Token string `toml:"token" env:"TOKEN"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" env:"FORMAT"`
	Level  string `toml:"level" env:"LEVEL"`
	Dir    string `toml:"dir" env:"DIR"`
}

// Config encapsulates all configuration values for mqas.
//
// Configuration sections by subsystem:
//   - Store: backend selection and connection strings
//   - Queue: partition identity and enqueue defaults
//   - Worker: heartbeat, channels, verbosity
//   - API: HTTP bind address and bearer token
//   - Registry: command-backed job functions
//   - Logging: log format, level, and optional file directory
type Config struct {
	Store    Store    `toml:"store" envPrefix:"STORE_"`
	Queue    Queue    `toml:"queue" envPrefix:"QUEUE_"`
	Worker   Worker   `toml:"worker" envPrefix:"WORKER_"`
	API      API      `toml:"api" envPrefix:"API_"`
	Registry Registry `toml:"registry" env:"-"`
	Logging  Logging  `toml:"logging" envPrefix:"LOG_"`
}

// EnvPrefix is prepended to every environment override, e.g. MQAS_STORE_BACKEND.
const EnvPrefix = "MQAS_"

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mqas/config.toml")
}

// Load locates, parses, and validates a configuration file. Environment
// overrides are applied after the file, so MQAS_* variables always win.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, "", false, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mqas.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the sqlite store and log files live in.
func (c *Config) EnsureDirectories() error {
	dirs := []string{}
	if c.Store.Backend == BackendSQLite && c.Store.SQLitePath != "" {
		dirs = append(dirs, filepath.Dir(c.Store.SQLitePath))
	}
	if c.Logging.Dir != "" {
		dirs = append(dirs, c.Logging.Dir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HeartbeatInterval returns the worker sleep between poll cycles.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Worker.Heartbeat * float64(time.Second))
}

// ConnectTimeout bounds store connection attempts.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Store.ConnectTimeout) * time.Second
}

// Seconds converts a whole-second config value into a duration.
func Seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the config as TOML, used by `mqas config show`.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
