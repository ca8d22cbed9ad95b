package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := CheckAPIBind(c.API.Bind, c.API.Token); err != nil {
		return err
	}
	if err := c.validateRegistry(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path must be set when store.backend is sqlite")
		}
	case BackendMongo:
		if c.Store.MongoURI == "" {
			return errors.New("store.mongo_uri must be set when store.backend is mongo")
		}
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("store.postgres_dsn must be set when store.backend is postgres")
		}
	default:
		return fmt.Errorf("store.backend: unsupported value %q (expected sqlite, mongo, or postgres)", c.Store.Backend)
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.MaxAttempts < 1 {
		return errors.New("queue.max_attempts must be at least 1")
	}
	if c.Queue.JobTimeout < 0 || c.Queue.ResultTTL < 0 || c.Queue.TTL < 0 || c.Queue.FailureTTL < 0 {
		return errors.New("queue durations must not be negative")
	}
	return nil
}

func (c *Config) validateWorker() error {
	if c.Worker.Heartbeat < 0 {
		return errors.New("worker.heartbeat must not be negative")
	}
	if c.Worker.Concurrency < 1 {
		return errors.New("worker.concurrency must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
}

// CheckAPIBind refuses to expose the unauthenticated API beyond loopback.
func CheckAPIBind(bind, token string) error {
	if token != "" {
		return nil
	}
	host, _, err := net.SplitHostPort(bind)
	if err != nil {
		return fmt.Errorf("api.bind %q: %w", bind, err)
	}
	if host == "localhost" {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return nil
	}
	return fmt.Errorf("api.bind %q is not a loopback address; set api.token to serve beyond localhost", bind)
}

func (c *Config) validateRegistry() error {
	seen := make(map[string]struct{}, len(c.Registry.Commands))
	for i, cmd := range c.Registry.Commands {
		idx := strings.LastIndex(cmd.Name, ".")
		if idx <= 0 || idx == len(cmd.Name)-1 {
			return fmt.Errorf("registry.commands[%d].name %q must be a dotted module.function identifier", i, cmd.Name)
		}
		if _, dup := seen[cmd.Name]; dup {
			return fmt.Errorf("registry.commands[%d].name %q is defined twice", i, cmd.Name)
		}
		seen[cmd.Name] = struct{}{}
		if len(cmd.Argv) == 0 || cmd.Argv[0] == "" {
			return fmt.Errorf("registry.commands[%d] (%s): argv must name a program", i, cmd.Name)
		}
	}
	return nil
}
