package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"mqas/internal/config"
	"mqas/internal/logging"
	"mqas/internal/queue"
	"mqas/internal/registry"
	"mqas/internal/store"
)

type globalFlags struct {
	configPath string
	consumerID string
	backend    string
	conn       string
	dbname     string
	colname    string
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.flags.configPath))
		if err != nil {
			c.configErr = err
			return
		}
		if err := applyGlobalFlags(cfg, c.flags); err != nil {
			c.configErr = err
			return
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// applyGlobalFlags layers command line store overrides above file and env.
func applyGlobalFlags(cfg *config.Config, flags *globalFlags) error {
	if v := strings.TrimSpace(flags.backend); v != "" {
		cfg.Store.Backend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(flags.conn); v != "" {
		switch cfg.Store.Backend {
		case config.BackendMongo:
			cfg.Store.MongoURI = v
		case config.BackendPostgres:
			cfg.Store.PostgresDSN = v
		default:
			path, err := config.ExpandPath(v)
			if err != nil {
				return fmt.Errorf("resolve --conn: %w", err)
			}
			cfg.Store.SQLitePath = path
		}
	}
	if v := strings.TrimSpace(flags.consumerID); v != "" {
		cfg.Queue.ConsumerID = v
	}
	if v := strings.TrimSpace(flags.dbname); v != "" {
		cfg.Store.Database = v
	}
	if v := strings.TrimSpace(flags.colname); v != "" {
		cfg.Store.Collection = v
	}
	return nil
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// registry builds the function registry from the builtins and any
// [[registry.commands]] entries. builtin.exec is only present with
// worker.allow_exec.
func (c *commandContext) registry(cfg *config.Config, logger *slog.Logger) (*registry.Registry, error) {
	var opts []registry.BuiltinOption
	if cfg.Worker.AllowExec {
		opts = append(opts, registry.WithExec())
	}
	cmds := make([]registry.Command, 0, len(cfg.Registry.Commands))
	for _, entry := range cfg.Registry.Commands {
		cmds = append(cmds, registry.Command{Name: entry.Name, Argv: entry.Argv, Dir: entry.Dir, Env: entry.Env})
	}
	sources, err := registry.CommandSources(cmds...)
	if err != nil {
		return nil, fmt.Errorf("registry commands: %w", err)
	}
	return registry.New(append([]registry.Source{registry.Builtins(logger, opts...)}, sources...)...), nil
}

// withQueue connects a Queue for the configured partition and closes its
// store when fn returns.
func (c *commandContext) withQueue(ctx context.Context, fn func(*queue.Queue, *slog.Logger) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	reg, err := c.registry(cfg, logger)
	if err != nil {
		return err
	}
	q := queue.Connect(ctx, store.Opener(cfg, logger), queue.ConfigFrom(cfg),
		queue.WithRegistry(reg),
		queue.WithLogger(logger),
	)
	defer q.Close()
	return fn(q, logger)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
