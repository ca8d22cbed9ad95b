package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeStore(); err != nil {
		return err
	}
	c.normalizeQueue()
	c.normalizeWorker()
	c.normalizeAPI()
	if err := c.normalizeRegistry(); err != nil {
		return err
	}
	return c.normalizeLogging()
}

func (c *Config) normalizeStore() error {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = defaultBackend
	}
	if c.Store.Backend == "mongodb" {
		c.Store.Backend = BackendMongo
	}
	if c.Store.Backend == "postgresql" || c.Store.Backend == "pg" {
		c.Store.Backend = BackendPostgres
	}
	if strings.TrimSpace(c.Store.SQLitePath) == "" {
		c.Store.SQLitePath = defaultSQLitePath
	}
	var err error
	if c.Store.SQLitePath, err = expandPath(c.Store.SQLitePath); err != nil {
		return fmt.Errorf("store.sqlite_path: %w", err)
	}
	c.Store.MongoURI = strings.TrimSpace(c.Store.MongoURI)
	if c.Store.MongoURI == "" {
		c.Store.MongoURI = defaultMongoURI
	}
	c.Store.PostgresDSN = strings.TrimSpace(c.Store.PostgresDSN)
	c.Store.Database = strings.TrimSpace(c.Store.Database)
	if c.Store.Database == "" {
		c.Store.Database = defaultDatabase
	}
	c.Store.Collection = strings.TrimSpace(c.Store.Collection)
	if c.Store.Collection == "" {
		c.Store.Collection = defaultCollection
	}
	if c.Store.ConnectTimeout <= 0 {
		c.Store.ConnectTimeout = defaultConnectTimeout
	}
	return nil
}

func (c *Config) normalizeQueue() {
	c.Queue.ConsumerID = strings.TrimSpace(c.Queue.ConsumerID)
	if c.Queue.ConsumerID == "" {
		c.Queue.ConsumerID = defaultConsumerID
	}
	c.Queue.Channel = strings.TrimSpace(c.Queue.Channel)
	if c.Queue.Channel == "" {
		c.Queue.Channel = defaultChannel
	}
	c.Queue.Lang = strings.ToLower(strings.TrimSpace(c.Queue.Lang))
	if c.Queue.Lang == "" {
		c.Queue.Lang = defaultLang
	}
	if c.Queue.MaxAttempts == 0 {
		c.Queue.MaxAttempts = defaultMaxAttempts
	}
}

func (c *Config) normalizeWorker() {
	channels := make([]string, 0, len(c.Worker.Channels))
	for _, ch := range c.Worker.Channels {
		if ch = strings.TrimSpace(ch); ch != "" {
			channels = append(channels, ch)
		}
	}
	c.Worker.Channels = channels
	if c.Worker.Heartbeat == 0 {
		c.Worker.Heartbeat = defaultHeartbeat
	}
	if c.Worker.Concurrency == 0 {
		c.Worker.Concurrency = defaultConcurrency
	}
	c.Worker.Verbosity = strings.ToLower(strings.TrimSpace(c.Worker.Verbosity))
	if c.Worker.Verbosity == "" {
		c.Worker.Verbosity = defaultVerbosity
	}
	c.Worker.Logger = strings.TrimSpace(c.Worker.Logger)
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
}

func (c *Config) normalizeRegistry() error {
	for i := range c.Registry.Commands {
		cmd := &c.Registry.Commands[i]
		cmd.Name = strings.TrimSpace(cmd.Name)
		if cmd.Dir = strings.TrimSpace(cmd.Dir); cmd.Dir != "" {
			var err error
			if cmd.Dir, err = expandPath(cmd.Dir); err != nil {
				return fmt.Errorf("registry.commands[%d].dir: %w", i, err)
			}
		}
	}
	return nil
}

func (c *Config) normalizeLogging() error {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text":
		c.Logging.Format = "console"
	case "json":
		c.Logging.Format = "json"
	default:
		c.Logging.Format = format
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if strings.TrimSpace(c.Logging.Dir) != "" {
		var err error
		if c.Logging.Dir, err = expandPath(c.Logging.Dir); err != nil {
			return fmt.Errorf("logging.dir: %w", err)
		}
	}
	return nil
}
