package config

// Supported store backends.
const (
	BackendSQLite   = "sqlite"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

const (
	defaultBackend        = BackendSQLite
	defaultSQLitePath     = "~/.local/share/mqas/jobs.db"
	defaultMongoURI       = "mongodb://localhost:27017"
	defaultDatabase       = "jobs"
	defaultCollection     = "jobs"
	defaultConnectTimeout = 10
	defaultConsumerID     = "default-customer-id"
	defaultChannel        = "default"
	defaultLang           = "go"
	defaultJobTimeout     = 3600
	defaultResultTTL      = 500
	defaultFailureTTL     = 31536000
	defaultMaxAttempts    = 1
	defaultHeartbeat      = 1.0
	defaultConcurrency    = 1
	defaultVerbosity      = "error"
	defaultAPIBind        = "127.0.0.1:7480"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Store: Store{
			Backend:        defaultBackend,
			SQLitePath:     defaultSQLitePath,
			MongoURI:       defaultMongoURI,
			Database:       defaultDatabase,
			Collection:     defaultCollection,
			ConnectTimeout: defaultConnectTimeout,
		},
		Queue: Queue{
			ConsumerID:  defaultConsumerID,
			Channel:     defaultChannel,
			Lang:        defaultLang,
			JobTimeout:  defaultJobTimeout,
			ResultTTL:   defaultResultTTL,
			FailureTTL:  defaultFailureTTL,
			MaxAttempts: defaultMaxAttempts,
		},
		Worker: Worker{
			Heartbeat:   defaultHeartbeat,
			Concurrency: defaultConcurrency,
			Verbosity:   defaultVerbosity,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
