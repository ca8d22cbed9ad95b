package queue

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"mqas/internal/config"
	"mqas/internal/registry"
)

// Hard-coded defaults, the lowest-precedence layer of every option.
const (
	DefaultChannel     = "default"
	DefaultConsumerID  = "default-customer-id"
	DefaultLang        = "go"
	DefaultPriority    = 0
	DefaultJobTimeout  = time.Hour
	DefaultResultTTL   = 500 * time.Second
	DefaultFailureTTL  = 365 * 24 * time.Hour
	DefaultMaxAttempts = 1
)

// Config is the per-Queue layer: partition identity plus enqueue defaults.
// Zero values fall through to the hard-coded defaults.
type Config struct {
	ConsumerID  string
	Channel     string
	Lang        string
	Priority    int
	JobTimeout  time.Duration
	ResultTTL   time.Duration
	TTL         time.Duration
	FailureTTL  time.Duration
	MaxAttempts int
}

// ConfigFrom maps the [queue] config section onto a queue Config.
func ConfigFrom(cfg *config.Config) Config {
	if cfg == nil {
		return Config{}.withDefaults()
	}
	return Config{
		ConsumerID:  cfg.Queue.ConsumerID,
		Channel:     cfg.Queue.Channel,
		Lang:        cfg.Queue.Lang,
		Priority:    cfg.Queue.Priority,
		JobTimeout:  config.Seconds(cfg.Queue.JobTimeout),
		ResultTTL:   config.Seconds(cfg.Queue.ResultTTL),
		TTL:         config.Seconds(cfg.Queue.TTL),
		FailureTTL:  config.Seconds(cfg.Queue.FailureTTL),
		MaxAttempts: cfg.Queue.MaxAttempts,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.ConsumerID) == "" {
		c.ConsumerID = DefaultConsumerID
	}
	if strings.TrimSpace(c.Channel) == "" {
		c.Channel = DefaultChannel
	}
	if strings.TrimSpace(c.Lang) == "" {
		c.Lang = DefaultLang
	}
	if c.JobTimeout == 0 {
		c.JobTimeout = DefaultJobTimeout
	}
	if c.ResultTTL == 0 {
		c.ResultTTL = DefaultResultTTL
	}
	if c.FailureTTL == 0 {
		c.FailureTTL = DefaultFailureTTL
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	return c
}

// EnqueueOptions is the call layer of an enqueue. Nil pointers and empty
// strings defer to the Queue's Config.
type EnqueueOptions struct {
	Args        []any
	Kwargs      map[string]any
	JobID       string
	Channel     string
	Lang        string
	Priority    *int
	DependsOn   []string
	Description string
	JobTimeout  *time.Duration
	ResultTTL   *time.Duration
	TTL         *time.Duration
	FailureTTL  *time.Duration
	MaxAttempts *int

	OnSuccess string
	OnFailure string
	// OnSuccessFunc and OnFailureFunc are mapped back to their registered
	// identifier. They must be registered under exactly one name.
	OnSuccessFunc registry.Func
	OnFailureFunc registry.Func

	// Extra holds unrecognized named options; they are folded into Kwargs,
	// with explicit Kwargs entries winning on collision.
	Extra map[string]any
}

// DequeueOptions overrides the Queue's partition for a single claim.
type DequeueOptions struct {
	Channel string
	JobID   string
	Lang    string
}

// Ptr returns a pointer to v, for filling optional EnqueueOptions fields.
func Ptr[T any](v T) *T { return &v }

var knownOptionKeys = map[string]struct{}{
	"args": {}, "kwargs": {}, "job_id": {}, "channel": {}, "lang": {}, "priority": {},
	"depends_on": {}, "description": {}, "job_timeout": {}, "result_ttl": {}, "ttl": {},
	"failure_ttl": {}, "max_attempts": {}, "on_success": {}, "on_failure": {},
}

// ParseOptions converts a loosely typed option bag (decoded JSON, CLI flags)
// into EnqueueOptions. Keys that are not standard options land in Extra.
func ParseOptions(bag map[string]any) (EnqueueOptions, error) {
	var opts EnqueueOptions
	for key, value := range bag {
		if value == nil {
			continue
		}
		if _, ok := knownOptionKeys[key]; !ok {
			if opts.Extra == nil {
				opts.Extra = make(map[string]any)
			}
			opts.Extra[key] = value
			continue
		}
		if err := opts.set(key, value); err != nil {
			return EnqueueOptions{}, err
		}
	}
	return opts, nil
}

func (o *EnqueueOptions) set(key string, value any) error {
	var err error
	switch key {
	case "args":
		list, ok := value.([]any)
		if !ok {
			list = []any{value}
		}
		o.Args = list
	case "kwargs":
		m, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: kwargs must be an object, got %T", ErrInvalidArgument, value)
		}
		o.Kwargs = m
	case "job_id":
		o.JobID, err = stringValue(key, value)
	case "channel":
		o.Channel, err = stringValue(key, value)
	case "lang":
		o.Lang, err = stringValue(key, value)
	case "description":
		o.Description, err = stringValue(key, value)
	case "on_success":
		o.OnSuccess, err = stringValue(key, value)
	case "on_failure":
		o.OnFailure, err = stringValue(key, value)
	case "priority":
		var n int
		n, err = intValue(key, value)
		o.Priority = &n
	case "max_attempts":
		var n int
		n, err = intValue(key, value)
		o.MaxAttempts = &n
	case "depends_on":
		o.DependsOn, err = stringList(key, value)
	case "job_timeout", "result_ttl", "ttl", "failure_ttl":
		var d time.Duration
		if d, err = durationValue(key, value); err != nil {
			return err
		}
		switch key {
		case "job_timeout":
			o.JobTimeout = &d
		case "result_ttl":
			o.ResultTTL = &d
		case "ttl":
			o.TTL = &d
		default:
			o.FailureTTL = &d
		}
	}
	return err
}

func stringValue(key string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidArgument, key, value)
	}
	return s, nil
}

func intValue(key string, value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("%w: %s must be a whole number", ErrInvalidArgument, key)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number, got %T", ErrInvalidArgument, key, value)
	}
}

func stringList(key string, value any) ([]string, error) {
	switch v := value.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s entries must be strings, got %T", ErrInvalidArgument, key, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a list of ids, got %T", ErrInvalidArgument, key, value)
	}
}

// mergeKwargs folds extras under explicit kwargs.
func mergeKwargs(kwargs, extra map[string]any) map[string]any {
	if len(kwargs) == 0 && len(extra) == 0 {
		return nil
	}
	out := make(map[string]any, len(kwargs)+len(extra))
	maps.Copy(out, extra)
	maps.Copy(out, kwargs)
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
