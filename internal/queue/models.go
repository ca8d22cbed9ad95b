package queue

import "time"

// ItemType discriminates job records from anything else sharing the store.
const ItemType = "queue"

// Status is a derived, display-only view of a record's lifecycle flags.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
	StatusExhausted  Status = "exhausted"
)

// AllStatuses lists statuses in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusFailed, StatusExhausted, StatusDone}
}

// ParseStatus validates a status name.
func ParseStatus(value string) (Status, bool) {
	for _, s := range AllStatuses() {
		if string(s) == value {
			return s, true
		}
	}
	return "", false
}

// Record is one persisted unit of work.
type Record struct {
	ID         string
	ItemType   string
	Channel    string
	Lang       string
	ConsumerID string

	FunctionName string
	Args         []any
	Kwargs       map[string]any
	Description  string
	OnSuccess    string
	OnFailure    string

	Priority  int
	DependsOn []string

	InProgress  bool
	Done        bool
	Error       bool
	Attempts    int
	MaxAttempts int

	Progress        int
	ProgressMessage string
	Result          any
	ErrorMessage    string

	// Advisory lifetimes; zero means unset. JobTimeout is never enforced.
	JobTimeout time.Duration
	ResultTTL  time.Duration
	TTL        time.Duration
	FailureTTL time.Duration

	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	LastErrorAt    *time.Time
	LastProgressAt *time.Time
	ReleasedAt     *time.Time
}

// Status derives the display status from the lifecycle flags.
func (r *Record) Status() Status {
	switch {
	case r.Done:
		return StatusDone
	case r.InProgress:
		return StatusInProgress
	case r.MaxAttempts > 0 && r.Attempts >= r.MaxAttempts:
		return StatusExhausted
	case r.Error:
		return StatusFailed
	default:
		return StatusPending
	}
}

// Claimable reports whether the record satisfies every claim predicate
// except dependency gating, which needs the done-id snapshot.
func (r *Record) Claimable() bool {
	return r.ItemType == ItemType && !r.InProgress && !r.Done && r.Attempts < r.MaxAttempts
}

// Payload is the function portion of a record, handed to job loggers.
func (r *Record) Payload() map[string]any {
	return map[string]any{
		"function_name": r.FunctionName,
		"job_timeout":   int64(r.JobTimeout / time.Second),
		"description":   r.Description,
		"on_success":    r.OnSuccess,
		"on_failure":    r.OnFailure,
		"args":          r.Args,
		"kwargs":        r.Kwargs,
	}
}

// ClaimFilter selects the partition a Dequeue may claim from.
type ClaimFilter struct {
	Lang       string
	ConsumerID string
	Channel    string
	// JobID restricts the claim to one record when set.
	JobID string
	// DoneIDs is the snapshot of completed record ids used for dependency gating.
	DoneIDs []string
	Now     time.Time
}

// ListFilter narrows record listings for operators.
type ListFilter struct {
	ConsumerID string
	Channel    string
	Statuses   []Status
	Limit      int
}

// Matches applies the filter in memory; stores use it when a status cannot be
// expressed in their query language.
func (f ListFilter) Matches(r *Record) bool {
	if f.ConsumerID != "" && r.ConsumerID != f.ConsumerID {
		return false
	}
	if f.Channel != "" && r.Channel != f.Channel {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	status := r.Status()
	for _, s := range f.Statuses {
		if s == status {
			return true
		}
	}
	return false
}
