package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a record in a transport-friendly format.
type Job struct {
	ID           string         `json:"id"`
	FunctionName string         `json:"function_name"`
	Status       string         `json:"status"`
	Channel      string         `json:"channel"`
	Lang         string         `json:"lang"`
	ConsumerID   string         `json:"consumer_id"`
	Args         []any          `json:"args"`
	Kwargs       map[string]any `json:"kwargs,omitempty"`
	Description  string         `json:"description,omitempty"`
	OnSuccess    string         `json:"on_success,omitempty"`
	OnFailure    string         `json:"on_failure,omitempty"`
	Priority     int            `json:"priority"`
	DependsOn    []string       `json:"depends_on,omitempty"`
	Attempts     int            `json:"attempts"`
	MaxAttempts  int            `json:"max_attempts"`
	Progress     JobProgress    `json:"progress"`
	Result       any            `json:"result,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`

	JobTimeout int64 `json:"job_timeout,omitempty"`
	ResultTTL  int64 `json:"result_ttl,omitempty"`
	TTL        int64 `json:"ttl,omitempty"`
	FailureTTL int64 `json:"failure_ttl,omitempty"`

	CreatedAt      string `json:"created_at,omitempty"`
	StartedAt      string `json:"started_at,omitempty"`
	CompletedAt    string `json:"completed_at,omitempty"`
	LastErrorAt    string `json:"last_error_at,omitempty"`
	LastProgressAt string `json:"last_progress_at,omitempty"`
	ReleasedAt     string `json:"released_at,omitempty"`
}

// JobProgress captures the last progress report of a job.
type JobProgress struct {
	Percent int    `json:"percent"`
	Message string `json:"message,omitempty"`
}

// EnqueueResponse acknowledges a queued job.
type EnqueueResponse struct {
	ID string `json:"id"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Items []Job `json:"items"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Item Job `json:"item"`
}

// StatsResponse summarizes a partition.
type StatsResponse struct {
	ConsumerID string         `json:"consumer_id"`
	Total      int            `json:"total"`
	Counts     map[string]int `json:"counts"`
	Channels   map[string]int `json:"channels"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}
