package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"mqas/internal/queue"
)

type payloadModel struct {
	FunctionName string         `bson:"function_name"`
	JobTimeout   *int64         `bson:"job_timeout"`
	Description  *string        `bson:"description"`
	OnSuccess    *string        `bson:"on_success"`
	OnFailure    *string        `bson:"on_failure"`
	Args         bson.A         `bson:"args"`
	Kwargs       map[string]any `bson:"kwargs"`
}

type jobModel struct {
	ID              any          `bson:"_id"`
	Data            payloadModel `bson:"data"`
	ItemType        string       `bson:"item_type"`
	ConsumerID      string       `bson:"consumer_id"`
	DependsOn       bson.A       `bson:"depends_on"`
	Lang            string       `bson:"lang"`
	ResultTTL       *int64       `bson:"result_ttl"`
	TTL             *int64       `bson:"ttl"`
	FailureTTL      *int64       `bson:"failure_ttl"`
	MaxAttempts     int          `bson:"max_attempts"`
	Channel         string       `bson:"channel"`
	InProgress      bool         `bson:"inProgress"`
	Done            bool         `bson:"done"`
	Error           bool         `bson:"error,omitempty"`
	Attempts        int          `bson:"attempts"`
	Progress        int          `bson:"progress"`
	ProgressMessage string       `bson:"progressMessage,omitempty"`
	Priority        int          `bson:"priority"`
	Result          any          `bson:"result,omitempty"`
	ErrorMessage    string       `bson:"errorMessage,omitempty"`
	CreatedAt       time.Time    `bson:"createdAt"`
	StartedAt       *time.Time   `bson:"startedAt,omitempty"`
	CompletedAt     *time.Time   `bson:"completedAt,omitempty"`
	LastErrorAt     *time.Time   `bson:"lastErrorAt,omitempty"`
	LastProgressAt  *time.Time   `bson:"lastProgressAt,omitempty"`
	ReleasedAt      *time.Time   `bson:"releasedAt,omitempty"`
}

func toJobModel(rec *queue.Record, id any) *jobModel {
	args := make(bson.A, 0, len(rec.Args))
	args = append(args, rec.Args...)
	m := &jobModel{
		ID: id,
		Data: payloadModel{
			FunctionName: rec.FunctionName,
			JobTimeout:   secondsPtr(rec.JobTimeout),
			Description:  stringPtr(rec.Description),
			OnSuccess:    stringPtr(rec.OnSuccess),
			OnFailure:    stringPtr(rec.OnFailure),
			Args:         args,
			Kwargs:       rec.Kwargs,
		},
		ItemType:    queue.ItemType,
		ConsumerID:  rec.ConsumerID,
		Lang:        rec.Lang,
		ResultTTL:   secondsPtr(rec.ResultTTL),
		TTL:         secondsPtr(rec.TTL),
		FailureTTL:  secondsPtr(rec.FailureTTL),
		MaxAttempts: rec.MaxAttempts,
		Channel:     rec.Channel,
		Priority:    rec.Priority,
		CreatedAt:   rec.CreatedAt.UTC(),
	}
	if len(rec.DependsOn) > 0 {
		m.DependsOn = toIDs(rec.DependsOn)
	}
	return m
}

func fromJobModel(m *jobModel) *queue.Record {
	rec := &queue.Record{
		ID:              idString(m.ID),
		ItemType:        m.ItemType,
		Channel:         m.Channel,
		Lang:            m.Lang,
		ConsumerID:      m.ConsumerID,
		FunctionName:    m.Data.FunctionName,
		Args:            normalizeList(m.Data.Args),
		Description:     deref(m.Data.Description),
		OnSuccess:       deref(m.Data.OnSuccess),
		OnFailure:       deref(m.Data.OnFailure),
		Priority:        m.Priority,
		InProgress:      m.InProgress,
		Done:            m.Done,
		Error:           m.Error,
		Attempts:        m.Attempts,
		MaxAttempts:     m.MaxAttempts,
		Progress:        m.Progress,
		ProgressMessage: m.ProgressMessage,
		Result:          normalize(m.Result),
		ErrorMessage:    m.ErrorMessage,
		JobTimeout:      seconds(m.Data.JobTimeout),
		ResultTTL:       seconds(m.ResultTTL),
		TTL:             seconds(m.TTL),
		FailureTTL:      seconds(m.FailureTTL),
		CreatedAt:       m.CreatedAt.UTC(),
		StartedAt:       utc(m.StartedAt),
		CompletedAt:     utc(m.CompletedAt),
		LastErrorAt:     utc(m.LastErrorAt),
		LastProgressAt:  utc(m.LastProgressAt),
		ReleasedAt:      utc(m.ReleasedAt),
	}
	if len(m.Data.Kwargs) > 0 {
		rec.Kwargs = make(map[string]any, len(m.Data.Kwargs))
		for k, v := range m.Data.Kwargs {
			rec.Kwargs[k] = normalize(v)
		}
	}
	for _, dep := range m.DependsOn {
		rec.DependsOn = append(rec.DependsOn, idString(dep))
	}
	return rec
}

// normalize converts decoded BSON into the JSON-shaped values the other
// stores return: documents become maps and every number becomes float64.
func normalize(v any) any {
	switch value := v.(type) {
	case bson.D:
		out := make(map[string]any, len(value))
		for _, e := range value {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(value))
		for k, e := range value {
			out[k] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, e := range value {
			out[k] = normalize(e)
		}
		return out
	case bson.A:
		return normalizeList(value)
	case []any:
		return normalizeList(value)
	case int32:
		return float64(value)
	case int64:
		return float64(value)
	case int:
		return float64(value)
	case bson.ObjectID:
		return value.Hex()
	case bson.DateTime:
		return value.Time().UTC()
	default:
		return v
	}
}

func normalizeList(values []any) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, normalize(v))
	}
	return out
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func stringPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func secondsPtr(value time.Duration) *int64 {
	if value <= 0 {
		return nil
	}
	secs := int64(value / time.Second)
	return &secs
}

func seconds(value *int64) time.Duration {
	if value == nil {
		return 0
	}
	return time.Duration(*value) * time.Second
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
