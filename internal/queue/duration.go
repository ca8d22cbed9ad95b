package queue

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var compactDuration = regexp.MustCompile(`^(?:(\d+)w)?(?:(\d+)d)?(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)

// ParseDuration accepts whole seconds ("3600"), compact spans ("1w2d3h4m5s"),
// or anything time.ParseDuration understands ("1.5h"). Stores keep whole
// seconds, so a non-zero span shorter than one second is rejected.
func ParseDuration(value string) (time.Duration, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty duration", ErrInvalidArgument)
	}
	if secs, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("%w: negative duration %q", ErrInvalidArgument, value)
		}
		return time.Duration(secs) * time.Second, nil
	}
	if m := compactDuration.FindStringSubmatch(trimmed); m != nil {
		units := []time.Duration{7 * 24 * time.Hour, 24 * time.Hour, time.Hour, time.Minute, time.Second}
		var total time.Duration
		for i, unit := range units {
			if m[i+1] == "" {
				continue
			}
			n, err := strconv.ParseInt(m[i+1], 10, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: duration %q: %v", ErrInvalidArgument, value, err)
			}
			total += time.Duration(n) * unit
		}
		return total, nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: duration %q", ErrInvalidArgument, value)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: negative duration %q", ErrInvalidArgument, value)
	}
	if d > 0 && d < time.Second {
		return 0, fmt.Errorf("%w: duration %q is shorter than one second", ErrInvalidArgument, value)
	}
	return d, nil
}

func checkDuration(key string, d time.Duration) error {
	switch {
	case d < 0:
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidArgument, key)
	case d > 0 && d < time.Second:
		return fmt.Errorf("%w: %s must be zero or at least one second, got %v", ErrInvalidArgument, key, d)
	}
	return nil
}

// durationValue converts loosely typed option values (JSON numbers are
// seconds) into durations.
func durationValue(key string, value any) (time.Duration, error) {
	var d time.Duration
	switch v := value.(type) {
	case time.Duration:
		d = v
	case int:
		d = time.Duration(v) * time.Second
	case int64:
		d = time.Duration(v) * time.Second
	case float64:
		d = time.Duration(v * float64(time.Second))
	case string:
		parsed, err := ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		d = parsed
	default:
		return 0, fmt.Errorf("%w: %s has unsupported type %T", ErrInvalidArgument, key, value)
	}
	if err := checkDuration(key, d); err != nil {
		return 0, err
	}
	return d, nil
}
