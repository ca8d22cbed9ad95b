package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"mqas/internal/logging"
)

// BuiltinSource is the module name of the functions returned by Builtins.
const BuiltinSource = "builtin"

// BuiltinOption adjusts the functions returned by Builtins.
type BuiltinOption func(*builtinOptions)

type builtinOptions struct {
	exec bool
}

// WithExec adds builtin.exec, which runs whatever command a job names.
// Only enable it when every producer that can reach the store is trusted.
func WithExec() BuiltinOption {
	return func(o *builtinOptions) { o.exec = true }
}

// Builtins returns the stock functions every mqas worker can run:
//
//	builtin.echo   returns its arguments
//	builtin.sleep  waits N seconds (first argument) and returns N
//	builtin.fail   returns an error built from its arguments
//	builtin.log    writes its arguments to the worker log; usable as a job logger
//	builtin.exec   runs a command and returns its combined output (WithExec only)
func Builtins(logger *slog.Logger, opts ...BuiltinOption) Source {
	var o builtinOptions
	for _, opt := range opts {
		opt(&o)
	}
	logger = logging.NewComponentLogger(logger, "builtin")
	funcs := map[string]Func{
		"echo":  echo,
		"sleep": sleep,
		"fail":  fail,
		"log": func(ctx context.Context, args ...any) (any, error) {
			logging.WithContext(ctx, logger).Info("job event", logging.Any("args", args))
			return nil, nil
		},
	}
	if o.exec {
		funcs["exec"] = execCommand
	}
	return Source{Name: BuiltinSource, Funcs: funcs}
}

func echo(_ context.Context, args ...any) (any, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	return args, nil
}

func sleep(ctx context.Context, args ...any) (any, error) {
	if len(args) == 0 {
		return nil, errors.New("sleep: missing duration in seconds")
	}
	seconds, err := toFloat(args[0])
	if err != nil {
		return nil, fmt.Errorf("sleep: %w", err)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Duration(seconds * float64(time.Second))):
	}
	return seconds, nil
}

func fail(_ context.Context, args ...any) (any, error) {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if _, ok := arg.(map[string]any); ok {
			continue
		}
		parts = append(parts, fmt.Sprint(arg))
	}
	if len(parts) == 0 {
		return nil, errors.New("builtin.fail invoked")
	}
	return nil, errors.New(strings.Join(parts, " "))
}

func execCommand(ctx context.Context, args ...any) (any, error) {
	argv, env := splitArgs(args)
	if len(argv) == 0 {
		return nil, errors.New("exec: missing command")
	}
	return runCommand(ctx, argv, "", env)
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("unsupported numeric value %v (%T)", value, value)
	}
}
