package registry

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// Command binds a dotted identifier to a fixed program. The job's
// positional arguments are appended to Argv and its keyword arguments are
// exported as environment variables alongside Env.
type Command struct {
	Name string
	Argv []string
	Dir  string
	Env  []string
}

// CommandSources groups commands by module into Sources.
func CommandSources(cmds ...Command) ([]Source, error) {
	byModule := make(map[string]map[string]Func)
	for _, c := range cmds {
		name := strings.TrimSpace(c.Name)
		idx := strings.LastIndex(name, ".")
		if idx <= 0 || idx == len(name)-1 {
			return nil, &ResolutionError{Name: c.Name, Reason: "expected a dotted module.function identifier"}
		}
		if len(c.Argv) == 0 || c.Argv[0] == "" {
			return nil, fmt.Errorf("command %s: argv must name a program", name)
		}
		module, fnName := name[:idx], name[idx+1:]
		funcs, ok := byModule[module]
		if !ok {
			funcs = make(map[string]Func)
			byModule[module] = funcs
		}
		if _, dup := funcs[fnName]; dup {
			return nil, fmt.Errorf("command %s defined twice", name)
		}
		funcs[fnName] = c.run
	}

	modules := make([]string, 0, len(byModule))
	for module := range byModule {
		modules = append(modules, module)
	}
	sort.Strings(modules)
	sources := make([]Source, 0, len(modules))
	for _, module := range modules {
		sources = append(sources, Source{Name: module, Funcs: byModule[module]})
	}
	return sources, nil
}

func (c Command) run(ctx context.Context, args ...any) (any, error) {
	extra, env := splitArgs(args)
	argv := append(append([]string(nil), c.Argv...), extra...)
	return runCommand(ctx, argv, c.Dir, append(append([]string(nil), c.Env...), env...))
}

// splitArgs renders positional args as strings and a trailing kwargs map as
// KEY=value pairs.
func splitArgs(args []any) ([]string, []string) {
	argv := make([]string, 0, len(args))
	var env []string
	for _, arg := range args {
		if kwargs, ok := arg.(map[string]any); ok {
			keys := make([]string, 0, len(kwargs))
			for k := range kwargs {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				env = append(env, fmt.Sprintf("%s=%v", k, kwargs[k]))
			}
			continue
		}
		argv = append(argv, fmt.Sprint(arg))
	}
	return argv, env
}

func runCommand(ctx context.Context, argv []string, dir string, env []string) (any, error) {
	if len(argv) == 0 {
		return nil, errors.New("missing command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(cmd.Environ(), env...)
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("exec %s: %w: %s", argv[0], err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}
