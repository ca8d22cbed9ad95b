package registry

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Func is a callable a job can name. Positional job args are passed in order;
// when the job carries keyword arguments they arrive as a trailing
// map[string]any.
type Func func(ctx context.Context, args ...any) (any, error)

// Source is a named group of functions, addressed as "<Name>.<function>".
type Source struct {
	Name  string
	Funcs map[string]Func
}

// ErrUnresolved marks identifiers that do not map to a registered function.
var ErrUnresolved = errors.New("function not resolvable")

// ResolutionError describes why an identifier could not be resolved.
type ResolutionError struct {
	Name   string
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %q: %s", e.Name, e.Reason)
}

func (e *ResolutionError) Unwrap() error { return ErrUnresolved }

// Registry maps dotted identifiers to functions. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]map[string]Func
	names   map[uintptr]string
}

// New builds a registry from explicit sources. Later sources replace earlier
// functions registered under the same identifier.
func New(sources ...Source) *Registry {
	r := &Registry{
		sources: make(map[string]map[string]Func),
		names:   make(map[uintptr]string),
	}
	for _, src := range sources {
		r.Register(src)
	}
	return r
}

// Register adds or extends a source.
func (r *Registry) Register(src Source) {
	name := strings.TrimSpace(src.Name)
	r.mu.Lock()
	defer r.mu.Unlock()
	funcs, ok := r.sources[name]
	if !ok {
		funcs = make(map[string]Func, len(src.Funcs))
		r.sources[name] = funcs
	}
	for fnName, fn := range src.Funcs {
		if fn == nil {
			continue
		}
		funcs[fnName] = fn
		full := name + "." + fnName
		ptr := funcPointer(fn)
		if prev, seen := r.names[ptr]; seen && prev != full {
			// closures of one literal share code; NameOf cannot tell them apart
			r.names[ptr] = ""
			continue
		}
		r.names[ptr] = full
	}
}

// Resolve maps "module.function" to a callable. The module part may itself
// contain dots; the final segment names the function.
func (r *Registry) Resolve(name string) (Func, error) {
	trimmed := strings.TrimSpace(name)
	idx := strings.LastIndex(trimmed, ".")
	if idx <= 0 || idx == len(trimmed)-1 {
		return nil, &ResolutionError{Name: name, Reason: "expected a dotted module.function identifier"}
	}
	module, fnName := trimmed[:idx], trimmed[idx+1:]

	if r == nil {
		return nil, &ResolutionError{Name: name, Reason: "no registry configured"}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	funcs, ok := r.sources[module]
	if !ok {
		return nil, &ResolutionError{Name: name, Reason: fmt.Sprintf("unknown module %q", module)}
	}
	fn, ok := funcs[fnName]
	if !ok {
		return nil, &ResolutionError{Name: name, Reason: fmt.Sprintf("module %q has no function %q", module, fnName)}
	}
	return fn, nil
}

// NameOf returns the identifier a registered function was stored under.
// Functions are matched by code pointer, so a function registered under two
// names (or two closures built from one literal) has no name here and
// callers must refer to it by identifier.
func (r *Registry) NameOf(fn Func) (string, bool) {
	if r == nil || fn == nil {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	name := r.names[funcPointer(fn)]
	return name, name != ""
}

// Names lists every registered identifier in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for module, funcs := range r.sources {
		for fnName := range funcs {
			out = append(out, module+"."+fnName)
		}
	}
	sort.Strings(out)
	return out
}

func funcPointer(fn Func) uintptr {
	return reflect.ValueOf(fn).Pointer()
}
