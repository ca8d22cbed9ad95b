// Package registry maps the dotted function identifiers stored on job records
// ("module.function") to Go callables.
//
// Workers and job callbacks resolve names through a Registry built from an
// explicit list of Sources. Nothing is discovered from a global search path,
// so every process decides exactly which functions it is willing to run.
// Resolution failures are returned as *ResolutionError values wrapping
// ErrUnresolved; they are never fatal to the caller.
package registry
