package camo

import "fmt"

// InputError reports a missing or unreadable input, reference or index.
// It is raised before any locus is processed.
type InputError struct {
	Kind string // "input", "reference", "reference index", ...
	Path string
	Err  error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s is unavailable", e.Kind, e.Path)
}

func (e *InputError) Unwrap() error { return e.Err }

// ConfigError reports an out-of-range or unrecognized option
type ConfigError struct {
	Option string
	Value  interface{}
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Option, e.Value, e.Reason)
}

// MalformedRecordError reports a structurally invalid alignment record.
// How it is handled depends on the validation stringency.
type MalformedRecordError struct {
	Contig string
	Name   string
	Pos    int
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record %q at %s:%d: %s", e.Name, e.Contig, e.Pos, e.Reason)
}

// InvariantError reports an internal consistency failure. It always aborts the run.
type InvariantError struct {
	Contig string
	Pos    int
	Reason string
}

func (e *InvariantError) Error() string {
	if e.Contig == "" {
		return "invariant violated: " + e.Reason
	}
	return fmt.Sprintf("invariant violated at %s:%d: %s", e.Contig, e.Pos, e.Reason)
}
