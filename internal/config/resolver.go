// Package config resolves plugin options from layered key/value sources:
// explicit overrides, the process environment, a plugin configuration file
// and caller-supplied defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Kind names the declared type of an option.
type Kind string

// Option kinds.
const (
	KindString   Kind = "string"
	KindInt      Kind = "integer"
	KindDuration Kind = "duration"
	KindList     Kind = "list"
)

// Error reports an option value that is present but cannot be parsed as its
// declared kind.
type Error struct {
	Key   string
	Value string
	Kind  Kind
	Err   error
}

// Error returns the formatted error string.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("config: %s=%q: invalid %s", e.Key, e.Value, e.Kind)
	}
	return fmt.Sprintf("config: %s=%q: invalid %s: %v", e.Key, e.Value, e.Kind, e.Err)
}

// Unwrap returns the underlying parse error.
func (e *Error) Unwrap() error { return e.Err }

// Source is one layer of key/value options.
type Source interface {
	Lookup(key string) (string, bool)
}

// Map is a Source backed by a map.
type Map map[string]string

// Lookup implements Source.
func (m Map) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Env is a Source backed by environment variables.
// A nil LookupEnv reads the process environment.
type Env struct {
	LookupEnv func(string) (string, bool)
}

// Lookup implements Source.
func (e Env) Lookup(key string) (string, bool) {
	if e.LookupEnv == nil {
		return os.LookupEnv(key)
	}
	return e.LookupEnv(key)
}

// Resolver looks keys up in its sources in order; the first source holding a
// key wins.
type Resolver struct {
	sources []Source
}

// NewResolver creates a Resolver. Sources are given highest precedence first.
func NewResolver(sources ...Source) *Resolver {
	return &Resolver{sources: sources}
}

// Lookup returns the raw value of key from the highest-precedence source.
func (r *Resolver) Lookup(key string) (string, bool) {
	for _, s := range r.sources {
		if s == nil {
			continue
		}
		if v, ok := s.Lookup(key); ok {
			return v, true
		}
	}
	return "", false
}

// String returns the value of key, or def if absent.
func (r *Resolver) String(key, def string) string {
	if v, ok := r.Lookup(key); ok {
		return v
	}
	return def
}

// Int returns the integer value of key, or def if absent or blank.
func (r *Resolver) Int(key string, def int) (int, error) {
	v, ok := r.Lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, &Error{Key: key, Value: v, Kind: KindInt, Err: err}
	}
	return n, nil
}

// Duration returns the duration value of key, or def if absent or blank.
// A bare integer is read as seconds.
func (r *Resolver) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := r.Lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	s := strings.TrimSpace(v)
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, &Error{Key: key, Value: v, Kind: KindDuration, Err: err}
	}
	return d, nil
}

// List returns the comma-separated value of key split into trimmed tokens,
// or def if absent. A present but empty value yields an empty list.
func (r *Resolver) List(key string, def []string) []string {
	v, ok := r.Lookup(key)
	if !ok {
		return def
	}
	return SplitList(v)
}

// SplitList splits s on commas, trims every token and drops empty ones.
// Order and case are preserved.
func SplitList(s string) []string {
	out := []string{}
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}
