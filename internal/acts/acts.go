// Package acts is the static dispatch table tile workers execute queued
// actions through. Action kinds map to registered handlers; targets are
// the named objects handlers mutate and invoke. Execution failures are
// caught here and reported as errors so a bad action never takes down
// the worker's poll loop.
package acts

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrActionExists  = errors.New("acts: action kind already registered")
	ErrUnknownAction = errors.New("acts: unknown action kind")
	ErrInvalidKind   = errors.New("acts: invalid action kind")
	ErrNilHandler    = errors.New("acts: handler is nil")
)

// Handler executes one action against its positional values.
type Handler func(values []any) error

// Table stores action handlers by kind.
type Table struct {
	mu        sync.RWMutex
	handlers  map[string]Handler
	terminate string
}

// NewTable creates an empty dispatch table.
func NewTable() *Table {
	return &Table{handlers: make(map[string]Handler)}
}

// Register adds a handler under an action kind.
func (t *Table) Register(kind string, h Handler) error {
	kind = strings.TrimSpace(kind)
	if !isValidKind(kind) {
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if h == nil {
		return ErrNilHandler
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.handlers[kind]; ok {
		return fmt.Errorf("%w: %q", ErrActionExists, kind)
	}
	t.handlers[kind] = h
	return nil
}

// Resolve returns the handler for a kind.
func (t *Table) Resolve(kind string) (Handler, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.handlers[kind]
	return h, ok
}

// Kinds returns deterministic kind ordering.
func (t *Table) Kinds() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	kinds := make([]string, 0, len(t.handlers))
	for kind := range t.handlers {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// SetTerminate marks a registered kind as the worker's shutdown action.
func (t *Table) SetTerminate(kind string) error {
	kind = strings.TrimSpace(kind)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.handlers[kind]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAction, kind)
	}
	t.terminate = kind
	return nil
}

// Terminate returns the shutdown kind, empty when none is set.
func (t *Table) Terminate() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.terminate
}

// Execute runs one action. Handler panics are recovered and returned as
// errors; the caller decides how to report them.
func (t *Table) Execute(kind string, values []any) (err error) {
	h, ok := t.Resolve(kind)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAction, kind)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("acts: action %q panicked: %v", kind, r)
		}
	}()
	if err := h(values); err != nil {
		return fmt.Errorf("acts: action %q failed: %w", kind, err)
	}
	return nil
}

// isValidKind enforces lowercase snake identifiers for action kinds.
func isValidKind(kind string) bool {
	if kind == "" {
		return false
	}
	lastSep := false
	for i := 0; i < len(kind); i++ {
		c := kind[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '.' || c == '-' || c == '_'
		if !(isLower || isDigit || isSep) {
			return false
		}
		if i == 0 || i == len(kind)-1 {
			if isSep {
				return false
			}
		}
		if isSep && lastSep {
			return false
		}
		lastSep = isSep
	}
	return true
}
