package acts

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrTargetExists  = errors.New("acts: target symbol already registered")
	ErrUnknownTarget = errors.New("acts: unknown target symbol")
	ErrInvalidSymbol = errors.New("acts: invalid target symbol")
	ErrNilTarget     = errors.New("acts: target is nil")
)

// Target is the object surface actions operate on. Implementations
// expose named fields and invokable methods; how they map names onto
// real state is theirs to decide.
type Target interface {
	SetField(name string, value any) error
	Field(name string) (any, error)
	Invoke(method string, args []any, kwargs map[string]any) (any, error)
}

// Targets stores action targets by symbol.
type Targets struct {
	mu    sync.RWMutex
	items map[string]Target
}

// NewTargets creates an empty target registry.
func NewTargets() *Targets {
	return &Targets{items: make(map[string]Target)}
}

// Register adds a target under a symbol.
func (r *Targets) Register(symbol string, t Target) error {
	symbol = strings.TrimSpace(symbol)
	if !isValidKind(symbol) {
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	if t == nil {
		return ErrNilTarget
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[symbol]; ok {
		return fmt.Errorf("%w: %q", ErrTargetExists, symbol)
	}
	r.items[symbol] = t
	return nil
}

// Get returns the target registered under a symbol.
func (r *Targets) Get(symbol string) (Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.items[symbol]
	return t, ok
}

// Symbols returns deterministic symbol ordering.
func (r *Targets) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	symbols := make([]string, 0, len(r.items))
	for symbol := range r.items {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}
