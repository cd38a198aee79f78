package main

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// board is the demo action target: a mutable field bag with a few
// invokable methods, standing in for whatever surface a real worker
// drives.
type board struct {
	mu     sync.Mutex
	fields map[string]any
}

func newBoard() *board {
	return &board{fields: make(map[string]any)}
}

func (b *board) SetField(name string, value any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fields[name] = value
	return nil
}

func (b *board) Field(name string) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.fields[name]
	if !ok {
		return nil, fmt.Errorf("board has no field %q", name)
	}
	return v, nil
}

func (b *board) Invoke(method string, args []any, kwargs map[string]any) (any, error) {
	switch method {
	case "reset":
		b.mu.Lock()
		b.fields = make(map[string]any)
		b.mu.Unlock()
		log.Info().Msg("board_reset")
		return nil, nil
	case "echo":
		log.Info().Interface("args", args).Interface("kwargs", kwargs).Msg("board_echo")
		return args, nil
	case "set_many":
		if len(kwargs) == 0 {
			return nil, fmt.Errorf("set_many expects at least one field")
		}
		b.mu.Lock()
		for name, value := range kwargs {
			b.fields[name] = value
		}
		b.mu.Unlock()
		return nil, nil
	default:
		return nil, fmt.Errorf("board has no method %q", method)
	}
}
