package mosaic

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var ErrInvalidTile = errors.New("mosaic: invalid tile")

// Tile identifies one launchable worker program. The name derives from
// the program path basename with its extension stripped and is the
// identity the worker registers under.
type Tile struct {
	name string
	path string
}

// NewTile builds a descriptor from a program path.
func NewTile(path string) (Tile, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return Tile{}, fmt.Errorf("%w: empty path", ErrInvalidTile)
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return Tile{}, fmt.Errorf("%w: %v", ErrInvalidTile, err)
	}
	base := filepath.Base(abs)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return Tile{}, fmt.Errorf("%w: path %q yields no usable name", ErrInvalidTile, path)
	}
	return Tile{name: name, path: abs}, nil
}

// NewTileNamed overrides the derived name, for programs whose basenames
// collide. An empty name keeps the derived one.
func NewTileNamed(name, path string) (Tile, error) {
	t, err := NewTile(path)
	if err != nil {
		return Tile{}, err
	}
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		t.name = trimmed
	}
	return t, nil
}

func (t Tile) Name() string { return t.name }

func (t Tile) Path() string { return t.path }

// Zero reports whether the descriptor was never constructed.
func (t Tile) Zero() bool { return t.name == "" }
