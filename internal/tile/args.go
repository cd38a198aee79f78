package tile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrMissingPortArg   = errors.New("tile: missing port argument")
	ErrDuplicatePortArg = errors.New("tile: duplicate port argument")
	ErrInvalidPortArg   = errors.New("tile: invalid port argument")
)

// ParsePortArg extracts the control-plane port from launch arguments.
// Exactly one port=N token must appear; other arguments pass through
// untouched for the program itself.
func ParsePortArg(args []string) (int, error) {
	port := 0
	found := false
	for _, arg := range args {
		trimmed := strings.TrimSpace(arg)
		if !strings.HasPrefix(trimmed, "port=") {
			continue
		}
		if found {
			return 0, fmt.Errorf("%w: %q", ErrDuplicatePortArg, trimmed)
		}
		n, err := strconv.Atoi(strings.TrimPrefix(trimmed, "port="))
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidPortArg, trimmed)
		}
		if n < 1 || n > 65535 {
			return 0, fmt.Errorf("%w: %d out of range", ErrInvalidPortArg, n)
		}
		port = n
		found = true
	}
	if !found {
		return 0, ErrMissingPortArg
	}
	return port, nil
}
