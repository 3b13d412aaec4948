package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCycle is wrapped by every CycleError.
var ErrCycle = errors.New("cycle detected")

// CycleError reports one concrete cycle that could not be broken. Path
// starts and ends with the same vertex.
type CycleError[V comparable] struct {
	Path []V
}

func (e *CycleError[V]) Error() string {
	if e == nil || len(e.Path) == 0 {
		return ErrCycle.Error()
	}
	return fmt.Sprintf("%s: %s", ErrCycle.Error(), FormatPath(e.Path))
}

func (e *CycleError[V]) Unwrap() error { return ErrCycle }

// FormatPath renders a vertex path as "a -> b -> c".
func FormatPath[V any](path []V) string {
	parts := make([]string, 0, len(path))
	for _, v := range path {
		parts = append(parts, fmt.Sprint(v))
	}
	return strings.Join(parts, " -> ")
}
