package graph

import "errors"

// Sorter is a queue-style front end over the same ordering core as Graph,
// for callers that only need vertex ordering without edge labels.
type Sorter[T comparable] struct {
	g *Graph[T, struct{}]
}

// NewSorter returns an empty Sorter.
func NewSorter[T comparable]() *Sorter[T] {
	return &Sorter[T]{g: New[T, struct{}]()}
}

// Node registers n without any ordering constraint.
func (s *Sorter[T]) Node(n T) {
	s.g.AddVertex(n)
}

// Edge records that predecessor must be ordered before successor.
func (s *Sorter[T]) Edge(successor, predecessor T) {
	s.g.AddEdge(predecessor, successor, struct{}{})
}

// Sort returns the ordering. When the nodes cannot be ordered it returns
// false and one extracted cycle, with the cycle's first node repeated at the
// end.
func (s *Sorter[T]) Sort() (order []T, cycle []T, ok bool) {
	order, err := s.g.TopologicalSort(nil)
	if err != nil {
		var ce *CycleError[T]
		if errors.As(err, &ce) {
			return nil, ce.Path, false
		}
		return nil, nil, false
	}
	return order, nil, true
}
