package graph

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func chain(edges ...[2]string) *Graph[string, string] {
	g := New[string, string]()
	for _, e := range edges {
		g.AddEdge(e[0], e[1], e[0]+">"+e[1])
	}
	return g
}

func position(order []string) map[string]int {
	pos := make(map[string]int, len(order))
	for i, v := range order {
		pos[v] = i
	}
	return pos
}

func TestTopologicalSortRespectsEdges(t *testing.T) {
	g := chain([2]string{"a", "b"}, [2]string{"b", "d"}, [2]string{"a", "c"}, [2]string{"c", "d"}, [2]string{"e", "d"})
	order, err := g.TopologicalSort(nil)
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	if len(order) != g.Len() {
		t.Fatalf("expected %d vertices, got %v", g.Len(), order)
	}
	pos := position(order)
	for _, v := range g.Vertices() {
		for _, s := range g.Successors(v) {
			if pos[v] >= pos[s] {
				t.Fatalf("%s sorted after successor %s: %v", v, s, order)
			}
		}
	}
}

func TestTopologicalSortIsStable(t *testing.T) {
	g := New[string, string]()
	for _, v := range []string{"z", "y", "x"} {
		g.AddVertex(v)
	}
	g.AddEdge("y", "w", "")
	order, err := g.TopologicalSort(nil)
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	if diff := cmp.Diff([]string{"z", "y", "x", "w"}, order); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestBatchingTopologicalSortWaves(t *testing.T) {
	g := chain([2]string{"a", "c"}, [2]string{"b", "c"}, [2]string{"c", "d"}, [2]string{"a", "d"})
	g.AddVertex("e")
	waves, err := g.BatchingTopologicalSort(nil)
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	want := [][]string{{"a", "b", "e"}, {"c"}, {"d"}}
	if diff := cmp.Diff(want, waves); diff != "" {
		t.Fatalf("unexpected waves (-want +got):\n%s", diff)
	}

	waveOf := make(map[string]int)
	for i, w := range waves {
		for _, v := range w {
			waveOf[v] = i
		}
	}
	for _, v := range g.Vertices() {
		for _, p := range g.Predecessors(v) {
			if waveOf[p] >= waveOf[v] {
				t.Fatalf("predecessor %s of %s not in an earlier wave", p, v)
			}
		}
	}
}

func TestParallelEdgesAreCoalesced(t *testing.T) {
	g := New[string, string]()
	g.AddEdge("a", "b", "project")
	g.AddEdge("a", "b", "assembly")
	if got := g.Successors("a"); len(got) != 1 {
		t.Fatalf("expected one successor entry, got %v", got)
	}
	if diff := cmp.Diff([]string{"project", "assembly"}, g.Edges("a", "b")); diff != "" {
		t.Fatalf("labels (-want +got):\n%s", diff)
	}
	if got := g.Predecessors("b"); len(got) != 1 || got[0] != "a" {
		t.Fatalf("unexpected predecessors %v", got)
	}
}

func TestCycleWithoutBreakerFails(t *testing.T) {
	g := chain([2]string{"root", "a"}, [2]string{"a", "b"}, [2]string{"b", "c"}, [2]string{"c", "a"})
	_, err := g.TopologicalSort(nil)
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
	var ce *CycleError[string]
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CycleError, got %T", err)
	}
	if len(ce.Path) < 2 || ce.Path[0] != ce.Path[len(ce.Path)-1] {
		t.Fatalf("cycle path not closed: %v", ce.Path)
	}
	for _, v := range ce.Path {
		if v == "root" {
			t.Fatalf("root is not on the cycle: %v", ce.Path)
		}
	}
	for i := 0; i+1 < len(ce.Path); i++ {
		if len(g.Edges(ce.Path[i], ce.Path[i+1])) == 0 {
			t.Fatalf("path step %s -> %s is not an edge", ce.Path[i], ce.Path[i+1])
		}
	}
	if !strings.Contains(err.Error(), " -> ") {
		t.Fatalf("expected formatted path in %q", err.Error())
	}
}

func TestSelfLoopIsACycle(t *testing.T) {
	g := chain([2]string{"a", "a"})
	_, err := g.BatchingTopologicalSort(nil)
	var ce *CycleError[string]
	if !errors.As(err, &ce) {
		t.Fatalf("expected cycle error, got %v", err)
	}
	if diff := cmp.Diff([]string{"a", "a"}, ce.Path); diff != "" {
		t.Fatalf("path (-want +got):\n%s", diff)
	}
}

func TestCycleBrokenByPredicate(t *testing.T) {
	g := New[string, string]()
	g.AddEdge("a", "b", "hard")
	g.AddEdge("b", "a", "soft")
	g.AddEdge("b", "c", "hard")

	order, err := g.TopologicalSort(func(_, _ string, labels []string) bool {
		for _, l := range labels {
			if l != "soft" {
				return false
			}
		}
		return true
	})
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, order); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
	if len(g.Edges("b", "a")) != 1 {
		t.Fatalf("breaking an edge must not modify the graph")
	}
}

func TestCycleBreakingKeepsEdgesOutsideTheCycle(t *testing.T) {
	g := New[string, string]()
	g.AddEdge("a", "x", "")
	g.AddEdge("a", "b", "")
	g.AddEdge("b", "a", "")
	anyEdge := func(_, _ string, _ []string) bool { return true }

	order, err := g.TopologicalSort(anyEdge)
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	if diff := cmp.Diff([]string{"b", "a", "x"}, order); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}

	waves, err := g.BatchingTopologicalSort(anyEdge)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if diff := cmp.Diff([][]string{{"b"}, {"a"}, {"x"}}, waves); diff != "" {
		t.Fatalf("waves (-want +got):\n%s", diff)
	}
}

func TestCycleNotBreakableFails(t *testing.T) {
	g := chain([2]string{"a", "b"}, [2]string{"b", "a"})
	_, err := g.TopologicalSort(func(_, _ string, _ []string) bool { return false })
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestGetUnreachableVertices(t *testing.T) {
	g := chain([2]string{"root", "a"}, [2]string{"a", "b"}, [2]string{"orphan", "b"})
	g.AddVertex("island")
	got := g.GetUnreachableVertices([]string{"root", "missing"})
	want := map[string]struct{}{"orphan": {}, "island": {}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unreachable (-want +got):\n%s", diff)
	}
}

func TestReverse(t *testing.T) {
	g := chain([2]string{"a", "b"}, [2]string{"b", "c"})
	r := g.Reverse()
	order, err := r.TopologicalSort(nil)
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	if diff := cmp.Diff([]string{"c", "b", "a"}, order); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
	if got := r.Edges("b", "a"); len(got) != 1 || got[0] != "a>b" {
		t.Fatalf("labels not carried over: %v", got)
	}
}
