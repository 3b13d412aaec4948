// Package model defines the vertices of a project dependency graph.
//
// Nodes refer to each other by id only; the owning graph holds the nodes by
// id, so relations such as project -> directory are plain id references.
package model

import "strings"

// Kind distinguishes node variants.
type Kind int

const (
	KindProject Kind = iota + 1
	KindDirectory
	KindModule
	KindAssembly
)

func (k Kind) String() string {
	switch k {
	case KindProject:
		return "project"
	case KindDirectory:
		return "directory"
	case KindModule:
		return "module"
	case KindAssembly:
		return "assembly"
	default:
		return "unknown"
	}
}

// Node is a vertex of the dependency graph. Edges point from the dependent
// node to its dependencies.
type Node interface {
	ID() string
	Kind() Kind
	// Key is the kind-specific equality key used to de-duplicate edges.
	Key() string
	Dependencies() *Dependencies
}

// Synthetic reports whether n is not a real project, i.e. a directory phase
// node or an unresolved module/assembly reference.
func Synthetic(n Node) bool {
	return n.Kind() != KindProject
}

type base struct {
	id   string
	deps Dependencies
}

func (b *base) ID() string                  { return b.id }
func (b *base) Dependencies() *Dependencies { return &b.deps }

// Dependencies is the DependsOn edge set of a node. Two nodes with the same
// kind and key are treated as one dependency.
type Dependencies struct {
	ids   []string
	byKey map[string]string // kind/key -> id
	keyOf map[string]string // id -> kind/key
}

func edgeKey(n Node) string {
	return n.Kind().String() + "/" + n.Key()
}

// Add records a dependency on n and reports whether it was new.
func (d *Dependencies) Add(n Node) bool {
	if d.byKey == nil {
		d.byKey = make(map[string]string)
		d.keyOf = make(map[string]string)
	}
	k := edgeKey(n)
	if _, ok := d.byKey[k]; ok {
		return false
	}
	if _, ok := d.keyOf[n.ID()]; ok {
		return false
	}
	d.byKey[k] = n.ID()
	d.keyOf[n.ID()] = k
	d.ids = append(d.ids, n.ID())
	return true
}

// Remove drops the dependency with the given id. Missing ids are ignored.
func (d *Dependencies) Remove(id string) bool {
	k, ok := d.keyOf[id]
	if !ok {
		return false
	}
	delete(d.keyOf, id)
	delete(d.byKey, k)
	for i, v := range d.ids {
		if v == id {
			d.ids = append(d.ids[:i:i], d.ids[i+1:]...)
			break
		}
	}
	return true
}

// Replace swaps the dependency oldID for n, keeping set semantics.
func (d *Dependencies) Replace(oldID string, n Node) {
	if d.Remove(oldID) {
		d.Add(n)
	}
}

// Contains reports whether a dependency with the given id exists.
func (d *Dependencies) Contains(id string) bool {
	_, ok := d.keyOf[id]
	return ok
}

// IDs returns dependency ids in insertion order.
func (d *Dependencies) IDs() []string {
	out := make([]string, len(d.ids))
	copy(out, d.ids)
	return out
}

// Len returns the number of dependencies.
func (d *Dependencies) Len() int { return len(d.ids) }

func fold(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "\\", "/"))
}
