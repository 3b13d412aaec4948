package model

import "strings"

const (
	initializeSuffix = ".Initialize"
	completionSuffix = ".Completion"
)

// InitializeID returns the id of the prologue node of a directory.
func InitializeID(name string) string { return name + initializeSuffix }

// CompletionID returns the id of the epilogue node of a directory.
func CompletionID(name string) string { return name + completionSuffix }

// DirectoryNode is one phase of a build directory (module root). Every
// directory has an Initialize node that runs before its projects and a
// Completion node that runs after them.
type DirectoryNode struct {
	base

	Name         string
	IsCompletion bool
	// AddedByDependencyAnalysis is set for directories pulled into the build
	// because they contribute dependencies, not because the user asked.
	AddedByDependencyAnalysis bool
	// RetrievePrebuilts is nil until the sequencer decides whether cached
	// artifacts for the directory may be restored.
	RetrievePrebuilts *bool
}

// NewDirectoryNode returns the Initialize or Completion node for name.
func NewDirectoryNode(name string, isCompletion bool) *DirectoryNode {
	id := InitializeID(name)
	if isCompletion {
		id = CompletionID(name)
	}
	return &DirectoryNode{base: base{id: id}, Name: name, IsCompletion: isCompletion}
}

func (d *DirectoryNode) Kind() Kind { return KindDirectory }

func (d *DirectoryNode) Key() string {
	if d.IsCompletion {
		return fold(d.Name) + completionSuffix
	}
	return fold(d.Name) + initializeSuffix
}

// SetRetrievePrebuilts records the restore decision.
func (d *DirectoryNode) SetRetrievePrebuilts(v bool) {
	d.RetrievePrebuilts = &v
}

// DirectoryNameFromID strips the phase suffix from a directory node id.
func DirectoryNameFromID(id string) (string, bool) {
	if name, ok := strings.CutSuffix(id, initializeSuffix); ok {
		return name, true
	}
	if name, ok := strings.CutSuffix(id, completionSuffix); ok {
		return name, true
	}
	return "", false
}
