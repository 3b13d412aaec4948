package model

import "strings"

// ReasonFlags records why a project is dirty. Reasons are informational;
// they never trigger a build on their own.
type ReasonFlags uint32

const (
	ProjectOutputNotFound ReasonFlags = 1 << iota
	InputsChanged
	DependencyChanged
	ProjectItemChanged
	AlwaysBuild
	AssociatedTestChanged
	DirectoryCacheDisabled
	OutputNotInPackages
)

var reasonNames = []struct {
	flag ReasonFlags
	name string
}{
	{ProjectOutputNotFound, "ProjectOutputNotFound"},
	{InputsChanged, "InputsChanged"},
	{DependencyChanged, "DependencyChanged"},
	{ProjectItemChanged, "ProjectItemChanged"},
	{AlwaysBuild, "AlwaysBuild"},
	{AssociatedTestChanged, "AssociatedTestChanged"},
	{DirectoryCacheDisabled, "DirectoryCacheDisabled"},
	{OutputNotInPackages, "OutputNotInPackages"},
}

// Has reports whether every bit of f is set.
func (r ReasonFlags) Has(f ReasonFlags) bool { return r&f == f && f != 0 }

func (r ReasonFlags) String() string {
	if r == 0 {
		return "None"
	}
	var parts []string
	for _, rn := range reasonNames {
		if r&rn.flag != 0 {
			parts = append(parts, rn.name)
		}
	}
	return strings.Join(parts, "|")
}

// BuildReason explains why a project is part of this build.
type BuildReason struct {
	Flags ReasonFlags `json:"flags"`
	// ChangedDependencies lists the dirty dependencies for DependencyChanged.
	ChangedDependencies []string `json:"changed_dependencies,omitempty"`
}
