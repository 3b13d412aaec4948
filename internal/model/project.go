package model

import (
	"path"
	"strings"
)

// WebApplicationTypeGUID marks web application projects in ProjectTypeGuids.
const WebApplicationTypeGUID = "{349c5851-65df-11da-9384-00065b846f21}"

// TestProjectTypeGUID marks test projects in ProjectTypeGuids.
const TestProjectTypeGUID = "{3ac096d0-a1c2-e12c-1390-a8335801fdab}"

// ConfiguredProject is a project file evaluated for one configuration.
type ConfiguredProject struct {
	base

	FullPath         string
	ProjectGUID      string
	ProjectTypeGuids []string
	// OutputAssembly is the primary output file name, e.g. "Foo.dll".
	OutputAssembly string
	// ZipPackaged projects are restored from "<OutputAssembly stem>.zip".
	ZipPackaged   bool
	IsWebProject  bool
	IsTestProject bool
	IsSdkStyle    bool
	SolutionFile  string
	// Directory is the name of the owning directory (bucket tag).
	Directory string

	IncludeInBuild bool
	IsDirty        bool
	BuildReason    *BuildReason
}

// NewProject returns a project identified by its full path.
func NewProject(fullPath, directory string) *ConfiguredProject {
	p := strings.ReplaceAll(fullPath, "\\", "/")
	return &ConfiguredProject{
		base:           base{id: p},
		FullPath:       p,
		Directory:      directory,
		IncludeInBuild: true,
	}
}

func (p *ConfiguredProject) Kind() Kind  { return KindProject }
func (p *ConfiguredProject) Key() string { return fold(p.FullPath) }

// ProjectFileName returns the file name part of FullPath.
func (p *ConfiguredProject) ProjectFileName() string {
	return path.Base(p.FullPath)
}

// ProjectDir returns the directory that contains the project file.
func (p *ConfiguredProject) ProjectDir() string {
	return path.Dir(p.FullPath)
}

// IsWeb reports whether the project deploys web artifacts.
func (p *ConfiguredProject) IsWeb() bool {
	if p.IsWebProject {
		return true
	}
	return p.hasTypeGUID(WebApplicationTypeGUID)
}

// IsTest reports whether the project is a test project.
func (p *ConfiguredProject) IsTest() bool {
	if p.IsTestProject {
		return true
	}
	return p.hasTypeGUID(TestProjectTypeGUID)
}

func (p *ConfiguredProject) hasTypeGUID(guid string) bool {
	for _, g := range p.ProjectTypeGuids {
		if strings.EqualFold(strings.TrimSpace(g), guid) {
			return true
		}
	}
	return false
}

// ExpectedOutput is the file name that must be present in a restorable
// artifact package for this project's cached output to be usable.
func (p *ConfiguredProject) ExpectedOutput() string {
	if p.ZipPackaged {
		name := p.OutputAssembly
		if ext := path.Ext(name); ext != "" {
			name = strings.TrimSuffix(name, ext)
		}
		if name == "" {
			name = strings.TrimSuffix(p.ProjectFileName(), path.Ext(p.ProjectFileName()))
		}
		return name + ".zip"
	}
	return p.OutputAssembly
}

// SetReason records why the project is built. Only the first reason set in a
// build is kept.
func (p *ConfiguredProject) SetReason(flags ReasonFlags, changedDependencies ...string) bool {
	if p.BuildReason != nil && p.BuildReason.Flags != 0 {
		return false
	}
	p.BuildReason = &BuildReason{Flags: flags, ChangedDependencies: changedDependencies}
	return true
}

// MarkDirty flags the project for rebuild and records the reason.
func (p *ConfiguredProject) MarkDirty(flags ReasonFlags, changedDependencies ...string) {
	p.IsDirty = true
	p.SetReason(flags, changedDependencies...)
}

// Reason returns the recorded reason flags, or zero.
func (p *ConfiguredProject) Reason() ReasonFlags {
	if p.BuildReason == nil {
		return 0
	}
	return p.BuildReason.Flags
}

// OutOfDate reports whether the cached output of the project cannot be used,
// whether or not the project is part of this build.
func (p *ConfiguredProject) OutOfDate() bool {
	return p.IsDirty || p.Reason().Has(OutputNotInPackages)
}

// RequiresBuilding reports whether the project must be built rather than
// restored from cache.
func (p *ConfiguredProject) RequiresBuilding() bool {
	return p.IncludeInBuild && p.OutOfDate()
}
