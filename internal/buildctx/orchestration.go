package buildctx

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// BuildCacheOptions controls how one dirty project affects the cache
// eligibility of its siblings.
type BuildCacheOptions int

const (
	// DisableCacheWhenProjectChanged rebuilds a whole directory as soon as
	// one of its projects is dirty.
	DisableCacheWhenProjectChanged BuildCacheOptions = iota
	// DoNotDisableCacheWhenProjectChanged keeps clean siblings cached.
	DoNotDisableCacheWhenProjectChanged
)

func (o BuildCacheOptions) String() string {
	if o == DoNotDisableCacheWhenProjectChanged {
		return "DoNotDisableCacheWhenProjectChanged"
	}
	return "DisableCacheWhenProjectChanged"
}

// ParseBuildCacheOptions parses an option name, ignoring case.
func ParseBuildCacheOptions(s string) (BuildCacheOptions, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "disablecachewhenprojectchanged":
		return DisableCacheWhenProjectChanged, nil
	case "donotdisablecachewhenprojectchanged":
		return DoNotDisableCacheWhenProjectChanged, nil
	default:
		return DisableCacheWhenProjectChanged, fmt.Errorf("unknown build cache option %q", s)
	}
}

// UnmarshalYAML decodes an option name.
func (o *BuildCacheOptions) UnmarshalYAML(n *yaml.Node) error {
	v, err := ParseBuildCacheOptions(n.Value)
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// MarshalYAML encodes the option name.
func (o BuildCacheOptions) MarshalYAML() (any, error) { return o.String(), nil }

// ExtensibilityImposition holds user overrides applied on top of the
// computed plan.
type ExtensibilityImposition struct {
	// AlwaysBuildProjects are project files built regardless of cache state.
	AlwaysBuildProjects []string          `yaml:"always_build_projects"`
	BuildCacheOptions   BuildCacheOptions `yaml:"build_cache_options"`
}

// OrchestrationFiles is the decoded orchestration file.
type OrchestrationFiles struct {
	ExtensibilityImposition ExtensibilityImposition `yaml:"extensibility_imposition"`
}

// AlwaysBuild reports whether projectFile is in the always-build list. The
// list may hold full paths, paths relative to the sources root or bare file
// names.
func (o OrchestrationFiles) AlwaysBuild(projectFile string) bool {
	p := strings.ToLower(filepath.ToSlash(projectFile))
	for _, entry := range o.ExtensibilityImposition.AlwaysBuildProjects {
		e := strings.ToLower(filepath.ToSlash(strings.TrimSpace(entry)))
		if e == "" {
			continue
		}
		if p == e || strings.HasSuffix(p, "/"+strings.TrimPrefix(e, "/")) {
			return true
		}
	}
	return false
}

// LoadOrchestrationFiles reads the YAML orchestration file. An empty path
// yields the defaults.
func LoadOrchestrationFiles(path string) (OrchestrationFiles, error) {
	var o OrchestrationFiles
	if path == "" {
		return o, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return o, err
	}
	if err := yaml.Unmarshal(data, &o); err != nil {
		return o, fmt.Errorf("parse orchestration file: %w", err)
	}
	return o, nil
}
