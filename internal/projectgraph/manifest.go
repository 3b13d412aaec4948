package projectgraph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/k8ika0s/build-sequencer/internal/model"
)

// Manifest is the evaluated project list handed over by the project system.
type Manifest struct {
	Projects []ProjectEntry `json:"projects" yaml:"projects"`
}

// ProjectEntry describes one evaluated project and its references.
type ProjectEntry struct {
	Path           string   `json:"path" yaml:"path"`
	Directory      string   `json:"directory" yaml:"directory"`
	GUID           string   `json:"guid,omitempty" yaml:"guid,omitempty"`
	TypeGuids      []string `json:"type_guids,omitempty" yaml:"type_guids,omitempty"`
	OutputAssembly string   `json:"output_assembly,omitempty" yaml:"output_assembly,omitempty"`
	ZipPackaged    bool     `json:"zip_packaged,omitempty" yaml:"zip_packaged,omitempty"`
	Web            bool     `json:"web,omitempty" yaml:"web,omitempty"`
	Test           bool     `json:"test,omitempty" yaml:"test,omitempty"`
	SdkStyle       bool     `json:"sdk_style,omitempty" yaml:"sdk_style,omitempty"`
	Solution       string   `json:"solution,omitempty" yaml:"solution,omitempty"`
	// ProjectReferences are paths of other projects in the manifest.
	ProjectReferences []string `json:"project_references,omitempty" yaml:"project_references,omitempty"`
	// AssemblyReferences name output files; they resolve to the producing project when known.
	AssemblyReferences []string `json:"assembly_references,omitempty" yaml:"assembly_references,omitempty"`
	ModuleReferences   []string `json:"module_references,omitempty" yaml:"module_references,omitempty"`
}

// LoadManifest reads a manifest from disk. Files ending in .json are decoded
// as JSON, anything else as YAML.
func LoadManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return m, err
	}
	return ParseManifest(data, strings.EqualFold(filepath.Ext(path), ".json"))
}

// ParseManifest decodes a manifest body.
func ParseManifest(data []byte, isJSON bool) (Manifest, error) {
	var m Manifest
	if isJSON {
		if err := json.Unmarshal(data, &m); err != nil {
			return m, fmt.Errorf("unmarshal manifest: %w", err)
		}
		return m, nil
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return m, nil
}

// WithRoot returns a copy whose relative project paths and project
// references are joined to root.
func (m Manifest) WithRoot(root string) Manifest {
	if root == "" {
		return m
	}
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) || strings.HasPrefix(p, "/") {
			return p
		}
		return filepath.ToSlash(filepath.Join(root, p))
	}
	out := Manifest{Projects: make([]ProjectEntry, len(m.Projects))}
	for i, e := range m.Projects {
		e.Path = abs(e.Path)
		refs := make([]string, len(e.ProjectReferences))
		for j, r := range e.ProjectReferences {
			refs[j] = abs(r)
		}
		e.ProjectReferences = refs
		out.Projects[i] = e
	}
	return out
}

// Build creates a graph holding every project and reference node of the
// manifest, then resolves references to projects and directories.
func (m Manifest) Build() (*Graph, error) {
	g := New()
	byKey := make(map[string]*model.ConfiguredProject)
	for _, e := range m.Projects {
		if e.Path == "" {
			return nil, fmt.Errorf("manifest project without path")
		}
		if e.Directory == "" {
			return nil, fmt.Errorf("project %s: directory required", e.Path)
		}
		p := model.NewProject(e.Path, e.Directory)
		if _, dup := byKey[p.Key()]; dup {
			return nil, fmt.Errorf("project %s listed twice", e.Path)
		}
		p.ProjectGUID = e.GUID
		p.ProjectTypeGuids = e.TypeGuids
		p.OutputAssembly = e.OutputAssembly
		p.ZipPackaged = e.ZipPackaged
		p.IsWebProject = e.Web
		p.IsTestProject = e.Test
		p.IsSdkStyle = e.SdkStyle
		p.SolutionFile = e.Solution
		byKey[p.Key()] = p
		g.Add(p)
	}

	for _, e := range m.Projects {
		p := byKey[model.NewProject(e.Path, e.Directory).Key()]
		for _, ref := range e.ProjectReferences {
			dep, ok := byKey[model.NewProject(ref, "").Key()]
			if !ok {
				return nil, fmt.Errorf("project %s: unknown project reference %s", e.Path, ref)
			}
			p.Dependencies().Add(dep)
		}
		for _, name := range e.AssemblyReferences {
			p.Dependencies().Add(g.Add(model.NewAssemblyRef(name)))
		}
		for _, name := range e.ModuleReferences {
			p.Dependencies().Add(g.Add(model.NewModuleRef(name)))
		}
	}
	g.ResolveReferences()
	return g, nil
}
