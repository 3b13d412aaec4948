// Package plan persists the outcome of sequencing as plan.json.
package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/k8ika0s/build-sequencer/internal/model"
	"github.com/k8ika0s/build-sequencer/internal/sequencer"
)

// FileName is the snapshot file written by Generate.
const FileName = "plan.json"

// Action values of a Node.
const (
	ActionBuild   = "build"
	ActionRestore = "restore"
	ActionPhase   = "phase"
)

// Node is one vertex of the plan.
type Node struct {
	ID                  string   `json:"id"`
	Kind                string   `json:"kind"`
	Directory           string   `json:"directory,omitempty"`
	Action              string   `json:"action"`
	Deps                []string `json:"deps,omitempty"`
	RequiresBuilding    bool     `json:"requires_building,omitempty"`
	BuildReason         string   `json:"build_reason,omitempty"`
	ChangedDependencies []string `json:"changed_dependencies,omitempty"`
}

// Snapshot is the structure stored in plan.json.
type Snapshot struct {
	RunID             string           `json:"run_id"`
	Waves             [][]string       `json:"waves"`
	Nodes             []Node           `json:"nodes"`
	RetrievePrebuilts map[string]*bool `json:"retrieve_prebuilts,omitempty"`
	Pruned            []string         `json:"pruned,omitempty"`
	DirectoryOrder    []string         `json:"directory_order,omitempty"`
	Build             int              `json:"build"`
	Cached            int              `json:"cached"`
}

// FromPlan flattens a sequencer plan.
func FromPlan(runID string, p *sequencer.Plan) Snapshot {
	snap := Snapshot{
		RunID:             runID,
		Waves:             p.Waves,
		RetrievePrebuilts: p.RetrievePrebuilts(),
		Pruned:            p.Pruned,
		DirectoryOrder:    p.DirectoryOrder,
	}
	snap.Build, snap.Cached = p.Counts()
	for _, wave := range p.Waves {
		for _, id := range wave {
			n, ok := p.Graph.Node(id)
			if !ok {
				continue
			}
			snap.Nodes = append(snap.Nodes, toNode(n))
		}
	}
	return snap
}

func toNode(n model.Node) Node {
	out := Node{ID: n.ID(), Kind: n.Kind().String(), Deps: n.Dependencies().IDs(), Action: ActionPhase}
	switch v := n.(type) {
	case *model.ConfiguredProject:
		out.Directory = v.Directory
		out.RequiresBuilding = v.RequiresBuilding()
		out.Action = ActionRestore
		if out.RequiresBuilding {
			out.Action = ActionBuild
		}
		if v.BuildReason != nil {
			out.BuildReason = v.BuildReason.Flags.String()
			out.ChangedDependencies = v.BuildReason.ChangedDependencies
		}
	case *model.DirectoryNode:
		out.Directory = v.Name
	}
	return out
}

// Write stores a snapshot at path.
func Write(path string, snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load loads a plan snapshot from disk.
func Load(path string) (Snapshot, error) {
	var snap Snapshot
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("unmarshal plan: %w", err)
	}
	return snap, nil
}

// Generate writes plan.json for p into dir.
func Generate(dir, runID string, p *sequencer.Plan) (Snapshot, error) {
	snap := FromPlan(runID, p)
	if err := Write(filepath.Join(dir, FileName), snap); err != nil {
		return snap, err
	}
	return snap, nil
}

// Project returns the node with the given id.
func (s Snapshot) Project(id string) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}
