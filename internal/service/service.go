// Package service wires planning and state file recording behind an HTTP
// API and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/k8ika0s/build-sequencer/internal/artifact"
	"github.com/k8ika0s/build-sequencer/internal/buildctx"
	"github.com/k8ika0s/build-sequencer/internal/buildstate"
	"github.com/k8ika0s/build-sequencer/internal/config"
	"github.com/k8ika0s/build-sequencer/internal/events"
	"github.com/k8ika0s/build-sequencer/internal/inputs"
	"github.com/k8ika0s/build-sequencer/internal/metrics"
	"github.com/k8ika0s/build-sequencer/internal/plan"
	"github.com/k8ika0s/build-sequencer/internal/projectgraph"
	"github.com/k8ika0s/build-sequencer/internal/reporter"
	"github.com/k8ika0s/build-sequencer/internal/sequencer"
	"github.com/k8ika0s/build-sequencer/internal/sourcetree"
	"github.com/k8ika0s/build-sequencer/internal/statestore"
	"github.com/k8ika0s/build-sequencer/internal/statewriter"
)

// ErrInvalidManifest wraps project manifest errors.
var ErrInvalidManifest = errors.New("invalid manifest")

// PlanRequest asks for a plan over a project manifest.
type PlanRequest struct {
	Manifest projectgraph.Manifest `json:"manifest"`
	// Selection names the directories to build; empty builds everything.
	Selection []string            `json:"selection,omitempty"`
	Changes   []sourcetree.Change `json:"changes,omitempty"`
	// Contributors are directories the pipeline reports as dependency
	// contributors.
	Contributors []string               `json:"contributors,omitempty"`
	Build        buildctx.BuildMetadata `json:"build"`
	Downstream   *bool                  `json:"downstream,omitempty"`
}

// StateRequest records the outputs of a finished build.
type StateRequest struct {
	Build     buildctx.BuildMetadata                    `json:"build"`
	Changes   []sourcetree.Change                       `json:"changes,omitempty"`
	Outputs   []*buildstate.ProjectOutputSnapshot       `json:"outputs"`
	Artifacts map[string]map[string][]artifact.Manifest `json:"artifacts,omitempty"`
}

// StateResult lists the written state files.
type StateResult struct {
	Files []StateFileRecord `json:"files"`
}

// StateFileRecord describes one written state file.
type StateFileRecord struct {
	ID       string `json:"id"`
	Bucket   string `json:"bucket"`
	BuildID  string `json:"build_id"`
	Location string `json:"location"`
	Outputs  int    `json:"outputs"`
}

// Service plans builds and records their state.
type Service struct {
	Cfg       config.Config
	Hasher    *sourcetree.Hasher
	Loader    *statestore.Loader
	Writer    *statewriter.Writer
	Publisher events.Publisher
	Reporter  *reporter.Client
	Metrics   *metrics.Recorder
	Logger    *log.Logger

	mu   sync.Mutex
	last *plan.Snapshot
}

// Build constructs a service from config.
func Build(ctx context.Context, cfg config.Config) (*Service, error) {
	store, err := cfg.StateStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("state store: %w", err)
	}
	index, err := cfg.StateIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("state index: %w", err)
	}
	logger := log.New(os.Stderr, "", log.LstdFlags)
	var pub events.Publisher = events.NullPublisher{}
	if cfg.KafkaBrokers != "" {
		pub = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	return New(cfg, store, index, pub, logger), nil
}

// New wires a service around an explicit store and index.
func New(cfg config.Config, store statestore.Store, index statestore.Index, pub events.Publisher, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	if pub == nil {
		pub = events.NullPublisher{}
	}
	skip := append([]string(nil), sourcetree.DefaultSkipDirs...)
	if cfg.StagingDir != "" {
		skip = append(skip, filepath.Base(cfg.StagingDir))
	}
	loader := &statestore.Loader{
		Store:       store,
		Index:       index,
		Parallelism: cfg.Parallelism,
		FileName:    cfg.StateFileName,
		Logger:      logger,
	}
	return &Service{
		Cfg:    cfg,
		Hasher: &sourcetree.Hasher{Parallelism: cfg.Parallelism, SkipDirs: skip},
		Loader: loader,
		Writer: &statewriter.Writer{
			Store:    store,
			Index:    index,
			FileName: cfg.StateFileName,
			History:  loader,
			Logger:   logger,
		},
		Publisher: pub,
		Reporter:  &reporter.Client{BaseURL: strings.TrimRight(cfg.ControlPlaneURL, "/"), Token: cfg.ControlPlaneToken},
		Metrics:   metrics.New(),
		Logger:    logger,
	}
}

// buildContext hashes the current buckets and loads their state files.
func (s *Service) buildContext(ctx context.Context, build buildctx.BuildMetadata, changes []sourcetree.Change) (*buildctx.Context, error) {
	bctx := buildctx.New(s.Cfg.SourcesRoot)
	bctx.StagingDir = s.Cfg.StagingDir
	bctx.Build = s.Cfg.BuildMetadata()
	if build.BuildID != "" {
		bctx.Build = build
	}
	bctx.Switches.Downstream = s.Cfg.Downstream
	buckets, err := s.Hasher.Hash(ctx, s.Cfg.SourcesRoot, nil)
	if err != nil {
		return nil, err
	}
	bctx.SourceTree.Buckets = buckets
	bctx.SourceTree.Changes = changes
	md, err := s.Loader.Load(ctx, buckets)
	if err != nil {
		return nil, fmt.Errorf("load state files: %w", err)
	}
	bctx.StateFiles = md
	s.Metrics.StateFilesLoaded(len(md.StateFiles))
	return bctx, nil
}

// Plan sequences the manifest's projects, writes plan.json and publishes the
// result.
func (s *Service) Plan(ctx context.Context, req PlanRequest) (plan.Snapshot, error) {
	start := time.Now()
	snap, err := s.plan(ctx, req, start)
	if err != nil {
		s.Metrics.PlanFailed()
		return snap, err
	}
	s.mu.Lock()
	s.last = &snap
	s.mu.Unlock()

	ev := events.NewPlanEvent(snap, req.Build.Branch, req.Build.CommitSha)
	if err := s.Publisher.Publish(ctx, ev); err != nil {
		s.Logger.Printf("service: publish plan %s: %v", snap.RunID, err)
	}
	if err := s.Reporter.PostPlan(ctx, snap); err != nil {
		s.Logger.Printf("service: report plan %s: %v", snap.RunID, err)
	}
	return snap, nil
}

func (s *Service) plan(ctx context.Context, req PlanRequest, start time.Time) (plan.Snapshot, error) {
	g, err := req.Manifest.WithRoot(s.Cfg.SourcesRoot).Build()
	if err != nil {
		return plan.Snapshot{}, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	bctx, err := s.buildContext(ctx, req.Build, req.Changes)
	if err != nil {
		return plan.Snapshot{}, err
	}
	bctx.Pipeline = buildctx.StaticPipeline{Contributors: req.Contributors}
	if req.Downstream != nil {
		bctx.Switches.Downstream = *req.Downstream
	}
	orch, err := s.Cfg.Orchestration()
	if err != nil {
		return plan.Snapshot{}, fmt.Errorf("orchestration: %w", err)
	}

	seq := sequencer.NewFromContext(bctx, inputs.New(s.Cfg.TrackedInputFiles, s.Cfg.TreatInputsAsFiles), s.Logger)
	p, err := seq.CreatePlan(bctx, orch, g, bctx.Switches.Downstream, req.Selection)
	if err != nil {
		return plan.Snapshot{}, err
	}
	runID := bctx.Build.BuildID
	if runID == "" {
		runID = uuid.NewString()
	}
	var snap plan.Snapshot
	if s.Cfg.PlanDir != "" {
		snap, err = plan.Generate(s.Cfg.PlanDir, runID, p)
		if err != nil {
			return snap, fmt.Errorf("write plan: %w", err)
		}
	} else {
		snap = plan.FromPlan(runID, p)
	}
	s.Metrics.ObservePlan(len(p.Waves), p.Projects(), time.Since(start))
	s.Logger.Printf("service: plan %s: %d build, %d cached, cache enabled=%v", runID, snap.Build, snap.Cached, bctx.Variables.Bool(buildctx.IsBuildCacheEnabled))
	return snap, nil
}

// LastPlan returns the most recent plan, falling back to plan.json.
func (s *Service) LastPlan() (plan.Snapshot, error) {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if last != nil {
		return *last, nil
	}
	if s.Cfg.PlanDir == "" {
		return plan.Snapshot{}, errors.New("no plan")
	}
	return plan.Load(filepath.Join(s.Cfg.PlanDir, plan.FileName))
}

// WriteState records the outputs of a finished build.
func (s *Service) WriteState(ctx context.Context, req StateRequest) (StateResult, error) {
	bctx, err := s.buildContext(ctx, req.Build, req.Changes)
	if err != nil {
		return StateResult{}, err
	}
	tracked, err := inputs.New(s.Cfg.TrackedInputFiles, s.Cfg.TreatInputsAsFiles).Current()
	if err != nil {
		return StateResult{}, fmt.Errorf("hash tracked inputs: %w", err)
	}
	written, err := s.Writer.WriteStateFile(ctx, bctx, statewriter.Input{
		Outputs:       req.Outputs,
		Artifacts:     req.Artifacts,
		TrackedInputs: tracked,
	})
	s.Metrics.StateFilesWritten(len(written))
	var res StateResult
	for _, w := range written {
		res.Files = append(res.Files, StateFileRecord{
			ID:       w.File.ID,
			Bucket:   w.File.Bucket.String(),
			BuildID:  w.File.BuildID,
			Location: w.Key,
			Outputs:  len(w.File.Outputs),
		})
	}
	if err != nil {
		return res, err
	}
	if err := s.Reporter.PostStateFiles(ctx, res); err != nil {
		s.Logger.Printf("service: report state files: %v", err)
	}
	return res, nil
}
