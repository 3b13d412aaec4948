package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/k8ika0s/build-sequencer/internal/config"
	"github.com/k8ika0s/build-sequencer/internal/projectgraph"
	"github.com/k8ika0s/build-sequencer/internal/service"
	"github.com/k8ika0s/build-sequencer/internal/sourcetree"
)

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		log.Fatalf("sequencer exited: %v", err)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sequencer",
		Short:         "Plan incremental builds from cached build state",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), planCmd(), writeStateCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the planning HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := service.Build(cmd.Context(), config.FromEnv())
			if err != nil {
				return err
			}
			return svc.Run(cmd.Context())
		},
	}
}

func planCmd() *cobra.Command {
	var (
		manifestPath string
		changesPath  string
		selection    []string
		contributors []string
		buildID      string
		downstream   bool
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compute the build plan for a project manifest and print plan.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := projectgraph.LoadManifest(manifestPath)
			if err != nil {
				return fmt.Errorf("load manifest: %w", err)
			}
			cfg := config.FromEnv()
			req := service.PlanRequest{
				Manifest:     m,
				Selection:    selection,
				Contributors: contributors,
				Build:        cfg.BuildMetadata(),
			}
			if buildID != "" {
				req.Build.BuildID = buildID
			}
			if cmd.Flags().Changed("downstream") {
				req.Downstream = &downstream
			}
			if changesPath != "" {
				f, err := os.Open(filepath.Clean(changesPath))
				if err != nil {
					return err
				}
				req.Changes, err = sourcetree.ParseChanges(f)
				f.Close()
				if err != nil {
					return fmt.Errorf("parse changes: %w", err)
				}
			}
			svc, err := service.Build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			snap, err := svc.Plan(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, snap)
		},
	}
	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "project manifest (.json or .yaml)")
	cmd.Flags().StringVar(&changesPath, "changes", "", "git diff --name-status output listing changed files")
	cmd.Flags().StringSliceVarP(&selection, "select", "s", nil, "directories to build (default all)")
	cmd.Flags().StringSliceVar(&contributors, "contributors", nil, "directories reported as dependency contributors")
	cmd.Flags().StringVar(&buildID, "build-id", "", "build id (default $BUILD_ID)")
	cmd.Flags().BoolVar(&downstream, "downstream", false, "also build dirty consumers of selected projects")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}

func writeStateCmd() *cobra.Command {
	var requestPath string
	cmd := &cobra.Command{
		Use:   "write-state",
		Short: "Record the outputs of a finished build as state files",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filepath.Clean(requestPath))
			if err != nil {
				return err
			}
			var req service.StateRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("parse %s: %w", requestPath, err)
			}
			svc, err := service.Build(cmd.Context(), config.FromEnv())
			if err != nil {
				return err
			}
			res, err := svc.WriteState(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVarP(&requestPath, "outputs", "o", "", "JSON file with build outputs and artifact manifests")
	_ = cmd.MarkFlagRequired("outputs")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
