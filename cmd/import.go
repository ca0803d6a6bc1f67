package main

import (
	"context"

	"github.com/desertthunder/crx/internal/formatter"
	"github.com/desertthunder/crx/internal/services"
	"github.com/desertthunder/crx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Import reconciles a snapshot against the target profile. With --dry-run
// it only reports what would be written.
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd)
	dir := r.snapshotDir(cmd)

	svc, err := r.login(ctx, r.config.Credentials.Target, cmd.Bool("create-profile"))
	if err != nil {
		return err
	}

	if cmd.Bool("dry-run") {
		return r.diffAgainst(ctx, svc, dir)
	}

	if !cmd.Bool("yes") && r.interactive() {
		if !r.confirm("Import snapshot into profile '" + svc.ProfileName() + "'?") {
			r.writePlain("Aborted.\n")
			return nil
		}
	}

	return r.importInto(ctx, svc, dir)
}

// Diff compares a snapshot with the target profile's live library.
func (r *Runner) Diff(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd)
	dir := r.snapshotDir(cmd)

	svc, err := r.login(ctx, r.config.Credentials.Target, false)
	if err != nil {
		return err
	}

	return r.diffAgainst(ctx, svc, dir)
}

// diffAgainst renders a diff table for the snapshot in dir against svc.
func (r *Runner) diffAgainst(ctx context.Context, svc services.Service, dir string) error {
	engine, err := r.newEngine(svc, nil)
	if err != nil {
		return err
	}

	r.logger.Info("computing diff", "profile", svc.ProfileName(), "dir", dir)

	result, err := engine.Diff(ctx, dir)
	if err != nil {
		return err
	}

	r.writePlain("%s", formatter.RenderDiffTable(result))
	return nil
}

// importInto runs the reconciliation against svc and prints the summary.
// A partial result from a failed or cancelled run is still summarized.
func (r *Runner) importInto(ctx context.Context, svc services.Service, dir string) error {
	r.logger.Info("starting import", "profile", svc.ProfileName(), "dir", dir)

	var result *tasks.ImportResult
	runErr := r.runReported(ctx, "Import", svc.ProfileName(), func(ctx context.Context, reporter tasks.Reporter) error {
		engine, err := r.newEngine(svc, reporter)
		if err != nil {
			return err
		}
		result, err = engine.Import(ctx, dir)
		return err
	})

	if result != nil {
		r.writePlain("%s", formatter.RenderImportSummary(result))
	}
	return runErr
}
