package main

import (
	"context"

	"github.com/desertthunder/crx/internal/formatter"
	"github.com/desertthunder/crx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Migrate runs the full pipeline: capture the source profile's library,
// show what the target is missing, confirm, then import.
func (r *Runner) Migrate(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd)
	dir := r.snapshotDir(cmd)

	source, err := r.login(ctx, r.config.Credentials.Source, false)
	if err != nil {
		return err
	}

	r.logger.Info("migrating", "from", source.ProfileName(), "dir", dir)
	r.writePlain("Exporting from profile '%s'...\n", source.ProfileName())

	var capture *tasks.CaptureResult
	err = r.runReported(ctx, "Export", source.ProfileName(), func(ctx context.Context, reporter tasks.Reporter) error {
		engine, err := r.newEngine(source, reporter)
		if err != nil {
			return err
		}
		capture, err = engine.Capture(ctx, dir)
		return err
	})
	if err != nil {
		return err
	}
	r.writePlain("%s", formatter.RenderCaptureSummary(capture))

	// The target profile may not exist yet; creating it needs a premium
	// account, surfaced as an API error otherwise
	target, err := r.login(ctx, r.config.Credentials.Target, cmd.Bool("create-profile"))
	if err != nil {
		return err
	}

	if err := r.diffAgainst(ctx, target, dir); err != nil {
		return err
	}

	if !cmd.Bool("yes") && r.interactive() {
		if !r.confirm("Import into profile '" + target.ProfileName() + "'?") {
			r.writePlain("Aborted. Snapshot kept at %s\n", dir)
			return nil
		}
	}

	return r.importInto(ctx, target, dir)
}
