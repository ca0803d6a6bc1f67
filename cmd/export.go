package main

import (
	"context"

	"github.com/desertthunder/crx/internal/formatter"
	"github.com/desertthunder/crx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Export captures the source profile's library into a snapshot directory.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd)
	dir := r.snapshotDir(cmd)

	svc, err := r.login(ctx, r.config.Credentials.Source, false)
	if err != nil {
		return err
	}

	r.logger.Info("starting export", "profile", svc.ProfileName(), "dir", dir)

	var result *tasks.CaptureResult
	err = r.runReported(ctx, "Export", svc.ProfileName(), func(ctx context.Context, reporter tasks.Reporter) error {
		engine, err := r.newEngine(svc, reporter)
		if err != nil {
			return err
		}
		result, err = engine.Capture(ctx, dir)
		return err
	})
	if err != nil {
		return err
	}

	r.writePlain("%s", formatter.RenderCaptureSummary(result))
	return nil
}
