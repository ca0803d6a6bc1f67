package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/crx/internal/formatter"
	"github.com/desertthunder/crx/internal/services"
	"github.com/desertthunder/crx/internal/shared"
	"github.com/desertthunder/crx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Setup creates a config.toml from the bundled template.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", configPath)
	r.writePlain("Created %s\n", configPath)
	r.writePlain("Fill in [credentials.source] and [credentials.target] before running other commands.\n")
	return nil
}

type statusReport struct {
	Account   string             `json:"account"`
	Profile   string             `json:"profile"`
	Profiles  []services.Profile `json:"profiles"`
	Watchlist *int               `json:"watchlist_count,omitempty"`
	Snapshot  *snapshotReport    `json:"snapshot,omitempty"`
}

type snapshotReport struct {
	Directory    string `json:"directory"`
	Watchlist    int    `json:"watchlist"`
	History      int    `json:"history"`
	Crunchylists int    `json:"crunchylists"`
	Ratings      int    `json:"ratings"`
}

// Status logs into the source account and reports its profiles alongside
// the state of the local snapshot directory.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd)

	svc, err := r.login(ctx, r.config.Credentials.Source, false)
	if err != nil {
		return err
	}

	report := statusReport{
		Account: r.config.Credentials.Source.Email,
		Profile: svc.ProfileName(),
	}

	if mgr, ok := svc.(services.ProfileManager); ok {
		profiles, err := mgr.Profiles(ctx)
		if err != nil {
			return err
		}
		report.Profiles = profiles
	}

	if cmd.Bool("counts") {
		entries, err := svc.FetchWatchlist(ctx)
		if err != nil {
			return err
		}
		count := len(entries)
		report.Watchlist = &count
	}

	dir := r.snapshotDir(cmd)
	if snapshots, err := tasks.LoadSnapshots(dir); err == nil {
		report.Snapshot = &snapshotReport{
			Directory:    dir,
			Watchlist:    len(snapshots.Watchlist.Items),
			History:      len(snapshots.History.Items),
			Crunchylists: len(snapshots.Crunchylists.Lists),
			Ratings:      len(snapshots.Ratings.Items),
		}
	} else if !errors.Is(err, shared.ErrSnapshotMissing) {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(report, true)
	}

	r.writePlain("Account: %s (active profile: %s)\n\n", report.Account, report.Profile)
	if len(report.Profiles) > 0 {
		r.writePlain("%s", formatter.RenderProfileList(report.Profiles))
	}
	if report.Watchlist != nil {
		r.writePlainln("Watchlist: %d items", *report.Watchlist)
	}

	if report.Snapshot == nil {
		r.writePlainln("No snapshot found at %s", dir)
		return nil
	}

	s := report.Snapshot
	r.writePlainln("Snapshot at %s:", s.Directory)
	r.writePlain("  Watchlist: %d  History: %d  Crunchylists: %d  Ratings: %d\n",
		s.Watchlist, s.History, s.Crunchylists, s.Ratings)
	return nil
}

// RenameProfile renames the configured profile on one account.
func (r *Runner) RenameProfile(ctx context.Context, cmd *cli.Command) error {
	r.loadConfig(cmd)

	newName := strings.TrimSpace(cmd.StringArg("name"))
	if newName == "" {
		return fmt.Errorf("%w: new profile name", shared.ErrMissingArgument)
	}

	account, err := r.resolveAccount(cmd.String("account"))
	if err != nil {
		return err
	}

	svc, err := r.login(ctx, account, false)
	if err != nil {
		return err
	}

	mgr, ok := svc.(services.ProfileManager)
	if !ok {
		return fmt.Errorf("%w: %s does not support profile management", shared.ErrServiceUnavailable, svc.Name())
	}

	profiles, err := mgr.Profiles(ctx)
	if err != nil {
		return err
	}

	current := svc.ProfileName()
	for _, profile := range profiles {
		if strings.EqualFold(profile.Name, current) {
			if err := mgr.RenameProfile(ctx, profile.ID, newName); err != nil {
				return err
			}
			r.logger.Info("profile renamed", "from", current, "to", newName)
			r.writePlain("Renamed profile '%s' to '%s'\n", current, newName)
			return nil
		}
	}

	return fmt.Errorf("%w: %s", shared.ErrProfileNotFound, current)
}

// resolveAccount maps an account flag value to its configured credentials.
func (r *Runner) resolveAccount(name string) (shared.AccountConfig, error) {
	switch name {
	case "source":
		return r.config.Credentials.Source, nil
	case "target":
		return r.config.Credentials.Target, nil
	default:
		return shared.AccountConfig{}, fmt.Errorf("%w: invalid account '%s' (must be 'source' or 'target')", shared.ErrInvalidArgument, name)
	}
}
