// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func dirFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "dir",
		Aliases: []string{"d"},
		Usage:   "Snapshot directory (defaults to export.dir from config)",
	}
}

// setupCommand handles initial configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create a config.toml from the bundled template",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// statusCommand reports account and snapshot state.
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show account profiles and local snapshot state",
		Flags: []cli.Flag{
			configFlag(),
			dirFlag(),
			&cli.BoolFlag{
				Name:  "counts",
				Usage: "Fetch live watchlist count for the active profile",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Status,
	}
}

// exportCommand captures the source account's library to disk.
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "export",
		Usage:  "Capture the source profile's library into a snapshot",
		Flags:  []cli.Flag{configFlag(), dirFlag()},
		Action: r.Export,
	}
}

// importCommand reconciles a snapshot against the target account.
func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import a snapshot into the target profile",
		Flags: []cli.Flag{
			configFlag(),
			dirFlag(),
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Show what would be written without writing anything",
			},
			&cli.BoolFlag{
				Name:  "create-profile",
				Usage: "Create the target profile when it does not exist",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Skip the confirmation prompt",
			},
		},
		Action: r.Import,
	}
}

// diffCommand compares a snapshot against the target account.
func diffCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "diff",
		Usage:  "Compare a snapshot with the target profile's library",
		Flags:  []cli.Flag{configFlag(), dirFlag()},
		Action: r.Diff,
	}
}

// migrateCommand runs export, diff, and import end to end.
func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Export from the source profile and import into the target profile",
		Flags: []cli.Flag{
			configFlag(),
			dirFlag(),
			&cli.BoolFlag{
				Name:  "create-profile",
				Usage: "Create the target profile when it does not exist",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Skip the confirmation prompt",
			},
		},
		Action: r.Migrate,
	}
}

// renameProfileCommand renames a profile on one account.
func renameProfileCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "rename-profile",
		Usage: "Rename the configured profile",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "name",
			},
		},
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "account",
				Usage: "Which account to operate on (source or target)",
				Value: "source",
			},
		},
		Action: r.RenameProfile,
	}
}
