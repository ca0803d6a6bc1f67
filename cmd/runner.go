package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crx/internal/services"
	"github.com/desertthunder/crx/internal/shared"
	"github.com/desertthunder/crx/internal/tasks"
	"github.com/desertthunder/crx/internal/ui"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	connector  services.Connector
	logger     *log.Logger
	output     io.Writer
	input      io.Reader
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Connector  services.Connector
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		connector:  opts.Connector,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      opts.Input,
	}
}

// SetLogger replaces the runner's logger.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, statusCommand, exportCommand, importCommand, diffCommand, migrateCommand, renameProfileCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig resolves the config file named by the command's --config flag.
// A missing or unreadable file falls back to the compiled-in defaults.
func (r *Runner) loadConfig(cmd *cli.Command) {
	configPath := cmd.String("config")
	if configPath == "" {
		configPath = "config.toml"
	}
	r.configPath = configPath

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", configPath)
		return
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		r.logger.Warn("failed to load config, using defaults", "error", err)
		return
	}
	r.config = config
}

// resolveConnector returns the injected connector or builds the production
// one from the API section of the config.
func (r *Runner) resolveConnector() services.Connector {
	if r.connector != nil {
		return r.connector
	}
	return services.NewCrunchyrollConnector(services.ConnectorOpts{
		BaseURL:  r.config.API.BaseURL,
		ReadRate: r.config.API.ReadRate,
		PageSize: r.config.API.PageSize,
	})
}

// login opens a profile-scoped session for one configured account.
func (r *Runner) login(ctx context.Context, account shared.AccountConfig, createMissing bool) (services.Service, error) {
	return r.resolveConnector().Login(ctx, services.Credentials{
		Email:                account.Email,
		Password:             account.Password,
		Profile:              account.Profile,
		CreateMissingProfile: createMissing,
	})
}

// newEngine builds a sync engine over svc tuned by the import config section.
func (r *Runner) newEngine(svc services.Service, reporter tasks.Reporter) (*tasks.SyncEngine, error) {
	return tasks.NewSyncEngine(tasks.EngineOpts{
		Service:    svc,
		Reporter:   reporter,
		Logger:     r.logger,
		Workers:    r.config.Import.Workers,
		WriteDelay: time.Duration(r.config.Import.WriteDelayMS) * time.Millisecond,
	})
}

// snapshotDir resolves the snapshot directory from the --dir flag or config.
func (r *Runner) snapshotDir(cmd *cli.Command) string {
	if dir := cmd.String("dir"); dir != "" {
		return dir
	}
	if r.config.Export.Dir != "" {
		return r.config.Export.Dir
	}
	return "./export"
}

// interactive reports whether output goes to a live terminal.
func (r *Runner) interactive() bool {
	return r.output == os.Stdout && term.IsTerminal(int(os.Stdout.Fd()))
}

// confirm prompts the user and reads a yes or no answer. Anything other
// than y or yes declines.
func (r *Runner) confirm(prompt string) bool {
	r.writePlain("%s [y/N]: ", prompt)
	scanner := bufio.NewScanner(r.input)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}

// runReported executes run with a reporter appropriate for the terminal.
// On a live terminal the dashboard owns the screen and events flow over a
// channel; quitting cancels ctx and the dashboard drains events until the
// operation unwinds. Otherwise outcomes print as plain lines.
func (r *Runner) runReported(ctx context.Context, operation, profile string, run func(ctx context.Context, reporter tasks.Reporter) error) error {
	if !r.interactive() {
		return run(ctx, tasks.NewWriterReporter(r.output))
	}

	// Logging would corrupt the alt screen while the dashboard runs
	prevLogger := r.logger
	if fileLogger, err := shared.NewFileLogger("./tmp/crx-tui.log"); err == nil {
		r.logger = fileLogger
		defer func() { r.logger = prevLogger }()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reporter := tasks.NewChannelReporter(0)
	errCh := make(chan error, 1)
	go func() {
		err := run(ctx, reporter)
		// On a failure path Done may not have fired; a second Done on the
		// buffered channel is harmless
		reporter.Done()
		errCh <- err
	}()

	_, uiErr := ui.Run(ui.DashboardOpts{
		Operation: operation,
		Profile:   profile,
		Events:    reporter.Events(),
		Cancel:    cancel,
	})

	cancel()
	err := <-errCh
	if uiErr != nil {
		return uiErr
	}
	return err
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
