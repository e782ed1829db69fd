package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/aristath/batchflow/internal/config"
	"github.com/aristath/batchflow/internal/coordinator"
	"github.com/aristath/batchflow/internal/events"
	"github.com/aristath/batchflow/internal/guard"
	"github.com/aristath/batchflow/internal/tracker"
	"github.com/aristath/batchflow/internal/tui"
	"github.com/aristath/batchflow/internal/worker"
	"github.com/aristath/batchflow/internal/workspace"
)

var runPlain bool

var runCmd = &cobra.Command{
	Use:   "run <tasks-file>",
	Short: "Execute a task list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runList(args[0], cfg)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runPlain, "plain", false, "disable the dashboard, log to stderr only")
}

func runList(path string, cfg *config.Config) error {
	plan, _, err := loadPlan(path, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repoPath := cfg.Repo.Path
	if repoPath == "" {
		repoPath, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
	}

	pm := worker.NewProcessManager()
	go func() {
		<-ctx.Done()
		if err := pm.KillAll(); err != nil {
			log.Printf("Error killing worker subprocesses: %v", err)
		}
	}()

	w, err := worker.New(worker.Config{
		Type:    cfg.Worker.Type,
		Command: cfg.Worker.Command,
		Args:    cfg.Worker.Args,
		WorkDir: repoPath,
	}, pm)
	if err != nil {
		return err
	}
	defer w.Close()

	tr, err := tracker.NewSQLiteTracker(ctx, cfg.Repo.StatePath)
	if err != nil {
		return err
	}
	defer tr.Close()

	ws := workspace.NewManager(workspace.ManagerConfig{
		RepoPath:     repoPath,
		BaseBranch:   cfg.Repo.BaseBranch,
		WorkspaceDir: cfg.Repo.WorkspaceDir,
	})

	runner, err := worker.NewCommandTestRunner(cfg.Tests.Command, cfg.Tests.Args, repoPath, pm)
	if err != nil {
		return err
	}
	g := guard.New(tr, runner, nil)

	bus := events.NewEventBus()
	defer bus.Close()

	coord := coordinator.New(coordinator.Config{
		Concurrency: cfg.Limits.Concurrency,
		TaskTimeout: parseDuration(cfg.Worker.Timeout, 15*time.Minute),
		Retry: coordinator.RetryConfig{
			InitialInterval:     parseDuration(cfg.Retry.InitialInterval, 100*time.Millisecond),
			MaxInterval:         parseDuration(cfg.Retry.MaxInterval, 10*time.Second),
			MaxElapsedTime:      parseDuration(cfg.Retry.MaxElapsedTime, 2*time.Minute),
			Multiplier:          cfg.Retry.Multiplier,
			RandomizationFactor: 0.5,
		},
	}, w, g, tr, ws, bus)

	var report *coordinator.Report
	var runErr error

	if runPlain {
		report, runErr = coord.Run(ctx, plan)
	} else {
		p := tea.NewProgram(tui.New(bus), tea.WithAltScreen())

		done := make(chan struct{})
		go func() {
			defer close(done)
			report, runErr = coord.Run(ctx, plan)
			p.Send(tui.RunFinishedMsg{Err: runErr})
		}()

		if _, err := p.Run(); err != nil {
			log.Printf("dashboard error: %v", err)
		}
		<-done
	}

	if report != nil {
		fmt.Print(report.Render())
	}
	if runErr != nil {
		return runErr
	}

	exitCode = report.ExitCode()
	return nil
}
