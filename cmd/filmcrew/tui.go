package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/aristath/filmcrew/internal/orchestrator"
	"github.com/aristath/filmcrew/internal/tui"
)

func newTUICmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui [request]",
		Short: "Open the dashboard",
		Long: `Open the interactive dashboard. Tasks run in the background as they become
runnable; press d to delegate new work to an agent.

An optional request is decomposed and queued at startup.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, opts, strings.Join(args, " "))
		},
	}
}

func runTUI(cmd *cobra.Command, opts *globalOptions, request string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Log lines would tear the alt screen; send them to a file instead.
	if err := os.MkdirAll(".filmcrew", 0755); err != nil {
		return fmt.Errorf("create .filmcrew: %w", err)
	}
	logFile, err := tea.LogToFile(filepath.Join(".filmcrew", "tui.log"), "filmcrew")
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	// Every submission nudges the runner; one pending nudge is enough.
	wake := make(chan struct{}, 1)
	nudge := func() {
		select {
		case wake <- struct{}{}:
		default:
		}
	}

	submit := func(req orchestrator.DelegationRequest) (orchestrator.Receipt, error) {
		receipt, err := a.orch.SubmitTask(req)
		if err == nil {
			nudge()
		}
		return receipt, err
	}

	model := tui.New(a.bus, a.cfg.Registry().All(), submit)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		runLoop(ctx, a, wake)
	}()

	if request != "" {
		if _, err := a.orch.SubmitRequest(request, nil); err != nil {
			return err
		}
		nudge()
	}

	errChan := make(chan error, 1)
	go func() {
		_, err := p.Run()
		errChan <- err
	}()

	select {
	case err = <-errChan:
		// Normal exit (user pressed 'q')
	case <-cmd.Context().Done():
		log.Println("Shutdown signal received, cleaning up...")

		if err := a.pm.KillAll(); err != nil {
			log.Printf("ERROR: killing subprocesses: %v", err)
		}
		p.Quit()

		// Wait for TUI to exit with timeout
		select {
		case err = <-errChan:
		case <-time.After(10 * time.Second):
			log.Println("Shutdown timeout exceeded, forcing exit")
		}
	}

	cancel()
	<-runnerDone

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// runLoop drains the queue every time it is woken, until ctx ends.
func runLoop(ctx context.Context, a *app, wake <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-wake:
			report, err := a.execute(ctx)
			if err != nil {
				return
			}
			log.Printf("queue drained: %s", report.Stats)
		}
	}
}
