package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/packingline/internal/audit"
	"github.com/ppiankov/packingline/internal/instance"
	"github.com/ppiankov/packingline/internal/journal"
	"github.com/ppiankov/packingline/internal/output"
	"github.com/ppiankov/packingline/internal/printjob"
	"github.com/ppiankov/packingline/internal/reload"
	"github.com/ppiankov/packingline/internal/station"
	"github.com/ppiankov/packingline/internal/throttle"
)

// State files inside paths.state.
const (
	auditFile   = "audit.jsonl"
	journalFile = "journal.db"
	pidFile     = "station.pid"
	throttleDir = "throttle"
)

var stationNoReload bool

func init() {
	rootCmd.AddCommand(stationCmd)
	stationCmd.Flags().BoolVar(&stationNoReload, "no-reload", false, "Do not watch the config file for changes")
}

var stationCmd = &cobra.Command{
	Use:   "station",
	Short: "Run the interactive packing station",
	Long: "Prompts for the operator password, then a work order, then serial\n" +
		"numbers. Each serial writes the label files and triggers for every label\n" +
		"group of the order's product.\n\n" +
		"Type :back to return to the previous prompt and :exit to quit.\n" +
		"Only one station runs per state directory.",
	RunE: runStation,
}

func newLimiter() *throttle.Limiter {
	return throttle.NewLimiter(cfg.StateFile(throttleDir), cfg.Login.MaxFailures, cfg.Login.Window)
}

func runStation(cmd *cobra.Command, args []string) error {
	for _, p := range cfg.ValidatePaths() {
		logger.Sugar().Warnf("config path problem: %s", p)
	}

	lock, err := instance.Acquire(cfg.StateFile(pidFile))
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	auditLog, err := audit.Open(cfg.StateFile(auditFile))
	if err != nil {
		return err
	}
	defer func() { _ = auditLog.Close() }()

	jrnl, err := journal.Open(cfg.StateFile(journalFile))
	if err != nil {
		return err
	}
	defer func() { _ = jrnl.Close() }()

	configFn := printjob.Static(cfg, cfgHash)
	var reloader *reload.Reloader
	if !stationNoReload {
		reloader, err = reload.New(resolvedConfigPath(), logger)
		if err != nil {
			logger.Warn("config reload disabled", zap.Error(err))
			reloader = nil
		} else {
			configFn = reloader.Config
		}
	}

	runner := printjob.NewRunner(printjob.Options{
		Config:  configFn,
		Writer:  output.NewWriter(logger),
		Audit:   auditLog,
		Journal: jrnl,
		Logger:  logger,
	})

	st := station.New(station.Options{
		Config:   configFn,
		Runner:   runner,
		Audit:    auditLog,
		Limiter:  newLimiter(),
		Reloader: reloader,
		Logger:   logger,
		In:       cmd.InOrStdin(),
		Out:      cmd.OutOrStdout(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := st.Run(ctx); err != nil {
		return fmt.Errorf("station: %w", err)
	}
	return nil
}
