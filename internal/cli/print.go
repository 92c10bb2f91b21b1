package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/packingline/internal/audit"
	"github.com/ppiankov/packingline/internal/journal"
	"github.com/ppiankov/packingline/internal/order"
	"github.com/ppiankov/packingline/internal/printjob"
	"github.com/ppiankov/packingline/internal/station"
)

var printFormat string

var errPrintFailed = errors.New("serials failed to print")

func init() {
	rootCmd.AddCommand(printCmd)
	printCmd.Flags().StringVarP(&printFormat, "format", "f", "text", "Output format (text|json)")
}

var printCmd = &cobra.Command{
	Use:   "print <order> <serial>...",
	Short: "Print labels for serials without the interactive station",
	Long: "Reads the operator password from stdin, opens the work order and prints\n" +
		"each serial in turn, as the station does. Every attempt is written to\n" +
		"the audit log and the print journal.\n\n" +
		"Exit code 1 if any serial fails.",
	Args: cobra.MinimumNArgs(2),
	RunE: runPrint,
}

func runPrint(cmd *cobra.Command, args []string) error {
	password, err := readPassword(cmd.InOrStdin())
	if err != nil {
		return err
	}

	auditLog, err := audit.Open(cfg.StateFile(auditFile))
	if err != nil {
		return err
	}
	defer func() { _ = auditLog.Close() }()

	sess, err := authenticate(password)
	if err != nil {
		_ = auditLog.Record(audit.Entry{StationID: cfg.Station.ID, Event: audit.EventLoginFailed, Outcome: audit.OutcomeFailed, Reason: err.Error(), ConfigHash: cfgHash})
		return err
	}
	_ = auditLog.Record(audit.Entry{StationID: cfg.Station.ID, SessionID: sess.ID, Event: audit.EventLogin, Operator: sess.Prefix(), Outcome: audit.OutcomeOK, ConfigHash: cfgHash})

	wo, err := order.Open(cfg.Paths.Orders, args[0])
	if err != nil {
		return err
	}

	jrnl, err := journal.Open(cfg.StateFile(journalFile))
	if err != nil {
		return err
	}
	defer func() { _ = jrnl.Close() }()

	runner := printjob.NewRunner(printjob.Options{
		Config:  printjob.Static(cfg, cfgHash),
		Audit:   auditLog,
		Journal: jrnl,
		Logger:  logger,
	})

	var (
		results []*printjob.Result
		failed  int
	)
	for _, serial := range args[1:] {
		res, err := runner.Run(context.Background(), sess, wo, serial)
		if err != nil {
			failed++
			if printFormat != "json" {
				fmt.Fprintf(cmd.OutOrStdout(), "FAILED %s: %s\n", serial, station.Describe(err))
			}
		} else if printFormat != "json" {
			fmt.Fprintf(cmd.OutOrStdout(), "OK %s: %v\n", res.Serial, res.Completed())
		}
		results = append(results, res)
	}

	if printFormat == "json" {
		out, _ := json.MarshalIndent(results, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errPrintFailed, failed, len(args)-1)
	}
	return nil
}
