package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/packingline/internal/journal"
)

var (
	historyLimit  int
	historyFormat string
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "lines", "n", 20, "Number of recent print attempts to show")
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", "text", "Output format: text or json")
}

var historyCmd = &cobra.Command{
	Use:   "history [serial]",
	Short: "Show the print history",
	Long: "Lists recent print attempts from the station journal, newest first.\n" +
		"With a serial number, lists every attempt for that serial, oldest first.",
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	j, err := journal.Open(cfg.StateFile(journalFile))
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	ctx := context.Background()
	var records []journal.PrintRecord
	if len(args) == 1 {
		records, err = j.BySerial(ctx, args[0])
	} else {
		records, err = j.Recent(ctx, historyLimit)
	}
	if err != nil {
		return err
	}

	switch historyFormat {
	case "json":
		if records == nil {
			records = []journal.PrintRecord{}
		}
		out, _ := json.MarshalIndent(records, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	case "text":
		writeHistory(cmd.OutOrStdout(), records)
	default:
		return fmt.Errorf("unknown format %q (want text or json)", historyFormat)
	}
	return nil
}

func writeHistory(w io.Writer, records []journal.PrintRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No print attempts recorded.")
		return
	}
	for _, r := range records {
		line := fmt.Sprintf("%s  %-6s  %-14s  %-8s  %-10s  %s  [%s]",
			r.At.Local().Format("2006-01-02 15:04:05"), r.Outcome, r.Serial,
			r.Order, r.Product, r.Operator, strings.Join(r.Completed, ","))
		if r.Reason != "" {
			line += "  " + r.Reason
		}
		fmt.Fprintln(w, line)
	}
}
