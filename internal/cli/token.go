package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/packingline/internal/lbl"
	"github.com/ppiankov/packingline/internal/report"
)

func init() {
	rootCmd.AddCommand(tokenCmd)
}

var tokenCmd = &cobra.Command{
	Use:   "token <serial>",
	Short: "Show the current My2N token of a serial",
	Long:  "Reads the test report of the serial under paths.reports and prints the\nlast recorded My2N token.",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

func runToken(cmd *cobra.Command, args []string) error {
	serial := lbl.NormalizeSerial(args[0])
	if err := lbl.ValidateSerial(serial); err != nil {
		return err
	}
	token, err := report.ExtractMy2nToken(serial, cfg.Paths.Reports)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
