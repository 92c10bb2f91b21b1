package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(checkConfigCmd)
}

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the configuration and its paths",
	Long: "Loads the config file and checks that every configured directory and\n" +
		"file exists. Exit code 1 if any path is missing.",
	Args: cobra.NoArgs,
	RunE: runCheckConfig,
}

func runCheckConfig(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Config: %s (%s)\n", resolvedConfigPath(), cfgHash)

	problems := cfg.ValidatePaths()
	for _, p := range problems {
		fmt.Fprintf(w, "MISSING %s\n", p)
	}
	for group, products := range cfg.TriggerMapping {
		if len(products) == 0 {
			fmt.Fprintf(w, "WARN trigger group %s lists no products\n", group)
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d path problem(s)", len(problems))
	}
	fmt.Fprintln(w, "OK: all paths exist")
	return nil
}
