package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/packingline/internal/config"
)

var initConfigForce bool

func init() {
	rootCmd.AddCommand(initConfigCmd)
	initConfigCmd.Flags().BoolVar(&initConfigForce, "force", false, "Overwrite an existing config file")
}

var initConfigCmd = &cobra.Command{
	Use:         "init-config",
	Short:       "Generate default config.yaml with comments",
	Long:        "Creates the config file (--config, $PACKINGLINE_CONFIG or\n~/.packingline/config.yaml) with the default paths and trigger mapping.\nEdit this file to match the shared drives of the line.",
	Annotations: map[string]string{skipSetup: "true"},
	RunE:        runInitConfig,
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	path := resolvedConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil && !initConfigForce {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
	}

	if err := os.WriteFile(path, []byte(config.DefaultConfigYAML()), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
	return nil
}
