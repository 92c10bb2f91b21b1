package cli

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/packingline/internal/config"
	"github.com/ppiankov/packingline/internal/logging"
)

// skipSetup marks commands that run without loading the configuration.
const skipSetup = "skip-setup"

var (
	configPath string
	verbose    bool

	cfg         *config.Config
	cfgHash     string
	logger      = zap.NewNop()
	closeLogger = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "packingline",
	Short: "Label printing station for the packing line",
	Long: "Verifies operators against the credential file, opens work orders and\n" +
		"writes label data and trigger files for the label printing suite.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipSetup] == "true" {
			return nil
		}
		return setup()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (default $PACKINGLINE_CONFIG or ~/.packingline/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

// setup loads the configuration and builds the logger.
func setup() error {
	var err error
	cfg, cfgHash, err = config.LoadConfigWithHash(resolvedConfigPath())
	if err != nil {
		return err
	}

	l, closeFn, err := logging.New(logging.Options{
		Dir:     filepath.Join(cfg.Paths.State, "logs"),
		Verbose: verbose,
		Console: os.Stderr,
		Rotation: logging.Rotation{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger, closeLogger = l, closeFn

	hostname, _ := os.Hostname()
	logger.Info("packingline started",
		zap.String("version", version),
		zap.String("hostname", hostname),
		zap.Strings("ip", hostAddresses()),
		zap.String("os", runtime.GOOS+"/"+runtime.GOARCH),
		zap.String("station", cfg.Station.ID),
		zap.String("config", resolvedConfigPath()),
		zap.String("config_hash", cfgHash))
	return nil
}

// hostAddresses lists the non-loopback IPv4 addresses of this host.
func hostAddresses() []string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}
	var out []string
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			out = append(out, ip4.String())
		}
	}
	return out
}

func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

// Execute runs the root command. Any command error exits with code 1
// after the log files are flushed.
func Execute() {
	err := rootCmd.Execute()
	closeLogger()
	if err != nil {
		os.Exit(1)
	}
}
