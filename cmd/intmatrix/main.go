// Intmatrix controls INT-44HDX, INT-66HDX and INT-88HDX HDMI matrix
// switchers over the network.
//
// It keeps a live connection to the matrix control port, mirrors the
// routing table and front panel lock, and offers one-shot commands, a live
// monitor, an operator shell, an HTTP/WebSocket state server and a
// software emulator of the device.
//
// Usage:
//
//	intmatrix [command] [flags]
//
// See 'intmatrix --help' for available commands.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/muurk/intmatrix/internal/config"
	"github.com/muurk/intmatrix/internal/logging"
	"github.com/muurk/intmatrix/internal/version"
)

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	deviceHost    string
	modelFlag     string
	streamPort    int
	httpPort      int
	logLevel      string
	captureDir    string
	captureFormat string
)

// registry is loaded before any command runs.
var registry *config.Registry

var rootCmd = &cobra.Command{
	Use:   "intmatrix",
	Short: "INT-xxHDX HDMI matrix controller",
	Long: `Control INT-44HDX, INT-66HDX and INT-88HDX HDMI matrix switchers.

The matrix is reached on two channels: a TCP control port (4001) that
carries commands and unsolicited status lines, and the built-in web
interface, which is polled for the full routing table and labels.

The model of each device is remembered in the configuration file once the
matrix has announced itself, so --model is usually only needed once.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		registry, err = config.LoadRegistry()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return initLogging(cmd)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&deviceHost, "device", "d", "", "Matrix host name or IP address")
	pf.StringVar(&modelFlag, "model", "", "Matrix model (4, 6, 8 or INT-44HDX); remembered per device when unset")
	pf.IntVar(&streamPort, "port", 0, "Control port (default 4001)")
	pf.IntVar(&httpPort, "http-port", 0, "Web interface port (default 80)")
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides INTMATRIX_LOG_LEVEL")
	pf.StringVar(&captureDir, "capture-dir", "", "Write raw stream traffic to this directory")
	pf.StringVar(&captureFormat, "capture-format", "", "Capture file format (jsonl, cbor)")

	rootCmd.AddCommand(versionCmd)
}

// initLogging resolves the log level from flag, preferences and environment.
// Full-screen commands log to a file in the config directory.
func initLogging(cmd *cobra.Command) error {
	level := logLevel
	if level == "" && registry.Preferences != nil {
		level = registry.Preferences.LogLevel
	}

	switch cmd.Name() {
	case "monitor", "shell":
		dir, err := config.GetConfigDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		return logging.InitializeWithOutput(level, []string{filepath.Join(dir, "intmatrix.log")})
	default:
		return logging.Initialize(level)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Full())
	},
}
