package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/intmatrix/internal/console"
	"github.com/muurk/intmatrix/internal/deviceapi"
	"github.com/muurk/intmatrix/internal/deviceerr"
	"github.com/muurk/intmatrix/internal/matrix"
	"github.com/muurk/intmatrix/internal/monitor"
	"github.com/muurk/intmatrix/internal/protocol"
	"github.com/muurk/intmatrix/internal/server"
	"github.com/muurk/intmatrix/internal/shell"
	"github.com/muurk/intmatrix/internal/ui"
)

// Command flags
var (
	outputFormat string
	listenAddr   string
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(routeAllCmd)
	rootCmd.AddCommand(passThroughCmd)
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(unlockCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(serveCmd)

	statusCmd.Flags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, compact, json)")
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (default from preferences, 127.0.0.1:8044)")
}

// statusCmd polls the web interface once
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the routing table",
	Long: `Fetch the full state of the matrix from its web interface and print it.

This reads routing, labels, HDCP flags and the front panel lock in one
request. The control port is not used, so firmware version is not shown.`,
	Example: `  # Routing table for a known device
  intmatrix status -d 192.168.1.50

  # Compact output for scripts
  intmatrix status -d 192.168.1.50 --format compact

  # JSON with the console variables
  intmatrix status -d 192.168.1.50 --format json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := targetConfig()
	if err != nil {
		return err
	}
	if cfg.Model == protocol.ModelUnknown {
		cfg.Model = protocol.DefaultModel
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = deviceapi.DefaultPort
	}

	client := deviceapi.NewClient(cfg.Host, cfg.HTTPPort)
	client.SetTimeout(cfg.PollTimeout)

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.PollTimeout+time.Second)
	defer cancel()

	snap, err := client.FetchSnapshot(ctx, cfg.Model)
	if err != nil {
		ui.NewPrinter(os.Stderr).PrintError(failureTitle(err, "Snapshot request failed"), err)
		return errors.New("status failed")
	}

	store := matrix.NewStore(cfg.Model)
	if _, err := store.Replace(snap); err != nil {
		return fmt.Errorf("snapshot rejected: %w", err)
	}
	view := store.View()

	switch outputFormat {
	case "compact":
		fmt.Println(formatCompact(view))
	case "json":
		data, err := json.MarshalIndent(statusJSON{
			Host:      cfg.Host,
			View:      view,
			Variables: console.Variables(view),
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
	case "detailed":
		fallthrough
	default:
		p := ui.NewPrinter(nil)
		p.PrintHeader("Matrix status", "intmatrix status", map[string]string{
			"Device": cfg.Host,
			"Model":  cfg.Model.String(),
		})
		p.Println(ui.RenderDeviceInfo(view))
		p.Println(ui.RenderRoutingTable(view))
	}
	return nil
}

// statusJSON is the --format json output of status.
type statusJSON struct {
	Host      string            `json:"host"`
	View      matrix.View       `json:"view"`
	Variables map[string]string `json:"variables"`
}

// formatCompact renders one "output<-input" pair per output.
func formatCompact(v matrix.View) string {
	parts := make([]string, 0, v.Ports()+1)
	for o := 1; o <= v.Ports(); o++ {
		parts = append(parts, fmt.Sprintf("%d<-%d", o, v.Input(o)))
	}
	parts = append(parts, "lock="+v.Info.Lock.String())
	return strings.Join(parts, " ")
}

var routeCmd = &cobra.Command{
	Use:   "route INPUT OUTPUT...",
	Short: "Route an input to one or more outputs",
	Example: `  # Input 2 to output 1
  intmatrix route 2 1 -d 192.168.1.50

  # Input 3 to outputs 1, 2 and 4
  intmatrix route 3 1,2,4 -d 192.168.1.50`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid input %q", args[0])
		}
		outputs, err := shell.ParseOutputs(strings.Join(args[1:], ","))
		if err != nil {
			return err
		}
		return runOneShot(cmd.Context(), protocol.Route(input, outputs...))
	},
}

var routeAllCmd = &cobra.Command{
	Use:   "route-all INPUT",
	Short: "Route an input to every output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid input %q", args[0])
		}
		return runOneShot(cmd.Context(), protocol.RouteAll(input))
	},
}

var passThroughCmd = &cobra.Command{
	Use:   "pass-through",
	Short: "Route each input to the output with the same number",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOneShot(cmd.Context(), protocol.PassThrough())
	},
}

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Lock the front panel",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOneShot(cmd.Context(), protocol.Lock())
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Unlock the front panel",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOneShot(cmd.Context(), protocol.Unlock())
	},
}

// runOneShot connects, sends one intent and disconnects.
func runOneShot(parent context.Context, intent protocol.Intent) error {
	if parent == nil {
		parent = context.Background()
	}
	sess, err := startSession(parent)
	if err != nil {
		return err
	}
	defer sess.Close()

	p := ui.NewPrinter(nil)
	if err := sess.waitConnected(connectTimeout); err != nil {
		p.PrintError(failureTitle(err, "Connection failed"), err)
		return errors.New("command not sent")
	}
	sess.markSeen()

	ctx, cancel := context.WithTimeout(parent, connectTimeout)
	defer cancel()

	if _, err := sess.driver.Execute(ctx, intent); err != nil {
		p.PrintError("Command failed", err)
		return errors.New("command not sent")
	}

	result := ui.NewSuccessResult("Command sent", map[string]string{
		"Device":  sess.driver.Config().Host,
		"Command": intent.String(),
	})
	if v := sess.driver.State(); v.Info.Version != "" {
		result.AddDetail("Firmware", v.Info.Version)
	}
	p.PrintResult(result)
	return nil
}

// failureTitle names the failure by where it happened when the error
// came from the device.
func failureTitle(err error, fallback string) string {
	switch {
	case deviceerr.IsNetworkError(err):
		return "Matrix unreachable"
	case deviceerr.IsHTTPError(err):
		return "Web interface error"
	default:
		return fallback
	}
}

// isLoopback reports whether a listen address only accepts local clients.
func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live routing view with keyboard control",
	Long: `Open a full-screen view of the matrix that follows routing and lock
changes as the device reports them.

Select an output with the arrow keys and press an input number to route
it. Press ? for all key bindings. Logs go to intmatrix.log in the
configuration directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		sess, err := startSession(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		return monitor.Run(ctx, sess.driver, sess.events, sess.driver.Config().Host)
	},
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive command shell",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		sess, err := startSession(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		sh, err := shell.New(sess.driver, "intmatrix> ")
		if err != nil {
			return err
		}
		go sh.Watch(sess.events)

		return sh.Run(ctx)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Publish matrix state over HTTP and WebSocket",
	Long: `Keep a live connection to the matrix and serve its state.

Endpoints:
  GET  /api/state      routing table, device info and connection status
  GET  /api/variables  console variables
  GET  /api/choices    input and output choices with labels
  POST /api/commands   execute {"action": "route", "input": 2, "outputs": [1]}
  POST /api/refresh    request a snapshot poll
  GET  /ws             state and status updates, commands in`,
	Example: `  intmatrix serve -d 192.168.1.50 --listen 0.0.0.0:8044`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		addr := listenAddr
		if addr == "" {
			addr = registry.Preferences.ListenAddr
		}

		sess, err := startSession(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		// The server subscribes per client.
		sess.stop()

		if !isLoopback(addr) {
			ui.NewPrinter(nil).PrintWarning("API reachable from the network", map[string]string{
				"Listen": addr,
				"Access": "no authentication, any client can change routing",
			})
		}
		fmt.Printf("Serving %s on http://%s\n", sess.driver.Config().Host, addr)
		return server.New(server.Config{Addr: addr}, sess.driver).ListenAndServe(ctx)
	},
}
