package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/intmatrix/internal/deviceapi"
	"github.com/muurk/intmatrix/internal/emulator"
	"github.com/muurk/intmatrix/internal/logging"
	"github.com/muurk/intmatrix/internal/protocol"
)

// Emulator flags
var (
	emuStreamAddr string
	emuHTTPAddr   string
	emuTitle      string
	emuPassword   string
)

func init() {
	emulateCmd.Flags().StringVar(&emuStreamAddr, "listen-stream", "127.0.0.1:4001", "Control port listen address")
	emulateCmd.Flags().StringVar(&emuHTTPAddr, "listen-http", "127.0.0.1:8080", "Web interface listen address")
	emulateCmd.Flags().StringVar(&emuTitle, "title", "Emulated Matrix", "Title label reported by the web interface")
	emulateCmd.Flags().StringVar(&emuPassword, "password", "", "Admin password (labels are only trusted when set)")
	rootCmd.AddCommand(emulateCmd)
}

var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Run a software matrix for testing",
	Long: `Run a software INT-xxHDX matrix that speaks the control port protocol and
answers the web interface snapshot request.

Point another intmatrix at it with --device, --port and --http-port.`,
	Example: `  # Terminal 1
  intmatrix emulate --model 8

  # Terminal 2
  intmatrix monitor -d 127.0.0.1 --http-port 8080 --model 8`,
	Args: cobra.NoArgs,
	RunE: runEmulate,
}

func runEmulate(cmd *cobra.Command, args []string) error {
	m := protocol.DefaultModel
	if modelFlag != "" {
		var err error
		if m, err = protocol.ParseModel(modelFlag); err != nil {
			return err
		}
	}

	opts := []emulator.Option{emulator.WithTitle(emuTitle)}
	if emuPassword != "" {
		opts = append(opts, emulator.WithPassword(emuPassword))
	}
	emu := emulator.New(m, opts...)

	ln, err := net.Listen("tcp", emuStreamAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", emuStreamAddr, err)
	}

	httpServer := &http.Server{
		Addr:              emuHTTPAddr,
		Handler:           emu.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		if err := emu.ServeStream(ln); err != nil && !errors.Is(err, emulator.ErrClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	fmt.Printf("Emulating %s\n  control port:  %s\n  web interface: http://%s%s\n",
		m, ln.Addr(), emuHTTPAddr, deviceapi.SnapshotPath(m))

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	logging.Info("Emulator shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Warn("HTTP shutdown failed", zap.Error(err))
	}
	if err := emu.Close(shutdownCtx); err != nil {
		logging.Warn("Stream shutdown failed", zap.Error(err))
	}
	return runErr
}
