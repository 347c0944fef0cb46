package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/intmatrix/internal/capture"
	"github.com/muurk/intmatrix/internal/config"
	"github.com/muurk/intmatrix/internal/driver"
	"github.com/muurk/intmatrix/internal/logging"
	"github.com/muurk/intmatrix/internal/protocol"
	"github.com/muurk/intmatrix/internal/transport"
)

// connectTimeout bounds waiting for the stream in one-shot commands.
const connectTimeout = 10 * time.Second

// resolveTarget builds the driver configuration for a run. Flags win over
// the registry entry for the host, which wins over defaults.
func resolveTarget(reg *config.Registry, host, model string, port, http int) (driver.Config, error) {
	if host == "" {
		return driver.Config{}, errors.New("no device specified (use --device HOST)")
	}

	cfg := driver.Config{
		Host:        host,
		StreamPort:  port,
		HTTPPort:    http,
		PollTimeout: reg.Preferences.PollTimeout(),
	}

	if dev := reg.GetDevice(host); dev != nil {
		cfg.Model = reg.DeviceModel(host)
		if cfg.StreamPort == 0 {
			cfg.StreamPort = dev.StreamPort
		}
		if cfg.HTTPPort == 0 {
			cfg.HTTPPort = dev.HTTPPort
		}
	}

	if model != "" {
		m, err := protocol.ParseModel(model)
		if err != nil {
			return driver.Config{}, err
		}
		cfg.Model = m
	}

	return cfg, cfg.Validate()
}

// targetConfig resolves the target from the global flags.
func targetConfig() (driver.Config, error) {
	return resolveTarget(registry, deviceHost, modelFlag, streamPort, httpPort)
}

// modelSink records an announced model in the registry.
func modelSink(reg *config.Registry) driver.ModelSink {
	return func(host string, m protocol.Model) error {
		reg.SetDeviceModel(host, m)
		return reg.Save()
	}
}

// openCapture opens a stream recorder when capture is enabled by flag or
// preferences. It returns nil when capture is off.
func openCapture(reg *config.Registry) (*capture.Recorder, error) {
	dir, format := captureDir, captureFormat
	if dir == "" {
		dir = reg.Preferences.CaptureDir
	}
	if format == "" {
		format = reg.Preferences.CaptureFormat
	}
	if dir == "" {
		return nil, nil
	}

	f, err := capture.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return capture.Open(dir, f)
}

// session is a running driver with its event subscription.
type session struct {
	driver *driver.Driver
	events <-chan driver.Event
	stop   func()
	cancel context.CancelFunc
	rec    *capture.Recorder
}

// startSession creates a driver for the target, subscribes to it and runs
// it in the background.
func startSession(ctx context.Context) (*session, error) {
	cfg, err := targetConfig()
	if err != nil {
		return nil, err
	}

	opts := []driver.Option{driver.WithModelSink(modelSink(registry))}
	rec, err := openCapture(registry)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		opts = append(opts, driver.WithRecorder(rec))
	}

	d, err := driver.New(cfg, opts...)
	if err != nil {
		if rec != nil {
			_ = rec.Close()
		}
		return nil, err
	}

	events, stop := d.Subscribe()
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		if err := d.Run(ctx); err != nil {
			logging.Error("Driver stopped", zap.Error(err))
		}
	}()

	return &session{driver: d, events: events, stop: stop, cancel: cancel, rec: rec}, nil
}

// waitConnected blocks until the stream is up, fails, or timeout passes.
// Events read while waiting are discarded.
func (s *session) waitConnected(timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if st := s.driver.Status(); st.State == transport.StatusOK {
			return nil
		}
		select {
		case ev, ok := <-s.events:
			if !ok {
				return driver.ErrNotRunning
			}
			if ev.Kind != driver.EventStatus {
				continue
			}
			switch ev.Status.State {
			case transport.StatusOK:
				return nil
			case transport.StatusError:
				return fmt.Errorf("connect to %s: %s", s.driver.Config().Host, ev.Status.Message)
			}
		case <-timer.C:
			return fmt.Errorf("connect to %s: timed out after %s", s.driver.Config().Host, timeout)
		}
	}
}

// markSeen records a successful connection in the registry.
func (s *session) markSeen() {
	registry.UpdateDeviceLastSeen(s.driver.Config().Host)
	if err := registry.Save(); err != nil {
		logging.Warn("Failed to save configuration", zap.Error(err))
	}
}

// Close stops the driver and waits for it to exit.
func (s *session) Close() {
	s.stop()
	s.cancel()
	<-s.driver.Done()
	if s.rec != nil {
		if err := s.rec.Close(); err != nil {
			logging.Warn("Failed to close capture", zap.Error(err))
		}
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
