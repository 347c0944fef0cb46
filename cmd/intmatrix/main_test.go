package main

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/intmatrix/internal/config"
	"github.com/muurk/intmatrix/internal/deviceerr"
	"github.com/muurk/intmatrix/internal/matrix"
	"github.com/muurk/intmatrix/internal/protocol"
)

func TestResolveTarget(t *testing.T) {
	reg := config.NewRegistry()
	reg.SetDeviceModel("known.local", protocol.Model8x8)
	reg.EnsureDevice("known.local").StreamPort = 5001
	reg.EnsureDevice("known.local").HTTPPort = 8080
	reg.Preferences.PollTimeoutSeconds = 3

	tests := []struct {
		name      string
		host      string
		model     string
		port      int
		httpPort  int
		wantModel protocol.Model
		wantPort  int
		wantHTTP  int
		wantErr   bool
	}{
		{"unknown host", "new.local", "", 0, 0, protocol.ModelUnknown, 0, 0, false},
		{"registry entry", "known.local", "", 0, 0, protocol.Model8x8, 5001, 8080, false},
		{"flags win", "known.local", "6", 4001, 80, protocol.Model6x6, 4001, 80, false},
		{"product name", "new.local", "INT-44HDX", 0, 0, protocol.Model4x4, 0, 0, false},
		{"no host", "", "", 0, 0, 0, 0, 0, true},
		{"bad model", "new.local", "5", 0, 0, 0, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := resolveTarget(reg, tt.host, tt.model, tt.port, tt.httpPort)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.host, cfg.Host)
			assert.Equal(t, tt.wantModel, cfg.Model)
			assert.Equal(t, tt.wantPort, cfg.StreamPort)
			assert.Equal(t, tt.wantHTTP, cfg.HTTPPort)
			assert.Equal(t, 3*time.Second, cfg.PollTimeout)
		})
	}
}

func TestFormatCompact(t *testing.T) {
	s := matrix.NewStore(protocol.Model4x4)
	_, err := s.Replace(&matrix.Snapshot{
		Routes: map[int]int{1: 2, 2: 2, 3: 3, 4: 1},
		Info:   matrix.DeviceInfo{Lock: matrix.LockUnlocked},
	})
	require.NoError(t, err)

	assert.Equal(t, "1<-2 2<-2 3<-3 4<-1 lock=unlocked", formatCompact(s.View()))
}

func TestModelSinkSavesRegistry(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	reg := config.NewRegistry()

	require.NoError(t, modelSink(reg)("matrix.local", protocol.Model6x6))

	path, err := config.GetConfigPath()
	require.NoError(t, err)
	loaded, err := config.LoadRegistryFrom(path)
	require.NoError(t, err)
	assert.Equal(t, protocol.Model6x6, loaded.DeviceModel("matrix.local"))
}

func TestFailureTitle(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", &deviceerr.DeviceError{Type: deviceerr.ErrTypeTimeout}, "Matrix unreachable"},
		{"refused wrapped", fmt.Errorf("dial: %w", &deviceerr.DeviceError{Type: deviceerr.ErrTypeConnectionRefused}), "Matrix unreachable"},
		{"http", deviceerr.NewHTTPError(404, "not found"), "Web interface error"},
		{"decode", deviceerr.NewDecodeError("bad reply", nil), "Snapshot request failed"},
		{"plain", errors.New("boom"), "Snapshot request failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, failureTitle(tt.err, "Snapshot request failed"))
		})
	}
}

func TestIsLoopback(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:8044", true},
		{"localhost:8044", true},
		{"[::1]:8044", true},
		{"0.0.0.0:8044", false},
		{":8044", false},
		{"192.168.1.10:8044", false},
		{"no-port", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isLoopback(tt.addr), tt.addr)
	}
}
