package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/muurk/intmatrix/internal/protocol"
)

func TestGetConfigDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("XDG_CONFIG_HOME is not consulted on windows")
	}
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	want := filepath.Join(base, "intmatrix")
	if configDir != want {
		t.Errorf("GetConfigDir() = %v, want %v", configDir, want)
	}
}

func TestGetConfigDir_HomeFallback(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix layout only")
	}
	t.Setenv("XDG_CONFIG_HOME", "")

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if !strings.Contains(configDir, ".config") || filepath.Base(configDir) != "intmatrix" {
		t.Errorf("Unix config dir should be under '.config/intmatrix', got: %v", configDir)
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}

	// Should end with config.yaml
	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}
	if reg.Devices == nil {
		t.Error("NewRegistry().Devices should not be nil")
	}
	if reg.Preferences == nil {
		t.Fatal("NewRegistry().Preferences should not be nil")
	}
	if reg.Preferences.PollTimeoutSeconds != DefaultPollTimeoutSeconds {
		t.Errorf("PollTimeoutSeconds = %d, want %d", reg.Preferences.PollTimeoutSeconds, DefaultPollTimeoutSeconds)
	}
	if reg.Preferences.ListenAddr != DefaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", reg.Preferences.ListenAddr, DefaultListenAddr)
	}
}

func TestPreferencesPollTimeout(t *testing.T) {
	tests := []struct {
		name  string
		prefs *Preferences
		want  time.Duration
	}{
		{"nil", nil, 10 * time.Second},
		{"zero", &Preferences{}, 10 * time.Second},
		{"set", &Preferences{PollTimeoutSeconds: 3}, 3 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.prefs.PollTimeout(); got != tt.want {
				t.Errorf("PollTimeout() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegistryEnsureDevice(t *testing.T) {
	reg := NewRegistry()

	device1 := reg.EnsureDevice("matrix.local")
	if device1 == nil {
		t.Fatal("EnsureDevice() returned nil")
	}

	// Should return same instance
	device2 := reg.EnsureDevice("matrix.local")
	if device1 != device2 {
		t.Error("EnsureDevice() should return same instance for same host")
	}
	if len(reg.Devices) != 1 {
		t.Errorf("Devices has %d entries, want 1", len(reg.Devices))
	}
}

func TestRegistryUpdateDeviceLastSeen(t *testing.T) {
	reg := NewRegistry()

	before := time.Now()
	reg.UpdateDeviceLastSeen("matrix.local")

	device := reg.GetDevice("matrix.local")
	if device == nil {
		t.Fatal("UpdateDeviceLastSeen() should create device")
	}
	if device.LastSeen.Before(before) {
		t.Errorf("LastSeen = %v, should be after %v", device.LastSeen, before)
	}
}

func TestRegistryDeviceModel(t *testing.T) {
	reg := NewRegistry()

	if got := reg.DeviceModel("matrix.local"); got != protocol.ModelUnknown {
		t.Errorf("DeviceModel() for unknown host = %v, want ModelUnknown", got)
	}

	reg.SetDeviceModel("matrix.local", protocol.Model8x8)
	if got := reg.DeviceModel("matrix.local"); got != protocol.Model8x8 {
		t.Errorf("DeviceModel() = %v, want %v", got, protocol.Model8x8)
	}
}

func TestRegistrySetDeviceNickname(t *testing.T) {
	reg := NewRegistry()

	reg.SetDeviceNickname("10.0.0.5", "Rack A")

	device := reg.GetDevice("10.0.0.5")
	if device == nil {
		t.Fatal("SetDeviceNickname() should create device")
	}
	if device.Nickname != "Rack A" {
		t.Errorf("Nickname = %q, want 'Rack A'", device.Nickname)
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	reg := NewRegistry()
	reg.SetDeviceNickname("matrix.local", "Conference Room")
	reg.SetDeviceModel("matrix.local", protocol.Model6x6)
	reg.EnsureDevice("matrix.local").StreamPort = 4002
	reg.Preferences.CaptureDir = "/var/tmp/captures"

	if err := reg.SaveTo(configPath); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.HasPrefix(string(data), "# intmatrix configuration file") {
		t.Errorf("saved file should start with header comment, got:\n%s", data)
	}
	if _, err := os.Stat(configPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should not remain after save")
	}

	loaded, err := LoadRegistryFrom(configPath)
	if err != nil {
		t.Fatalf("LoadRegistryFrom() error = %v", err)
	}

	device := loaded.GetDevice("matrix.local")
	if device == nil {
		t.Fatal("loaded registry should contain matrix.local")
	}
	if device.Nickname != "Conference Room" {
		t.Errorf("Nickname = %q, want 'Conference Room'", device.Nickname)
	}
	if device.Model != protocol.Model6x6 {
		t.Errorf("Model = %v, want %v", device.Model, protocol.Model6x6)
	}
	if device.StreamPort != 4002 {
		t.Errorf("StreamPort = %d, want 4002", device.StreamPort)
	}
	if loaded.Preferences.CaptureDir != "/var/tmp/captures" {
		t.Errorf("CaptureDir = %q", loaded.Preferences.CaptureDir)
	}
}

func TestLoadRegistryFrom_Missing(t *testing.T) {
	reg, err := LoadRegistryFrom(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("LoadRegistryFrom() error = %v", err)
	}
	if reg.Version != 1 || reg.Preferences == nil {
		t.Errorf("missing file should yield default registry, got %+v", reg)
	}
}

func TestLoadRegistryFrom_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "version: [1"},
		{"wrong version", "version: 2\n"},
		{"bad model", "version: 1\ndevices:\n  matrix.local:\n    model: 5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadRegistryFrom(path); err == nil {
				t.Error("LoadRegistryFrom() should fail")
			}
		})
	}
}

func TestLoadRegistryFrom_FillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "version: 1\ndevices:\n  matrix.local:\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadRegistryFrom(path)
	if err != nil {
		t.Fatalf("LoadRegistryFrom() error = %v", err)
	}
	if reg.GetDevice("matrix.local") == nil {
		t.Error("null device entry should be replaced with an empty device")
	}
	if reg.Preferences == nil || reg.Preferences.ListenAddr != DefaultListenAddr {
		t.Errorf("Preferences = %+v, want defaults", reg.Preferences)
	}
}

// Benchmarks
func BenchmarkGetConfigDir(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = GetConfigDir()
	}
}

func BenchmarkEnsureDevice(b *testing.B) {
	reg := NewRegistry()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.EnsureDevice("matrix.local")
	}
}
