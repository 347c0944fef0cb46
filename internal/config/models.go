package config

import (
	"time"

	"github.com/muurk/intmatrix/internal/protocol"
)

// Registry represents the entire user configuration file.
// This stores per-device settings and application preferences.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by host name or address
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Device represents the settings remembered for a single matrix.
// This is keyed by the host used to reach it.
type Device struct {
	Nickname   string         `yaml:"nickname,omitempty"`    // User-friendly name
	Model      protocol.Model `yaml:"model,omitempty"`       // 4, 6 or 8; learned from the device when it announces itself
	StreamPort int            `yaml:"stream_port,omitempty"` // Control port, 4001 when unset
	HTTPPort   int            `yaml:"http_port,omitempty"`   // CGI port, 80 when unset
	LastSeen   time.Time      `yaml:"last_seen,omitempty"`   // Last successful connection
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	LogLevel           string `yaml:"log_level,omitempty"`            // debug, info, warn, error; empty is silent
	PollTimeoutSeconds int    `yaml:"poll_timeout_seconds,omitempty"` // Snapshot request timeout
	ListenAddr         string `yaml:"listen_addr,omitempty"`          // Default address for `serve`
	CaptureDir         string `yaml:"capture_dir,omitempty"`          // Stream capture directory (empty = disabled)
	CaptureFormat      string `yaml:"capture_format,omitempty"`       // jsonl or cbor
}

// Default preference values.
const (
	DefaultPollTimeoutSeconds = 10
	DefaultListenAddr         = "127.0.0.1:8044"
	DefaultCaptureFormat      = "jsonl"
)

func defaultPreferences() *Preferences {
	return &Preferences{
		PollTimeoutSeconds: DefaultPollTimeoutSeconds,
		ListenAddr:         DefaultListenAddr,
		CaptureFormat:      DefaultCaptureFormat,
	}
}

// PollTimeout returns the snapshot timeout as a duration.
func (p *Preferences) PollTimeout() time.Duration {
	if p == nil || p.PollTimeoutSeconds <= 0 {
		return DefaultPollTimeoutSeconds * time.Second
	}
	return time.Duration(p.PollTimeoutSeconds) * time.Second
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Devices:     make(map[string]*Device),
		Preferences: defaultPreferences(),
	}
}

// GetDevice retrieves device settings by host.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(host string) *Device {
	return r.Devices[host]
}

// EnsureDevice ensures a device entry exists in the registry.
// Returns the device entry (existing or newly created).
func (r *Registry) EnsureDevice(host string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}

	if device, exists := r.Devices[host]; exists {
		return device
	}

	device := &Device{}
	r.Devices[host] = device
	return device
}

// UpdateDeviceLastSeen records a successful connection.
func (r *Registry) UpdateDeviceLastSeen(host string) {
	r.EnsureDevice(host).LastSeen = time.Now()
}

// SetDeviceModel records the model of a device.
func (r *Registry) SetDeviceModel(host string, m protocol.Model) {
	r.EnsureDevice(host).Model = m
}

// SetDeviceNickname sets a user-friendly nickname for a device.
func (r *Registry) SetDeviceNickname(host, nickname string) {
	r.EnsureDevice(host).Nickname = nickname
}

// DeviceModel returns the remembered model for host, or ModelUnknown.
func (r *Registry) DeviceModel(host string) protocol.Model {
	if d := r.GetDevice(host); d != nil && d.Model.Valid() {
		return d.Model
	}
	return protocol.ModelUnknown
}
