// Package config provides user configuration management for intmatrix.
//
// This package manages a YAML-based configuration file that stores per-matrix
// settings (nickname, model, ports) keyed by host, plus application
// preferences such as log level, poll timeout and stream capture.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux and macOS: $XDG_CONFIG_HOME/intmatrix/config.yaml or $HOME/.config/intmatrix/config.yaml
//   - Windows: %LOCALAPPDATA%\intmatrix\config.yaml
//
// # Model Persistence
//
// A matrix announces its model when it connects. The driver hands that
// announcement to a sink, which records it here with SetDeviceModel and
// saves the file, so the next run starts with the right port count.
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	registry.SetDeviceNickname("192.168.1.50", "Rack A")
//	registry.SetDeviceModel("192.168.1.50", protocol.Model8x8)
//
//	// Save changes atomically
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File operations are protected by a mutex to ensure atomic writes.
package config
