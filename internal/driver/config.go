package driver

import (
	"fmt"
	"time"

	"github.com/muurk/intmatrix/internal/deviceapi"
	"github.com/muurk/intmatrix/internal/poller"
	"github.com/muurk/intmatrix/internal/protocol"
	"github.com/muurk/intmatrix/internal/transport"
)

// Config selects the device a Driver talks to. Changing Host or Model
// requires a reinitialization, see Driver.Reconfigure.
type Config struct {
	Host        string
	Model       protocol.Model
	StreamPort  int
	HTTPPort    int
	PollTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Model == protocol.ModelUnknown {
		c.Model = protocol.DefaultModel
	}
	if c.StreamPort == 0 {
		c.StreamPort = transport.DefaultPort
	}
	if c.HTTPPort == 0 {
		c.HTTPPort = deviceapi.DefaultPort
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = poller.DefaultTimeout
	}
	return c
}

// Validate reports configuration the driver cannot run with.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("no device host configured")
	}
	if c.Model != protocol.ModelUnknown && !c.Model.Valid() {
		return fmt.Errorf("unsupported model %d", int(c.Model))
	}
	return nil
}

type endpoint struct {
	host       string
	streamPort int
	httpPort   int
}

// endpoint identifies the physical device. A different endpoint means
// nothing in the store can be trusted.
func (c Config) endpoint() endpoint {
	return endpoint{host: c.Host, streamPort: c.StreamPort, httpPort: c.HTTPPort}
}
