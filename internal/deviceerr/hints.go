package deviceerr

import (
	"fmt"
)

// Troubleshooting returns bullet points for the CLI error box
func Troubleshooting(err error) []string {
	devErr, ok := asDeviceError(err)
	if !ok {
		return nil
	}

	switch devErr.Type {
	case ErrTypeTimeout:
		return []string{
			"Check that the matrix is powered on",
			"Verify the IP address with the front panel or the web UI",
			"Increase poll_timeout_seconds in the config file (intmatrix config path)",
		}
	case ErrTypeConnectionRefused:
		return []string{
			"The control port may be in use by another controller",
			"Verify the stream port (default 4001) and HTTP port (default 80)",
			"Power-cycle the matrix to reset its TCP server",
		}
	case ErrTypeDNS:
		return []string{
			"Use the IP address instead of a hostname",
			"Check your network DNS settings",
		}
	case ErrTypeNetwork:
		switch devErr.NetworkSubtype {
		case NetworkErrorHostUnreachable, NetworkErrorNetworkUnreachable:
			return []string{
				"Check that you're on the same network as the matrix",
				"Try pinging the device: ping " + devErr.Host,
			}
		case NetworkErrorConnectionReset, NetworkErrorClosed:
			return []string{
				"The matrix dropped the connection",
				"Only one control session may be supported at a time",
			}
		default:
			return []string{"Check your network connection"}
		}
	case ErrTypeHTTP:
		return []string{
			fmt.Sprintf("The web interface returned HTTP %d", devErr.StatusCode),
			"Check the selected model matches the device (INT-44HDX, INT-66HDX, INT-88HDX)",
		}
	case ErrTypeDecode:
		return []string{
			"The web interface reply was not in the expected format",
			"Check the selected model matches the device",
			"Run with --log-level debug to see the raw reply",
		}
	default:
		return nil
	}
}

// ShortMessage returns a concise, user-friendly error message. It is used
// for the connection status line.
func ShortMessage(err error) string {
	if err == nil {
		return ""
	}
	devErr, ok := asDeviceError(err)
	if !ok {
		return err.Error()
	}

	switch devErr.Type {
	case ErrTypeTimeout:
		return "Device not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Device refused connection"
	case ErrTypeDNS:
		return "Cannot resolve device hostname"
	case ErrTypeNetwork:
		switch devErr.NetworkSubtype {
		case NetworkErrorHostUnreachable:
			return "Device unreachable"
		case NetworkErrorNetworkUnreachable:
			return "Network unreachable"
		case NetworkErrorConnectionReset:
			return "Connection reset by device"
		case NetworkErrorClosed:
			return "Connection closed by device"
		default:
			return "Network error"
		}
	case ErrTypeHTTP:
		return fmt.Sprintf("Device error (HTTP %d)", devErr.StatusCode)
	case ErrTypeDecode:
		return "Failed to decode device reply"
	default:
		return devErr.Message
	}
}
