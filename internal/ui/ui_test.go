package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/muurk/intmatrix/internal/deviceerr"
	"github.com/muurk/intmatrix/internal/driver"
	"github.com/muurk/intmatrix/internal/matrix"
	"github.com/muurk/intmatrix/internal/protocol"
	"github.com/muurk/intmatrix/internal/transport"
)

func syncedView() matrix.View {
	s := matrix.NewStore(protocol.Model4x4)
	_, _ = s.Replace(&matrix.Snapshot{
		Routes: map[int]int{1: 2, 2: 2, 3: 3, 4: 1},
		Info: matrix.DeviceInfo{
			Lock:         matrix.LockLocked,
			Title:        "Boardroom",
			InputLabels:  map[int]string{2: "Laptop"},
			OutputLabels: map[int]string{1: "Projector"},
			AuthPresent:  true,
		},
	})
	return s.View()
}

func TestRenderRoutingTable(t *testing.T) {
	out := RenderRoutingTable(syncedView())

	assert.Contains(t, out, "OUTPUT")
	assert.Contains(t, out, "Projector")
	assert.Contains(t, out, "Laptop")
	assert.Contains(t, out, "Output 4")
	assert.Contains(t, out, "Input 1")
	assert.NotContains(t, out, "unassigned")
}

func TestRenderRoutingTable_Unassigned(t *testing.T) {
	out := RenderRoutingTable(matrix.NewStore(protocol.Model6x6).View())

	assert.Equal(t, 6, strings.Count(out, "unassigned"))
	assert.Contains(t, out, "Output 6")
}

func TestRenderCrosspoints(t *testing.T) {
	out := RenderCrosspoints(syncedView())

	assert.Equal(t, 4, strings.Count(out, CrosspointMarker), "one crosspoint per output")
}

func TestRenderStatus(t *testing.T) {
	tests := []struct {
		status driver.Status
		want   []string
	}{
		{driver.Status{State: transport.StatusOK}, []string{ConnectedMarker, "ok"}},
		{driver.Status{State: transport.StatusConnecting}, []string{"connecting"}},
		{driver.Status{State: transport.StatusDisconnected}, []string{OfflineMarker, "disconnected"}},
		{driver.Status{State: transport.StatusError, Message: "Device refused connection"}, []string{"error", "Device refused connection"}},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			out := RenderStatus(tt.status)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestRenderDeviceInfo(t *testing.T) {
	out := RenderDeviceInfo(syncedView())
	assert.Contains(t, out, "INT-44HDX")
	assert.Contains(t, out, "Boardroom")
	assert.Contains(t, out, "LOCKED")
	assert.NotContains(t, out, "not synced")

	out = RenderDeviceInfo(matrix.NewStore(protocol.Model4x4).View())
	assert.Contains(t, out, "not synced")
	assert.Contains(t, out, "unknown")
}

func TestRenderHeader_SortsParams(t *testing.T) {
	out := RenderHeader("Matrix status", "intmatrix status", map[string]string{
		"Model":  "INT-44HDX",
		"Device": "192.168.1.50",
	}, 80)

	assert.Contains(t, out, "MATRIX STATUS")
	assert.Less(t, strings.Index(out, "Device:"), strings.Index(out, "Model:"))
}

func TestPrinter_PrintError(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf).SetWidth(80)

	err := deviceerr.NewNetworkError("192.168.1.50", "dial stream", errors.New("boom"))
	p.PrintError("Connection failed", err)

	out := buf.String()
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "Connection failed")
	assert.Contains(t, out, "Troubleshooting:")
}

func TestPrinter_PrintSuccessSortsDetails(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).SetWidth(80).PrintSuccess("Route sent", map[string]string{
		"Outputs": "1,2",
		"Input":   "3",
	})

	out := buf.String()
	assert.Contains(t, out, "SUCCESS")
	assert.Less(t, strings.Index(out, "Input:"), strings.Index(out, "Outputs:"))
}

func TestPrinter_PrintResultWithAddedDetail(t *testing.T) {
	var buf bytes.Buffer
	r := NewSuccessResult("Command sent", map[string]string{"Device": "192.168.1.50"}).
		AddDetail("Firmware", "V1.0.3")
	NewPrinter(&buf).SetWidth(80).PrintResult(r)

	out := buf.String()
	assert.Contains(t, out, "Firmware:")
	assert.Contains(t, out, "V1.0.3")
	assert.Less(t, strings.Index(out, "Device:"), strings.Index(out, "Firmware:"))
}

func TestPrinter_PrintWarning(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).SetWidth(80).PrintWarning("API reachable from the network", map[string]string{
		"Listen": "0.0.0.0:8044",
	})

	out := buf.String()
	assert.Contains(t, out, "WARNING")
	assert.Contains(t, out, "0.0.0.0:8044")
}

func TestPrinter_PrintState(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintState(driver.Status{State: transport.StatusOK}, syncedView())

	out := buf.String()
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "Projector")
}
