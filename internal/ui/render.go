package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/muurk/intmatrix/internal/driver"
	"github.com/muurk/intmatrix/internal/matrix"
	"github.com/muurk/intmatrix/internal/transport"
)

// RenderStatus renders the one-line connection status.
func RenderStatus(s driver.Status) string {
	var marker string
	var style lipgloss.Style
	switch s.State {
	case transport.StatusOK:
		marker, style = ConnectedMarker, lipgloss.NewStyle().Foreground(SuccessColor)
	case transport.StatusConnecting:
		marker, style = ConnectingMarker, lipgloss.NewStyle().Foreground(WarningColor)
	case transport.StatusError:
		marker, style = FailureMarker, lipgloss.NewStyle().Foreground(ErrorColor)
	default:
		marker, style = OfflineMarker, lipgloss.NewStyle().Foreground(MutedColor)
	}

	line := style.Render(marker + " " + s.State.String())
	if s.Message != "" {
		line += " " + ErrorMessageStyle.Render(s.Message)
	}
	return line
}

// RenderLock renders the front panel lock as a badge.
func RenderLock(l matrix.LockState) string {
	switch l {
	case matrix.LockLocked:
		return LockedStyle.Render("LOCKED")
	case matrix.LockUnlocked:
		return UnlockedStyle.Render("unlocked")
	default:
		return UnassignedStyle.Render("unknown")
	}
}

// RenderDeviceInfo renders model, firmware, title and lock on one line.
func RenderDeviceInfo(v matrix.View) string {
	parts := []string{HeaderParamValueStyle.Render(v.Model.String())}
	if v.Info.Version != "" {
		parts = append(parts, HeaderParamKeyStyle.UnsetPaddingLeft().Render("firmware")+" "+v.Info.Version)
	}
	if v.Info.Title != "" {
		parts = append(parts, fmt.Sprintf("%q", v.Info.Title))
	}
	parts = append(parts, RenderLock(v.Info.Lock))
	if !v.Synced {
		parts = append(parts, UnassignedStyle.Render("(not synced)"))
	}
	return strings.Join(parts, "  ")
}

// RenderRoutingTable renders one row per output with the input feeding it.
func RenderRoutingTable(v matrix.View) string {
	rows := make([][]string, 0, v.Ports())
	for o := 1; o <= v.Ports(); o++ {
		in := v.Input(o)
		if in == matrix.Unassigned {
			rows = append(rows, []string{
				strconv.Itoa(o), v.OutputLabel(o), "-", UnassignedStyle.Render("unassigned"),
			})
			continue
		}
		rows = append(rows, []string{
			strconv.Itoa(o), v.OutputLabel(o), strconv.Itoa(in), v.InputLabel(in),
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(MutedColor)).
		Headers("OUT", "OUTPUT", "IN", "INPUT").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			return TableCellStyle
		}).
		String()
}

// RenderCrosspoints renders the routing as an input-by-output grid.
func RenderCrosspoints(v matrix.View) string {
	n := v.Ports()
	headers := make([]string, 0, n+1)
	headers = append(headers, "IN\\OUT")
	for o := 1; o <= n; o++ {
		headers = append(headers, strconv.Itoa(o))
	}

	rows := make([][]string, 0, n)
	for i := 1; i <= n; i++ {
		row := make([]string, 0, n+1)
		row = append(row, strconv.Itoa(i))
		for o := 1; o <= n; o++ {
			if v.Input(o) == i {
				row = append(row, CrosspointMarker)
			} else {
				row = append(row, EmptyMarker)
			}
		}
		rows = append(rows, row)
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(MutedColor)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow || col == 0 {
				return TableHeaderStyle
			}
			return TableCellStyle.Align(lipgloss.Center)
		}).
		String()
}
