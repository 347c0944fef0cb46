// Package monitor implements the interactive terminal view of a matrix.
//
// The monitor is a Bubble Tea program. It renders the connection status and
// the routing table, forwards driver events into the program with
// tea.Program.Send, and turns key presses into intents executed on the
// driver. Commands run as tea.Cmd so the UI never blocks on the device.
package monitor
