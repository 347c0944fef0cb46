// Package ui provides terminal rendering for the intmatrix CLI.
//
// Components are built with Lipgloss and follow a "print once" pattern:
// commands render a header, the matrix state or a result box, and exit.
// The interactive monitor lives in its own package and reuses these
// renderers for its body.
//
//   - RenderHeader: command banner with sorted parameters
//   - RenderStatus, RenderDeviceInfo: one-line connection and device summary
//   - RenderRoutingTable, RenderCrosspoints: the routing table in two layouts
//   - Result: success, warning and failure boxes; failures carry
//     troubleshooting tips derived from device errors
//
// # Logging Integration
//
// Logging is controlled via the INTMATRIX_LOG_LEVEL environment variable.
// When unset or empty, zap logging is silent so the styled output is
// displayed cleanly.
package ui
