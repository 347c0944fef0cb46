// Package server publishes a driver's state over HTTP and WebSocket.
//
// Endpoints:
//
//	GET  /api/state      connection status and the full view
//	GET  /api/variables  variable definitions and current values
//	GET  /api/choices    input and output choice lists
//	POST /api/commands   {"action":"route","input":3,"outputs":[1,2]}
//	POST /api/refresh    request a snapshot poll
//	GET  /ws             live updates; accepts command requests
//
// A WebSocket client first receives a "hello" message with the full view
// and every variable, then "state" messages carrying the new view and only
// the variables that changed, and "status" messages on connection changes.
// Command requests sent over the socket are answered with "result".
//
// A command the driver drops because the matrix is disconnected is
// answered with sent=false and suppressed=true and HTTP 200.
package server
