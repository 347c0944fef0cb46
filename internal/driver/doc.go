// Package driver keeps a live model of one INT HDX matrix and sends it
// commands.
//
// A Driver combines two sources. The stream channel pushes status lines,
// which are reassembled, classified and applied to the store one at a time.
// The CGI channel is polled for a full snapshot on connect, on
// reconfiguration and whenever a line cannot be decoded; a snapshot
// replaces routing and labels in one step.
//
// Both paths, plus commands and reconfiguration, are serialized through a
// single goroutine, so the store never has two writers and a snapshot can
// only land if it answers the most recent poll.
//
// There is no reconnect loop. After a drop the status stays in error until
// Reconfigure is called.
package driver
