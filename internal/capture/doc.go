// Package capture records raw stream deliveries to disk for protocol
// analysis. Files are JSON Lines by default or CBOR when compactness
// matters; each run gets its own file and session id.
package capture
