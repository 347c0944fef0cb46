// Package transport is the stream channel to the matrix: a plain TCP
// connection on port 4001 carrying CR/LF terminated text.
//
// Each Read is handed to the Handler as one delivery. Reassembling
// deliveries into lines is the protocol package's job.
package transport
