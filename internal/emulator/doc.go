// Package emulator is a software INT-44HDX/66HDX/88HDX matrix.
//
// It speaks the stream command set on a TCP listener and serves the CGI
// snapshot over HTTP, printing status lines in the padding of the emulated
// model. The driver tests run against it and `intmatrix emulate` exposes it
// for demos.
package emulator
