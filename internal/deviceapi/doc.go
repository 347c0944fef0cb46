// Package deviceapi reads the matrix's full state from its web interface.
//
// The web UI polls a per-model CGI endpoint:
//
//	POST /cgi-bin/MUH44TP_getsetparams.cgi
//	Content-Type: application/javascript
//
//	tag=ptn
//
// and gets back a JavaScript-ish object literal with single-quoted keys
// wrapped in a few marker characters. CleanReply strips the envelope,
// ParseReply turns it into Fields and DecodeSnapshot maps the fields onto a
// matrix.Snapshot.
//
// Some firmware sends malformed HTTP headers on this endpoint. Go's HTTP
// client rejects those replies; they surface as network errors.
package deviceapi
