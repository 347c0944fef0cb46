// Package protocol implements the INT-xxHDX matrix switcher line protocol.
//
// The matrix exposes two channels. This package covers the stream channel
// (TCP port 4001): status notifications pushed by the device and the
// literal commands sent to it.
//
// # Inbound
//
// Deliveries are turned into logical lines by a Reassembler. The device
// splits short notifications across two writes of at most eight bytes each;
// longer deliveries already carry whole CR/LF terminated lines.
//
// ParseLine classifies a line, first match wins:
//
//	INT-44HDX      model announcement (digit at offset 5)
//	V1.0.3         firmware version
//	System Locked! panel lock state (offset 7 is 'L' when locked)
//	AV:01->02      output 2 takes input 1 (4x4 zero padded)
//	AV:  2-> 2     output 2 takes input 2 (6x6 space padded)
//	02 To Al       every output takes input 2 (4x4)
//	2 To All       every output takes input 2 (6x6)
//	3B1,2.         echo of a route command
//	All Through.   pass-through, output N takes input N
//
// Anything else decodes as *UnknownLine and should trigger a snapshot poll.
//
// The route line offsets assume a two-character output field. A variant
// with wider fields would decode as UnknownLine and fall back to polling.
//
// # Outbound
//
//	3All.          route input 3 to all outputs
//	3B1,2.         route input 3 to outputs 1 and 2
//	All#.          pass-through
//	/%Lock;        lock the front panel
//	/%Unlock;      unlock the front panel
//	/*Type;        ask for model and firmware version
//
// Every command is terminated with CR/LF and sent as ISO-8859-1 bytes.
package protocol
