// Package shell provides a readline console for driving a matrix by hand.
//
//	intmatrix> route 2 1,3
//	sent: route 2 -> [1 3]
//	intmatrix> lock
//	sent: lock
//
// Lines are parsed with Parse and checked against the current model before
// anything is sent.
package shell
