// Package matrix holds the driver's model of the switcher: which input
// feeds each output, the panel lock and the port labels.
//
// Store is written from one goroutine only. Incremental updates come from
// decoded status lines (Apply); complete replacements come from snapshot
// polls (Replace). Consumers read immutable View copies.
package matrix
