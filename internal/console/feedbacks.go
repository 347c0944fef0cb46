package console

import (
	"github.com/muurk/intmatrix/internal/matrix"
)

// OutputHasInput reports whether output is currently fed by input.
func OutputHasInput(v matrix.View, input, output int) bool {
	in := v.Input(output)
	return in != matrix.Unassigned && in == input
}

// IsLocked compares the panel lock with a LockKey value, "1" for unlocked
// or "2" for locked. It is false while the lock state is unknown.
func IsLocked(v matrix.View, key string) bool {
	k := v.Info.Lock.Key()
	return k != "" && k == key
}

// Diff returns the variables whose values differ between two renderings,
// with their new values. Variables missing from next are reported empty.
func Diff(prev, next map[string]string) map[string]string {
	changed := make(map[string]string)
	for id, val := range next {
		if old, ok := prev[id]; !ok || old != val {
			changed[id] = val
		}
	}
	for id := range prev {
		if _, ok := next[id]; !ok {
			changed[id] = ""
		}
	}
	return changed
}
