// Package console is the state surface an operator console consumes:
// named variables, choice lists and boolean feedbacks derived from a
// matrix.View.
package console
