package console

import (
	"fmt"
	"strconv"

	"github.com/muurk/intmatrix/internal/matrix"
	"github.com/muurk/intmatrix/internal/protocol"
)

// Fixed variable ids.
const (
	VarLockState   = "lock_state"
	VarVersion     = "version"
	VarTitle       = "title_label"
	VarLCDReadout1 = "lcd_readout_1"
	VarLCDReadout2 = "lcd_readout_2"
)

// OutputVar is the id of the variable holding the input routed to output n.
func OutputVar(n int) string { return fmt.Sprintf("output_%d", n) }

// InputLabelVar is the id of input n's label variable.
func InputLabelVar(n int) string { return fmt.Sprintf("input_%d_label", n) }

// OutputLabelVar is the id of output n's label variable.
func OutputLabelVar(n int) string { return fmt.Sprintf("output_%d_label", n) }

// InputHDCPVar is the id of input n's HDCP variable.
func InputHDCPVar(n int) string { return fmt.Sprintf("input_%d_hdcp", n) }

// Definition describes one variable.
type Definition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// VariableDefinitions lists the variables published for model m, in display
// order.
func VariableDefinitions(m protocol.Model) []Definition {
	n := m.Ports()
	defs := []Definition{
		{VarLockState, "Front Panel Keys Lock"},
		{VarVersion, "Firmware Version"},
		{VarTitle, "Title Label"},
		{VarLCDReadout1, "LCD Readout 1"},
		{VarLCDReadout2, "LCD Readout 2"},
	}
	for i := 1; i <= n; i++ {
		defs = append(defs, Definition{OutputVar(i), fmt.Sprintf("Output %d", i)})
	}
	for i := 1; i <= n; i++ {
		defs = append(defs, Definition{InputLabelVar(i), fmt.Sprintf("Input %d name", i)})
	}
	for i := 1; i <= n; i++ {
		defs = append(defs, Definition{OutputLabelVar(i), fmt.Sprintf("Output %d name", i)})
	}
	for i := 1; i <= n; i++ {
		defs = append(defs, Definition{InputHDCPVar(i), fmt.Sprintf("Input %d HDCP", i)})
	}
	return defs
}

// Variables renders a view as variable values. Unknown values are empty.
func Variables(v matrix.View) map[string]string {
	n := v.Ports()
	vars := make(map[string]string, 5+4*n)

	vars[VarLockState] = lockLabel(v.Info.Lock)
	vars[VarVersion] = v.Info.Version
	vars[VarTitle] = v.Info.Title
	vars[VarLCDReadout1] = v.Info.LCDReadout1
	vars[VarLCDReadout2] = v.Info.LCDReadout2

	for i := 1; i <= n; i++ {
		if in := v.Input(i); in != matrix.Unassigned {
			vars[OutputVar(i)] = strconv.Itoa(in)
		} else {
			vars[OutputVar(i)] = ""
		}
		vars[InputLabelVar(i)] = v.InputLabel(i)
		vars[OutputLabelVar(i)] = v.OutputLabel(i)
		if v.Synced {
			vars[InputHDCPVar(i)] = hdcpLabel(v.Info.InputHDCP[i])
		} else {
			vars[InputHDCPVar(i)] = ""
		}
	}
	return vars
}

func lockLabel(l matrix.LockState) string {
	switch l {
	case matrix.LockLocked:
		return "Locked"
	case matrix.LockUnlocked:
		return "Unlocked"
	}
	return ""
}

func hdcpLabel(on bool) string {
	if on {
		return "1"
	}
	return "0"
}
