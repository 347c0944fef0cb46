package matrix

// Choice is one selectable port.
type Choice struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

// Choices lists inputs and outputs 1..N in order. Device labels are used
// only when the last snapshot carried the admin password field; otherwise
// every port gets its placeholder.
func Choices(v View) (inputs, outputs []Choice) {
	n := v.Ports()
	inputs = make([]Choice, 0, n)
	outputs = make([]Choice, 0, n)

	for i := 1; i <= n; i++ {
		in, out := InputPlaceholder(i), OutputPlaceholder(i)
		if v.Info.AuthPresent {
			in, out = v.InputLabel(i), v.OutputLabel(i)
		}
		inputs = append(inputs, Choice{ID: i, Label: in})
		outputs = append(outputs, Choice{ID: i, Label: out})
	}
	return inputs, outputs
}
