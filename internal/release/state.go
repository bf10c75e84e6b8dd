package release

// State is a step of the release state machine.
type State string

const (
	StateNotATag          State = "not-a-tag"
	StateTagDetected      State = "tag-detected"
	StateVersionRewritten State = "version-rewritten"
	StateBuilt            State = "built"
	StateChecked          State = "checked"
	StatePublished        State = "published"
)

// order lists the states a successful release walks through.
var order = []State{StateTagDetected, StateVersionRewritten, StateBuilt, StateChecked, StatePublished}

// Next returns the state following s, or "" at the end.
func (s State) Next() State {
	for i, st := range order {
		if st == s && i+1 < len(order) {
			return order[i+1]
		}
	}
	return ""
}

// Terminal reports whether no further transition leaves s.
func (s State) Terminal() bool {
	return s == StateNotATag || s == StatePublished
}
