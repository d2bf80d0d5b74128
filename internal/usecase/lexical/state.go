package lexical

// State is a step of the lexical fallback chain.
type State int

// States of the lexical fallback chain.
const (
	// StateIndex queries the full-text index.
	StateIndex State = iota
	// StateSubstring scans the corpus for case-insensitive containment.
	StateSubstring
	// StateEmpty is terminal: every path failed.
	StateEmpty
	// StateDone is terminal: a path produced a (possibly empty) hit list.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIndex:
		return "index"
	case StateSubstring:
		return "substring"
	case StateEmpty:
		return "empty"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == StateEmpty || s == StateDone }

// Outcome is the result of running one state.
type Outcome int

// Outcomes of a state run.
const (
	OutcomeOK Outcome = iota
	OutcomeFailed
)

// Next is the transition function of the chain.
func Next(s State, o Outcome) State {
	switch s {
	case StateIndex:
		if o == OutcomeOK {
			return StateDone
		}
		return StateSubstring
	case StateSubstring:
		if o == OutcomeOK {
			return StateDone
		}
		return StateEmpty
	default:
		return s
	}
}
