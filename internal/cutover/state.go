package cutover

// State is the lifecycle state of a routing-scope cutover.
type State string

const (
	// StatePreparing means the gateway rule source has been applied but the
	// sources have not both been confirmed queryable yet.
	StatePreparing State = "Preparing"
	// StateVerifying means both sources are queryable and equivalence is
	// being verified.
	StateVerifying State = "Verifying"
	// StateReadyToCut means the rule diff is equivalent and traffic probes
	// reported zero mismatches.
	StateReadyToCut State = "ReadyToCut"
	// StateCut means the legacy rule source has been disabled.
	StateCut State = "Cut"
	// StateRolledBack means the cutover was abandoned and the legacy rule
	// source re-enabled. It is terminal.
	StateRolledBack State = "RolledBack"
)

// validTransitions is the closed transition table. Transitions not listed
// here are illegal; in particular Verifying cannot jump to Cut without
// passing through ReadyToCut.
var validTransitions = map[State][]State{
	StatePreparing:  {StateVerifying, StateRolledBack},
	StateVerifying:  {StateVerifying, StateReadyToCut, StateRolledBack},
	StateReadyToCut: {StateCut, StateVerifying, StateRolledBack},
	StateCut:        {StateRolledBack},
	StateRolledBack: {},
}

// CanTransitionTo reports whether the transition from s to next is legal.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s has no outgoing transitions.
func (s State) Terminal() bool {
	return len(validTransitions[s]) == 0
}
