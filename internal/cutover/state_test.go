package cutover

import (
	"testing"

	. "github.com/onsi/gomega"
)

func TestStateTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		from    State
		to      State
		allowed bool
	}{
		{name: "preparing to verifying", from: StatePreparing, to: StateVerifying, allowed: true},
		{name: "preparing to rolled back", from: StatePreparing, to: StateRolledBack, allowed: true},
		{name: "preparing to ready to cut", from: StatePreparing, to: StateReadyToCut, allowed: false},
		{name: "preparing to cut", from: StatePreparing, to: StateCut, allowed: false},
		{name: "verifying retry", from: StateVerifying, to: StateVerifying, allowed: true},
		{name: "verifying to ready to cut", from: StateVerifying, to: StateReadyToCut, allowed: true},
		{name: "verifying to cut is illegal", from: StateVerifying, to: StateCut, allowed: false},
		{name: "verifying to rolled back", from: StateVerifying, to: StateRolledBack, allowed: true},
		{name: "ready to cut to cut", from: StateReadyToCut, to: StateCut, allowed: true},
		{name: "ready to cut back to verifying", from: StateReadyToCut, to: StateVerifying, allowed: true},
		{name: "cut to rolled back", from: StateCut, to: StateRolledBack, allowed: true},
		{name: "cut to verifying", from: StateCut, to: StateVerifying, allowed: false},
		{name: "rolled back is terminal", from: StateRolledBack, to: StatePreparing, allowed: false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			g.Expect(test.from.CanTransitionTo(test.to)).To(Equal(test.allowed))
		})
	}
}

func TestStateTerminal(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	g.Expect(StateRolledBack.Terminal()).To(BeTrue())
	g.Expect(StatePreparing.Terminal()).To(BeFalse())
	g.Expect(StateVerifying.Terminal()).To(BeFalse())
	g.Expect(StateReadyToCut.Terminal()).To(BeFalse())
	g.Expect(StateCut.Terminal()).To(BeFalse())
}
