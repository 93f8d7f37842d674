package cutover

import (
	"context"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/nginxinc/gateway-cutover/internal/probe"
)

// historyLimit bounds the persisted verification history per scope.
const historyLimit = 20

// VerificationRecord is one persisted verification pass.
type VerificationRecord struct {
	// RunID uniquely identifies the verification pass.
	RunID string `json:"runID"`
	// Timestamp is when the pass finished.
	Timestamp metav1.Time `json:"timestamp"`
	// Equivalent reports whether the rule diff was equivalent.
	Equivalent bool `json:"equivalent"`
	// MismatchCount is the number of probe mismatches.
	MismatchCount int `json:"mismatchCount"`
	// WarningCount is the number of ordering warnings in the diff.
	WarningCount int `json:"warningCount"`
}

// OperationLease marks an operation in flight on a scope. Because the Status
// is shared across processes through the store, the in-memory operation lock
// alone cannot reject a second CLI invocation; the lease can. It is released
// when the operation finishes and ignored once expired, so a crashed holder
// cannot wedge the scope forever.
type OperationLease struct {
	// Holder identifies the process holding the lease.
	Holder string `json:"holder"`
	// Operation is the operation the holder is running.
	Operation string `json:"operation"`
	// Expiry is when the lease stops being honored.
	Expiry metav1.Time `json:"expiry"`
}

// Status is the persisted cutover state of one routing scope. Repeated
// verify invocations append to History, making runs comparable over time.
type Status struct {
	// State is the current lifecycle state.
	State State `json:"state"`
	// LastTransition is when State last changed.
	LastTransition metav1.Time `json:"lastTransitionTime"`
	// Attempts counts consecutive failed verification passes since the last
	// clean one.
	Attempts int `json:"attempts"`
	// History holds the most recent verification records, newest last.
	History []VerificationRecord `json:"history,omitempty"`
	// Baseline holds the gateway-side observations captured when the scope
	// became ReadyToCut; post-cutover probes compare against it.
	Baseline []probe.Observation `json:"baseline,omitempty"`
	// Lease is set while an operation is in flight.
	Lease *OperationLease `json:"lease,omitempty"`
}

func (s *Status) appendRecord(record VerificationRecord) {
	s.History = append(s.History, record)
	if len(s.History) > historyLimit {
		s.History = s.History[len(s.History)-historyLimit:]
	}
}

// Store persists Statuses keyed by routing scope.
type Store interface {
	// Load returns the Status of the scope, or nil if none is persisted.
	Load(ctx context.Context, scope types.NamespacedName) (*Status, error)
	// Save persists the Status of the scope.
	Save(ctx context.Context, scope types.NamespacedName, status *Status) error
}
