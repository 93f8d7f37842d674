package cutover

import (
	"fmt"

	"k8s.io/apimachinery/pkg/types"

	"github.com/nginxinc/gateway-cutover/internal/probe"
)

// CutoverInProgressError indicates that another cutover operation on the same
// routing scope is in flight. The operation is rejected, not queued.
type CutoverInProgressError struct {
	Scope types.NamespacedName
}

func (e *CutoverInProgressError) Error() string {
	return fmt.Sprintf("another cutover operation is in progress for scope %s", e.Scope)
}

// PreconditionError indicates that an operation was attempted from a state
// that does not permit it.
type PreconditionError struct {
	Operation string
	State     State
	Scope     types.NamespacedName
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("cannot %s scope %s in state %s", e.Operation, e.Scope, e.State)
}

// VerificationFailedError indicates that a verification pass found the two
// rule sources not equivalent. Once the attempt cap is exceeded, the failure
// is fatal to the automated flow and requires operator intervention.
type VerificationFailedError struct {
	Scope       types.NamespacedName
	Attempts    int
	MaxAttempts int
}

func (e *VerificationFailedError) Error() string {
	if e.Fatal() {
		return fmt.Sprintf(
			"verification failed for scope %s: attempt cap reached (%d of %d); operator intervention required",
			e.Scope, e.Attempts, e.MaxAttempts,
		)
	}
	return fmt.Sprintf("verification failed for scope %s: attempt %d of %d", e.Scope, e.Attempts, e.MaxAttempts)
}

// Fatal reports whether the attempt cap has been reached.
func (e *VerificationFailedError) Fatal() bool {
	return e.Attempts >= e.MaxAttempts
}

// PostCutRegressionError indicates that a post-cutover probe regressed.
// It is surfaced loudly regardless of whether the automatic rollback
// succeeded.
type PostCutRegressionError struct {
	Scope          types.NamespacedName
	Mismatches     []probe.MismatchReport
	LegacyRestored bool
}

func (e *PostCutRegressionError) Error() string {
	restored := "legacy source re-enabled"
	if !e.LegacyRestored {
		restored = "legacy source could NOT be re-enabled"
	}
	return fmt.Sprintf(
		"post-cutover regression for scope %s: %d mismatched case(s); %s",
		e.Scope, len(e.Mismatches), restored,
	)
}
