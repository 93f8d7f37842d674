// Package cutover orchestrates the migration of a routing scope from the
// legacy rule source to the gateway rule source. The controller is advisory:
// it issues commands to the cluster control plane and interprets status; it
// never forwards traffic itself.
package cutover

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/nginxinc/gateway-cutover/internal/probe"
	"github.com/nginxinc/gateway-cutover/internal/rules"
	"github.com/nginxinc/gateway-cutover/internal/rules/source"
)

// Prober compares responses between the two routing entry points.
type Prober interface {
	Compare(ctx context.Context, cases []probe.Case) (probe.Result, error)
	CheckBaseline(ctx context.Context, baseline []probe.Observation) ([]probe.MismatchReport, error)
}

// LegacyControl disables and re-enables the legacy rule source.
type LegacyControl interface {
	Disable(ctx context.Context) error
	Enable(ctx context.Context) error
}

// Collector records cutover metrics.
type Collector interface {
	ObserveVerification(duration time.Duration, mismatches int)
	RecordMismatches(mismatches []probe.MismatchReport)
	RecordState(state string)
}

// defaultLeaseDuration bounds how long a crashed process can hold a scope.
const defaultLeaseDuration = 2 * time.Minute

// Config holds the Controller settings.
type Config struct {
	Logger logr.Logger
	// Scope identifies the routing scope (namespace + route name).
	Scope types.NamespacedName
	// MaxVerifyAttempts caps consecutive failed verification passes before
	// the failure becomes fatal to the automated flow.
	MaxVerifyAttempts int
	// LeaseDuration bounds how long the persisted operation lease is honored.
	// Zero means the default.
	LeaseDuration time.Duration
}

// Report is the outcome of one verification pass, rendered for the operator.
type Report struct {
	Scope      string                 `json:"scope"`
	RunID      string                 `json:"runID"`
	State      State                  `json:"state"`
	Attempts   int                    `json:"attempts"`
	Diff       rules.DiffResult       `json:"diff"`
	Cases      []probe.Case           `json:"cases,omitempty"`
	Mismatches []probe.MismatchReport `json:"mismatches,omitempty"`
}

// Controller drives the cutover state machine for a single routing scope.
// Only one transition may be in flight at a time; concurrent operations are
// rejected with a CutoverInProgressError. The guard has two layers: opLock
// rejects concurrent calls within the process, and a lease persisted in the
// Status rejects concurrent invocations from other processes sharing the
// store.
type Controller struct {
	legacy        source.RuleSource
	gateway       source.RuleSource
	prober        Prober
	control       LegacyControl
	store         Store
	collector     Collector
	logger        logr.Logger
	holderID      string
	cfg           Config
	leaseDuration time.Duration

	// opLock guards the single in-flight transition. It is acquired with
	// TryLock so a second caller fails fast instead of interleaving.
	opLock sync.Mutex
}

// NewController creates a Controller.
func NewController(
	cfg Config,
	legacy source.RuleSource,
	gateway source.RuleSource,
	prober Prober,
	control LegacyControl,
	store Store,
	collector Collector,
) *Controller {
	leaseDuration := cfg.LeaseDuration
	if leaseDuration <= 0 {
		leaseDuration = defaultLeaseDuration
	}

	return &Controller{
		cfg:           cfg,
		legacy:        legacy,
		gateway:       gateway,
		prober:        prober,
		control:       control,
		store:         store,
		collector:     collector,
		logger:        cfg.Logger.WithValues("scope", cfg.Scope),
		holderID:      uuid.NewString(),
		leaseDuration: leaseDuration,
	}
}

// acquireLease claims the scope for this process by persisting a lease in
// the Status. A live lease held by someone else rejects the operation.
func (c *Controller) acquireLease(ctx context.Context, status *Status, operation string) error {
	if l := status.Lease; l != nil && l.Holder != c.holderID && time.Now().Before(l.Expiry.Time) {
		return &CutoverInProgressError{Scope: c.cfg.Scope}
	}

	status.Lease = &OperationLease{
		Holder:    c.holderID,
		Operation: operation,
		Expiry:    metav1.NewTime(time.Now().Add(c.leaseDuration)),
	}

	return c.store.Save(ctx, c.cfg.Scope, status)
}

// releaseLease clears the lease and persists the final Status of the
// operation.
func (c *Controller) releaseLease(ctx context.Context, status *Status) {
	status.Lease = nil
	if err := c.store.Save(ctx, c.cfg.Scope, status); err != nil {
		c.logger.Error(err, "Failed to release the operation lease")
	}
}

// Prepare initializes (or re-initializes, after a rollback) the persisted
// state of the scope and confirms that both rule sources are queryable.
// On success the scope is in Verifying.
func (c *Controller) Prepare(ctx context.Context) (*Status, error) {
	if !c.opLock.TryLock() {
		return nil, &CutoverInProgressError{Scope: c.cfg.Scope}
	}
	defer c.opLock.Unlock()

	status, err := c.store.Load(ctx, c.cfg.Scope)
	if err != nil {
		return nil, err
	}

	if status == nil || status.State.Terminal() {
		status = &Status{State: StatePreparing, LastTransition: metav1.Now()}
	}

	if status.State != StatePreparing {
		// prepare is idempotent once the scope is past Preparing
		c.logger.Info("Scope already prepared", "state", status.State)
		return status, nil
	}

	if err := c.acquireLease(ctx, status, "prepare"); err != nil {
		return nil, err
	}
	defer func() { c.releaseLease(ctx, status) }()

	// Both sources must return successfully at least once before the scope
	// may enter Verifying.
	if _, err := c.legacy.Fetch(ctx); err != nil {
		return nil, err
	}
	if _, err := c.gateway.Fetch(ctx); err != nil {
		return nil, err
	}

	if err := c.transition(ctx, status, StateVerifying); err != nil {
		return nil, err
	}

	c.logger.Info("Scope prepared", "state", status.State)

	return status, nil
}

// Verify runs one verification pass: fetch both RuleSets, diff them, probe
// the sampled request cases, and persist the outcome. The scope moves to
// ReadyToCut only if the diff is equivalent and zero probe mismatches were
// found; otherwise it stays in Verifying and the attempt counter grows.
func (c *Controller) Verify(ctx context.Context) (*Report, error) {
	if !c.opLock.TryLock() {
		return nil, &CutoverInProgressError{Scope: c.cfg.Scope}
	}
	defer c.opLock.Unlock()

	status, err := c.store.Load(ctx, c.cfg.Scope)
	if err != nil {
		return nil, err
	}

	if status == nil || (status.State != StateVerifying && status.State != StateReadyToCut) {
		state := State("")
		if status != nil {
			state = status.State
		}
		return nil, &PreconditionError{Operation: "verify", State: state, Scope: c.cfg.Scope}
	}

	if err := c.acquireLease(ctx, status, "verify"); err != nil {
		return nil, err
	}
	defer func() { c.releaseLease(ctx, status) }()

	invalidateCaches(c.legacy, c.gateway)

	start := time.Now()

	legacySet, err := c.legacy.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	gatewaySet, err := c.gateway.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	diff := rules.Diff(legacySet, gatewaySet)
	cases := probe.CasesFromRuleSets(legacySet, gatewaySet)

	result, err := c.prober.Compare(ctx, cases)
	if err != nil {
		return nil, fmt.Errorf("traffic probe failed: %w", err)
	}

	report := &Report{
		Scope:      c.cfg.Scope.String(),
		RunID:      uuid.NewString(),
		Diff:       diff,
		Cases:      cases,
		Mismatches: result.Mismatches,
	}

	clean := diff.Equivalent() && len(result.Mismatches) == 0

	status.appendRecord(VerificationRecord{
		RunID:         report.RunID,
		Timestamp:     metav1.Now(),
		Equivalent:    diff.Equivalent(),
		MismatchCount: len(result.Mismatches),
		WarningCount:  len(diff.Warnings),
	})

	c.collector.ObserveVerification(time.Since(start), len(result.Mismatches))
	c.collector.RecordMismatches(result.Mismatches)

	if clean {
		status.Attempts = 0
		status.Baseline = result.Gateway

		if status.State != StateReadyToCut {
			if err := c.transition(ctx, status, StateReadyToCut); err != nil {
				return nil, err
			}
		} else if err := c.store.Save(ctx, c.cfg.Scope, status); err != nil {
			return nil, err
		}

		report.State = status.State
		report.Attempts = status.Attempts

		c.logger.Info("Verification passed", "runID", report.RunID, "cases", len(cases))

		return report, nil
	}

	status.Attempts++

	if err := c.transition(ctx, status, StateVerifying); err != nil {
		return nil, err
	}

	report.State = status.State
	report.Attempts = status.Attempts

	c.logger.Info(
		"Verification found mismatches",
		"runID", report.RunID,
		"added", len(diff.Added),
		"removed", len(diff.Removed),
		"changed", len(diff.Changed),
		"probeMismatches", len(result.Mismatches),
		"attempt", status.Attempts,
	)

	return report, &VerificationFailedError{
		Scope:       c.cfg.Scope,
		Attempts:    status.Attempts,
		MaxAttempts: c.cfg.MaxVerifyAttempts,
	}
}

// Cutover disables the legacy rule source. It is only permitted from
// ReadyToCut. After disabling, a regression probe runs against the captured
// baseline; any mismatch triggers an automatic rollback attempt and is
// surfaced as a PostCutRegressionError regardless of the rollback outcome.
func (c *Controller) Cutover(ctx context.Context) (*Status, error) {
	if !c.opLock.TryLock() {
		return nil, &CutoverInProgressError{Scope: c.cfg.Scope}
	}
	defer c.opLock.Unlock()

	status, err := c.store.Load(ctx, c.cfg.Scope)
	if err != nil {
		return nil, err
	}

	if status == nil || status.State != StateReadyToCut {
		state := State("")
		if status != nil {
			state = status.State
		}
		return nil, &PreconditionError{Operation: "cutover", State: state, Scope: c.cfg.Scope}
	}

	if err := c.acquireLease(ctx, status, "cutover"); err != nil {
		return nil, err
	}
	defer func() { c.releaseLease(ctx, status) }()

	if err := c.control.Disable(ctx); err != nil {
		return nil, fmt.Errorf("failed to disable the legacy rule source: %w", err)
	}

	if err := c.transition(ctx, status, StateCut); err != nil {
		return nil, err
	}

	c.logger.Info("Legacy rule source disabled")

	mismatches, err := c.prober.CheckBaseline(ctx, status.Baseline)
	if err != nil {
		return nil, fmt.Errorf("post-cutover probe failed: %w", err)
	}

	if len(mismatches) == 0 {
		return status, nil
	}

	c.collector.RecordMismatches(mismatches)
	c.logger.Error(nil, "Post-cutover regression detected", "mismatches", len(mismatches))

	restored := true
	if enableErr := c.control.Enable(ctx); enableErr != nil {
		restored = false
		c.logger.Error(enableErr, "Failed to re-enable the legacy rule source")
	}

	if err := c.transition(ctx, status, StateRolledBack); err != nil {
		return nil, err
	}

	return status, &PostCutRegressionError{
		Scope:          c.cfg.Scope,
		Mismatches:     mismatches,
		LegacyRestored: restored,
	}
}

// Rollback re-enables the legacy rule source and moves the scope to
// RolledBack. It is a no-op if the scope is already rolled back.
func (c *Controller) Rollback(ctx context.Context) (*Status, error) {
	if !c.opLock.TryLock() {
		return nil, &CutoverInProgressError{Scope: c.cfg.Scope}
	}
	defer c.opLock.Unlock()

	status, err := c.store.Load(ctx, c.cfg.Scope)
	if err != nil {
		return nil, err
	}

	if status == nil {
		return nil, &PreconditionError{Operation: "rollback", State: "", Scope: c.cfg.Scope}
	}

	if status.State == StateRolledBack {
		return status, nil
	}

	if err := c.acquireLease(ctx, status, "rollback"); err != nil {
		return nil, err
	}
	defer func() { c.releaseLease(ctx, status) }()

	if err := c.control.Enable(ctx); err != nil {
		return nil, fmt.Errorf("failed to re-enable the legacy rule source: %w", err)
	}

	if err := c.transition(ctx, status, StateRolledBack); err != nil {
		return nil, err
	}

	c.logger.Info("Rolled back to the legacy rule source")

	return status, nil
}

// transition applies a guarded state change and persists it.
func (c *Controller) transition(ctx context.Context, status *Status, next State) error {
	if !status.State.CanTransitionTo(next) {
		return fmt.Errorf("illegal state transition %s -> %s for scope %s", status.State, next, c.cfg.Scope)
	}

	if status.State != next {
		c.logger.V(1).Info("State transition", "from", status.State, "to", next)
	}

	status.State = next
	status.LastTransition = metav1.Now()

	if err := c.store.Save(ctx, c.cfg.Scope, status); err != nil {
		return err
	}

	c.collector.RecordState(string(next))

	return nil
}

// invalidateCaches drops any cached RuleSets so a verification pass always
// reads fresh state.
func invalidateCaches(sources ...source.RuleSource) {
	for _, s := range sources {
		if inv, ok := s.(interface{ Invalidate() }); ok {
			inv.Invalidate()
		}
	}
}
