// Package cutoverfakes provides fakes for the cutover package interfaces.
package cutoverfakes

import (
	"context"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/types"

	"github.com/nginxinc/gateway-cutover/internal/cutover"
	"github.com/nginxinc/gateway-cutover/internal/probe"
)

// FakeProber is a fake cutover.Prober.
type FakeProber struct {
	// CompareFunc, when set, handles Compare calls instead of CompareResults.
	CompareFunc func(ctx context.Context, cases []probe.Case) (probe.Result, error)
	// CompareResults is the sequence of results Compare returns, repeating
	// the last entry once exhausted.
	CompareResults []CompareResult
	// CheckBaselineMismatches is returned by every CheckBaseline call.
	CheckBaselineMismatches []probe.MismatchReport
	// CheckBaselineErr is returned by every CheckBaseline call.
	CheckBaselineErr error

	compareCallCount       int
	checkBaselineCallCount int
	lock                   sync.Mutex
}

// CompareResult is a single canned Compare result.
type CompareResult struct {
	Result probe.Result
	Err    error
}

// Compare implements cutover.Prober.
func (f *FakeProber) Compare(ctx context.Context, cases []probe.Case) (probe.Result, error) {
	f.lock.Lock()

	if f.CompareFunc != nil {
		f.compareCallCount++
		fn := f.CompareFunc
		f.lock.Unlock()
		return fn(ctx, cases)
	}
	defer f.lock.Unlock()

	if len(f.CompareResults) == 0 {
		observations := make([]probe.Observation, len(cases))
		for i, c := range cases {
			observations[i] = probe.Observation{Case: c, StatusCode: 200}
		}
		f.compareCallCount++
		return probe.Result{Legacy: observations, Gateway: observations}, nil
	}

	idx := f.compareCallCount
	if idx >= len(f.CompareResults) {
		idx = len(f.CompareResults) - 1
	}
	f.compareCallCount++

	return f.CompareResults[idx].Result, f.CompareResults[idx].Err
}

// CheckBaseline implements cutover.Prober.
func (f *FakeProber) CheckBaseline(_ context.Context, _ []probe.Observation) ([]probe.MismatchReport, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.checkBaselineCallCount++
	return f.CheckBaselineMismatches, f.CheckBaselineErr
}

// CompareCallCount returns how many times Compare was called.
func (f *FakeProber) CompareCallCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.compareCallCount
}

// CheckBaselineCallCount returns how many times CheckBaseline was called.
func (f *FakeProber) CheckBaselineCallCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.checkBaselineCallCount
}

// FakeLegacyControl is a fake cutover.LegacyControl.
type FakeLegacyControl struct {
	// DisableErr is returned by Disable.
	DisableErr error
	// EnableErr is returned by Enable.
	EnableErr error

	disableCallCount int
	enableCallCount  int
	lock             sync.Mutex
}

// Disable implements cutover.LegacyControl.
func (f *FakeLegacyControl) Disable(_ context.Context) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.disableCallCount++
	return f.DisableErr
}

// Enable implements cutover.LegacyControl.
func (f *FakeLegacyControl) Enable(_ context.Context) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.enableCallCount++
	return f.EnableErr
}

// DisableCallCount returns how many times Disable was called.
func (f *FakeLegacyControl) DisableCallCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.disableCallCount
}

// EnableCallCount returns how many times Enable was called.
func (f *FakeLegacyControl) EnableCallCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.enableCallCount
}

// FakeStore is an in-memory cutover.Store.
type FakeStore struct {
	// LoadErr is returned by Load.
	LoadErr error
	// SaveErr is returned by Save.
	SaveErr error

	statuses map[types.NamespacedName]*cutover.Status
	lock     sync.Mutex
}

// Load implements cutover.Store.
func (f *FakeStore) Load(_ context.Context, scope types.NamespacedName) (*cutover.Status, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.LoadErr != nil {
		return nil, f.LoadErr
	}

	status, exists := f.statuses[scope]
	if !exists {
		return nil, nil
	}

	copied := *status
	return &copied, nil
}

// Save implements cutover.Store.
func (f *FakeStore) Save(_ context.Context, scope types.NamespacedName, status *cutover.Status) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.SaveErr != nil {
		return f.SaveErr
	}

	if f.statuses == nil {
		f.statuses = make(map[types.NamespacedName]*cutover.Status)
	}

	copied := *status
	f.statuses[scope] = &copied

	return nil
}

// FakeCollector is a no-op cutover.Collector that remembers the last
// recorded state.
type FakeCollector struct {
	lastState string
	lock      sync.Mutex
}

// ObserveVerification implements cutover.Collector.
func (f *FakeCollector) ObserveVerification(_ time.Duration, _ int) {}

// RecordMismatches implements cutover.Collector.
func (f *FakeCollector) RecordMismatches(_ []probe.MismatchReport) {}

// RecordState implements cutover.Collector.
func (f *FakeCollector) RecordState(state string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.lastState = state
}

// LastState returns the last recorded state.
func (f *FakeCollector) LastState() string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.lastState
}
