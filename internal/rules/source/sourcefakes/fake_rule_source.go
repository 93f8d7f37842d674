// Package sourcefakes provides fakes for the source package interfaces.
package sourcefakes

import (
	"context"
	"sync"

	"github.com/nginxinc/gateway-cutover/internal/rules"
)

// FakeRuleSource is a fake RuleSource for testing.
// Fetch returns the configured results in order, repeating the last one once
// the list is exhausted.
type FakeRuleSource struct {
	// FetchResults is the sequence of results Fetch returns.
	FetchResults []FetchResult
	// FetchOrigin is the origin returned by Origin.
	FetchOrigin rules.Origin

	fetchCallCount int
	lock           sync.Mutex
}

// FetchResult is a single canned Fetch result.
type FetchResult struct {
	RuleSet *rules.RuleSet
	Err     error
}

// Fetch implements source.RuleSource.
func (f *FakeRuleSource) Fetch(_ context.Context) (*rules.RuleSet, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if len(f.FetchResults) == 0 {
		return rules.NewRuleSet(f.FetchOrigin), nil
	}

	idx := f.fetchCallCount
	if idx >= len(f.FetchResults) {
		idx = len(f.FetchResults) - 1
	}
	f.fetchCallCount++

	result := f.FetchResults[idx]
	return result.RuleSet, result.Err
}

// Origin implements source.RuleSource.
func (f *FakeRuleSource) Origin() rules.Origin {
	return f.FetchOrigin
}

// FetchCallCount returns how many times Fetch was called.
func (f *FakeRuleSource) FetchCallCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.fetchCallCount
}
