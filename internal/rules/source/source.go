// Package source provides read-only providers of routing rules, one per
// routing origin, plus a retrying wrapper shared by both.
package source

import (
	"context"
	"fmt"

	"github.com/nginxinc/gateway-cutover/internal/rules"
)

// RuleSource fetches the current RuleSet of one routing origin.
// Implementations are read-only: fetching must not mutate the origin.
type RuleSource interface {
	// Fetch returns the current RuleSet. It fails with a
	// SourceUnavailableError if the backing control plane cannot be reached
	// within the configured timeout.
	Fetch(ctx context.Context) (*rules.RuleSet, error)
	// Origin returns the origin of the RuleSets this source produces.
	Origin() rules.Origin
}

// SourceUnavailableError indicates that the control plane backing a
// RuleSource could not be reached. It is transient; callers retry with
// backoff.
type SourceUnavailableError struct {
	Err    error
	Origin rules.Origin
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("%s rule source unavailable: %v", e.Origin, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}
