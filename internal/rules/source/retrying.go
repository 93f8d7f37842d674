package source

import (
	"context"
	"errors"
	"time"

	"github.com/go-logr/logr"
	gocache "github.com/patrickmn/go-cache"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/nginxinc/gateway-cutover/internal/rules"
)

// DefaultBackoff is the backoff applied between failed fetch attempts.
var DefaultBackoff = wait.Backoff{
	Duration: 200 * time.Millisecond,
	Factor:   2,
	Jitter:   0.1,
	Steps:    4,
}

// RetryingSource wraps a RuleSource with bounded exponential backoff on
// transient failures and a short-lived cache of the last fetched RuleSet, so
// repeated fetches within one verification pass do not hammer the control
// plane.
type RetryingSource struct {
	delegate RuleSource
	cache    *gocache.Cache
	logger   logr.Logger
	backoff  wait.Backoff
	cacheTTL time.Duration
	attempts int
}

// NewRetryingSource creates a RetryingSource.
// attempts is the total number of fetch attempts per Fetch call; cacheTTL of
// zero disables caching.
func NewRetryingSource(
	delegate RuleSource,
	logger logr.Logger,
	backoff wait.Backoff,
	attempts int,
	cacheTTL time.Duration,
) *RetryingSource {
	return &RetryingSource{
		delegate: delegate,
		logger:   logger,
		backoff:  backoff,
		attempts: attempts,
		cacheTTL: cacheTTL,
		cache:    gocache.New(cacheTTL, 2*cacheTTL),
	}
}

// Origin implements RuleSource.
func (s *RetryingSource) Origin() rules.Origin {
	return s.delegate.Origin()
}

// Fetch implements RuleSource.
// Transient SourceUnavailableErrors are retried with backoff up to the
// attempt cap; any other error is returned immediately.
func (s *RetryingSource) Fetch(ctx context.Context) (*rules.RuleSet, error) {
	cacheKey := string(s.Origin())

	if s.cacheTTL > 0 {
		if cached, found := s.cache.Get(cacheKey); found {
			return cached.(*rules.RuleSet), nil
		}
	}

	var lastErr error
	backoff := s.backoff

	for attempt := 0; attempt < s.attempts; attempt++ {
		ruleSet, err := s.delegate.Fetch(ctx)
		if err == nil {
			if s.cacheTTL > 0 {
				s.cache.SetDefault(cacheKey, ruleSet)
			}
			return ruleSet, nil
		}

		var unavailableErr *SourceUnavailableError
		if !errors.As(err, &unavailableErr) {
			return nil, err
		}
		lastErr = err

		if attempt == s.attempts-1 {
			break
		}

		delay := backoff.Step()
		s.logger.V(1).Info(
			"Rule source unavailable; retrying",
			"origin", s.Origin(),
			"attempt", attempt+1,
			"delay", delay.String(),
		)

		select {
		case <-ctx.Done():
			return nil, &SourceUnavailableError{Origin: s.Origin(), Err: ctx.Err()}
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}

// Invalidate drops the cached RuleSet so the next Fetch hits the control
// plane. The cutover controller calls it before each verification pass.
func (s *RetryingSource) Invalidate() {
	s.cache.Delete(string(s.Origin()))
}
