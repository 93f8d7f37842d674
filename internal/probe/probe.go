// Package probe issues synthetic comparison requests against the legacy and
// gateway routing entry points and reports response mismatches.
package probe

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
)

// Doer issues HTTP requests. *http.Client implements it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Case is a single (host, path) request case.
type Case struct {
	Host string `json:"host"`
	Path string `json:"path"`
}

func (c Case) String() string {
	return c.Host + c.Path
}

// MismatchKind classifies a probe mismatch.
type MismatchKind string

const (
	// MismatchStatusCode indicates differing response status codes.
	MismatchStatusCode MismatchKind = "StatusCode"
	// MismatchBody indicates matching status codes but differing body hashes.
	MismatchBody MismatchKind = "Body"
	// MismatchTimeout indicates that at least one side timed out.
	// A timeout is never treated as silent success.
	MismatchTimeout MismatchKind = "Timeout"
	// MismatchRequestError indicates a non-timeout request failure on at
	// least one side.
	MismatchRequestError MismatchKind = "RequestError"
)

// MismatchReport describes one mismatched case.
type MismatchReport struct {
	Case          Case         `json:"case"`
	Kind          MismatchKind `json:"kind"`
	Detail        string       `json:"detail"`
	LegacyStatus  int          `json:"legacyStatus,omitempty"`
	GatewayStatus int          `json:"gatewayStatus,omitempty"`
}

// Observation is the observed response of one side for one case.
type Observation struct {
	Case       Case   `json:"case"`
	BodyHash   string `json:"bodyHash,omitempty"`
	Error      string `json:"error,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
	TimedOut   bool   `json:"timedOut,omitempty"`
}

// Result is the outcome of a Compare run.
// Gateway observations double as the baseline for post-cutover checks.
type Result struct {
	Mismatches []MismatchReport `json:"mismatches,omitempty"`
	Legacy     []Observation    `json:"legacy,omitempty"`
	Gateway    []Observation    `json:"gateway,omitempty"`
}

// Settings configures a Prober.
type Settings struct {
	// LegacyBaseURL is the entry point serving the legacy routing rules.
	LegacyBaseURL string
	// GatewayBaseURL is the entry point serving the gateway routing rules.
	GatewayBaseURL string
	// Timeout bounds each individual request.
	Timeout time.Duration
	// Concurrency bounds the number of cases probed at once.
	Concurrency int
	// InsecureSkipVerify disables TLS verification; needed when the entry
	// points serve a self-signed certificate.
	InsecureSkipVerify bool
}

// Prober compares responses between the two routing entry points.
type Prober struct {
	client   Doer
	logger   logr.Logger
	settings Settings
}

// NewProber creates a Prober with a dedicated HTTP client.
func NewProber(settings Settings, logger logr.Logger) *Prober {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: settings.InsecureSkipVerify, //nolint:gosec // operator opt-in for self-signed certs
	}

	return NewProberWithClient(settings, logger, &http.Client{Transport: transport})
}

// NewProberWithClient creates a Prober that issues requests through the given
// client.
func NewProberWithClient(settings Settings, logger logr.Logger, client Doer) *Prober {
	if settings.Concurrency < 1 {
		settings.Concurrency = 1
	}

	return &Prober{
		client:   client,
		logger:   logger,
		settings: settings,
	}
}

// Compare probes every case against both entry points and reports mismatches.
// Independent cases run concurrently in a bounded pool; the returned slices
// are ordered by case index regardless of completion order.
func (p *Prober) Compare(ctx context.Context, cases []Case) (Result, error) {
	result := Result{
		Legacy:  make([]Observation, len(cases)),
		Gateway: make([]Observation, len(cases)),
	}

	eg, groupCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.settings.Concurrency)

	for idx, c := range cases {
		eg.Go(func() error {
			result.Legacy[idx] = p.probeOne(groupCtx, p.settings.LegacyBaseURL, c)
			result.Gateway[idx] = p.probeOne(groupCtx, p.settings.GatewayBaseURL, c)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return Result{}, err
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	for idx := range cases {
		if report := compareObservations(result.Legacy[idx], result.Gateway[idx]); report != nil {
			result.Mismatches = append(result.Mismatches, *report)
		}
	}

	return result, nil
}

// CheckBaseline probes the gateway entry point for each baseline case and
// reports cases whose responses deviate from the baseline. It is used for
// post-cutover regression detection, when the legacy side is already gone.
func (p *Prober) CheckBaseline(ctx context.Context, baseline []Observation) ([]MismatchReport, error) {
	observations := make([]Observation, len(baseline))

	eg, groupCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.settings.Concurrency)

	for idx, expected := range baseline {
		eg.Go(func() error {
			observations[idx] = p.probeOne(groupCtx, p.settings.GatewayBaseURL, expected.Case)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var mismatches []MismatchReport
	for idx, expected := range baseline {
		if report := compareObservations(expected, observations[idx]); report != nil {
			mismatches = append(mismatches, *report)
		}
	}

	return mismatches, nil
}

func (p *Prober) probeOne(ctx context.Context, baseURL string, c Case) Observation {
	obs := Observation{Case: c}

	reqCtx, cancel := context.WithTimeout(ctx, p.settings.Timeout)
	defer cancel()

	url := strings.TrimSuffix(baseURL, "/") + c.Path

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		obs.Error = err.Error()
		return obs
	}
	if c.Host != "" {
		req.Host = c.Host
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			obs.TimedOut = true
		}
		obs.Error = err.Error()
		return obs
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			obs.TimedOut = true
		}
		obs.Error = err.Error()
		return obs
	}

	hash := sha256.Sum256(body)

	obs.StatusCode = resp.StatusCode
	obs.BodyHash = hex.EncodeToString(hash[:])

	p.logger.V(1).Info("Probed case", "url", url, "host", c.Host, "status", resp.StatusCode)

	return obs
}

func compareObservations(legacy, gateway Observation) *MismatchReport {
	report := &MismatchReport{
		Case:          legacy.Case,
		LegacyStatus:  legacy.StatusCode,
		GatewayStatus: gateway.StatusCode,
	}

	switch {
	case legacy.TimedOut || gateway.TimedOut:
		report.Kind = MismatchTimeout
		report.Detail = timeoutDetail(legacy, gateway)
	case legacy.Error != "" || gateway.Error != "":
		report.Kind = MismatchRequestError
		report.Detail = requestErrorDetail(legacy, gateway)
	case legacy.StatusCode != gateway.StatusCode:
		report.Kind = MismatchStatusCode
		report.Detail = fmt.Sprintf("status code %d != %d", legacy.StatusCode, gateway.StatusCode)
	case legacy.BodyHash != gateway.BodyHash:
		report.Kind = MismatchBody
		report.Detail = "response body hashes differ"
	default:
		return nil
	}

	return report
}

func timeoutDetail(legacy, gateway Observation) string {
	switch {
	case legacy.TimedOut && gateway.TimedOut:
		return "both sides timed out"
	case legacy.TimedOut:
		return "legacy side timed out"
	default:
		return "gateway side timed out"
	}
}

func requestErrorDetail(legacy, gateway Observation) string {
	var parts []string
	if legacy.Error != "" {
		parts = append(parts, "legacy: "+legacy.Error)
	}
	if gateway.Error != "" {
		parts = append(parts, "gateway: "+gateway.Error)
	}
	return strings.Join(parts, "; ")
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
