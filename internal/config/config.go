package config

import (
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/types"
)

// Config contains the configuration of the cutover tool.
type Config struct {
	Logger logr.Logger
	// Scope is the routing scope (namespace and route name) being migrated.
	Scope types.NamespacedName
	// Kubeconfig is the path to the kubeconfig file. If empty, the in-cluster
	// configuration is used.
	Kubeconfig string
	// LegacyBaseURL is the entry point serving the legacy routing rules.
	LegacyBaseURL string
	// GatewayBaseURL is the entry point serving the gateway routing rules.
	GatewayBaseURL string
	// LegacyIngressClass restricts the legacy source to Ingresses with this
	// ingressClassName. Empty means all Ingresses in the namespace.
	LegacyIngressClass string
	// GatewayName restricts the gateway source to HTTPRoutes attached to this
	// Gateway. Empty means all HTTPRoutes in the namespace.
	GatewayName string
	// ProbeTimeout bounds each individual probe request.
	ProbeTimeout time.Duration
	// ProbeConcurrency bounds the number of cases probed at once.
	ProbeConcurrency int
	// VerifyAttempts caps consecutive failed verification passes.
	VerifyAttempts int
	// FetchTimeout bounds each rule source fetch.
	FetchTimeout time.Duration
	// SourceCacheTTL bounds how long a fetched RuleSet may be reused. Zero
	// disables caching.
	SourceCacheTTL time.Duration
	// MetricsOutput is the path of a file to write the run's metrics to in
	// the prometheus text format. Empty disables the metrics output.
	MetricsOutput string
	// InsecureSkipVerify disables TLS verification for probe requests.
	InsecureSkipVerify bool
}
