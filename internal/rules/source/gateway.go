package source

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	gatewayv1 "sigs.k8s.io/gateway-api/apis/v1"

	"github.com/nginxinc/gateway-cutover/internal/rules"
)

// GatewaySource builds RuleSets from the HTTPRoute resources in a namespace.
type GatewaySource struct {
	reader      client.Reader
	logger      logr.Logger
	namespace   string
	gatewayName string
	timeout     time.Duration

	fetchLock sync.Mutex
}

// NewGatewaySource creates a GatewaySource.
// If gatewayName is not empty, only HTTPRoutes with a parentRef to that
// Gateway are included.
func NewGatewaySource(
	reader client.Reader,
	logger logr.Logger,
	namespace string,
	gatewayName string,
	timeout time.Duration,
) *GatewaySource {
	return &GatewaySource{
		reader:      reader,
		logger:      logger,
		namespace:   namespace,
		gatewayName: gatewayName,
		timeout:     timeout,
	}
}

// Origin implements RuleSource.
func (s *GatewaySource) Origin() rules.Origin {
	return rules.OriginGateway
}

// Fetch implements RuleSource.
func (s *GatewaySource) Fetch(ctx context.Context) (*rules.RuleSet, error) {
	s.fetchLock.Lock()
	defer s.fetchLock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var routeList gatewayv1.HTTPRouteList
	if err := s.reader.List(ctx, &routeList, client.InNamespace(s.namespace)); err != nil {
		return nil, &SourceUnavailableError{Origin: rules.OriginGateway, Err: err}
	}

	routes := make([]gatewayv1.HTTPRoute, 0, len(routeList.Items))
	for _, hr := range routeList.Items {
		if s.matchesGateway(&hr) {
			routes = append(routes, hr)
		}
	}

	sort.Slice(routes, func(i, j int) bool {
		return routes[i].Name < routes[j].Name
	})

	ruleSet := rules.NewRuleSet(rules.OriginGateway)

	for idx := range routes {
		s.addRouteBindings(ruleSet, &routes[idx])
	}

	return ruleSet, nil
}

func (s *GatewaySource) matchesGateway(hr *gatewayv1.HTTPRoute) bool {
	if s.gatewayName == "" {
		return true
	}

	for _, ref := range hr.Spec.ParentRefs {
		if ref.Kind != nil && *ref.Kind != "Gateway" {
			continue
		}
		if string(ref.Name) == s.gatewayName {
			return true
		}
	}

	return false
}

func (s *GatewaySource) addRouteBindings(ruleSet *rules.RuleSet, hr *gatewayv1.HTTPRoute) {
	hostnames := make([]string, 0, len(hr.Spec.Hostnames))
	for _, h := range hr.Spec.Hostnames {
		hostnames = append(hostnames, string(h))
	}
	if len(hostnames) == 0 {
		// A route without hostnames matches any host.
		hostnames = append(hostnames, "")
	}

	for _, rule := range hr.Spec.Rules {
		backend, ok := firstServiceBackend(rule.BackendRefs)
		if !ok {
			s.logger.V(1).Info(
				"Skipping HTTPRoute rule without a Service backend",
				"httproute", client.ObjectKeyFromObject(hr),
			)
			continue
		}

		for _, prefix := range matchPrefixes(rule.Matches) {
			for _, host := range hostnames {
				b := rules.Binding{
					Host:        host,
					PathPrefix:  prefix,
					BackendName: backend.name,
					BackendPort: backend.port,
				}
				if err := ruleSet.Add(b); err != nil {
					s.logger.V(1).Info(
						"Skipping HTTPRoute binding",
						"httproute", client.ObjectKeyFromObject(hr),
						"reason", err.Error(),
					)
				}
			}
		}
	}
}

type serviceBackend struct {
	name string
	port int32
}

// firstServiceBackend returns the first backendRef that points at a Service
// port with a non-zero weight. A Binding holds a single backend; weighted
// splits beyond the first backend are outside the equivalence model.
func firstServiceBackend(refs []gatewayv1.HTTPBackendRef) (serviceBackend, bool) {
	for _, ref := range refs {
		if ref.Kind != nil && *ref.Kind != "Service" {
			continue
		}
		if ref.Port == nil {
			continue
		}
		if ref.Weight != nil && *ref.Weight == 0 {
			continue
		}
		return serviceBackend{
			name: string(ref.Name),
			port: int32(*ref.Port),
		}, true
	}
	return serviceBackend{}, false
}

// matchPrefixes extracts the path prefixes of a rule's matches.
// Exact matches are treated as prefixes of themselves; other match types
// cannot be expressed as a Binding and are skipped.
func matchPrefixes(matches []gatewayv1.HTTPRouteMatch) []string {
	if len(matches) == 0 {
		return []string{"/"}
	}

	prefixes := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Path == nil || m.Path.Type == nil {
			prefixes = append(prefixes, "/")
			continue
		}

		switch *m.Path.Type {
		case gatewayv1.PathMatchPathPrefix, gatewayv1.PathMatchExact:
			if m.Path.Value != nil {
				prefixes = append(prefixes, *m.Path.Value)
			} else {
				prefixes = append(prefixes, "/")
			}
		default:
			// Regex matches have no prefix form.
		}
	}

	return prefixes
}
