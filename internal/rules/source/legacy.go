package source

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
	networkingv1 "k8s.io/api/networking/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/nginxinc/gateway-cutover/internal/rules"
)

// LegacySource builds RuleSets from the Ingress resources in a namespace.
type LegacySource struct {
	reader       client.Reader
	logger       logr.Logger
	namespace    string
	ingressClass string
	timeout      time.Duration

	// fetchLock serializes fetches so that concurrent callers cannot observe
	// inconsistent partial reads of the same origin.
	fetchLock sync.Mutex
}

// NewLegacySource creates a LegacySource.
// If ingressClass is not empty, only Ingresses with that ingressClassName are
// included.
func NewLegacySource(
	reader client.Reader,
	logger logr.Logger,
	namespace string,
	ingressClass string,
	timeout time.Duration,
) *LegacySource {
	return &LegacySource{
		reader:       reader,
		logger:       logger,
		namespace:    namespace,
		ingressClass: ingressClass,
		timeout:      timeout,
	}
}

// Origin implements RuleSource.
func (s *LegacySource) Origin() rules.Origin {
	return rules.OriginLegacy
}

// Fetch implements RuleSource.
func (s *LegacySource) Fetch(ctx context.Context) (*rules.RuleSet, error) {
	s.fetchLock.Lock()
	defer s.fetchLock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var ingressList networkingv1.IngressList
	if err := s.reader.List(ctx, &ingressList, client.InNamespace(s.namespace)); err != nil {
		return nil, &SourceUnavailableError{Origin: rules.OriginLegacy, Err: err}
	}

	ingresses := make([]networkingv1.Ingress, 0, len(ingressList.Items))
	for _, ing := range ingressList.Items {
		if s.matchesClass(&ing) {
			ingresses = append(ingresses, ing)
		}
	}

	// Ingress resources carry no ordering of their own; sort by name so that
	// the resulting Binding order is stable across fetches.
	sort.Slice(ingresses, func(i, j int) bool {
		return ingresses[i].Name < ingresses[j].Name
	})

	ruleSet := rules.NewRuleSet(rules.OriginLegacy)

	for idx := range ingresses {
		s.addIngressBindings(ruleSet, &ingresses[idx])
	}

	return ruleSet, nil
}

func (s *LegacySource) matchesClass(ing *networkingv1.Ingress) bool {
	if s.ingressClass == "" {
		return true
	}
	return ing.Spec.IngressClassName != nil && *ing.Spec.IngressClassName == s.ingressClass
}

func (s *LegacySource) addIngressBindings(ruleSet *rules.RuleSet, ing *networkingv1.Ingress) {
	for _, rule := range ing.Spec.Rules {
		if rule.HTTP == nil {
			continue
		}

		for _, path := range rule.HTTP.Paths {
			svc := path.Backend.Service
			if svc == nil || svc.Port.Number == 0 {
				// Resource and named-port backends cannot be normalized into a
				// Binding; they are not produced by the migration being verified.
				s.logger.V(1).Info(
					"Skipping Ingress path with unsupported backend",
					"ingress", client.ObjectKeyFromObject(ing),
					"path", path.Path,
				)
				continue
			}

			prefix := path.Path
			if prefix == "" {
				prefix = "/"
			}

			b := rules.Binding{
				Host:        rule.Host,
				PathPrefix:  prefix,
				BackendName: svc.Name,
				BackendPort: svc.Port.Number,
			}

			if err := ruleSet.Add(b); err != nil {
				// First match wins; later duplicates are dropped.
				s.logger.V(1).Info(
					"Skipping Ingress binding",
					"ingress", client.ObjectKeyFromObject(ing),
					"reason", err.Error(),
				)
			}
		}
	}

	if db := ing.Spec.DefaultBackend; db != nil && db.Service != nil && db.Service.Port.Number != 0 {
		b := rules.Binding{
			PathPrefix:  "/",
			BackendName: db.Service.Name,
			BackendPort: db.Service.Port.Number,
		}
		if err := ruleSet.Add(b); err != nil {
			s.logger.V(1).Info(
				"Skipping Ingress default backend binding",
				"ingress", client.ObjectKeyFromObject(ing),
				"reason", err.Error(),
			)
		}
	}
}
