package source

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	networkingv1 "k8s.io/api/networking/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	// DisabledIngressClass is the ingressClassName that parks disabled
	// Ingresses so no controller programs them.
	DisabledIngressClass = "gateway-cutover-disabled"

	// originalClassAnnotation preserves the ingressClassName an Ingress had
	// before it was disabled, so it can be restored on rollback.
	originalClassAnnotation = "gateway-cutover.nginx.org/original-ingress-class"
)

// IngressControl disables and re-enables the legacy routing source by
// re-parenting Ingresses to a class no controller serves. Disabling is
// reversible: the original class is kept in an annotation.
type IngressControl struct {
	client       client.Client
	logger       logr.Logger
	namespace    string
	ingressClass string
}

// NewIngressControl creates an IngressControl for the Ingresses that the
// LegacySource with the same namespace and class reads.
func NewIngressControl(k8sClient client.Client, logger logr.Logger, namespace, ingressClass string) *IngressControl {
	return &IngressControl{
		client:       k8sClient,
		logger:       logger,
		namespace:    namespace,
		ingressClass: ingressClass,
	}
}

// Disable parks all matching Ingresses on the disabled class.
func (c *IngressControl) Disable(ctx context.Context) error {
	var ingressList networkingv1.IngressList
	if err := c.client.List(ctx, &ingressList, client.InNamespace(c.namespace)); err != nil {
		return fmt.Errorf("failed to list Ingresses: %w", err)
	}

	for idx := range ingressList.Items {
		ing := &ingressList.Items[idx]

		if !c.matchesClass(ing) {
			continue
		}

		original := ""
		if ing.Spec.IngressClassName != nil {
			original = *ing.Spec.IngressClassName
		}

		if ing.Annotations == nil {
			ing.Annotations = make(map[string]string)
		}
		ing.Annotations[originalClassAnnotation] = original

		disabled := DisabledIngressClass
		ing.Spec.IngressClassName = &disabled

		if err := c.client.Update(ctx, ing); err != nil {
			return fmt.Errorf("failed to disable Ingress %s: %w", client.ObjectKeyFromObject(ing), err)
		}

		c.logger.Info("Disabled Ingress", "ingress", client.ObjectKeyFromObject(ing))
	}

	return nil
}

// Enable restores the original class of all previously disabled Ingresses.
func (c *IngressControl) Enable(ctx context.Context) error {
	var ingressList networkingv1.IngressList
	if err := c.client.List(ctx, &ingressList, client.InNamespace(c.namespace)); err != nil {
		return fmt.Errorf("failed to list Ingresses: %w", err)
	}

	for idx := range ingressList.Items {
		ing := &ingressList.Items[idx]

		original, disabled := ing.Annotations[originalClassAnnotation]
		if !disabled {
			continue
		}

		if original == "" {
			ing.Spec.IngressClassName = nil
		} else {
			ing.Spec.IngressClassName = &original
		}
		delete(ing.Annotations, originalClassAnnotation)

		if err := c.client.Update(ctx, ing); err != nil {
			return fmt.Errorf("failed to re-enable Ingress %s: %w", client.ObjectKeyFromObject(ing), err)
		}

		c.logger.Info("Re-enabled Ingress", "ingress", client.ObjectKeyFromObject(ing))
	}

	return nil
}

func (c *IngressControl) matchesClass(ing *networkingv1.Ingress) bool {
	if c.ingressClass == "" {
		return ing.Spec.IngressClassName == nil || *ing.Spec.IngressClassName != DisabledIngressClass
	}
	return ing.Spec.IngressClassName != nil && *ing.Spec.IngressClassName == c.ingressClass
}
