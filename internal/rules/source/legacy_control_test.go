package source

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	. "github.com/onsi/gomega"
	networkingv1 "k8s.io/api/networking/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
)

func TestIngressControlDisableEnable(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	withClass := createIngress("cafe-ingress", "default", "nginx",
		createIngressRule("example.com", createIngressPath("/app", "web-service", 80)),
	)
	withoutClass := createIngress("classless-ingress", "default", "",
		createIngressRule("example.com", createIngressPath("/api", "api-service", 8080)),
	)

	k8sClient := fake.NewClientBuilder().
		WithScheme(legacyScheme(t)).
		WithObjects(withClass, withoutClass).
		Build()

	control := NewIngressControl(k8sClient, logr.Discard(), "default", "")
	ctx := context.Background()

	g.Expect(control.Disable(ctx)).To(Succeed())

	var ing networkingv1.Ingress
	g.Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: "default", Name: "cafe-ingress"}, &ing)).To(Succeed())
	g.Expect(ing.Spec.IngressClassName).ToNot(BeNil())
	g.Expect(*ing.Spec.IngressClassName).To(Equal(DisabledIngressClass))
	g.Expect(ing.Annotations).To(HaveKeyWithValue(originalClassAnnotation, "nginx"))

	g.Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: "default", Name: "classless-ingress"}, &ing)).To(Succeed())
	g.Expect(ing.Spec.IngressClassName).ToNot(BeNil())
	g.Expect(*ing.Spec.IngressClassName).To(Equal(DisabledIngressClass))
	g.Expect(ing.Annotations).To(HaveKeyWithValue(originalClassAnnotation, ""))

	g.Expect(control.Enable(ctx)).To(Succeed())

	g.Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: "default", Name: "cafe-ingress"}, &ing)).To(Succeed())
	g.Expect(ing.Spec.IngressClassName).ToNot(BeNil())
	g.Expect(*ing.Spec.IngressClassName).To(Equal("nginx"))
	g.Expect(ing.Annotations).ToNot(HaveKey(originalClassAnnotation))

	g.Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: "default", Name: "classless-ingress"}, &ing)).To(Succeed())
	g.Expect(ing.Spec.IngressClassName).To(BeNil())
	g.Expect(ing.Annotations).ToNot(HaveKey(originalClassAnnotation))
}

func TestIngressControlDisableScopedToClass(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	nginxIngress := createIngress("cafe-ingress", "default", "nginx",
		createIngressRule("example.com", createIngressPath("/app", "web-service", 80)),
	)
	traefikIngress := createIngress("other-ingress", "default", "traefik",
		createIngressRule("example.com", createIngressPath("/other", "other-service", 80)),
	)

	k8sClient := fake.NewClientBuilder().
		WithScheme(legacyScheme(t)).
		WithObjects(nginxIngress, traefikIngress).
		Build()

	control := NewIngressControl(k8sClient, logr.Discard(), "default", "nginx")
	ctx := context.Background()

	g.Expect(control.Disable(ctx)).To(Succeed())

	var ing networkingv1.Ingress
	g.Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: "default", Name: "other-ingress"}, &ing)).To(Succeed())
	g.Expect(*ing.Spec.IngressClassName).To(Equal("traefik"))
	g.Expect(ing.Annotations).ToNot(HaveKey(originalClassAnnotation))
}

func TestIngressControlEnableIsIdempotent(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	ing := createIngress("cafe-ingress", "default", "nginx",
		createIngressRule("example.com", createIngressPath("/app", "web-service", 80)),
	)

	k8sClient := fake.NewClientBuilder().WithScheme(legacyScheme(t)).WithObjects(ing).Build()

	control := NewIngressControl(k8sClient, logr.Discard(), "default", "nginx")
	ctx := context.Background()

	// Enable without a preceding Disable must not touch anything.
	g.Expect(control.Enable(ctx)).To(Succeed())

	var got networkingv1.Ingress
	g.Expect(k8sClient.Get(ctx, types.NamespacedName{Namespace: "default", Name: "cafe-ingress"}, &got)).To(Succeed())
	g.Expect(*got.Spec.IngressClassName).To(Equal("nginx"))
}
