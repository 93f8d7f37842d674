package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/gomega"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/nginxinc/gateway-cutover/internal/helpers"
	"github.com/nginxinc/gateway-cutover/internal/rules"
)

func legacyScheme(t *testing.T) *runtime.Scheme {
	t.Helper()

	scheme := runtime.NewScheme()
	if err := networkingv1.AddToScheme(scheme); err != nil {
		t.Fatal(err)
	}
	return scheme
}

func createIngress(name, namespace, className string, ingressRules ...networkingv1.IngressRule) *networkingv1.Ingress {
	ing := &networkingv1.Ingress{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
		},
		Spec: networkingv1.IngressSpec{
			Rules: ingressRules,
		},
	}
	if className != "" {
		ing.Spec.IngressClassName = &className
	}
	return ing
}

func createIngressRule(host string, paths ...networkingv1.HTTPIngressPath) networkingv1.IngressRule {
	return networkingv1.IngressRule{
		Host: host,
		IngressRuleValue: networkingv1.IngressRuleValue{
			HTTP: &networkingv1.HTTPIngressRuleValue{
				Paths: paths,
			},
		},
	}
}

func createIngressPath(path, svcName string, port int32) networkingv1.HTTPIngressPath {
	pathType := networkingv1.PathTypePrefix
	return networkingv1.HTTPIngressPath{
		Path:     path,
		PathType: &pathType,
		Backend: networkingv1.IngressBackend{
			Service: &networkingv1.IngressServiceBackend{
				Name: svcName,
				Port: networkingv1.ServiceBackendPort{Number: port},
			},
		},
	}
}

func TestLegacySourceFetch(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	objects := []client.Object{
		createIngress("cafe-ingress", "default", "nginx",
			createIngressRule("example.com",
				createIngressPath("/app", "web-service", 80),
				createIngressPath("/api", "api-service", 8080),
			),
		),
		createIngress("other-class-ingress", "default", "traefik",
			createIngressRule("example.com",
				createIngressPath("/other", "other-service", 80),
			),
		),
		createIngress("another-ns-ingress", "prod", "nginx",
			createIngressRule("prod.example.com",
				createIngressPath("/", "prod-service", 80),
			),
		),
	}

	k8sClient := fake.NewClientBuilder().WithScheme(legacyScheme(t)).WithObjects(objects...).Build()

	src := NewLegacySource(k8sClient, logr.Discard(), "default", "nginx", time.Second)
	g.Expect(src.Origin()).To(Equal(rules.OriginLegacy))

	ruleSet, err := src.Fetch(context.Background())
	g.Expect(err).ToNot(HaveOccurred())

	expected := []rules.Binding{
		{Host: "example.com", PathPrefix: "/app", BackendName: "web-service", BackendPort: 80},
		{Host: "example.com", PathPrefix: "/api", BackendName: "api-service", BackendPort: 8080},
	}
	g.Expect(helpers.Diff(expected, ruleSet.Bindings())).To(BeEmpty())
}

func TestLegacySourceFetchSkipsUnsupportedBackends(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	pathType := networkingv1.PathTypePrefix
	ing := createIngress("cafe-ingress", "default", "",
		createIngressRule("example.com",
			createIngressPath("/app", "web-service", 80),
			networkingv1.HTTPIngressPath{
				Path:     "/named-port",
				PathType: &pathType,
				Backend: networkingv1.IngressBackend{
					Service: &networkingv1.IngressServiceBackend{
						Name: "named-port-service",
						Port: networkingv1.ServiceBackendPort{Name: "http"},
					},
				},
			},
		),
	)

	k8sClient := fake.NewClientBuilder().WithScheme(legacyScheme(t)).WithObjects(ing).Build()

	src := NewLegacySource(k8sClient, logr.Discard(), "default", "", time.Second)

	ruleSet, err := src.Fetch(context.Background())
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(ruleSet.Len()).To(Equal(1))

	b, found := ruleSet.Lookup("example.com", "/app")
	g.Expect(found).To(BeTrue())
	g.Expect(b.BackendName).To(Equal("web-service"))
}

func TestLegacySourceFetchDefaultBackend(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	ing := createIngress("default-backend-ingress", "default", "")
	ing.Spec.DefaultBackend = &networkingv1.IngressBackend{
		Service: &networkingv1.IngressServiceBackend{
			Name: "default-service",
			Port: networkingv1.ServiceBackendPort{Number: 80},
		},
	}

	k8sClient := fake.NewClientBuilder().WithScheme(legacyScheme(t)).WithObjects(ing).Build()

	src := NewLegacySource(k8sClient, logr.Discard(), "default", "", time.Second)

	ruleSet, err := src.Fetch(context.Background())
	g.Expect(err).ToNot(HaveOccurred())

	b, found := ruleSet.Lookup("", "/")
	g.Expect(found).To(BeTrue())
	g.Expect(b.BackendName).To(Equal("default-service"))
}

type failingReader struct {
	client.Reader
	err error
}

func (r *failingReader) List(_ context.Context, _ client.ObjectList, _ ...client.ListOption) error {
	return r.err
}

func TestLegacySourceFetchUnavailable(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := NewLegacySource(
		&failingReader{err: errors.New("connection refused")},
		logr.Discard(),
		"default",
		"",
		time.Second,
	)

	ruleSet, err := src.Fetch(context.Background())
	g.Expect(ruleSet).To(BeNil())

	var unavailableErr *SourceUnavailableError
	g.Expect(errors.As(err, &unavailableErr)).To(BeTrue())
	g.Expect(unavailableErr.Origin).To(Equal(rules.OriginLegacy))
}
