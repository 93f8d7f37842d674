package cutover

import (
	"context"
	"testing"

	. "github.com/onsi/gomega"
	apiv1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/nginxinc/gateway-cutover/internal/probe"
)

func storeScheme(t *testing.T) *runtime.Scheme {
	t.Helper()

	scheme := runtime.NewScheme()
	if err := apiv1.AddToScheme(scheme); err != nil {
		t.Fatal(err)
	}
	return scheme
}

func TestConfigMapStoreRoundTrip(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	k8sClient := fake.NewClientBuilder().WithScheme(storeScheme(t)).Build()
	store := NewConfigMapStore(k8sClient)
	ctx := context.Background()

	scope := types.NamespacedName{Namespace: "default", Name: "cafe-route"}

	// no status persisted yet
	status, err := store.Load(ctx, scope)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(status).To(BeNil())

	saved := &Status{
		State:          StateVerifying,
		LastTransition: metav1.Unix(1700000000, 0),
		Attempts:       2,
		History: []VerificationRecord{
			{
				RunID:         "run-1",
				Timestamp:     metav1.Unix(1700000000, 0),
				Equivalent:    true,
				MismatchCount: 1,
			},
		},
		Baseline: []probe.Observation{
			{
				Case:       probe.Case{Host: "example.com", Path: "/app"},
				StatusCode: 200,
				BodyHash:   "abc123",
			},
		},
	}

	g.Expect(store.Save(ctx, scope, saved)).To(Succeed())

	loaded, err := store.Load(ctx, scope)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(loaded).ToNot(BeNil())
	g.Expect(loaded.State).To(Equal(StateVerifying))
	g.Expect(loaded.Attempts).To(Equal(2))
	g.Expect(loaded.History).To(HaveLen(1))
	g.Expect(loaded.History[0].RunID).To(Equal("run-1"))
	g.Expect(loaded.Baseline).To(HaveLen(1))
	g.Expect(loaded.Baseline[0].BodyHash).To(Equal("abc123"))

	// a second save updates the existing ConfigMap in place
	saved.State = StateReadyToCut
	g.Expect(store.Save(ctx, scope, saved)).To(Succeed())

	loaded, err = store.Load(ctx, scope)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(loaded.State).To(Equal(StateReadyToCut))
}

func TestConfigMapStoreScopesAreIndependent(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	k8sClient := fake.NewClientBuilder().WithScheme(storeScheme(t)).Build()
	store := NewConfigMapStore(k8sClient)
	ctx := context.Background()

	scopeA := types.NamespacedName{Namespace: "default", Name: "cafe-route"}
	scopeB := types.NamespacedName{Namespace: "default", Name: "tea-route"}

	g.Expect(store.Save(ctx, scopeA, &Status{State: StateCut})).To(Succeed())
	g.Expect(store.Save(ctx, scopeB, &Status{State: StateVerifying})).To(Succeed())

	statusA, err := store.Load(ctx, scopeA)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(statusA.State).To(Equal(StateCut))

	statusB, err := store.Load(ctx, scopeB)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(statusB.State).To(Equal(StateVerifying))
}

func TestConfigMapStoreLoadCorruptStatus(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	scope := types.NamespacedName{Namespace: "default", Name: "cafe-route"}

	cm := &apiv1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: "default",
			Name:      "gateway-cutover-cafe-route",
		},
		Data: map[string]string{
			"status": "{not json",
		},
	}

	k8sClient := fake.NewClientBuilder().WithScheme(storeScheme(t)).WithObjects(cm).Build()
	store := NewConfigMapStore(k8sClient)

	_, err := store.Load(context.Background(), scope)
	g.Expect(err).To(MatchError(ContainSubstring("unmarshal")))
}
