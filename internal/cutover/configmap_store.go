package cutover

import (
	"context"
	"encoding/json"
	"fmt"

	apiv1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	configMapStatusKey = "status"
	managedByLabel     = "app.kubernetes.io/managed-by"
	managedByValue     = "gateway-cutover"
)

// ConfigMapStore persists Statuses in a ConfigMap per routing scope, in the
// scope's namespace. The ConfigMap survives process restarts, which keeps
// repeated verify invocations idempotent and comparable over time.
type ConfigMapStore struct {
	client client.Client
}

// NewConfigMapStore creates a ConfigMapStore.
func NewConfigMapStore(k8sClient client.Client) *ConfigMapStore {
	return &ConfigMapStore{client: k8sClient}
}

// Load implements Store.
func (s *ConfigMapStore) Load(ctx context.Context, scope types.NamespacedName) (*Status, error) {
	var cm apiv1.ConfigMap

	key := types.NamespacedName{Namespace: scope.Namespace, Name: configMapName(scope)}
	if err := s.client.Get(ctx, key, &cm); err != nil {
		if apierrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load cutover status for scope %s: %w", scope, err)
	}

	raw, exists := cm.Data[configMapStatusKey]
	if !exists {
		return nil, fmt.Errorf("cutover status ConfigMap %s is missing the %q key", key, configMapStatusKey)
	}

	var status Status
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cutover status for scope %s: %w", scope, err)
	}

	return &status, nil
}

// Save implements Store.
func (s *ConfigMapStore) Save(ctx context.Context, scope types.NamespacedName, status *Status) error {
	raw, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal cutover status for scope %s: %w", scope, err)
	}

	key := types.NamespacedName{Namespace: scope.Namespace, Name: configMapName(scope)}

	var existing apiv1.ConfigMap
	getErr := s.client.Get(ctx, key, &existing)

	switch {
	case apierrors.IsNotFound(getErr):
		cm := apiv1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{
				Namespace: key.Namespace,
				Name:      key.Name,
				Labels: map[string]string{
					managedByLabel: managedByValue,
				},
			},
			Data: map[string]string{
				configMapStatusKey: string(raw),
			},
		}
		if err := s.client.Create(ctx, &cm); err != nil {
			return fmt.Errorf("failed to create cutover status for scope %s: %w", scope, err)
		}
	case getErr != nil:
		return fmt.Errorf("failed to load cutover status for scope %s before saving: %w", scope, getErr)
	default:
		if existing.Data == nil {
			existing.Data = make(map[string]string)
		}
		existing.Data[configMapStatusKey] = string(raw)
		if err := s.client.Update(ctx, &existing); err != nil {
			return fmt.Errorf("failed to update cutover status for scope %s: %w", scope, err)
		}
	}

	return nil
}

func configMapName(scope types.NamespacedName) string {
	return "gateway-cutover-" + scope.Name
}
