// Package snapshot provisions and snapshots the claims backing the shared
// data volume: per-workflow PVCs, VolumeSnapshot custom resources, and
// storage expansion.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/me/volpass/internal/cluster"
)

const (
	snapshotGroup   = "snapshot.storage.k8s.io"
	snapshotVersion = "v1"
	snapshotPlural  = "volumesnapshots"

	// AccessModeAnnotation records the source claim's access mode on the
	// snapshot, so a restored claim can be bound the same way.
	AccessModeAnnotation = "access_mode"

	// DefaultClaimSize is the storage request for generated workflow claims.
	DefaultClaimSize = "1Gi"
)

// Manager creates and snapshots persistent volume claims through the
// cluster API client.
type Manager struct {
	cluster      *cluster.Client
	storageClass string
	logger       *slog.Logger
}

// NewManager creates a Manager. storageClass names the class used for
// generated workflow claims.
func NewManager(client *cluster.Client, storageClass string, logger *slog.Logger) *Manager {
	return &Manager{
		cluster:      client,
		storageClass: storageClass,
		logger:       logger.With("component", "snapshot"),
	}
}

// SnapshotPVC takes a snapshot of the named claim. The snapshot class is
// resolved from the claim's provisioner; when no annotations are supplied,
// the claim's access mode is recorded as one.
func (m *Manager) SnapshotPVC(ctx context.Context, snapshotName, pvcName string, labels, annotations map[string]string) (map[string]any, error) {
	if len(annotations) == 0 {
		mode, err := m.PVCAccessMode(ctx, pvcName)
		if err != nil {
			return nil, err
		}
		annotations = map[string]string{AccessModeAnnotation: mode}
	}

	className, err := m.SnapshotClassName(ctx, pvcName)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"apiVersion": snapshotGroup + "/" + snapshotVersion,
		"kind":       "VolumeSnapshot",
		"metadata": map[string]any{
			"name":        snapshotName,
			"labels":      labels,
			"annotations": annotations,
		},
		"spec": map[string]any{
			"volumeSnapshotClassName": className,
			"source": map[string]any{
				"persistentVolumeClaimName": pvcName,
			},
		},
	}

	m.logger.Info("taking a snapshot of pvc",
		"pvc", pvcName, "snapshot", snapshotName, "namespace", m.cluster.Namespace())
	return m.cluster.CreateNamespacedCustomObject(ctx, snapshotGroup, snapshotVersion, snapshotPlural, body)
}

// PVCAccessMode returns the first access mode of the named claim.
func (m *Manager) PVCAccessMode(ctx context.Context, pvcName string) (string, error) {
	pvc, err := m.cluster.ReadPVC(ctx, pvcName)
	if err != nil {
		return "", err
	}
	if len(pvc.Spec.AccessModes) == 0 {
		return "", fmt.Errorf("pvc %q declares no access modes", pvcName)
	}
	return pvc.Spec.AccessModes[0], nil
}

// SnapshotClassName resolves the snapshot class whose driver matches the
// claim's storage provisioner.
func (m *Manager) SnapshotClassName(ctx context.Context, pvcName string) (string, error) {
	pvc, err := m.cluster.ReadPVC(ctx, pvcName)
	if err != nil {
		return "", err
	}
	provisioner := pvc.Metadata.Annotations[cluster.StorageProvisionerAnnotation]
	if provisioner == "" {
		return "", fmt.Errorf("pvc %q has no storage provisioner annotation", pvcName)
	}

	classes, err := m.cluster.ListSnapshotClasses(ctx)
	if err != nil {
		return "", err
	}
	for _, class := range classes {
		if class["driver"] != provisioner {
			continue
		}
		if meta, ok := class["metadata"].(map[string]any); ok {
			if name, ok := meta["name"].(string); ok {
				return name, nil
			}
		}
	}
	return "", fmt.Errorf("no snapshot class matches provisioner %q", provisioner)
}

// CreateWorkflowPVC creates the claim backing a workflow's shared data
// volume, named after the workflow with a random suffix.
func (m *Manager) CreateWorkflowPVC(ctx context.Context, workflowName string) (*cluster.PVC, error) {
	name := workflowName + "-pvc-" + nameSuffix()
	pvc := &cluster.PVC{
		APIVersion: "v1",
		Kind:       "PersistentVolumeClaim",
		Metadata:   cluster.ObjectMeta{Name: name},
		Spec: cluster.PVCSpec{
			AccessModes:      cluster.AccessModesRWM,
			StorageClassName: m.storageClass,
			Resources: cluster.ResourceRequirements{
				Requests: map[string]string{"storage": DefaultClaimSize},
			},
		},
	}

	m.logger.Info("creating workflow pvc", "pvc", name, "storage_class", m.storageClass)
	return m.cluster.CreatePVC(ctx, pvc)
}

// ExpandPVC patches the claim's storage request to size.
func (m *Manager) ExpandPVC(ctx context.Context, pvcName, size string) (*cluster.PVC, error) {
	patch := map[string]any{
		"spec": map[string]any{
			"resources": map[string]any{
				"requests": map[string]any{"storage": size},
			},
		},
	}
	m.logger.Info("expanding pvc", "pvc", pvcName, "size", size)
	return m.cluster.PatchPVC(ctx, pvcName, patch)
}

// nameSuffix returns an 8 character random suffix for generated object names.
func nameSuffix() string {
	return uuid.New().String()[:8]
}
