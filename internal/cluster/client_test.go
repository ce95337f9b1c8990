package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.Token = "test-token"
	cfg.Namespace = "workflows"
	cfg.RetryDelay = time.Millisecond

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(cfg, logger)
}

func TestReadPVC(t *testing.T) {
	var gotPath, gotAuth string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(PVC{
			Metadata: ObjectMeta{
				Name: "shared-pvc",
				Annotations: map[string]string{
					StorageProvisionerAnnotation: "driver.longhorn.io",
				},
			},
			Spec: PVCSpec{AccessModes: AccessModesRWM},
		})
	}))

	pvc, err := client.ReadPVC(context.Background(), "shared-pvc")
	if err != nil {
		t.Fatalf("ReadPVC: %v", err)
	}
	if gotPath != "/api/v1/namespaces/workflows/persistentvolumeclaims/shared-pvc" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if pvc.Metadata.Name != "shared-pvc" {
		t.Errorf("pvc name = %q", pvc.Metadata.Name)
	}
	if pvc.Spec.AccessModes[0] != "ReadWriteMany" {
		t.Errorf("access modes = %v", pvc.Spec.AccessModes)
	}
}

func TestReadPVC_NotFound(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"kind":"Status","reason":"NotFound"}`, http.StatusNotFound)
	}))

	_, err := client.ReadPVC(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsNotFound(err) {
		t.Errorf("IsNotFound = false for %v", err)
	}
}

func TestCreatePVC_SendsBody(t *testing.T) {
	var received PVC
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(received)
	}))

	pvc := &PVC{
		APIVersion: "v1",
		Kind:       "PersistentVolumeClaim",
		Metadata:   ObjectMeta{Name: "wf-pvc-abc12345"},
		Spec: PVCSpec{
			AccessModes:      AccessModesRWM,
			StorageClassName: "longhorn",
			Resources:        ResourceRequirements{Requests: map[string]string{"storage": "1Gi"}},
		},
	}
	created, err := client.CreatePVC(context.Background(), pvc)
	if err != nil {
		t.Fatalf("CreatePVC: %v", err)
	}
	if received.Metadata.Name != "wf-pvc-abc12345" {
		t.Errorf("server received name %q", received.Metadata.Name)
	}
	if created.Spec.Resources.Requests["storage"] != "1Gi" {
		t.Errorf("created storage = %v", created.Spec.Resources.Requests)
	}
}

func TestPatchPVC_UsesStrategicMergeContentType(t *testing.T) {
	var gotContentType string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s, want PATCH", r.Method)
		}
		gotContentType = r.Header.Get("Content-Type")
		json.NewEncoder(w).Encode(PVC{Metadata: ObjectMeta{Name: "shared-pvc"}})
	}))

	patch := map[string]any{
		"spec": map[string]any{
			"resources": map[string]any{
				"requests": map[string]any{"storage": "5Gi"},
			},
		},
	}
	if _, err := client.PatchPVC(context.Background(), "shared-pvc", patch); err != nil {
		t.Fatalf("PatchPVC: %v", err)
	}
	if gotContentType != "application/strategic-merge-patch+json" {
		t.Errorf("content type = %q", gotContentType)
	}
}

func TestCreateNamespacedCustomObject_Path(t *testing.T) {
	var gotPath string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		io.Copy(w, r.Body)
	}))

	body := map[string]any{"kind": "VolumeSnapshot"}
	obj, err := client.CreateNamespacedCustomObject(context.Background(),
		"snapshot.storage.k8s.io", "v1", "volumesnapshots", body)
	if err != nil {
		t.Fatalf("CreateNamespacedCustomObject: %v", err)
	}
	want := "/apis/snapshot.storage.k8s.io/v1/namespaces/workflows/volumesnapshots"
	if gotPath != want {
		t.Errorf("path = %q, want %q", gotPath, want)
	}
	if obj["kind"] != "VolumeSnapshot" {
		t.Errorf("echoed object = %v", obj)
	}
}

func TestListSnapshotClasses(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/apis/snapshot.storage.k8s.io/v1/volumesnapshotclasses" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items": []any{
				map[string]any{"metadata": map[string]any{"name": "longhorn-snap"}, "driver": "driver.longhorn.io"},
			},
		})
	}))

	classes, err := client.ListSnapshotClasses(context.Background())
	if err != nil {
		t.Fatalf("ListSnapshotClasses: %v", err)
	}
	if len(classes) != 1 || classes[0]["driver"] != "driver.longhorn.io" {
		t.Errorf("classes = %v", classes)
	}
}

func TestDo_RetriesServerErrors(t *testing.T) {
	attempts := 0
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(PVC{Metadata: ObjectMeta{Name: "shared-pvc"}})
	}))

	if _, err := client.ReadPVC(context.Background(), "shared-pvc"); err != nil {
		t.Fatalf("ReadPVC after retries: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDo_DoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "bad request", http.StatusBadRequest)
	}))

	_, err := client.ReadPVC(context.Background(), "shared-pvc")
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("err = %v, want HTTP 400", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}
