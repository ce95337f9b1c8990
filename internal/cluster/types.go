package cluster

// ObjectMeta is the subset of Kubernetes object metadata this client needs.
type ObjectMeta struct {
	Name        string            `json:"name,omitempty"`
	Namespace   string            `json:"namespace,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// PVC is a persistent volume claim. Fields outside the rewrite's concerns
// are omitted; the API server fills in defaults.
type PVC struct {
	APIVersion string     `json:"apiVersion,omitempty"`
	Kind       string     `json:"kind,omitempty"`
	Metadata   ObjectMeta `json:"metadata"`
	Spec       PVCSpec    `json:"spec"`
}

// PVCSpec holds the claim's storage request.
type PVCSpec struct {
	AccessModes      []string             `json:"accessModes,omitempty"`
	StorageClassName string               `json:"storageClassName,omitempty"`
	Resources        ResourceRequirements `json:"resources"`
}

// ResourceRequirements carries resource requests (e.g. "storage": "1Gi").
type ResourceRequirements struct {
	Requests map[string]string `json:"requests,omitempty"`
}

// Volume access modes.
var (
	AccessModesRWO = []string{"ReadWriteOnce"}
	AccessModesRWM = []string{"ReadWriteMany"}
	AccessModesROM = []string{"ReadOnlyMany"}
)

// StorageProvisionerAnnotation names the provisioner that bound a PVC. Used
// to match a claim to its snapshot class driver.
const StorageProvisionerAnnotation = "volume.beta.kubernetes.io/storage-provisioner"
