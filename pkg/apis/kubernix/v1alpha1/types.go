package v1alpha1

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	kubernixapi "github.com/kubernix/kubernix/pkg/apis/kubernix"
	"github.com/kubernix/kubernix/pkg/constants"
	"github.com/kubernix/kubernix/pkg/utils"
)

type KubernixCluster struct {
	metav1.TypeMeta `json:",inline"`

	Spec KubernixClusterSpec `json:"spec" protobuf:"bytes,2,opt,name=spec"`
	// +optional
	Status KubernixClusterStatus `json:"status,omitempty" protobuf:"bytes,3,opt,name=status"`
}

type KubernixClusterSpec struct {
	// Root is the directory holding everything the cluster produces:
	// certificates, kubeconfigs, component configurations, data and logs.
	// +optional
	Root string `json:"root,omitempty" protobuf:"bytes,1,opt,name=root" mapstructure:"root"`
	// Cidr is carved into the crio, cluster and service subnets.
	// +optional
	Cidr string `json:"cidr,omitempty" protobuf:"bytes,2,opt,name=cidr" mapstructure:"cidr"`
	// +optional
	Nodes uint8 `json:"nodes,omitempty" protobuf:"varint,3,opt,name=nodes" mapstructure:"nodes"`
	// +optional
	ContainerRuntime string `json:"containerRuntime,omitempty" protobuf:"bytes,4,opt,name=containerRuntime" mapstructure:"container_runtime"`
	// +optional
	Overlay string `json:"overlay,omitempty" protobuf:"bytes,5,opt,name=overlay" mapstructure:"overlay"`
	// +optional
	Packages []string `json:"packages,omitempty" protobuf:"bytes,6,rep,name=packages" mapstructure:"packages"`
	// +optional
	NoShell bool `json:"noShell,omitempty" protobuf:"varint,7,opt,name=noShell" mapstructure:"no_shell"`
}

// MultiNode reports whether the worker nodes run in containers.
func (c *KubernixClusterSpec) MultiNode() bool {
	return c.Nodes > 1
}

// Validate checks the values that cannot be defaulted away. All returned
// errors are precondition failures.
func (c *KubernixClusterSpec) Validate() error {
	if c.Nodes == 0 {
		return kubernixapi.Failuref(kubernixapi.Precondition, "node count must be at least 1")
	}
	if _, _, err := net.ParseCIDR(c.Cidr); err != nil {
		return kubernixapi.Failuref(kubernixapi.Precondition, "invalid cluster CIDR %q: %v", c.Cidr, err)
	}
	switch c.ContainerRuntime {
	case "podman", "docker", constants.NoRuntime:
	default:
		return kubernixapi.Failuref(kubernixapi.Precondition,
			"unsupported container runtime %q, expected podman, docker or %s", c.ContainerRuntime, constants.NoRuntime)
	}
	if c.MultiNode() && c.ContainerRuntime == constants.NoRuntime {
		return kubernixapi.Failuref(kubernixapi.Precondition,
			"%d nodes need a container runtime, rerun with podman or docker", c.Nodes)
	}
	return nil
}

// EnvFile is the environment file loaded by the interactive shell.
func (c *KubernixClusterSpec) EnvFile() string {
	return filepath.Join(c.Root, constants.EnvFile)
}

// AdminKubeconfig is the path to the cluster admin kubeconfig.
func (c *KubernixClusterSpec) AdminKubeconfig() string {
	return filepath.Join(c.Root, constants.KubeconfigDir, "admin.kubeconfig")
}

type KubernixClusterStatus struct {
	// RunID identifies one bootstrap run of the cluster root.
	RunID               string                   `json:"runID,omitempty" protobuf:"bytes,1,opt,name=runID"`
	Pid                 int                      `json:"pid,omitempty" protobuf:"varint,2,opt,name=pid"`
	LastUpdateTimeStamp metav1.Time              `json:"lastUpdateTimeStamp" protobuf:"bytes,3,opt,name=lastUpdateTimeStamp"`
	State               kubernixapi.ClusterState `json:"state" protobuf:"bytes,4,opt,name=state"`
	CurrentPhase        string                   `json:"currentPhase" protobuf:"bytes,5,opt,name=currentPhase"`
	Processes           []ProcessState           `json:"processes,omitempty" protobuf:"bytes,6,rep,name=processes"`
}

// ProcessState records one supervised process for the status command.
type ProcessState struct {
	Name    string `json:"name"`
	Pid     int    `json:"pid"`
	LogFile string `json:"logFile"`
	Ready   bool   `json:"ready"`
}

func (p *ProcessState) LongString() string {
	return fmt.Sprintf("%s %-28s pid %-8d %s", OkString(p.Ready), p.Name, p.Pid, p.LogFile)
}

func (p *ProcessState) String() string {
	return fmt.Sprintf("%s:%s", p.Name, OkString(p.Ready))
}

// WorkloadState is the readiness of one deployed workload, shown by the
// status command.
type WorkloadState struct {
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name,omitempty"`
	Ok        bool   `json:"ok,omitempty"`
	Message   string `json:"message,omitempty"`
}

func (w *WorkloadState) LongString() string {
	return fmt.Sprintf("%s %s/%s %s", OkString(w.Ok), w.Namespace, w.Name, w.Message)
}

func (w *WorkloadState) String() string {
	return fmt.Sprintf("%s/%s:%s", w.Namespace, w.Name, OkString(w.Ok))
}

func OkString(b bool) string {
	if b {
		return "🟩"
	}
	return "🟥"
}

// StatusFile returns the path of the persisted cluster status below root.
func StatusFile(root string) string {
	return filepath.Join(root, constants.RunDir, constants.StatusFile)
}

// NewKubernixCluster creates a cluster object for a fresh bootstrap run.
func NewKubernixCluster(spec KubernixClusterSpec) *KubernixCluster {
	return &KubernixCluster{
		TypeMeta: metav1.TypeMeta{
			Kind:       kubernixapi.KubernixClusterKind,
			APIVersion: kubernixapi.GroupName + "/" + kubernixapi.V1alpha1Version,
		},
		Spec: spec,
		Status: KubernixClusterStatus{
			RunID:               uuid.NewString(),
			Pid:                 os.Getpid(),
			State:               kubernixapi.Init,
			CurrentPhase:        "init",
			LastUpdateTimeStamp: metav1.Now(),
		},
	}
}

// Update moves the cluster to the given state and persists the status file.
func (kubernixCluster *KubernixCluster) Update(state kubernixapi.ClusterState, phase string, processes []ProcessState) {
	kubernixCluster.Status.State = state
	kubernixCluster.Status.CurrentPhase = phase
	kubernixCluster.Status.LastUpdateTimeStamp = metav1.Now()
	if processes != nil {
		kubernixCluster.Status.Processes = processes
	}
	kubernixCluster.Persist()
}

func (kubernixCluster KubernixCluster) Persist() {
	kubernixClusterJSON, err := json.MarshalIndent(kubernixCluster, "", "  ")
	if err == nil {
		statusFile := StatusFile(kubernixCluster.Spec.Root)
		if err = utils.FS.MkdirAll(filepath.Dir(statusFile), 0o755); err != nil {
			log.WithError(err).Warn("Failed to create status directory")
			return
		}
		err = utils.FS.WriteFile(statusFile, kubernixClusterJSON, 0o644)
		if err != nil {
			log.WithError(err).Warn("Failed to write cluster status")
		}
	} else {
		log.WithError(err).Warn("Failed to marshal cluster status")
	}
}

func LoadKubernixCluster(root string) (*KubernixCluster, error) {
	kubernixCluster := &KubernixCluster{}
	kubernixClusterJSON, err := utils.FS.ReadFile(StatusFile(root))
	if err == nil {
		err = json.Unmarshal(kubernixClusterJSON, kubernixCluster)
		if err != nil {
			return nil, err
		}
	} else {
		return nil, err
	}
	return kubernixCluster, nil
}
