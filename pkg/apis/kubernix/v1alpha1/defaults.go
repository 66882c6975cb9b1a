package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	kubernixapi "github.com/kubernix/kubernix/pkg/apis/kubernix"
	"github.com/kubernix/kubernix/pkg/constants"
)

func SetDefaults_KubernixClusterSpec(obj *KubernixClusterSpec) { //nolint:revive,stylecheck // Kubernetes defaulting convention.
	if obj.Root == "" {
		obj.Root = constants.DefaultRootDir
	}
	if obj.Cidr == "" {
		obj.Cidr = constants.DefaultCidr
	}
	if obj.Nodes == 0 {
		obj.Nodes = 1
	}
	if obj.ContainerRuntime == "" {
		obj.ContainerRuntime = constants.DefaultContainerRuntime
	}
}

func SetDefaults_KubernixClusterStatus(obj *KubernixClusterStatus) { //nolint:revive,stylecheck // Kubernetes defaulting convention.
	if obj.State == kubernixapi.Undefined {
		obj.State = kubernixapi.Init
	}
	if obj.CurrentPhase == "" {
		obj.CurrentPhase = "init"
	}
	if obj.LastUpdateTimeStamp.IsZero() {
		obj.LastUpdateTimeStamp = metav1.Now()
	}
}

func SetDefaults_KubernixCluster(obj *KubernixCluster) { //nolint:revive,stylecheck // Kubernetes defaulting convention.
	SetDefaults_KubernixClusterSpec(&obj.Spec)
	SetDefaults_KubernixClusterStatus(&obj.Status)
}
