// Package constants holds the names and defaults shared across the kubernix
// packages: directory layout below the cluster root, well known binaries and
// the network identity of the cluster.
package constants

const (
	AppName = "kubernix"

	// EnvVariable marks a shell spawned by kubernix. Its value is the
	// cluster root of the run that spawned it.
	EnvVariable = "KUBERNIX_ENV"

	DefaultRootDir          = "kubernix-run"
	DefaultCidr             = "10.10.0.0/16"
	DefaultContainerRuntime = "podman"

	// NoRuntime disables the container runtime for single node clusters.
	NoRuntime = "none"

	ClusterName   = "kubernix"
	ContextName   = "default"
	ClusterDomain = "cluster.local"
	ApiPort       = 6443

	// BridgeName is the CNI bridge the cluster traffic goes through.
	BridgeName = "kubernix1"

	// ContainerPrefix prefixes the name of every node container.
	ContainerPrefix = "kubernix-"
	ImageName       = "kubernix:base"
	NodePrefix      = "node-"
)

// Directories below the cluster root.
const (
	ApiServerDir  = "api-server"
	CorednsDir    = "coredns"
	CrioDir       = "crio"
	EtcdDir       = "etcd"
	ImageDir      = "image"
	KubeconfigDir = "kubeconfig"
	KubeletDir    = "kubelet"
	LogDir        = "log"
	PkiDir        = "pki"
	ProxyDir      = "proxy"
	RunDir        = "run"
	SchedulerDir  = "scheduler"
)

// Files below the cluster root.
const (
	AuditLogFile         = "audit.log"
	CorednsFile          = "coredns.yml"
	EncryptionConfigFile = "encryption-config.yml"
	EnvFile              = "kubernix.env"
	PolicyFile           = "policy.json"
	StatusFile           = "cluster.json"
)

// Binaries invoked through the executor.
const (
	CfsslCmd     = "cfssl"
	CfssljsonCmd = "cfssljson"
	IpCmd        = "ip"
	KubectlCmd   = "kubectl"
	ModprobeCmd  = "modprobe"
	SysctlCmd    = "sysctl"
)
