package components

import (
	"crypto/rand"
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/kubernix/kubernix/pkg/assets"
	"github.com/kubernix/kubernix/pkg/constants"
	"github.com/kubernix/kubernix/pkg/utils"
)

// Etcd builds the startup for the backing key value store. Client and
// peer endpoints bind to the loopback interface and require client
// certificates, reusing the API server key pair.
func (c *Cluster) Etcd() (*Startup, error) {
	dir := filepath.Join(c.Root, constants.EtcdDir)
	if err := utils.FS.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "While creating %s", dir)
	}
	return &Startup{
		Name:   "etcd",
		Marker: EtcdReadyMarker,
		Command: []string{
			"etcd",
			"--advertise-client-urls=https://127.0.0.1:2379",
			"--cert-file=" + c.Pki.APIServer.Cert,
			"--client-cert-auth",
			"--data-dir=" + dir,
			"--initial-advertise-peer-urls=https://127.0.0.1:2380",
			"--initial-cluster-state=new",
			"--initial-cluster-token=etcd-cluster",
			"--initial-cluster=etcd=https://127.0.0.1:2380",
			"--key-file=" + c.Pki.APIServer.Key,
			"--listen-client-urls=https://127.0.0.1:2379",
			"--listen-peer-urls=https://127.0.0.1:2380",
			"--name=etcd",
			"--peer-cert-file=" + c.Pki.APIServer.Cert,
			"--peer-client-cert-auth",
			"--peer-key-file=" + c.Pki.APIServer.Key,
			"--peer-trusted-ca-file=" + c.Pki.CA.Cert,
			"--trusted-ca-file=" + c.Pki.CA.Cert,
		},
	}, nil
}

// APIServer builds the startup for the API server. The encryption
// configuration is rewritten with a fresh AES key on every run.
func (c *Cluster) APIServer() (*Startup, error) {
	dir := filepath.Join(c.Root, constants.ApiServerDir)
	if err := utils.FS.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "While creating %s", dir)
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Wrap(err, "While generating the encryption key")
	}
	encryptionConfig := filepath.Join(c.Root, constants.EncryptionConfigFile)
	err := assets.Write(constants.EncryptionConfigFile+".tmpl", encryptionConfig,
		map[string]string{"Key": string(key)}, 0o600)
	if err != nil {
		return nil, err
	}

	apiEndpoint := fmt.Sprintf("https://%s:%d", c.HostIP, constants.ApiPort)
	return &Startup{
		Name:   "kube-apiserver",
		Marker: APIServerReadyMarker,
		Command: []string{
			"kube-apiserver",
			"--advertise-address=" + c.HostIP.String(),
			"--allow-privileged=true",
			"--audit-log-maxage=30",
			"--audit-log-maxbackup=3",
			"--audit-log-maxsize=100",
			"--audit-log-path=" + filepath.Join(dir, constants.AuditLogFile),
			"--authorization-mode=Node,RBAC",
			"--bind-address=0.0.0.0",
			"--client-ca-file=" + c.Pki.CA.Cert,
			"--enable-admission-plugins=NamespaceLifecycle,NodeRestriction,LimitRanger,ServiceAccount,DefaultStorageClass,ResourceQuota",
			"--encryption-provider-config=" + encryptionConfig,
			"--etcd-cafile=" + c.Pki.CA.Cert,
			"--etcd-certfile=" + c.Pki.APIServer.Cert,
			"--etcd-keyfile=" + c.Pki.APIServer.Key,
			"--etcd-servers=https://127.0.0.1:2379",
			"--event-ttl=1h",
			"--kubelet-certificate-authority=" + c.Pki.CA.Cert,
			"--kubelet-client-certificate=" + c.Pki.APIServer.Cert,
			"--kubelet-client-key=" + c.Pki.APIServer.Key,
			"--runtime-config=api/all=true",
			"--service-account-issuer=" + apiEndpoint,
			"--service-account-key-file=" + c.Pki.ServiceAccount.Cert,
			"--service-account-signing-key-file=" + c.Pki.ServiceAccount.Key,
			"--service-cluster-ip-range=" + c.Layout.Service.String(),
			"--service-node-port-range=30000-32767",
			"--tls-cert-file=" + c.Pki.APIServer.Cert,
			"--tls-private-key-file=" + c.Pki.APIServer.Key,
			"--v=2",
		},
	}, nil
}

// ControllerManager builds the startup for the controller manager, which
// also signs the serving certificates the kubelets request.
func (c *Cluster) ControllerManager() (*Startup, error) {
	return &Startup{
		Name:   "kube-controller-manager",
		Marker: ControllerManagerReadyMarker,
		Command: []string{
			"kube-controller-manager",
			"--allocate-node-cidrs=true",
			"--bind-address=0.0.0.0",
			"--cluster-cidr=" + c.Layout.Cluster.String(),
			"--cluster-signing-cert-file=" + c.Pki.CA.Cert,
			"--cluster-signing-key-file=" + c.Pki.CA.Key,
			"--kubeconfig=" + c.Kubeconfigs.ControllerManager,
			"--leader-elect=false",
			"--root-ca-file=" + c.Pki.CA.Cert,
			"--service-account-private-key-file=" + c.Pki.ServiceAccount.Key,
			"--service-cluster-ip-range=" + c.Layout.Service.String(),
			"--use-service-account-credentials=true",
			"--v=2",
		},
	}, nil
}

// Scheduler builds the startup for the scheduler after materializing its
// configuration file.
func (c *Cluster) Scheduler() (*Startup, error) {
	configFile := filepath.Join(c.Root, constants.SchedulerDir, "config.yml")
	err := assets.Write("scheduler.yml.tmpl", configFile,
		map[string]string{"Kubeconfig": c.Kubeconfigs.Scheduler}, 0o644)
	if err != nil {
		return nil, err
	}
	return &Startup{
		Name:    "kube-scheduler",
		Marker:  SchedulerReadyMarker,
		Command: []string{"kube-scheduler", "--config=" + configFile, "--v=2"},
	}, nil
}
