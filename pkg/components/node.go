package components

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/kubernix/kubernix/pkg/assets"
	"github.com/kubernix/kubernix/pkg/constants"
	"github.com/kubernix/kubernix/pkg/pki"
	"github.com/kubernix/kubernix/pkg/utils"
)

// Crio builds the startup for the container runtime of a node, wiring
// its CNI bridge into the pod subnet shared by all nodes.
func (c *Cluster) Crio(node string) (*Startup, error) {
	dir := c.nodeDir(constants.CrioDir, node)
	cniDir := filepath.Join(dir, "cni")
	storage := filepath.Join(dir, "storage")
	runRoot := filepath.Join(dir, "run")
	for _, sub := range []string{cniDir, storage, runRoot} {
		if err := utils.FS.MkdirAll(sub, 0o755); err != nil {
			return nil, errors.Wrapf(err, "While creating %s", sub)
		}
	}
	err := assets.Write("bridge.json.tmpl", filepath.Join(cniDir, "bridge.json"),
		map[string]string{"Subnet": c.Layout.Crio.String()}, 0o644)
	if err != nil {
		return nil, err
	}
	return &Startup{
		Name:   c.processName("crio", node),
		Node:   node,
		Marker: CrioReadyMarker,
		Command: []string{
			"crio",
			"--cgroup-manager=cgroupfs",
			"--cni-config-dir=" + cniDir,
			"--listen=" + c.CrioSocket(node),
			"--root=" + storage,
			"--runroot=" + runRoot,
			"--signature-policy=" + filepath.Join(c.Root, constants.PolicyFile),
			"--storage-driver=overlay",
		},
	}, nil
}

// Kubelet builds the startup for the kubelet of a node, serving with the
// certificate issued for the node identity.
func (c *Cluster) Kubelet(node string, id *pki.Identity) (*Startup, error) {
	dir := c.nodeDir(constants.KubeletDir, node)
	rootDir := filepath.Join(dir, "run")
	if err := utils.FS.MkdirAll(rootDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "While creating %s", rootDir)
	}
	configFile := filepath.Join(dir, "config.yml")
	err := assets.Write("kubelet.yml.tmpl", configFile, map[string]string{
		"CA":      c.Pki.CA.Cert,
		"DNS":     c.Layout.DNS.String(),
		"Domain":  constants.ClusterDomain,
		"PodCIDR": c.Layout.Cluster.String(),
		"Cert":    id.Cert,
		"Key":     id.Key,
	}, 0o644)
	if err != nil {
		return nil, err
	}
	return &Startup{
		Name:   c.processName("kubelet", node),
		Node:   node,
		Marker: KubeletReadyMarker,
		Command: []string{
			"kubelet",
			"--config=" + configFile,
			"--container-runtime-endpoint=unix://" + c.CrioSocket(node),
			"--kubeconfig=" + c.Kubeconfigs.Kubelet,
			"--root-dir=" + rootDir,
			"--v=2",
		},
	}, nil
}

// Proxy builds the startup for kube-proxy on a node.
func (c *Cluster) Proxy(node string) (*Startup, error) {
	configFile := filepath.Join(c.nodeDir(constants.ProxyDir, node), "config.yml")
	err := assets.Write("proxy.yml.tmpl", configFile, map[string]string{
		"Kubeconfig":  c.Kubeconfigs.Proxy,
		"ClusterCIDR": c.Layout.Cluster.String(),
	}, 0o644)
	if err != nil {
		return nil, err
	}
	return &Startup{
		Name:    c.processName("kube-proxy", node),
		Node:    node,
		Marker:  ProxyReadyMarker,
		Command: []string{"kube-proxy", "--config=" + configFile},
	}, nil
}
