package assets_test

import (
	"encoding/json"
	"testing"

	"github.com/lithammer/dedent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"

	"github.com/kubernix/kubernix/pkg/assets"
	"github.com/kubernix/kubernix/pkg/utils"
)

func TestRenderCsr(t *testing.T) {
	out, err := assets.Render("csr.json.tmpl", map[string]string{
		"CN": "system:node:node-0",
		"O":  "system:nodes",
	})
	require.NoError(t, err)

	var csr struct {
		CN  string `json:"CN"`
		Key struct {
			Algo string `json:"algo"`
			Size int    `json:"size"`
		} `json:"key"`
		Names []struct {
			O  string `json:"O"`
			OU string `json:"OU"`
		} `json:"names"`
	}
	require.NoError(t, json.Unmarshal(out, &csr))
	assert.Equal(t, "system:node:node-0", csr.CN)
	assert.Equal(t, "rsa", csr.Key.Algo)
	assert.Equal(t, 2048, csr.Key.Size)
	require.Len(t, csr.Names, 1)
	assert.Equal(t, "system:nodes", csr.Names[0].O)
	assert.Equal(t, "kubernix", csr.Names[0].OU)
}

func TestRenderEncryptionConfig(t *testing.T) {
	out, err := assets.Render("encryption-config.yml.tmpl", map[string]string{"Key": "secret"})
	require.NoError(t, err)
	assert.Contains(t, string(out), "secret: c2VjcmV0")
	assert.Contains(t, string(out), "kind: EncryptionConfiguration")
}

func TestRenderStatic(t *testing.T) {
	out, err := assets.Render("policy.json", nil)
	require.NoError(t, err)

	var policy map[string]any
	require.NoError(t, json.Unmarshal(out, &policy))
	assert.Contains(t, policy, "default")
}

func TestRenderProxyConfig(t *testing.T) {
	out, err := assets.Render("proxy.yml.tmpl", map[string]string{
		"Kubeconfig":  "/var/cluster/kubeconfig/kube-proxy.kubeconfig",
		"ClusterCIDR": "10.10.128.0/18",
	})
	require.NoError(t, err)

	expected := dedent.Dedent(`
        kind: KubeProxyConfiguration
        apiVersion: kubeproxy.config.k8s.io/v1alpha1
        clientConnection:
          kubeconfig: /var/cluster/kubeconfig/kube-proxy.kubeconfig
        clusterCIDR: 10.10.128.0/18
        mode: iptables
    `)
	assert.Equal(t, expected[1:], string(out))
}

func TestRenderCoreDNS(t *testing.T) {
	out, err := assets.Render("coredns.yml.tmpl", map[string]string{
		"DNS":    "10.10.192.2",
		"Domain": "cluster.local",
	})
	require.NoError(t, err)
	assert.Contains(t, string(out), "clusterIP: 10.10.192.2")
	assert.Contains(t, string(out), "kubernetes cluster.local in-addr.arpa ip6.arpa")
}

func TestRenderKubeletConfig(t *testing.T) {
	out, err := assets.Render("kubelet.yml.tmpl", map[string]string{
		"CA":      "/var/cluster/pki/ca.pem",
		"DNS":     "10.10.192.2",
		"Domain":  "cluster.local",
		"PodCIDR": "10.10.128.0/18",
		"Cert":    "/var/cluster/pki/node-0.pem",
		"Key":     "/var/cluster/pki/node-0-key.pem",
	})
	require.NoError(t, err)

	var config map[string]any
	require.NoError(t, yaml.Unmarshal(out, &config))
	assert.Equal(t, "KubeletConfiguration", config["kind"])
	assert.Equal(t, "cgroupfs", config["cgroupDriver"])
	assert.Equal(t, "cluster.local", config["clusterDomain"])
	assert.Equal(t, false, config["failSwapOn"])
	assert.Equal(t, []any{"10.10.192.2"}, config["clusterDNS"])
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := assets.Render("missing.tmpl", nil)
	require.Error(t, err)
}

func TestWrite(t *testing.T) {
	originalFS := utils.FS
	utils.FS = utils.NewMemMapFS()
	defer func() { utils.FS = originalFS }()

	target := "/var/cluster/crio/cni/bridge.json"
	err := assets.Write("bridge.json.tmpl", target, map[string]string{
		"Subnet": "10.10.0.0/17",
	}, 0o644)
	require.NoError(t, err)

	payload, err := utils.FS.ReadFile(target)
	require.NoError(t, err)

	var bridge map[string]any
	require.NoError(t, json.Unmarshal(payload, &bridge))
	assert.Equal(t, "crio-bridge", bridge["name"])
	assert.Equal(t, "kubernix1", bridge["bridge"])
}
