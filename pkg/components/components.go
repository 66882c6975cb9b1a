/*
Copyright © 2025 The kubernix authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package components materializes the configuration files and command
// lines of the Kubernetes control plane and node processes.
package components

// cSpell: words synched

import (
	"fmt"
	"net"
	"path/filepath"

	"github.com/kubernix/kubernix/pkg/constants"
	"github.com/kubernix/kubernix/pkg/kubeconfig"
	"github.com/kubernix/kubernix/pkg/network"
	"github.com/kubernix/kubernix/pkg/pki"
)

// Log markers signalling that a component finished starting up. They are
// matched as plain substrings against the process log file, kube-proxy
// really logs "synched".
const (
	EtcdReadyMarker              = "ready to serve client requests"
	CrioReadyMarker              = "sandboxes:"
	APIServerReadyMarker         = "etcd ok"
	ControllerManagerReadyMarker = "Serving securely"
	SchedulerReadyMarker         = "Serving securely"
	KubeletReadyMarker           = "Successfully registered node"
	ProxyReadyMarker             = "Caches are synched"
)

// Cluster bundles everything the component builders need: the run root,
// the network layout, the certificates and the kubeconfig files.
type Cluster struct {
	Root        string
	Layout      *network.Layout
	HostIP      net.IP
	Hostname    string
	Pki         *pki.Pki
	Kubeconfigs *kubeconfig.Kubeconfigs
	Nodes       uint8
}

// Startup describes one process to launch: its command line, the log
// marker telling that it became ready and the node it belongs to.
// Control plane processes carry an empty node.
type Startup struct {
	Name    string
	Node    string
	Command []string
	Marker  string
}

// NodeName returns the kubelet identity of a node. Single node clusters
// register under the host name, larger clusters are numbered.
func NodeName(hostname string, index, count uint8) string {
	if count <= 1 {
		return hostname
	}
	return fmt.Sprintf("%s%d", constants.NodePrefix, index)
}

// NodeNames lists the kubelet identities of all cluster nodes.
func NodeNames(hostname string, count uint8) []string {
	names := make([]string, 0, count)
	for index := uint8(0); index < count; index++ {
		names = append(names, NodeName(hostname, index, count))
	}
	return names
}

// CrioSocket returns the CRI socket the kubelet of the given node talks
// to.
func (c *Cluster) CrioSocket(node string) string {
	return filepath.Join(c.nodeDir(constants.CrioDir, node), "crio.sock")
}

func (c *Cluster) multiNode() bool {
	return c.Nodes > 1
}

// nodeDir places per node state below the root. With a single node the
// plain base name is used, with several nodes the directory carries the
// node name.
func (c *Cluster) nodeDir(base, node string) string {
	if c.multiNode() {
		return filepath.Join(c.Root, base+"-"+node)
	}
	return filepath.Join(c.Root, base)
}

func (c *Cluster) processName(binary, node string) string {
	if c.multiNode() {
		return node + "-" + binary
	}
	return binary
}
