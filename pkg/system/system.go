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

// Package system prepares the host for the cluster: default route
// detection, kernel modules, sysctl values and binary lookups.
package system

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/bitfield/script"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	kubernixapi "github.com/kubernix/kubernix/pkg/apis/kubernix"
	"github.com/kubernix/kubernix/pkg/apis/kubernix/v1alpha1"
	"github.com/kubernix/kubernix/pkg/constants"
	"github.com/kubernix/kubernix/pkg/utils"
)

var kernelModules = []string{"overlay", "br_netfilter", "ip_conntrack"}

var sysctlKeys = []string{
	"net.bridge.bridge-nf-call-iptables",
	"net.bridge.bridge-nf-call-ip6tables",
	"net.ipv4.conf.all.route_localnet",
	"net.ipv4.ip_forward",
}

// controlPlaneBinaries have to be on the PATH before anything is started.
var controlPlaneBinaries = []string{
	"etcd",
	"kube-apiserver",
	"kube-controller-manager",
	"kube-scheduler",
	"kubelet",
	"kube-proxy",
	"crio",
	constants.CfsslCmd,
	constants.CfssljsonCmd,
	constants.KubectlCmd,
	constants.IpCmd,
	constants.ModprobeCmd,
	constants.SysctlCmd,
}

// HostIP returns the source address the host would use to reach the
// internet, taken from the output of `ip route get`.
func HostIP() (net.IP, error) {
	out, err := utils.Exec.Run(false, constants.IpCmd, "route", "get", "1.2.3.4")
	if err != nil {
		return nil, errors.Wrap(err, "While getting default route")
	}

	address, err := script.Echo(string(out)).Column(7).First(1).String()
	if err != nil {
		return nil, errors.Wrap(err, "While parsing default route")
	}
	ip := net.ParseIP(strings.TrimSpace(address))
	if ip == nil {
		return nil, fmt.Errorf("no usable source address in route output %q", string(out))
	}
	return ip, nil
}

func Hostname() (string, error) {
	hostname, err := os.Hostname()
	return hostname, errors.Wrap(err, "While getting hostname")
}

// EnsureKernelModules loads the modules needed by crio and kube-proxy.
// Skipped when /lib/modules does not exist, like inside a container.
func EnsureKernelModules() error {
	return utils.ExecuteIfExist("/lib/modules", func() error {
		for _, module := range kernelModules {
			log.WithField("module", module).Debug("Loading kernel module")
			out, err := utils.Exec.Run(true, constants.ModprobeCmd, module)
			if err != nil {
				return errors.Wrapf(err, "While loading kernel module %s: %s", module, string(out))
			}
		}
		return nil
	})
}

func EnsureSysctls() error {
	for _, key := range sysctlKeys {
		out, err := utils.Exec.Run(true, constants.SysctlCmd, "-w", key+"=1")
		if err != nil {
			return errors.Wrapf(err, "While setting sysctl %s: %s", key, string(out))
		}
	}
	return nil
}

// CheckBinaries verifies that every binary the cluster runs or execs is
// on the PATH and reports all the missing ones at once.
func CheckBinaries(spec *v1alpha1.KubernixClusterSpec) error {
	required := make([]string, 0, len(controlPlaneBinaries)+len(spec.Packages)+1)
	required = append(required, controlPlaneBinaries...)
	if spec.MultiNode() && spec.ContainerRuntime != constants.NoRuntime {
		required = append(required, spec.ContainerRuntime)
	}
	required = append(required, spec.Packages...)

	var missing []string
	for _, binary := range required {
		if _, err := utils.Exec.LookPath(binary); err != nil {
			missing = append(missing, binary)
		}
	}
	if len(missing) > 0 {
		return kubernixapi.Failuref(kubernixapi.Precondition,
			"required binaries not found on PATH: %s", strings.Join(missing, ", "))
	}
	return nil
}

// CheckNotNested refuses to bootstrap from within a shell spawned by
// another cluster run.
func CheckNotNested() error {
	if root := os.Getenv(constants.EnvVariable); root != "" {
		return kubernixapi.Failuref(kubernixapi.Precondition,
			"nested clusters are not supported, already running inside %s", root)
	}
	return nil
}
