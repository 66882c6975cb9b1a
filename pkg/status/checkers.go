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

package status

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	kubernixapi "github.com/kubernix/kubernix/pkg/apis/kubernix"
	"github.com/kubernix/kubernix/pkg/apis/kubernix/v1alpha1"
	"github.com/kubernix/kubernix/pkg/kube"
	"github.com/kubernix/kubernix/pkg/kubeconfig"
	"github.com/kubernix/kubernix/pkg/pki"
	"github.com/kubernix/kubernix/pkg/utils"
)

// RootCheck verifies that the cluster root directory exists.
func RootCheck(root string) *Check {
	return &Check{
		Name:        "root",
		Description: fmt.Sprintf("Check cluster root %s", root),
		CheckFn: func(_ context.Context, _ CheckData) (bool, string, error) {
			exists, err := utils.FS.DirExists(root)
			if err != nil {
				return false, "", err
			}
			if !exists {
				return false, fmt.Sprintf("%s does not exist", root), nil
			}
			return true, "Cluster root exists", nil
		},
	}
}

// ClusterStateCheck verifies that the persisted cluster state reports a
// ready cluster.
func ClusterStateCheck(root string) *Check {
	return &Check{
		Name:        "state",
		Description: "Check persisted cluster state",
		DependsOn:   []string{"root"},
		CheckFn: func(_ context.Context, _ CheckData) (bool, string, error) {
			cluster, err := v1alpha1.LoadKubernixCluster(root)
			if err != nil {
				return false, "", err
			}
			message := fmt.Sprintf("Run %s is %s with pid %d",
				cluster.Status.RunID, cluster.Status.State, cluster.Status.Pid)
			return cluster.Status.State == kubernixapi.Ready, message, nil
		},
	}
}

// FileCheck verifies that a single file exists.
func FileCheck(name, path string) *Check {
	return &Check{
		Name:        name,
		Description: fmt.Sprintf("Check %s", path),
		CheckFn: func(_ context.Context, _ CheckData) (bool, string, error) {
			exists, err := utils.FS.Exists(path)
			if err != nil {
				return false, "", err
			}
			if !exists {
				return false, fmt.Sprintf("%s does not exist", path), nil
			}
			isDir, err := utils.FS.DirExists(path)
			if err != nil {
				return false, "", err
			}
			if isDir {
				return false, fmt.Sprintf("%s is a directory, not a file", path), nil
			}
			return true, fmt.Sprintf("%s exists", path), nil
		},
	}
}

// PkiCheck verifies that every issued certificate and key is present.
func PkiCheck(p *pki.Pki) *Check {
	return &Check{
		Name:        "pki",
		Description: fmt.Sprintf("Check certificates in %s", p.Dir),
		CheckFn: func(_ context.Context, _ CheckData) (bool, string, error) {
			var missing []string
			for _, id := range p.Identities() {
				for _, file := range []string{id.Cert, id.Key} {
					exists, err := utils.FS.Exists(file)
					if err != nil {
						return false, "", err
					}
					if !exists {
						missing = append(missing, file)
					}
				}
			}
			if len(missing) > 0 {
				return false, fmt.Sprintf("Missing files: %s", strings.Join(missing, ", ")), nil
			}
			return true, fmt.Sprintf("All %d identities present", len(p.Identities())), nil
		},
	}
}

// KubeconfigsCheck verifies that the five kubeconfig files exist.
func KubeconfigsCheck(k *kubeconfig.Kubeconfigs) *Check {
	files := []string{k.Admin, k.Kubelet, k.Proxy, k.ControllerManager, k.Scheduler}
	return &Check{
		Name:        "kubeconfigs",
		Description: fmt.Sprintf("Check kubeconfigs in %s", k.Dir),
		CheckFn: func(_ context.Context, _ CheckData) (bool, string, error) {
			var missing []string
			for _, file := range files {
				exists, err := utils.FS.Exists(file)
				if err != nil {
					return false, "", err
				}
				if !exists {
					missing = append(missing, file)
				}
			}
			if len(missing) > 0 {
				return false, fmt.Sprintf("Missing files: %s", strings.Join(missing, ", ")), nil
			}
			return true, fmt.Sprintf("All %d kubeconfigs present", len(files)), nil
		},
	}
}

// ProcessCheck verifies that a persisted cluster process is still alive.
func ProcessCheck(state v1alpha1.ProcessState) *Check {
	return &Check{
		Name:        "process_" + state.Name,
		Description: fmt.Sprintf("Check process %s", state.Name),
		CheckFn: func(_ context.Context, _ CheckData) (bool, string, error) {
			process, err := os.FindProcess(state.Pid)
			if err != nil {
				return false, "", err
			}
			if err := process.Signal(syscall.Signal(0)); err != nil {
				return false, fmt.Sprintf("Pid %d is gone", state.Pid), nil
			}
			return true, fmt.Sprintf("Running with pid %d", state.Pid), nil
		},
	}
}

// ProcessesPhase groups the liveness checks of all persisted processes.
func ProcessesPhase(states []v1alpha1.ProcessState) *Check {
	checks := make([]*Check, 0, len(states))
	for _, state := range states {
		checks = append(checks, ProcessCheck(state))
	}
	phase := NewPhase("processes", "Cluster processes", checks)
	phase.DependsOn = []string{"state"}
	return phase
}

// APIServerCheck probes the API server /readyz endpoint through the
// admin kubeconfig.
func APIServerCheck(admin string) *Check {
	return &Check{
		Name:        "apiserver",
		Description: "Check API server health",
		DependsOn:   []string{"processes"},
		CheckFn: func(_ context.Context, _ CheckData) (bool, string, error) {
			config, err := kube.LoadFromFile(admin)
			if err != nil {
				return false, "", err
			}
			if err := config.CheckClusterRunning(3, 1, 500); err != nil {
				return false, "", err
			}
			return true, "API server is healthy", nil
		},
	}
}

// WorkloadData carries the workload states gathered by WorkloadsCheck so
// that the custom printer can list them.
type WorkloadData struct {
	States []*v1alpha1.WorkloadState
}

// WorkloadResultPrinter appends one line per workload below the check.
func WorkloadResultPrinter(result *CheckResult, prefix string, spinView string) string {
	output := result.FormatResult(prefix, spinView)
	if data, ok := result.CheckData.(*WorkloadData); ok {
		for _, state := range data.States {
			output += fmt.Sprintf("%s  %s\n", prefix, state.LongString())
		}
	}
	return output
}

// WorkloadsCheck gathers the state of all deployments, statefulsets and
// daemonsets of the cluster.
func WorkloadsCheck(admin string) *Check {
	return &Check{
		Name:             "workloads",
		Description:      "Check workload status",
		DependsOn:        []string{"apiserver"},
		CheckDataBuilder: func() CheckData { return &WorkloadData{} },
		CustomPrinter:    WorkloadResultPrinter,
		CheckFn: func(_ context.Context, data CheckData) (bool, string, error) {
			config, err := kube.LoadFromFile(admin)
			if err != nil {
				return false, "", err
			}
			states, err := config.RESTClient().AllWorkloadStates()
			if err != nil {
				return false, "", err
			}
			if workloadData, ok := data.(*WorkloadData); ok {
				workloadData.States = states
			}
			ready := 0
			for _, state := range states {
				if state.Ok {
					ready++
				}
			}
			return ready == len(states),
				fmt.Sprintf("%d/%d workloads ready", ready, len(states)), nil
		},
	}
}

// NodesCheck verifies that all expected nodes registered and are ready.
func NodesCheck(admin string, expected uint8) *Check {
	return &Check{
		Name:        "nodes",
		Description: "Check node readiness",
		DependsOn:   []string{"apiserver"},
		CheckFn: func(ctx context.Context, _ CheckData) (bool, string, error) {
			config, err := kube.LoadFromFile(admin)
			if err != nil {
				return false, "", err
			}
			ready, total, err := config.NodesReady(ctx)
			if err != nil {
				return false, "", err
			}
			message := fmt.Sprintf("%d/%d nodes ready", ready, total)
			return total >= int(expected) && ready == total, message, nil
		},
	}
}
