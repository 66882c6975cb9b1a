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
package cmd

// cSpell: words apiserver isatty logrus
// cSpell: disable
import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kubernix/kubernix/pkg/apis/kubernix/v1alpha1"
	"github.com/kubernix/kubernix/pkg/components"
	"github.com/kubernix/kubernix/pkg/config"
	"github.com/kubernix/kubernix/pkg/constants"
	"github.com/kubernix/kubernix/pkg/kubeconfig"
	"github.com/kubernix/kubernix/pkg/pki"
	"github.com/kubernix/kubernix/pkg/status"
	"github.com/kubernix/kubernix/pkg/system"
)

// cSpell: enable

func NewStatusCmd(kubernixConfig *v1alpha1.KubernixClusterSpec) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the health of a running cluster",
		Long: `Checks a running cluster from the outside in: the files below the
cluster root, the supervised processes, the API server and finally
the readiness of the deployed workloads and nodes.`,
		Run: func(cmd *cobra.Command, args []string) { performStatus(kubernixConfig) },
	}
}

func performStatus(kubernixConfig *v1alpha1.KubernixClusterSpec) {
	cobra.CheckErr(config.DecodeKubernixConfig(kubernixConfig))

	spec := kubernixConfig
	var processes []v1alpha1.ProcessState
	if cluster, err := v1alpha1.LoadKubernixCluster(spec.Root); err == nil {
		// Prefer the settings the cluster was actually started with.
		spec = &cluster.Spec
		processes = cluster.Status.Processes
	}

	hostname, err := system.Hostname()
	cobra.CheckErr(err)
	names := components.NodeNames(hostname, spec.Nodes)
	identities := pki.Existing(spec.Root, names)
	kubeconfigs := kubeconfig.Paths(spec.Root)

	checks := []*status.Check{
		status.RootCheck(spec.Root),
		status.ClusterStateCheck(spec.Root),
		status.NewPhase("configuration", "Cluster configuration", []*status.Check{
			status.PkiCheck(identities),
			status.KubeconfigsCheck(kubeconfigs),
			status.FileCheck("policy", filepath.Join(spec.Root, constants.PolicyFile)),
		}),
		status.ProcessesPhase(processes),
		status.APIServerCheck(kubeconfigs.Admin),
		status.WorkloadsCheck(kubeconfigs.Admin),
		status.NodesCheck(kubeconfigs.Admin, spec.Nodes),
	}

	ctx := context.Background()
	executor := status.NewCheckExecutor(checks)
	logrus.SetLevel(logrus.FatalLevel)

	if isatty.IsTerminal(os.Stdout.Fd()) {
		program := tea.NewProgram(status.NewCheckModel(ctx, executor))
		tmp := os.Stdout
		os.Stdout = nil
		_, err := program.Run()
		os.Stdout = tmp
		if err != nil {
			fmt.Printf("Error running checks: %v\n", err)
			os.Exit(1)
		}
	} else {
		for _, result := range executor.Run(ctx) {
			fmt.Print(result.Format("", ""))
		}
	}

	if executor.Failed() {
		color.Red("Some checks failed")
		os.Exit(1)
	}
	color.Green("Cluster is healthy")
}
