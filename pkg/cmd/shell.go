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

import (
	"github.com/spf13/cobra"

	"github.com/kubernix/kubernix/pkg/apis/kubernix/v1alpha1"
	"github.com/kubernix/kubernix/pkg/config"
	"github.com/kubernix/kubernix/pkg/shell"
)

// NewShellCmd creates the shell command, which opens an additional
// interactive shell inside the environment of a running cluster.
func NewShellCmd(kubernixConfig *v1alpha1.KubernixClusterSpec) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Spawn a new shell in a running cluster environment",
		Long: `Spawns an interactive shell with the environment of a running
cluster: KUBECONFIG points at the admin kubeconfig and the container
runtime endpoint at the crio socket. The cluster keeps running when
the shell exits.`,
		Run: func(cmd *cobra.Command, args []string) { performShell(kubernixConfig) },
	}
}

func performShell(kubernixConfig *v1alpha1.KubernixClusterSpec) {
	cobra.CheckErr(config.DecodeKubernixConfig(kubernixConfig))
	cobra.CheckErr(shell.Run(kubernixConfig.Root))
}
