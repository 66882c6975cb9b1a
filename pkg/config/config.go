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
package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kubernix/kubernix/pkg/apis/kubernix/v1alpha1"
	"github.com/kubernix/kubernix/pkg/cmd/options"
)

func ConfigureClusterCommand(flagSet *flag.FlagSet, kubernixConfig *v1alpha1.KubernixClusterSpec) {
	v1alpha1.SetDefaults_KubernixClusterSpec(kubernixConfig)

	flagSet.StringVar(&kubernixConfig.Root, options.Root, kubernixConfig.Root, "Path to the cluster root directory")
	flagSet.StringVar(&kubernixConfig.Cidr, options.Cidr, kubernixConfig.Cidr, "CIDR carved into the crio, cluster and service subnets")
	flagSet.Uint8Var(&kubernixConfig.Nodes, options.Nodes, kubernixConfig.Nodes, "Number of worker nodes")
	flagSet.StringVar(&kubernixConfig.ContainerRuntime, options.ContainerRuntime, kubernixConfig.ContainerRuntime, "Container runtime used for multi-node clusters (podman, docker or none)")
	flagSet.StringVar(&kubernixConfig.Overlay, options.Overlay, kubernixConfig.Overlay, "Manifest file or kustomization directory applied after the cluster is up")
	flagSet.StringSliceVar(&kubernixConfig.Packages, options.Packages, kubernixConfig.Packages, "Additional binaries that have to be on the PATH")
	flagSet.BoolVar(&kubernixConfig.NoShell, options.NoShell, kubernixConfig.NoShell, "Do not spawn an interactive shell once the cluster is ready")
}

func StartPersistentPreRun(cmd *cobra.Command, args []string) {
	flags := cmd.Flags()
	_ = viper.BindPFlag(Root, flags.Lookup(options.Root))
	_ = viper.BindPFlag(Cidr, flags.Lookup(options.Cidr))
	_ = viper.BindPFlag(Nodes, flags.Lookup(options.Nodes))
	_ = viper.BindPFlag(ContainerRuntime, flags.Lookup(options.ContainerRuntime))
	_ = viper.BindPFlag(Overlay, flags.Lookup(options.Overlay))
	_ = viper.BindPFlag(Packages, flags.Lookup(options.Packages))
	_ = viper.BindPFlag(NoShell, flags.Lookup(options.NoShell))
}

// DecodeKubernixConfig decodes the configuration from the viper configuration.
// This allows providing configuration values as environment variables.
func DecodeKubernixConfig(kubernixConfig *v1alpha1.KubernixClusterSpec) error {
	// Cannot use Unmarshal. Look here: https://github.com/spf13/viper/issues/368
	decoderConfig := mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
		WeaklyTypedInput: true,
		Result:           kubernixConfig,
		Metadata:         nil,
	}

	decoder, err := mapstructure.NewDecoder(&decoderConfig)
	if err != nil {
		return errors.Wrap(err, "While creating decoder")
	}

	if err := decoder.Decode(viper.AllSettings()["cluster"]); err != nil {
		return fmt.Errorf("failed to decode cluster settings: %w", err)
	}
	return nil
}
