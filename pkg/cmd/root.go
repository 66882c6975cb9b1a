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

// cSpell: disable
import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"

	"github.com/kubernix/kubernix/pkg/apis/kubernix/v1alpha1"
	"github.com/kubernix/kubernix/pkg/cmd/options"
	"github.com/kubernix/kubernix/pkg/config"
	"github.com/kubernix/kubernix/pkg/supervisor"
)

// cSpell: enable

var (
	cfgFile  string
	logLevel string
	jsonLogs bool
)

// NewRootCmd creates the root command. Called without a subcommand it
// bootstraps a cluster and tears it down again when the spawned shell
// exits.
func NewRootCmd() *cobra.Command {
	cobra.OnInitialize(initConfig)
	cobra.EnableTraverseRunHooks = true

	kubernixConfig := &v1alpha1.KubernixClusterSpec{}

	rootCmd := &cobra.Command{
		Use:   "kubernix",
		Short: "Kubernetes development cluster from plain processes",
		Long: `Bootstraps a single host Kubernetes cluster: etcd, the control plane
and the node components run as supervised processes below one root
directory, with certificates from cfssl and kubeconfigs from kubectl.
Once everything is ready you are dropped into a shell with KUBECONFIG
set, leaving that shell tears the whole cluster down again.`,
		Example: `> kubernix --nodes 3`,
		Version: "v0.1.0", // <---VERSION--->
		Run:     func(cmd *cobra.Command, args []string) { performUp(kubernixConfig) },
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := SetUpLogs(os.Stderr, logLevel, jsonLogs); err != nil {
			return err
		}
		config.StartPersistentPreRun(cmd, args)
		return nil
	}
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&cfgFile, options.Config, "", "config file (default is $HOME/.config/kubernix/kubernix.yaml or /etc/kubernix.d/kubernix.yaml)")
	flags.StringVarP(&logLevel, options.LogLevel, "v", log.InfoLevel.String(), "Log level (trace, debug, info, warn, error, fatal, panic)")
	flags.BoolVar(&jsonLogs, options.Json, false, "Log messages in JSON")
	config.ConfigureClusterCommand(flags, kubernixConfig)

	rootCmd.AddCommand(NewShellCmd(kubernixConfig))
	rootCmd.AddCommand(NewStatusCmd(kubernixConfig))

	return rootCmd
}

func performUp(kubernixConfig *v1alpha1.KubernixClusterSpec) {
	cobra.CheckErr(config.DecodeKubernixConfig(kubernixConfig))
	cluster := v1alpha1.NewKubernixCluster(*kubernixConfig)
	cobra.CheckErr(supervisor.New(cluster).Run(context.Background()))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigType("yaml")
		viper.SetConfigName("kubernix")
		viper.AddConfigPath("$HOME/.config/kubernix/")
		viper.AddConfigPath("/etc/kubernix.d/")
	}

	viper.AutomaticEnv() // read in environment variables that match
	viper.SetEnvPrefix("kubernix")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// SetUpLogs configures logrus and redirects the klog output of the
// Kubernetes client libraries to the debug level.
func SetUpLogs(out io.Writer, level string, json bool) error {
	log.SetOutput(out)
	if json {
		log.SetFormatter(&log.JSONFormatter{})
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return errors.Wrap(err, "parsing log level")
	}
	log.SetLevel(lvl)

	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	_ = klogFlags.Set("logtostderr", "false")
	klog.SetOutput(log.StandardLogger().WriterLevel(log.DebugLevel))
	return nil
}
