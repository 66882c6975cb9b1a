package config_test

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubernix/kubernix/pkg/apis/kubernix/v1alpha1"
	"github.com/kubernix/kubernix/pkg/config"
)

func TestDecodeKubernixConfig(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set(config.Root, "/var/cluster")
	viper.Set(config.Cidr, "10.20.0.0/16")
	viper.Set(config.Nodes, "4")
	viper.Set(config.ContainerRuntime, "docker")
	viper.Set(config.Packages, "helm,sonobuoy")
	viper.Set(config.NoShell, "true")

	kubernixConfig := &v1alpha1.KubernixClusterSpec{}
	v1alpha1.SetDefaults_KubernixClusterSpec(kubernixConfig)
	require.NoError(t, config.DecodeKubernixConfig(kubernixConfig))

	assert.Equal(t, "/var/cluster", kubernixConfig.Root)
	assert.Equal(t, "10.20.0.0/16", kubernixConfig.Cidr)
	assert.Equal(t, uint8(4), kubernixConfig.Nodes)
	assert.Equal(t, "docker", kubernixConfig.ContainerRuntime)
	assert.Equal(t, []string{"helm", "sonobuoy"}, kubernixConfig.Packages)
	assert.True(t, kubernixConfig.NoShell)
}

func TestDecodeKeepsDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set(config.Nodes, 2)

	kubernixConfig := &v1alpha1.KubernixClusterSpec{}
	v1alpha1.SetDefaults_KubernixClusterSpec(kubernixConfig)
	require.NoError(t, config.DecodeKubernixConfig(kubernixConfig))

	assert.Equal(t, "kubernix-run", kubernixConfig.Root)
	assert.Equal(t, "10.10.0.0/16", kubernixConfig.Cidr)
	assert.Equal(t, uint8(2), kubernixConfig.Nodes)
	assert.True(t, kubernixConfig.MultiNode())
}
