package network_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kubernixapi "github.com/kubernix/kubernix/pkg/apis/kubernix"
	"github.com/kubernix/kubernix/pkg/network"
)

func TestNewLayout(t *testing.T) {
	tests := []struct {
		cidr    string
		crio    string
		cluster string
		service string
		api     string
		dns     string
	}{
		{
			cidr:    "10.10.0.0/16",
			crio:    "10.10.0.0/17",
			cluster: "10.10.128.0/18",
			service: "10.10.192.0/19",
			api:     "10.10.192.1",
			dns:     "10.10.192.2",
		},
		{
			cidr:    "192.168.16.0/20",
			crio:    "192.168.16.0/21",
			cluster: "192.168.24.0/22",
			service: "192.168.28.0/23",
			api:     "192.168.28.1",
			dns:     "192.168.28.2",
		},
		{
			cidr:    "172.16.4.0/24",
			crio:    "172.16.4.0/25",
			cluster: "172.16.4.128/26",
			service: "172.16.4.192/27",
			api:     "172.16.4.193",
			dns:     "172.16.4.194",
		},
	}

	for _, test := range tests {
		t.Run(test.cidr, func(t *testing.T) {
			layout, err := network.NewLayout(test.cidr)
			require.NoError(t, err)
			assert.Equal(t, test.cidr, layout.Base.String())
			assert.Equal(t, test.crio, layout.Crio.String())
			assert.Equal(t, test.cluster, layout.Cluster.String())
			assert.Equal(t, test.service, layout.Service.String())
			assert.Equal(t, test.api, layout.API.String())
			assert.Equal(t, test.dns, layout.DNS.String())
		})
	}
}

func TestNewLayoutRejects(t *testing.T) {
	tests := []struct {
		name string
		cidr string
	}{
		{name: "garbage", cidr: "not-a-cidr"},
		{name: "too small", cidr: "10.10.0.0/25"},
		{name: "ipv6", cidr: "fd00::/64"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := network.NewLayout(test.cidr)
			require.Error(t, err)
			assert.True(t, kubernixapi.IsKind(err, kubernixapi.Precondition))
		})
	}
}
