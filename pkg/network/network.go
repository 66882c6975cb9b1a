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

// Package network carves the cluster CIDR into the subnets used by the
// cluster components and checks the host routing table for overlaps.
package network

import (
	"encoding/binary"
	"net"

	kubernixapi "github.com/kubernix/kubernix/pkg/apis/kubernix"
)

// MaxPrefix is the longest usable prefix for the cluster CIDR. Longer
// prefixes leave no room for the service subnet at prefix+3.
const MaxPrefix = 24

// Layout is the subnet plan derived from the cluster CIDR. The crio subnet
// takes the first half, the pod cluster subnet the next quarter and the
// service subnet the following eighth. API and DNS are the first two
// usable addresses of the service subnet.
type Layout struct {
	Base    *net.IPNet
	Crio    *net.IPNet
	Cluster *net.IPNet
	Service *net.IPNet
	API     net.IP
	DNS     net.IP
}

func NewLayout(cidr string) (*Layout, error) {
	_, base, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, kubernixapi.Failuref(kubernixapi.Precondition, "invalid cluster CIDR %q: %v", cidr, err)
	}
	ip := base.IP.To4()
	if ip == nil {
		return nil, kubernixapi.Failuref(kubernixapi.Precondition, "cluster CIDR %q is not an IPv4 network", cidr)
	}
	ones, _ := base.Mask.Size()
	if ones > MaxPrefix {
		return nil, kubernixapi.Failuref(kubernixapi.Precondition,
			"cluster CIDR prefix /%d is too small, maximum is /%d", ones, MaxPrefix)
	}

	start := binary.BigEndian.Uint32(ip)
	size := uint32(1) << (32 - uint(ones))
	half := size / 2
	quarter := size / 4

	layout := &Layout{
		Base:    base,
		Crio:    subnet(start, ones+1),
		Cluster: subnet(start+half, ones+2),
		Service: subnet(start+half+quarter, ones+3),
	}
	layout.API = ipFrom(start + half + quarter + 1)
	layout.DNS = ipFrom(start + half + quarter + 2)
	return layout, nil
}

func ipFrom(v uint32) net.IP {
	ip := make(net.IP, net.IPv4len)
	binary.BigEndian.PutUint32(ip, v)
	return ip
}

func subnet(v uint32, ones int) *net.IPNet {
	return &net.IPNet{IP: ipFrom(v), Mask: net.CIDRMask(ones, 32)}
}
