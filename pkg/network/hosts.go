package network

import (
	"net"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/txn2/txeh"
)

// EnsureNodeMappings adds the node names to /etc/hosts so that containers
// started with --net=host resolve each other. Existing mappings are kept.
func EnsureNodeMappings(ip net.IP, names []string) error {
	hosts, err := txeh.NewHosts(&txeh.HostsConfig{})
	if err != nil {
		return errors.Wrap(err, "While opening hosts file")
	}

	changed := false
	for _, name := range names {
		found, _, _ := hosts.HostAddressLookup(name, txeh.IPFamilyV4)
		if found {
			continue
		}
		log.WithFields(log.Fields{
			"name": name,
			"ip":   ip.String(),
		}).Info("Adding host mapping")
		hosts.AddHost(ip.String(), name)
		changed = true
	}
	if !changed {
		return nil
	}
	return errors.Wrap(hosts.Save(), "While saving hosts file")
}
