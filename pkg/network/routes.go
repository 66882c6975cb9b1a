package network

import (
	"net"
	"strings"

	"github.com/bitfield/script"
	log "github.com/sirupsen/logrus"

	"github.com/kubernix/kubernix/pkg/constants"
	"github.com/kubernix/kubernix/pkg/utils"
)

// WarnOnConflictingRoutes scans the host routing table and warns about
// routes that cover the cluster CIDR. Such routes usually belong to a
// previous run or to another network using the same range. The scan never
// fails the bootstrap, traffic may still work if the route is more
// specific than it looks.
func WarnOnConflictingRoutes(base *net.IPNet) error {
	out, err := utils.Exec.Run(false, constants.IpCmd, "route", "show")
	if err != nil {
		return err
	}

	baseOnes, _ := base.Mask.Size()
	p := script.Echo(string(out)).FilterLine(func(line string) string {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			return line
		}
		_, route, err := net.ParseCIDR(fields[0])
		if err != nil {
			return line
		}
		iface := ""
		for i, field := range fields {
			if field == "dev" && i+1 < len(fields) {
				iface = fields[i+1]
			}
		}
		if iface == constants.BridgeName {
			return line
		}
		routeOnes, _ := route.Mask.Size()
		if route.Contains(base.IP) && routeOnes <= baseOnes {
			log.WithFields(log.Fields{
				"route":     route.String(),
				"interface": iface,
				"cidr":      base.String(),
			}).Warn("Existing route overlaps the cluster CIDR")
		}
		return line
	})
	p.Wait()
	return nil
}
