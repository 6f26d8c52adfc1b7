package dhcp

import (
	"strconv"
	"strings"
	"time"
)

// parseLeases parses dnsmasq's lease file format: one lease per line,
// "expiry mac ip hostname [client-id]". hostname "*" means unset.
func parseLeases(content string) []Lease {
	var leases []Lease

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		expiry, _ := strconv.ParseInt(fields[0], 10, 64)
		hostname := fields[3]
		if hostname == "*" {
			hostname = ""
		}

		lease := Lease{
			ExpiryUnix: expiry,
			MAC:        fields[1],
			IP:         fields[2],
			Hostname:   hostname,
		}
		if len(fields) >= 5 {
			lease.ClientID = fields[4]
		}

		if expiry > 0 {
			lease.ExpiresAt = time.Unix(expiry, 0).UTC().Format(time.RFC3339)
		} else {
			lease.ExpiresAt = "infinite"
		}

		leases = append(leases, lease)
	}

	return leases
}
