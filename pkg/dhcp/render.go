package dhcp

import (
	"fmt"
	"strings"
)

// renderConfig produces the dnsmasq fragment for a network's DHCP service,
// in the stanza order dnsmasq.d conventionally uses: interface binding,
// the DHCP range, router/DNS options, the lease file, logging toggles,
// upstream DNS servers, then static reservations.
func renderConfig(networkID, vni int, c *Config) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Recira DHCP configuration for network %d (VNI %d)\n", networkID, vni)
	b.WriteString("# Auto-generated - do not edit manually\n\n")

	b.WriteString("# Listen only on the overlay interface\n")
	fmt.Fprintf(&b, "interface=%s\n", c.PortName)
	b.WriteString("bind-interfaces\n\n")

	b.WriteString("# DHCP range\n")
	fmt.Fprintf(&b, "dhcp-range=%s,%s,%s,%s\n\n", c.DHCPStart, c.DHCPEnd, c.Netmask, c.LeaseTime)

	b.WriteString("# Gateway\n")
	fmt.Fprintf(&b, "dhcp-option=option:router,%s\n\n", c.Gateway)

	b.WriteString("# DNS servers\n")
	fmt.Fprintf(&b, "dhcp-option=option:dns-server,%s\n\n", strings.Join(c.DNSServers, ","))

	b.WriteString("# Lease file\n")
	fmt.Fprintf(&b, "dhcp-leasefile=/var/lib/misc/dnsmasq-recira-%d.leases\n\n", networkID)

	b.WriteString("# Log DHCP transactions\n")
	b.WriteString("log-dhcp\n\n")

	b.WriteString("# Don't use /etc/hosts\n")
	b.WriteString("no-hosts\n\n")

	b.WriteString("# Don't read /etc/resolv.conf\n")
	b.WriteString("no-resolv\n\n")

	b.WriteString("# Upstream DNS\n")
	for _, dns := range c.DNSServers {
		fmt.Fprintf(&b, "server=%s\n", dns)
	}

	if len(c.Reservations) > 0 {
		b.WriteString("\n# Static DHCP reservations\n")
		for _, r := range c.Reservations {
			if r.Hostname != "" {
				fmt.Fprintf(&b, "dhcp-host=%s,%s,%s\n", r.MAC, r.IP, r.Hostname)
			} else {
				fmt.Fprintf(&b, "dhcp-host=%s,%s\n", r.MAC, r.IP)
			}
		}
	}

	return b.String()
}

func normalizeMAC(mac string) string {
	return strings.ToLower(strings.ReplaceAll(mac, "-", ":"))
}

func configPath(networkID int) string {
	return fmt.Sprintf("/etc/dnsmasq.d/recira-network-%d.conf", networkID)
}

func portNameForVNI(vni int) string {
	return fmt.Sprintf("vni%d-gw", vni)
}

func leaseFilePath(networkID int) string {
	return fmt.Sprintf("/var/lib/misc/dnsmasq-recira-%d.leases", networkID)
}
