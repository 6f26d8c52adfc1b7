package dhcp

import (
	"strings"
	"testing"
)

func TestRenderConfig_StanzaOrderAndReservations(t *testing.T) {
	cfg := &Config{
		PortName:   "vni100-gw",
		DHCPStart:  "10.0.1.10",
		DHCPEnd:    "10.0.1.250",
		Netmask:    "255.255.255.0",
		LeaseTime:  "24h",
		Gateway:    "10.0.1.1",
		DNSServers: []string{"8.8.8.8", "8.8.4.4"},
		Reservations: []Reservation{
			{MAC: "aa:bb:cc:dd:ee:ff", IP: "10.0.1.50", Hostname: "printer"},
			{MAC: "11:22:33:44:55:66", IP: "10.0.1.51"},
		},
	}

	out := renderConfig(1, 100, cfg)

	mustContainInOrder(t, out,
		"interface=vni100-gw",
		"bind-interfaces",
		"dhcp-range=10.0.1.10,10.0.1.250,255.255.255.0,24h",
		"dhcp-option=option:router,10.0.1.1",
		"dhcp-option=option:dns-server,8.8.8.8,8.8.4.4",
		"dhcp-leasefile=/var/lib/misc/dnsmasq-recira-1.leases",
		"log-dhcp",
		"no-hosts",
		"no-resolv",
		"server=8.8.8.8",
		"server=8.8.4.4",
		"dhcp-host=aa:bb:cc:dd:ee:ff,10.0.1.50,printer",
		"dhcp-host=11:22:33:44:55:66,10.0.1.51",
	)
}

func TestRenderConfig_NoReservations(t *testing.T) {
	cfg := &Config{PortName: "vni1-gw", DHCPStart: "a", DHCPEnd: "b", Netmask: "n", LeaseTime: "24h", Gateway: "g", DNSServers: []string{"8.8.8.8"}}
	out := renderConfig(1, 1, cfg)
	if strings.Contains(out, "dhcp-host=") {
		t.Error("expected no dhcp-host lines without reservations")
	}
}

func mustContainInOrder(t *testing.T, haystack string, needles ...string) {
	t.Helper()
	pos := 0
	for _, n := range needles {
		idx := strings.Index(haystack[pos:], n)
		if idx == -1 {
			t.Fatalf("expected %q to appear after position %d in:\n%s", n, pos, haystack)
		}
		pos += idx + len(n)
	}
}

func TestNormalizeMAC(t *testing.T) {
	tests := map[string]string{
		"AA-BB-CC-DD-EE-FF": "aa:bb:cc:dd:ee:ff",
		"aa:bb:cc:dd:ee:ff": "aa:bb:cc:dd:ee:ff",
	}
	for in, want := range tests {
		if got := normalizeMAC(in); got != want {
			t.Errorf("normalizeMAC(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParsePrefix(t *testing.T) {
	p, err := parsePrefix("10.0.1.0/24")
	if err != nil || p != 24 {
		t.Fatalf("parsePrefix() = (%d, %v), want (24, nil)", p, err)
	}
	if _, err := parsePrefix("no-slash"); err == nil {
		t.Error("expected error for subnet without a prefix")
	}
}

func TestParseLeases(t *testing.T) {
	content := "1750000000 aa:bb:cc:dd:ee:ff 10.0.1.50 myhost 01:aa:bb:cc:dd:ee:ff\n0 11:22:33:44:55:66 10.0.1.51 * \n\n"
	leases := parseLeases(content)
	if len(leases) != 2 {
		t.Fatalf("parseLeases() returned %d leases, want 2", len(leases))
	}
	if leases[0].Hostname != "myhost" || leases[0].ClientID == "" {
		t.Errorf("unexpected lease 0: %+v", leases[0])
	}
	if leases[1].Hostname != "" || leases[1].ExpiresAt != "infinite" {
		t.Errorf("unexpected lease 1: %+v", leases[1])
	}
}

func TestConfigPathAndPortName(t *testing.T) {
	if got := configPath(7); got != "/etc/dnsmasq.d/recira-network-7.conf" {
		t.Errorf("configPath(7) = %q", got)
	}
	if got := portNameForVNI(500); got != "vni500-gw" {
		t.Errorf("portNameForVNI(500) = %q", got)
	}
}
