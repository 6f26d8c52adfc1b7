package dhcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/recira/controller/pkg/executor"
	"github.com/recira/controller/pkg/hostregistry"
	"github.com/recira/controller/pkg/util"
)

const defaultTimeout = 60 * time.Second

var defaultDNSServers = []string{"8.8.8.8", "8.8.4.4"}

// Enable turns up dnsmasq on the switch hostAddr belongs to within
// network networkID, serving the given DHCP range. Calling Enable again
// with the same arguments is idempotent: it rewrites the config and
// restarts dnsmasq, but reuses the existing gateway port.
func (m *Manager) Enable(ctx context.Context, networkID int, hostAddr, dhcpStart, dhcpEnd string, dnsServers []string, leaseTime string) (*Config, error) {
	m.netMu.Lock()
	net, err := m.networks.LookupNetworkLocked(networkID)
	m.netMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("enabling DHCP for network %d: %w", networkID, err)
	}
	if net.Gateway == "" {
		return nil, util.NewValidationError("network must have a gateway configured")
	}
	if net.Subnet == "" {
		return nil, util.NewValidationError("network must have a subnet configured")
	}

	netmask := "255.255.255.0"
	prefix := 24
	if p, err := parsePrefix(net.Subnet); err == nil {
		if nm, err := util.NetmaskForPrefix(p); err == nil {
			netmask = nm
			prefix = p
		}
	}

	bridge, host, err := m.findMemberBridge(hostAddr, net.SwitchIDs)
	if err != nil {
		return nil, fmt.Errorf("enabling DHCP for network %d: %w", networkID, err)
	}

	if leaseTime == "" {
		leaseTime = "24h"
	}
	if len(dnsServers) == 0 {
		dnsServers = defaultDNSServers
	}

	target := hostregistry.Target(host)

	if err := m.ensureDnsmasqInstalled(ctx, target); err != nil {
		return nil, fmt.Errorf("installing dnsmasq on %s: %w", host.Hostname, err)
	}

	portName := portNameForVNI(net.VNI)
	if err := m.createGatewayPort(ctx, target, bridge, portName, net.Gateway, prefix); err != nil {
		return nil, fmt.Errorf("creating gateway port on %s: %w", host.Hostname, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cfg := &Config{
		NetworkID:  networkID,
		HostAddr:   hostAddr,
		Bridge:     bridge,
		PortName:   portName,
		Gateway:    net.Gateway,
		DHCPStart:  dhcpStart,
		DHCPEnd:    dhcpEnd,
		Netmask:    netmask,
		LeaseTime:  leaseTime,
		DNSServers: dnsServers,
		ConfigPath: configPath(networkID),
	}
	if existing, ok := m.configs[networkID]; ok {
		cfg.Reservations = existing.Reservations
	}

	if err := m.writeAndRestart(ctx, target, net.VNI, cfg); err != nil {
		return nil, err
	}

	m.configs[networkID] = cfg
	if err := m.saveLocked(); err != nil {
		util.Errorf("persisting DHCP config: %v", err)
	}

	util.WithOperation("dhcp.enable").Infof("DHCP enabled for network %d on %s", networkID, hostAddr)
	return cloneConfig(cfg), nil
}

// GetConfig returns the stored DHCP config for a network, if enabled.
func (m *Manager) GetConfig(networkID int) (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.configs[networkID]
	if !ok {
		return nil, fmt.Errorf("DHCP not enabled for network %d: %w", networkID, util.ErrNotFound)
	}
	return cloneConfig(cfg), nil
}

// IsEnabled reports whether DHCP is currently configured for a network.
// Purely in-memory; issues no remote commands.
func (m *Manager) IsEnabled(networkID int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.configs[networkID]
	return ok
}

// Disable tears down DHCP for a network: removes the config file, restarts
// dnsmasq, deletes the gateway port, and drops the stored config.
func (m *Manager) Disable(ctx context.Context, networkID int) error {
	m.mu.Lock()
	cfg, ok := m.configs[networkID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("DHCP not enabled for network %d: %w", networkID, util.ErrNotFound)
	}

	host, ok := m.registry.FindHostByAddr(cfg.HostAddr)
	if ok {
		target := hostregistry.Target(host)
		m.exec.Execute(ctx, target, fmt.Sprintf("rm -f %s", cfg.ConfigPath), defaultTimeout)
		m.exec.Execute(ctx, target, "systemctl restart dnsmasq", defaultTimeout)
		m.exec.Execute(ctx, target, fmt.Sprintf("ovs-vsctl del-port %s %s", cfg.Bridge, cfg.PortName), defaultTimeout)
	} else {
		util.WithOperation("dhcp.disable").Warnf("host %s for network %d is gone; dropping DHCP record without cleanup", cfg.HostAddr, networkID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.configs, networkID)
	return m.saveLocked()
}

// AddReservation adds or replaces a MAC -> IP reservation and reconfigures
// the running dnsmasq instance.
func (m *Manager) AddReservation(ctx context.Context, networkID int, mac, ip, hostname string) error {
	mac = normalizeMAC(mac)

	m.mu.Lock()
	cfg, ok := m.configs[networkID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("DHCP not enabled for network %d: %w", networkID, util.ErrNotFound)
	}

	replaced := false
	for i := range cfg.Reservations {
		if cfg.Reservations[i].MAC == mac {
			cfg.Reservations[i].IP = ip
			cfg.Reservations[i].Hostname = hostname
			replaced = true
			break
		}
	}
	if !replaced {
		cfg.Reservations = append(cfg.Reservations, Reservation{MAC: mac, IP: ip, Hostname: hostname})
	}
	m.mu.Unlock()

	return m.reconfigure(ctx, networkID)
}

// RemoveReservation drops a reservation by MAC and reconfigures dnsmasq.
func (m *Manager) RemoveReservation(ctx context.Context, networkID int, mac string) error {
	mac = normalizeMAC(mac)

	m.mu.Lock()
	cfg, ok := m.configs[networkID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("DHCP not enabled for network %d: %w", networkID, util.ErrNotFound)
	}

	kept := cfg.Reservations[:0]
	found := false
	for _, r := range cfg.Reservations {
		if r.MAC == mac {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	cfg.Reservations = kept
	m.mu.Unlock()

	if !found {
		return fmt.Errorf("reservation %s: %w", mac, util.ErrNotFound)
	}
	return m.reconfigure(ctx, networkID)
}

func (m *Manager) reconfigure(ctx context.Context, networkID int) error {
	m.mu.Lock()
	cfg, ok := m.configs[networkID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("DHCP not enabled for network %d: %w", networkID, util.ErrNotFound)
	}
	host, hostOK := m.registry.FindHostByAddr(cfg.HostAddr)
	m.mu.Unlock()

	m.netMu.Lock()
	vni := 0
	if net, err := m.networks.LookupNetworkLocked(networkID); err == nil {
		vni = net.VNI
	}
	m.netMu.Unlock()

	if hostOK {
		if err := m.writeAndRestart(ctx, hostregistry.Target(host), vni, cfg); err != nil {
			util.WithOperation("dhcp.reconfigure").Warnf("failed to push updated config for network %d: %v", networkID, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

// ListLeases reads and parses the dnsmasq lease file for a network.
func (m *Manager) ListLeases(ctx context.Context, networkID int) ([]Lease, error) {
	m.mu.Lock()
	cfg, ok := m.configs[networkID]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("DHCP not enabled for network %d: %w", networkID, util.ErrNotFound)
	}

	host, ok := m.registry.FindHostByAddr(cfg.HostAddr)
	if !ok {
		return nil, fmt.Errorf("host %s for network %d: %w", cfg.HostAddr, networkID, util.NewUnreachableError(cfg.HostAddr, "host no longer registered", false))
	}

	res, err := m.exec.Execute(ctx, hostregistry.Target(host), fmt.Sprintf("cat %s 2>/dev/null || true", leaseFilePath(networkID)), defaultTimeout)
	if err != nil {
		return nil, err
	}
	return parseLeases(res.Stdout), nil
}

func (m *Manager) ensureDnsmasqInstalled(ctx context.Context, target executor.Target) error {
	res, err := m.exec.Execute(ctx, target, "which dnsmasq", defaultTimeout)
	if err == nil && res.ExitCode == 0 {
		return nil
	}

	osRel, err := m.exec.Execute(ctx, target, "cat /etc/os-release", defaultTimeout)
	if err != nil || osRel.ExitCode != 0 {
		return fmt.Errorf("detecting OS family")
	}
	family, _ := hostregistry.ParseOSRelease(osRel.Stdout)

	var installCmd string
	switch family {
	case "debian":
		installCmd = "DEBIAN_FRONTEND=noninteractive apt-get install -y dnsmasq"
	case "rhel":
		installCmd = "yum install -y dnsmasq"
	default:
		return fmt.Errorf("unsupported OS family %q for dnsmasq install", family)
	}

	res, err = m.exec.Execute(ctx, target, installCmd, 300*time.Second)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%s: %s", installCmd, res.Stderr)
	}
	return nil
}

func (m *Manager) createGatewayPort(ctx context.Context, target executor.Target, bridge, port, gateway string, prefix int) error {
	check, err := m.exec.Execute(ctx, target, fmt.Sprintf("ovs-vsctl list-ports %s | grep -w %s", bridge, port), defaultTimeout)
	if err != nil {
		return err
	}
	if check.ExitCode != 0 || !strings.Contains(check.Stdout, port) {
		res, err := m.exec.Execute(ctx, target,
			fmt.Sprintf("ovs-vsctl add-port %s %s -- set interface %s type=internal", bridge, port, port),
			defaultTimeout)
		if err != nil {
			return err
		}
		if res.ExitCode != 0 {
			return fmt.Errorf("creating port %s: %s", port, res.Stderr)
		}
	}

	m.exec.Execute(ctx, target, fmt.Sprintf("ip addr add %s/%d dev %s 2>/dev/null || true", gateway, prefix, port), defaultTimeout)

	res, err := m.exec.Execute(ctx, target, fmt.Sprintf("ip link set %s up", port), defaultTimeout)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("bringing up %s: %s", port, res.Stderr)
	}
	return nil
}

func (m *Manager) writeAndRestart(ctx context.Context, target executor.Target, vni int, cfg *Config) error {
	content := renderConfig(cfg.NetworkID, vni, cfg)

	mkdir, err := m.exec.Execute(ctx, target, "mkdir -p /etc/dnsmasq.d /var/lib/misc", defaultTimeout)
	if err != nil {
		return err
	}
	if mkdir.ExitCode != 0 {
		return fmt.Errorf("preparing dnsmasq directories: %s", mkdir.Stderr)
	}

	write, err := m.exec.ExecuteWithStdin(ctx, target, fmt.Sprintf("tee %s > /dev/null", cfg.ConfigPath), content, defaultTimeout)
	if err != nil {
		return err
	}
	if write.ExitCode != 0 {
		return fmt.Errorf("writing %s: %s", cfg.ConfigPath, write.Stderr)
	}

	restart, err := m.exec.Execute(ctx, target, "systemctl restart dnsmasq", defaultTimeout)
	if err != nil {
		return err
	}
	if restart.ExitCode != 0 {
		start, err := m.exec.Execute(ctx, target, "systemctl start dnsmasq", defaultTimeout)
		if err != nil {
			return err
		}
		if start.ExitCode != 0 {
			return fmt.Errorf("starting dnsmasq: %s", start.Stderr)
		}
	}
	m.exec.Execute(ctx, target, "systemctl enable dnsmasq", defaultTimeout)
	return nil
}

func (m *Manager) findMemberBridge(hostAddr string, switchIDs []int) (string, *hostregistry.Host, error) {
	host, ok := m.registry.FindHostByAddr(hostAddr)
	if !ok {
		return "", nil, fmt.Errorf("host %s: %w", hostAddr, util.NewUnreachableError(hostAddr, "host not registered", false))
	}

	member := make(map[int]bool, len(switchIDs))
	for _, id := range switchIDs {
		member[id] = true
	}

	for _, sw := range m.registry.ListSwitches() {
		if sw.HostID == host.ID && member[sw.ID] {
			return sw.Name, host, nil
		}
	}
	return "", nil, fmt.Errorf("no switch on host %s belongs to this network", hostAddr)
}

func parsePrefix(subnet string) (int, error) {
	parts := strings.Split(subnet, "/")
	if len(parts) != 2 {
		return 0, fmt.Errorf("subnet %q has no prefix", subnet)
	}
	var p int
	if _, err := fmt.Sscanf(parts[1], "%d", &p); err != nil {
		return 0, err
	}
	return p, nil
}

func cloneConfig(c *Config) *Config {
	cp := *c
	cp.DNSServers = append([]string(nil), c.DNSServers...)
	cp.Reservations = append([]Reservation(nil), c.Reservations...)
	return &cp
}
