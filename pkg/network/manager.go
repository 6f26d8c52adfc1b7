package network

import (
	"context"
	"fmt"
	"time"

	"github.com/recira/controller/pkg/dhcp"
	"github.com/recira/controller/pkg/util"
)

// Create groups at least two switches into a full-mesh VXLAN network.
// Per-pair tunnel failures are logged, not fatal — only the tunnels that
// succeed are recorded against the network.
func (m *Manager) Create(ctx context.Context, name string, switchIDs []int, v *int, subnet, gateway string) (*Network, error) {
	vb := &util.ValidationBuilder{}
	vb.Add(len(switchIDs) >= 2, "a network requires at least 2 switches")

	for _, id := range switchIDs {
		if _, _, err := m.registry.FindSwitch(id); err != nil {
			vb.AddErrorf("switch %d: %v", id, err)
		}
	}
	if vb.HasErrors() {
		return nil, vb.Build()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	vniVal, err := m.resolveVNI(v)
	if err != nil {
		return nil, err
	}

	net := &Network{
		ID:        m.nextID,
		Name:      name,
		VNI:       vniVal,
		Subnet:    subnet,
		Gateway:   gateway,
		SwitchIDs: append([]int(nil), switchIDs...),
		CreatedAt: time.Now(),
	}

	for i := 0; i < len(switchIDs); i++ {
		for j := i + 1; j < len(switchIDs); j++ {
			// vniVal is already reserved above, once, for the whole mesh —
			// CreateLockedWithReservedVNI takes its own hold per tunnel
			// instead of re-reserving (which would reject every pair after
			// the first, since the VNI is already in use by this network).
			tun, err := m.tunnels.CreateLockedWithReservedVNI(ctx, switchIDs[i], switchIDs[j], vniVal)
			if err != nil {
				util.WithOperation("network.create").Warnf(
					"tunnel between switches %d and %d for network %q failed: %v",
					switchIDs[i], switchIDs[j], name, err)
				continue
			}
			net.TunnelIDs = append(net.TunnelIDs, tun.ID)
		}
	}

	m.networks[net.ID] = net
	m.nextID++

	if err := m.saveLocked(); err != nil {
		util.Errorf("persisting networks: %v", err)
	}
	return cloneNetwork(net), nil
}

func (m *Manager) resolveVNI(v *int) (int, error) {
	if v == nil {
		return m.alloc.Allocate(), nil
	}
	if m.alloc.InUse(*v) {
		return 0, fmt.Errorf("VNI %d already in use", *v)
	}
	if err := m.alloc.Reserve(*v); err != nil {
		return 0, err
	}
	return *v, nil
}

// Delete disables DHCP if enabled, best-effort-deletes every tunnel in the
// network, then removes the record.
func (m *Manager) Delete(ctx context.Context, networkID int) error {
	m.mu.Lock()
	net, ok := m.networks[networkID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("network %d: %w", networkID, util.ErrNotFound)
	}
	tunnelIDs := append([]int(nil), net.TunnelIDs...)
	vni := net.VNI
	m.mu.Unlock()

	if m.dhcp != nil {
		if err := m.dhcp.Disable(ctx, networkID); err != nil {
			util.WithOperation("network.delete").Warnf("disabling DHCP for network %d: %v", networkID, err)
		}
	}

	for _, tid := range tunnelIDs {
		if err := m.tunnels.Delete(ctx, tid); err != nil {
			util.WithOperation("network.delete").Warnf("deleting tunnel %d for network %d: %v", tid, networkID, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Every tunnel above already dropped its own hold via tunnel.Manager's
	// Delete; this drops the network's own reservation, the last reference.
	m.alloc.Release(vni)
	delete(m.networks, networkID)
	return m.saveLocked()
}

// AddSwitch joins switchID to an existing network, connecting it to every
// current member.
func (m *Manager) AddSwitch(ctx context.Context, networkID, switchID int) error {
	m.mu.Lock()
	net, ok := m.networks[networkID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("network %d: %w", networkID, util.ErrNotFound)
	}
	for _, id := range net.SwitchIDs {
		if id == switchID {
			m.mu.Unlock()
			return util.NewValidationError(fmt.Sprintf("switch %d is already a member of network %d", switchID, networkID))
		}
	}
	if _, _, err := m.registry.FindSwitch(switchID); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("switch %d: %w", switchID, err)
	}
	existing := append([]int(nil), net.SwitchIDs...)
	vni := net.VNI
	m.mu.Unlock()

	var newTunnels []int
	for _, memberID := range existing {
		// vni is the network's own reservation, already held — see the
		// comment in Create for why this must not re-reserve it.
		tun, err := m.tunnels.CreateWithReservedVNI(ctx, switchID, memberID, vni)
		if err != nil {
			util.WithOperation("network.addswitch").Warnf(
				"tunnel between new switch %d and member %d failed: %v", switchID, memberID, err)
			continue
		}
		newTunnels = append(newTunnels, tun.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	net.SwitchIDs = append(net.SwitchIDs, switchID)
	net.TunnelIDs = append(net.TunnelIDs, newTunnels...)
	return m.saveLocked()
}

// Get returns a copy of a network record.
func (m *Manager) Get(id int) (*Network, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	net, ok := m.networks[id]
	if !ok {
		return nil, fmt.Errorf("network %d: %w", id, util.ErrNotFound)
	}
	return cloneNetwork(net), nil
}

// List returns a snapshot of every network.
func (m *Manager) List() []*Network {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Network, 0, len(m.networks))
	for _, net := range m.networks {
		out = append(out, cloneNetwork(net))
	}
	return out
}

// LookupNetwork implements dhcp.NetworkLookup. It acquires the shared
// mutex itself — callers that already hold it (because they share the
// same mutex pointer) must use LookupNetworkLocked instead.
func (m *Manager) LookupNetwork(id int) (dhcp.NetworkInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LookupNetworkLocked(id)
}

// LookupNetworkLocked is LookupNetwork's body without acquiring the shared
// mutex, for the DHCP manager, which takes the same shared lock itself
// before reading a Network record so its operation sees a consistent view
// even if a concurrent Delete is in flight.
func (m *Manager) LookupNetworkLocked(id int) (dhcp.NetworkInfo, error) {
	net, ok := m.networks[id]
	if !ok {
		return dhcp.NetworkInfo{}, fmt.Errorf("network %d: %w", id, util.ErrNotFound)
	}
	return dhcp.NetworkInfo{
		ID:        net.ID,
		Name:      net.Name,
		VNI:       net.VNI,
		Subnet:    net.Subnet,
		Gateway:   net.Gateway,
		SwitchIDs: append([]int(nil), net.SwitchIDs...),
	}, nil
}

func cloneNetwork(n *Network) *Network {
	cp := *n
	cp.SwitchIDs = append([]int(nil), n.SwitchIDs...)
	cp.TunnelIDs = append([]int(nil), n.TunnelIDs...)
	return &cp
}
