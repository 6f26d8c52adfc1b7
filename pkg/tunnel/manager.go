package tunnel

import (
	"context"
	"fmt"

	"github.com/recira/controller/pkg/executor"
	"github.com/recira/controller/pkg/hostregistry"
	"github.com/recira/controller/pkg/util"
)

func portName(v int, peerOverlayIP string) string {
	octet, err := util.LastOctet(peerOverlayIP)
	if err != nil {
		return fmt.Sprintf("vxlan%d_%s", v, peerOverlayIP)
	}
	return fmt.Sprintf("vxlan%d_%d", v, octet)
}

// Create establishes a VXLAN tunnel between two switches. vni may be nil to
// auto-allocate. Same-host src/dst is rejected. Acquires the shared mutex.
func (m *Manager) Create(ctx context.Context, srcSwitchID, dstSwitchID int, v *int) (*Tunnel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CreateLocked(ctx, srcSwitchID, dstSwitchID, v)
}

// CreateLocked is Create's body without acquiring the shared mutex. It
// exists for callers — the network manager's full-mesh provisioning — that
// already hold the mutex across a batch of tunnel creations.
func (m *Manager) CreateLocked(ctx context.Context, srcSwitchID, dstSwitchID int, v *int) (*Tunnel, error) {
	vniVal, err := m.resolveVNI(v)
	if err != nil {
		return nil, err
	}
	t, err := m.createTunnelLocked(ctx, srcSwitchID, dstSwitchID, vniVal)
	if err != nil {
		// The reservation resolveVNI just took is otherwise never released:
		// nothing ended up using it.
		m.alloc.Release(vniVal)
		return nil, err
	}
	return t, nil
}

// CreateWithReservedVNI is like Create, but vni has already been reserved
// by the caller (the network manager, once, for its whole mesh) — it takes
// its own hold on vni rather than reserving it fresh, so a later Delete of
// just this tunnel doesn't free a VNI still held by the network or its
// sibling tunnels. Acquires the shared mutex.
func (m *Manager) CreateWithReservedVNI(ctx context.Context, srcSwitchID, dstSwitchID, vni int) (*Tunnel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CreateLockedWithReservedVNI(ctx, srcSwitchID, dstSwitchID, vni)
}

// CreateLockedWithReservedVNI is CreateWithReservedVNI's body without
// acquiring the shared mutex, for callers (the network manager's full-mesh
// provisioning) that already hold it.
func (m *Manager) CreateLockedWithReservedVNI(ctx context.Context, srcSwitchID, dstSwitchID, vni int) (*Tunnel, error) {
	t, err := m.createTunnelLocked(ctx, srcSwitchID, dstSwitchID, vni)
	if err != nil {
		return nil, err
	}
	m.alloc.Hold(vni)
	return t, nil
}

func (m *Manager) createTunnelLocked(ctx context.Context, srcSwitchID, dstSwitchID, vniVal int) (*Tunnel, error) {
	srcSwitch, srcHost, err := m.registry.FindSwitch(srcSwitchID)
	if err != nil {
		return nil, fmt.Errorf("resolving source switch %d: %w", srcSwitchID, err)
	}
	dstSwitch, dstHost, err := m.registry.FindSwitch(dstSwitchID)
	if err != nil {
		return nil, fmt.Errorf("resolving destination switch %d: %w", dstSwitchID, err)
	}

	if srcSwitch.HostID == dstSwitch.HostID {
		return nil, util.NewValidationError(
			fmt.Sprintf("switches %d and %d are on the same host; tunnels require distinct hosts", srcSwitchID, dstSwitchID))
	}

	srcPort := portName(vniVal, dstSwitch.HostAddr)
	dstPort := portName(vniVal, srcSwitch.HostAddr)

	if err := m.addPort(ctx, srcHost, srcSwitch.Name, srcPort, dstSwitch.HostAddr, vniVal); err != nil {
		return nil, fmt.Errorf("creating tunnel port on %s: %w", srcHost.Hostname, err)
	}

	if err := m.addPort(ctx, dstHost, dstSwitch.Name, dstPort, srcSwitch.HostAddr, vniVal); err != nil {
		if delErr := m.delPort(ctx, srcHost, srcSwitch.Name, srcPort); delErr != nil {
			util.WithOperation("tunnel.create").Warnf("rollback of %s on %s failed: %v", srcPort, srcHost.Hostname, delErr)
		}
		return nil, fmt.Errorf("creating tunnel port on %s: %w", dstHost.Hostname, err)
	}

	t := &Tunnel{
		ID:           m.nextID,
		SrcSwitchID:  srcSwitchID,
		DstSwitchID:  dstSwitchID,
		VNI:          vniVal,
		SrcOverlayIP: srcSwitch.HostAddr,
		DstOverlayIP: dstSwitch.HostAddr,
		SrcPortName:  srcPort,
		DstPortName:  dstPort,
		Status:       StatusUp,
	}
	m.tunnels[t.ID] = t
	m.nextID++

	if err := m.saveLocked(); err != nil {
		util.Errorf("persisting tunnels: %v", err)
	}
	return cloneTunnel(t), nil
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

func (m *Manager) addPort(ctx context.Context, host *hostregistry.Host, bridge, port, remoteIP string, v int) error {
	cmd := fmt.Sprintf(
		"ovs-vsctl add-port %s %s -- set interface %s type=vxlan options:remote_ip=%s options:key=%d",
		bridge, port, port, remoteIP, v)
	res, err := m.exec.Execute(ctx, hostregistry.Target(host), cmd, m.timeout)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%s: %s", cmd, res.Stderr)
	}
	return nil
}

func (m *Manager) delPort(ctx context.Context, host *hostregistry.Host, bridge, port string) error {
	cmd := fmt.Sprintf("ovs-vsctl del-port %s %s", bridge, port)
	res, err := m.exec.Execute(ctx, hostregistry.Target(host), cmd, m.timeout)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%s: %s", cmd, res.Stderr)
	}
	return nil
}

// Delete removes a tunnel. If an endpoint host is unreachable or no longer
// registered, the failure is logged but the tunnel record is still removed
// — dangling OVS state is the lesser evil versus an untrackable tunnel.
func (m *Manager) Delete(ctx context.Context, tunnelID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tunnels[tunnelID]
	if !ok {
		return fmt.Errorf("tunnel %d: %w", tunnelID, util.ErrNotFound)
	}

	if srcSwitch, srcHost, err := m.registry.FindSwitch(t.SrcSwitchID); err == nil {
		if err := m.delPort(ctx, srcHost, srcSwitch.Name, t.SrcPortName); err != nil {
			util.WithOperation("tunnel.delete").Warnf("failed to delete %s on %s: %v", t.SrcPortName, srcHost.Hostname, err)
		}
	} else {
		util.WithOperation("tunnel.delete").Warnf("source switch %d unresolved: %v", t.SrcSwitchID, err)
	}

	if dstSwitch, dstHost, err := m.registry.FindSwitch(t.DstSwitchID); err == nil {
		if err := m.delPort(ctx, dstHost, dstSwitch.Name, t.DstPortName); err != nil {
			util.WithOperation("tunnel.delete").Warnf("failed to delete %s on %s: %v", t.DstPortName, dstHost.Hostname, err)
		}
	} else {
		util.WithOperation("tunnel.delete").Warnf("destination switch %d unresolved: %v", t.DstSwitchID, err)
	}

	// Drops only this tunnel's own hold on the VNI — the allocator only
	// frees it once the network (and any sibling tunnels) release theirs too.
	m.alloc.Release(t.VNI)
	delete(m.tunnels, tunnelID)
	if err := m.saveLocked(); err != nil {
		util.Errorf("persisting tunnels: %v", err)
	}
	return nil
}

// Get returns a copy of a tunnel record.
func (m *Manager) Get(id int) (*Tunnel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tunnels[id]
	if !ok {
		return nil, fmt.Errorf("tunnel %d: %w", id, util.ErrNotFound)
	}
	return cloneTunnel(t), nil
}

// List returns a snapshot of every tunnel.
func (m *Manager) List() []*Tunnel {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Tunnel, 0, len(m.tunnels))
	for _, t := range m.tunnels {
		out = append(out, cloneTunnel(t))
	}
	return out
}

func cloneTunnel(t *Tunnel) *Tunnel {
	cp := *t
	return &cp
}
