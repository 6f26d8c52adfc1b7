// Package network groups switches into VXLAN-backed networks, full-meshing
// tunnels between their members.
package network

import (
	"sync"
	"time"

	"github.com/recira/controller/pkg/dhcp"
	"github.com/recira/controller/pkg/hostregistry"
	"github.com/recira/controller/pkg/tunnel"
	"github.com/recira/controller/pkg/vni"
)

// Network is a set of switches sharing one VXLAN VNI, connected full-mesh.
type Network struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	VNI       int       `json:"vni"`
	Subnet    string    `json:"subnet,omitempty"`
	Gateway   string    `json:"gateway,omitempty"`
	SwitchIDs []int     `json:"switch_ids"`
	TunnelIDs []int     `json:"tunnel_ids"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager creates and tears down VXLAN networks. Its mutex is shared with
// the tunnel manager so network and tunnel mutations, and host removal,
// all serialize against each other.
type Manager struct {
	mu *sync.Mutex

	registry *hostregistry.Registry
	tunnels  *tunnel.Manager
	alloc    *vni.Allocator

	// dhcp is optional — set via SetDHCPManager once the DHCP manager is
	// constructed, to break the import cycle between the two packages.
	dhcp *dhcp.Manager

	networks    map[int]*Network
	nextID      int
	persistPath string
}

// New creates a Manager. mu and alloc are typically shared with a
// tunnel.Manager constructed alongside it.
func New(registry *hostregistry.Registry, tunnels *tunnel.Manager, mu *sync.Mutex, alloc *vni.Allocator) *Manager {
	return &Manager{
		mu:          mu,
		registry:    registry,
		tunnels:     tunnels,
		alloc:       alloc,
		networks:    make(map[int]*Network),
		nextID:      1,
		persistPath: "/tmp/recira-networks.json",
	}
}

// SetDHCPManager wires the DHCP manager in after construction, so Delete
// can disable DHCP on a network before tearing it down.
func (m *Manager) SetDHCPManager(d *dhcp.Manager) {
	m.dhcp = d
}

// SetPersistPath overrides the default persistence path.
func (m *Manager) SetPersistPath(path string) {
	m.persistPath = path
}
