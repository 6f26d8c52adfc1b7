// Package tunnel creates and tracks VXLAN tunnels between OVS bridges.
package tunnel

import (
	"sync"
	"time"

	"github.com/recira/controller/pkg/executor"
	"github.com/recira/controller/pkg/hostregistry"
	"github.com/recira/controller/pkg/vni"
)

// Status is the tunnel's last-known operational state.
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// Tunnel is a single VXLAN point-to-point link between two switches.
type Tunnel struct {
	ID          int    `json:"id"`
	SrcSwitchID int    `json:"src_switch_id"`
	DstSwitchID int    `json:"dst_switch_id"`
	VNI         int    `json:"vni"`

	SrcOverlayIP string `json:"src_overlay_ip"`
	DstOverlayIP string `json:"dst_overlay_ip"`
	SrcPortName  string `json:"src_port_name"`
	DstPortName  string `json:"dst_port_name"`

	Status     Status `json:"status"`
	Discovered bool   `json:"discovered"`
}

// Manager creates, deletes, and discovers VXLAN tunnels. Its mutex is
// shared with the network manager so tunnel and network mutations, and
// host removal, all serialize against each other.
type Manager struct {
	mu *sync.Mutex

	registry *hostregistry.Registry
	exec     *executor.Executor
	alloc    *vni.Allocator

	tunnels     map[int]*Tunnel
	nextID      int
	persistPath string
	timeout     time.Duration
}

// New creates a Manager. mu and alloc are typically shared with a
// network.Manager constructed alongside it.
func New(registry *hostregistry.Registry, exec *executor.Executor, mu *sync.Mutex, alloc *vni.Allocator) *Manager {
	return &Manager{
		mu:          mu,
		registry:    registry,
		exec:        exec,
		alloc:       alloc,
		tunnels:     make(map[int]*Tunnel),
		nextID:      1,
		persistPath: "/tmp/recira-tunnels.json",
		timeout:     30 * time.Second,
	}
}

// SetPersistPath overrides the default persistence path.
func (m *Manager) SetPersistPath(path string) {
	m.persistPath = path
}
