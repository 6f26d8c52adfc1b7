// Package hostregistry tracks the hosts and OVS bridges a controller knows
// about, and exposes a re-enumerated Switch view over them.
package hostregistry

import (
	"sync"
	"time"

	"github.com/recira/controller/pkg/executor"
)

// Kind distinguishes how a host is reached.
type Kind string

const (
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
)

// Status is the registry's view of whether a host currently answers.
type Status string

const (
	StatusOnline      Status = "online"
	StatusDetached    Status = "detached"
	StatusUnreachable Status = "unreachable"
)

// FailMode mirrors the OVS bridge fail-mode.
type FailMode string

const (
	FailModeSecure     FailMode = "secure"
	FailModeStandalone FailMode = "standalone"
	FailModeUnknown    FailMode = "unknown"
)

// Credentials authenticates SSH access to a remote host. Secrets are stored
// verbatim on disk; this repository does not invent a secret store.
type Credentials struct {
	User    string `json:"user"`
	Secret  string `json:"secret,omitempty"`
	KeyPath string `json:"key_path,omitempty"`
}

// Bridge is a discovered OVS bridge on a Host.
type Bridge struct {
	Name              string   `json:"name"`
	DatapathIDHex     string   `json:"datapath_id_hex"`
	DatapathIDDecimal uint64   `json:"datapath_id_decimal"`
	Controller        string   `json:"controller"`
	FailMode          FailMode `json:"fail_mode"`
	PortNames         []string `json:"port_names"`

	// ReachableAdvisory is a weak, substring-matched heuristic for whether
	// the bridge's configured controller appears connected. It is never
	// relied upon by tunnel, network, or DHCP invariants.
	ReachableAdvisory bool `json:"reachable_advisory"`
}

// Host is a controller-managed machine running Open vSwitch.
type Host struct {
	ID int `json:"id"`

	Hostname       string `json:"hostname"`
	ManagementAddr string `json:"management_addr"`

	// OverlayAddr is the address VXLAN tunnels terminate on; it defaults
	// to ManagementAddr when unset.
	OverlayAddr string `json:"overlay_addr"`

	Kind       Kind   `json:"kind"`
	Status     Status `json:"status"`
	OVSVersion string `json:"ovs_version"`

	// Credentials is nil for local hosts.
	Credentials *Credentials `json:"credentials,omitempty"`

	// Bridges is derived, not persisted — recomputed from discovery.
	Bridges []Bridge `json:"bridges,omitempty"`
}

// effectiveOverlayAddr returns OverlayAddr, falling back to ManagementAddr.
func (h *Host) effectiveOverlayAddr() string {
	if h.OverlayAddr != "" {
		return h.OverlayAddr
	}
	return h.ManagementAddr
}

// Switch is a re-enumerated (host, bridge) view. SwitchIDs are not
// persisted: they are reassigned on every ListSwitches call and stay the
// same between calls only while host and bridge membership is unchanged.
type Switch struct {
	ID         int      `json:"id"`
	HostID     int      `json:"host_id"`
	Hostname   string   `json:"hostname"`
	HostAddr   string   `json:"host_addr"`
	Name       string   `json:"name"`
	DatapathID uint64   `json:"datapath_id"`
	Controller string   `json:"controller"`
	FailMode   FailMode `json:"fail_mode"`
	PortCount  int      `json:"port_count"`
}

// Registry owns the set of known hosts and their derived bridges.
type Registry struct {
	mu sync.RWMutex

	hosts      map[int]*Host
	nextHostID int

	persistPath string
	exec        *executor.Executor

	// shortTimeout bounds discovery/probe commands (list-br, get-controller).
	shortTimeout time.Duration
	// installTimeout bounds package installs during Provision.
	installTimeout time.Duration

	// sharedMu is the tunnel/network managers' mutex, taken by Forget
	// before a host record disappears so no tunnel/network mutation can
	// interleave with its removal. Nil until wired by WithSharedMutex.
	sharedMu *sync.Mutex
}

// Option configures a Registry at construction.
type Option func(*Registry)

// WithPersistPath overrides the default persistence path.
func WithPersistPath(path string) Option {
	return func(r *Registry) { r.persistPath = path }
}

// WithTimeouts overrides the default short/install command timeouts.
func WithTimeouts(short, install time.Duration) Option {
	return func(r *Registry) {
		r.shortTimeout = short
		r.installTimeout = install
	}
}

// WithSharedMutex wires in the mutex shared by the tunnel and network
// managers, so Forget can take it before a host record disappears.
func WithSharedMutex(mu *sync.Mutex) Option {
	return func(r *Registry) { r.sharedMu = mu }
}

// New creates an empty Registry.
func New(exec *executor.Executor, opts ...Option) *Registry {
	r := &Registry{
		hosts:          make(map[int]*Host),
		nextHostID:     1,
		persistPath:    "/tmp/recira-hosts.json",
		exec:           exec,
		shortTimeout:   60 * time.Second,
		installTimeout: 300 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}
