package main

import (
	"sync"

	"github.com/recira/controller/pkg/config"
	"github.com/recira/controller/pkg/dhcp"
	"github.com/recira/controller/pkg/executor"
	"github.com/recira/controller/pkg/hostregistry"
	"github.com/recira/controller/pkg/httpapi"
	"github.com/recira/controller/pkg/network"
	"github.com/recira/controller/pkg/tunnel"
	"github.com/recira/controller/pkg/vni"
)

// vniRangeStart is the first VNI handed out by the allocator. Networks
// and ad-hoc tunnels share one allocator so a VNI is never double-issued
// across the two.
const vniRangeStart = 1000

// Controller owns every manager the daemon wires together. It replaces
// original_source's module-level ovs_manager/vxlan_manager/network_manager/
// dhcp_manager singletons with explicit fields constructed once at startup.
type Controller struct {
	registry *hostregistry.Registry
	tunnels  *tunnel.Manager
	networks *network.Manager
	dhcp     *dhcp.Manager

	api *httpapi.Server
}

// newController wires every manager together: a shared executor, a
// shared tunnel/network mutex (spec §5), one VNI allocator, and the
// HTTP façade over all of it.
func newController(cfg *config.Config) *Controller {
	exec := executor.New()

	regOpts := []hostregistry.Option{
		hostregistry.WithTimeouts(cfg.Timeout.Short, cfg.Timeout.Install),
	}
	if cfg.State.Hosts != "" {
		regOpts = append(regOpts, hostregistry.WithPersistPath(cfg.State.Hosts))
	}

	// netMu serializes tunnel and network mutations against each other
	// and against host removal; it is handed to the registry too so
	// Forget can take it before a host record disappears.
	netMu := &sync.Mutex{}
	regOpts = append(regOpts, hostregistry.WithSharedMutex(netMu))

	registry := hostregistry.New(exec, regOpts...)

	alloc := vni.New(vniRangeStart)

	tunnels := tunnel.New(registry, exec, netMu, alloc)
	if cfg.State.Tunnels != "" {
		tunnels.SetPersistPath(cfg.State.Tunnels)
	}

	networks := network.New(registry, tunnels, netMu, alloc)
	if cfg.State.Networks != "" {
		networks.SetPersistPath(cfg.State.Networks)
	}

	dhcpMgr := dhcp.New(registry, exec, networks, netMu)
	if cfg.State.DHCP != "" {
		dhcpMgr.SetPersistPath(cfg.State.DHCP)
	}
	networks.SetDHCPManager(dhcpMgr)

	api := httpapi.NewServer(registry, tunnels, networks, dhcpMgr, cfg.StaticDir)

	return &Controller{
		registry: registry,
		tunnels:  tunnels,
		networks: networks,
		dhcp:     dhcpMgr,
		api:      api,
	}
}
