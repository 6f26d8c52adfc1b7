package hostregistry

import (
	"context"
	"fmt"
	"sort"

	"github.com/recira/controller/pkg/executor"
	"github.com/recira/controller/pkg/util"
)

func errExitCode(command string, res executor.Result) error {
	return fmt.Errorf("%s exited %d: %s", command, res.ExitCode, res.Stderr)
}

// DiscoverLocal probes the controller's own environment. The local host is
// never persisted.
func (r *Registry) DiscoverLocal(ctx context.Context) (*Host, error) {
	target := executor.Target{Kind: executor.Local}

	hostname, err := r.probeHostname(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("discovering localhost: %w", err)
	}
	mgmtIP, err := r.probeManagementIP(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("discovering localhost: %w", err)
	}
	ovsVersion, err := r.probeOVSVersion(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("discovering localhost: %w", err)
	}
	bridges, err := r.discoverBridges(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("discovering localhost bridges: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	host := &Host{
		ID:             r.nextHostID,
		Hostname:       hostname,
		ManagementAddr: mgmtIP,
		OverlayAddr:    mgmtIP,
		Kind:           KindLocal,
		Status:         StatusOnline,
		OVSVersion:     ovsVersion,
		Bridges:        bridges,
	}
	r.hosts[host.ID] = host
	r.nextHostID++

	util.WithHost(host.Hostname).Info("discovered local host")
	return host, nil
}

// RegisterRemote probes a remote host's hostname, version, and bridges
// before recording anything — on any probe failure, no partial state is
// retained.
func (r *Registry) RegisterRemote(ctx context.Context, addr, user, secret, overlayAddr string) (*Host, error) {
	creds := executor.Credentials{User: user, Secret: secret}
	target := executor.Target{Address: addr, Kind: executor.Remote, Credentials: creds}

	hostname, err := r.probeHostname(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("registering %s: %w", addr, util.NewUnreachableError(addr, err.Error(), false))
	}
	ovsVersion, err := r.probeOVSVersion(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("registering %s: %w", addr, err)
	}
	bridges, err := r.discoverBridges(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("registering %s: %w", addr, err)
	}

	if overlayAddr == "" {
		overlayAddr = addr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	host := &Host{
		ID:             r.nextHostID,
		Hostname:       hostname,
		ManagementAddr: addr,
		OverlayAddr:    overlayAddr,
		Kind:           KindRemote,
		Status:         StatusOnline,
		OVSVersion:     ovsVersion,
		Credentials:    &Credentials{User: user, Secret: secret},
		Bridges:        bridges,
	}
	r.hosts[host.ID] = host
	r.nextHostID++

	if err := r.saveLocked(); err != nil {
		util.Errorf("persisting host registry: %v", err)
	}

	util.WithHost(hostname).Info("registered remote host")
	return cloneHost(host), nil
}

// LoadAndReconnect loads persisted remote hosts and re-probes each one. A
// host that answers becomes online; one that doesn't is marked unreachable
// but still listed.
func (r *Registry) LoadAndReconnect(ctx context.Context) error {
	if err := r.load(); err != nil {
		return err
	}

	r.mu.Lock()
	hosts := make([]*Host, 0, len(r.hosts))
	for _, h := range r.hosts {
		hosts = append(hosts, h)
	}
	r.mu.Unlock()

	for _, h := range hosts {
		if h.Kind != KindRemote || h.Credentials == nil {
			continue
		}
		r.reprobe(ctx, h)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked()
}

func (r *Registry) reprobe(ctx context.Context, h *Host) {
	target := executor.Target{
		Address: h.ManagementAddr,
		Kind:    executor.Remote,
		Credentials: executor.Credentials{
			User:   h.Credentials.User,
			Secret: h.Credentials.Secret,
		},
	}

	ovsVersion, err := r.probeOVSVersion(ctx, target)
	bridges, berr := r.discoverBridges(ctx, target)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil || berr != nil {
		h.Status = StatusUnreachable
		util.WithHost(h.Hostname).Warn("host unreachable on reconnect")
		return
	}
	h.Status = StatusOnline
	h.OVSVersion = ovsVersion
	h.Bridges = bridges
}

// Detach marks a host detached without deleting its record.
func (r *Registry) Detach(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.hosts[id]
	if !ok {
		return fmt.Errorf("host %d: %w", id, util.ErrNotFound)
	}
	h.Status = StatusDetached
	return r.saveLocked()
}

// Reattach re-probes a detached host and restores online/unreachable.
func (r *Registry) Reattach(ctx context.Context, id int) error {
	r.mu.RLock()
	h, ok := r.hosts[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("host %d: %w", id, util.ErrNotFound)
	}

	if h.Kind == KindLocal {
		r.mu.Lock()
		h.Status = StatusOnline
		r.mu.Unlock()
		return nil
	}
	if h.Credentials == nil {
		return fmt.Errorf("host %d has no stored credentials", id)
	}
	r.reprobe(ctx, h)

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked()
}

// Forget deletes a host record outright. It does not touch the host's
// actual OVS state. If a shared tunnel/network mutex was wired in via
// WithSharedMutex, it's held for the duration so no tunnel or network
// mutation can interleave with the host disappearing.
func (r *Registry) Forget(id int) error {
	if r.sharedMu != nil {
		r.sharedMu.Lock()
		defer r.sharedMu.Unlock()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.hosts[id]; !ok {
		return fmt.Errorf("host %d: %w", id, util.ErrNotFound)
	}
	delete(r.hosts, id)
	return r.saveLocked()
}

// InjectHostForTest registers a host record directly, bypassing live
// probing. It exists so other packages' tests can build a populated
// registry without SSH or OVS available.
func (r *Registry) InjectHostForTest(h *Host) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hosts[h.ID] = h
	if h.ID >= r.nextHostID {
		r.nextHostID = h.ID + 1
	}
}

// GetHost returns a copy of a host record.
func (r *Registry) GetHost(id int) (*Host, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.hosts[id]
	if !ok {
		return nil, fmt.Errorf("host %d: %w", id, util.ErrNotFound)
	}
	return cloneHost(h), nil
}

// ListHosts returns a snapshot of every known host.
func (r *Registry) ListHosts() []*Host {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Host, 0, len(r.hosts))
	for _, h := range r.hosts {
		out = append(out, cloneHost(h))
	}
	return out
}

// FindHostByAddr finds an online host whose overlay or management address
// matches addr.
func (r *Registry) FindHostByAddr(addr string) (*Host, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, h := range r.hosts {
		if h.Status != StatusOnline {
			continue
		}
		if h.effectiveOverlayAddr() == addr || h.ManagementAddr == addr {
			return cloneHost(h), true
		}
	}
	return nil, false
}

// ListSwitches flattens (host, bridge) pairs of online hosts into a
// freshly-enumerated view. Switch IDs are stable only as long as host and
// bridge membership doesn't change between calls — hosts are walked in ID
// order so that two calls against unchanged state agree.
func (r *Registry) ListSwitches() []Switch {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int, 0, len(r.hosts))
	for id := range r.hosts {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var switches []Switch
	id := 1
	for _, hostID := range ids {
		h := r.hosts[hostID]
		if h.Status != StatusOnline {
			continue
		}
		for _, b := range h.Bridges {
			switches = append(switches, Switch{
				ID:         id,
				HostID:     h.ID,
				Hostname:   h.Hostname,
				HostAddr:   h.effectiveOverlayAddr(),
				Name:       b.Name,
				DatapathID: b.DatapathIDDecimal,
				Controller: b.Controller,
				FailMode:   b.FailMode,
				PortCount:  len(b.PortNames),
			})
			id++
		}
	}
	return switches
}

// FindSwitch resolves a switch ID against the current ListSwitches view,
// returning the switch and the host that owns it.
func (r *Registry) FindSwitch(switchID int) (Switch, *Host, error) {
	r.mu.RLock()
	hosts := make(map[int]*Host, len(r.hosts))
	for id, h := range r.hosts {
		hosts[id] = h
	}
	r.mu.RUnlock()

	for _, sw := range r.ListSwitches() {
		if sw.ID == switchID {
			h, ok := hosts[sw.HostID]
			if !ok {
				return Switch{}, nil, fmt.Errorf("switch %d: host %d: %w", switchID, sw.HostID, util.ErrNotFound)
			}
			return sw, cloneHost(h), nil
		}
	}
	return Switch{}, nil, fmt.Errorf("switch %d: %w", switchID, util.ErrNotFound)
}

// Target builds an executor.Target for a host.
func Target(h *Host) executor.Target {
	if h.Kind == KindLocal {
		return executor.Target{Kind: executor.Local}
	}
	t := executor.Target{Address: h.ManagementAddr, Kind: executor.Remote}
	if h.Credentials != nil {
		t.Credentials = executor.Credentials{
			User:    h.Credentials.User,
			Secret:  h.Credentials.Secret,
			KeyPath: h.Credentials.KeyPath,
		}
	}
	return t
}

func cloneHost(h *Host) *Host {
	cp := *h
	if h.Credentials != nil {
		creds := *h.Credentials
		cp.Credentials = &creds
	}
	cp.Bridges = append([]Bridge(nil), h.Bridges...)
	return &cp
}
