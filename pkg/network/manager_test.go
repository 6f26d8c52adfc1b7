package network

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/recira/controller/pkg/executor"
	"github.com/recira/controller/pkg/hostregistry"
	"github.com/recira/controller/pkg/tunnel"
	"github.com/recira/controller/pkg/vni"
)

func newTestManager(t *testing.T) (*Manager, *hostregistry.Registry) {
	t.Helper()

	reg := hostregistry.New(executor.New(), hostregistry.WithPersistPath(filepath.Join(t.TempDir(), "hosts.json")))
	reg.InjectHostForTest(&hostregistry.Host{
		ID: 1, Hostname: "h1", ManagementAddr: "10.0.0.1", OverlayAddr: "10.0.0.1",
		Kind: hostregistry.KindLocal, Status: hostregistry.StatusOnline,
		Bridges: []hostregistry.Bridge{{Name: "br0"}},
	})
	reg.InjectHostForTest(&hostregistry.Host{
		ID: 2, Hostname: "h2", ManagementAddr: "10.0.0.2", OverlayAddr: "10.0.0.2",
		Kind: hostregistry.KindLocal, Status: hostregistry.StatusOnline,
		Bridges: []hostregistry.Bridge{{Name: "br0"}},
	})
	reg.InjectHostForTest(&hostregistry.Host{
		ID: 3, Hostname: "h3", ManagementAddr: "10.0.0.3", OverlayAddr: "10.0.0.3",
		Kind: hostregistry.KindLocal, Status: hostregistry.StatusOnline,
		Bridges: []hostregistry.Bridge{{Name: "br0"}},
	})

	mu := &sync.Mutex{}
	alloc := vni.New(1000)
	tm := tunnel.New(reg, executor.New(), mu, alloc)
	tm.SetPersistPath(filepath.Join(t.TempDir(), "tunnels.json"))

	nm := New(reg, tm, mu, alloc)
	nm.SetPersistPath(filepath.Join(t.TempDir(), "networks.json"))
	return nm, reg
}

func switchIDs(t *testing.T, reg *hostregistry.Registry, n int) []int {
	t.Helper()
	sws := reg.ListSwitches()
	if len(sws) < n {
		t.Fatalf("only %d switches available, want %d", len(sws), n)
	}
	var ids []int
	for i := 0; i < n; i++ {
		ids = append(ids, sws[i].ID)
	}
	return ids
}

func TestManager_Create_RequiresTwoSwitches(t *testing.T) {
	m, reg := newTestManager(t)
	ids := switchIDs(t, reg, 1)
	_, err := m.Create(context.Background(), "solo", ids, nil, "", "")
	if err == nil {
		t.Fatal("Create with fewer than 2 switches should fail")
	}
}

func TestManager_Create_UnresolvableSwitch(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Create(context.Background(), "bad", []int{1, 999}, nil, "", "")
	if err == nil {
		t.Fatal("Create with an unresolvable switch should fail")
	}
}

// TestManager_Create_FullMeshReusesNetworkVNI verifies that every pairwise
// tunnel in a network's mesh is created against the network's own VNI — the
// mesh loop must reuse that single reservation across all three pairs
// rather than trying (and failing) to re-reserve it per pair.
func TestManager_Create_FullMeshReusesNetworkVNI(t *testing.T) {
	m, reg := newTestManager(t)
	ids := switchIDs(t, reg, 3)

	net, err := m.Create(context.Background(), "mesh", ids, nil, "10.0.1.0/24", "10.0.1.1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if net.VNI == 0 {
		t.Error("expected a VNI to be allocated")
	}
	if len(net.SwitchIDs) != 3 {
		t.Errorf("SwitchIDs = %v, want 3 entries", net.SwitchIDs)
	}
	// 3 switches means 3 unordered pairs; a per-pair re-reservation of the
	// network's own VNI would reject every pair after the first.
	if len(net.TunnelIDs) != 3 {
		t.Errorf("TunnelIDs = %v, want 3 entries (one per switch pair)", net.TunnelIDs)
	}
	for _, tid := range net.TunnelIDs {
		tun, err := m.tunnels.Get(tid)
		if err != nil {
			t.Fatalf("Get tunnel %d: %v", tid, err)
		}
		if tun.VNI != net.VNI {
			t.Errorf("tunnel %d VNI = %d, want network VNI %d", tid, tun.VNI, net.VNI)
		}
	}

	got, err := m.Get(net.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "mesh" {
		t.Errorf("Get returned %+v", got)
	}
}

func TestManager_AddSwitch_RejectsExistingMember(t *testing.T) {
	m, reg := newTestManager(t)
	ids := switchIDs(t, reg, 2)
	net, err := m.Create(context.Background(), "net1", ids, nil, "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.AddSwitch(context.Background(), net.ID, ids[0]); err == nil {
		t.Error("AddSwitch with an already-member switch should error")
	}
}

func TestManager_Delete_Unknown(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Delete(context.Background(), 999); err == nil {
		t.Error("Delete on unknown network should error")
	}
}

func TestManager_Delete_ReleasesVNI(t *testing.T) {
	m, reg := newTestManager(t)
	ids := switchIDs(t, reg, 2)
	v := 2000
	net, err := m.Create(context.Background(), "net1", ids, &v, "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !m.alloc.InUse(v) {
		t.Fatal("expected VNI to be in use after Create")
	}
	if err := m.Delete(context.Background(), net.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if m.alloc.InUse(v) {
		t.Error("expected VNI to be released after Delete")
	}
}

func TestManager_LookupNetwork(t *testing.T) {
	m, reg := newTestManager(t)
	ids := switchIDs(t, reg, 2)
	net, err := m.Create(context.Background(), "net1", ids, nil, "10.0.1.0/24", "10.0.1.1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	info, err := m.LookupNetwork(net.ID)
	if err != nil {
		t.Fatalf("LookupNetwork: %v", err)
	}
	if info.Subnet != "10.0.1.0/24" || info.Gateway != "10.0.1.1" {
		t.Errorf("unexpected info: %+v", info)
	}
}
