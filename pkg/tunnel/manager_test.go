package tunnel

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/recira/controller/pkg/executor"
	"github.com/recira/controller/pkg/hostregistry"
	"github.com/recira/controller/pkg/vni"
)

func TestPortName(t *testing.T) {
	got := portName(100, "10.0.0.5")
	want := "vxlan100_5"
	if got != want {
		t.Errorf("portName() = %q, want %q", got, want)
	}
}

func TestPortName_UnparseableIP(t *testing.T) {
	got := portName(100, "not-an-ip")
	want := "vxlan100_not-an-ip"
	if got != want {
		t.Errorf("portName() = %q, want %q", got, want)
	}
}

// newTestSetup registers two single-bridge local-kind hosts directly into a
// registry (bypassing live SSH/OVS probing) and returns a Manager wired
// against them.
func newTestSetup(t *testing.T) (*Manager, *hostregistry.Registry) {
	t.Helper()

	reg := hostregistry.New(executor.New(), hostregistry.WithPersistPath(filepath.Join(t.TempDir(), "hosts.json")))
	injectHost(reg, 1, "h1", "10.0.0.1", "br0")
	injectHost(reg, 2, "h2", "10.0.0.2", "br0")

	m := New(reg, executor.New(), &sync.Mutex{}, vni.New(1000))
	m.SetPersistPath(filepath.Join(t.TempDir(), "tunnels.json"))
	return m, reg
}

func injectHost(reg *hostregistry.Registry, id int, hostname, addr, bridge string) {
	reg.InjectHostForTest(&hostregistry.Host{
		ID:             id,
		Hostname:       hostname,
		ManagementAddr: addr,
		OverlayAddr:    addr,
		Kind:           hostregistry.KindLocal,
		Status:         hostregistry.StatusOnline,
		Bridges:        []hostregistry.Bridge{{Name: bridge}},
	})
}

func TestManager_Create_RejectsSameHost(t *testing.T) {
	m, _ := newTestSetup(t)
	reg := hostregistry.New(executor.New(), hostregistry.WithPersistPath(filepath.Join(t.TempDir(), "hosts.json")))
	reg.InjectHostForTest(&hostregistry.Host{
		ID: 1, Hostname: "h1", ManagementAddr: "10.0.0.1", OverlayAddr: "10.0.0.1",
		Kind: hostregistry.KindLocal, Status: hostregistry.StatusOnline,
		Bridges: []hostregistry.Bridge{{Name: "br0"}, {Name: "br1"}},
	})
	m.registry = reg

	switches := reg.ListSwitches()
	if len(switches) != 2 {
		t.Fatalf("expected 2 switches on one host, got %d", len(switches))
	}

	_, err := m.Create(context.Background(), switches[0].ID, switches[1].ID, nil)
	if err == nil {
		t.Fatal("Create across switches on the same host should be rejected")
	}
}

func TestManager_Create_UnknownSwitch(t *testing.T) {
	m, _ := newTestSetup(t)
	_, err := m.Create(context.Background(), 999, 1, nil)
	if err == nil {
		t.Fatal("Create with an unresolvable switch should error")
	}
}

// TestManager_ResolveVNI_RejectsDuplicateExplicitVNI covers the ad-hoc path
// (Create/CreateLocked without a prior reservation of their own): an
// explicit VNI already held by an unrelated caller must be rejected. This
// does not apply to the network manager's mesh construction, which reuses
// its own reservation via CreateWithReservedVNI instead of resolveVNI.
func TestManager_ResolveVNI_RejectsDuplicateExplicitVNI(t *testing.T) {
	m, _ := newTestSetup(t)
	v := 5000
	if _, err := m.resolveVNI(&v); err != nil {
		t.Fatalf("first reservation: %v", err)
	}
	if _, err := m.resolveVNI(&v); err == nil {
		t.Fatal("resolveVNI should reject a VNI already in use")
	}
}

// TestManager_CreateWithReservedVNI_ReusesAcrossPairs verifies the path the
// network manager uses to build a full mesh: a VNI the caller has already
// reserved can be handed to CreateWithReservedVNI for every pair in the
// mesh without tripping resolveVNI's uniqueness check, which would
// otherwise reject every pair after the first.
func TestManager_CreateWithReservedVNI_ReusesAcrossPairs(t *testing.T) {
	m, reg := newTestSetup(t)
	injectHost(reg, 3, "h3", "10.0.0.3", "br0")
	switches := reg.ListSwitches()
	if len(switches) != 3 {
		t.Fatalf("expected 3 switches, got %d", len(switches))
	}

	v := 5000
	if err := m.alloc.Reserve(v); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	if _, err := m.CreateWithReservedVNI(context.Background(), switches[0].ID, switches[1].ID, v); err != nil {
		t.Fatalf("first pair: %v", err)
	}
	if _, err := m.CreateWithReservedVNI(context.Background(), switches[0].ID, switches[2].ID, v); err != nil {
		t.Fatalf("second pair with the same reserved VNI: %v", err)
	}

	if !m.alloc.InUse(v) {
		t.Fatal("VNI should still be in use while tunnels hold it")
	}
}

func TestManager_GetDelete_Unknown(t *testing.T) {
	m, _ := newTestSetup(t)
	if _, err := m.Get(42); err == nil {
		t.Error("Get on unknown tunnel should error")
	}
	if err := m.Delete(context.Background(), 42); err == nil {
		t.Error("Delete on unknown tunnel should error")
	}
}

func TestManager_List_Empty(t *testing.T) {
	m, _ := newTestSetup(t)
	if got := m.List(); len(got) != 0 {
		t.Errorf("List() on a fresh manager = %v, want empty", got)
	}
}
