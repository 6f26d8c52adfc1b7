package dhcp

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/recira/controller/pkg/executor"
	"github.com/recira/controller/pkg/hostregistry"
)

type fakeLookup struct {
	networks map[int]NetworkInfo
}

func (f *fakeLookup) LookupNetwork(id int) (NetworkInfo, error) {
	return f.LookupNetworkLocked(id)
}

func (f *fakeLookup) LookupNetworkLocked(id int) (NetworkInfo, error) {
	n, ok := f.networks[id]
	if !ok {
		return NetworkInfo{}, errNotFound
	}
	return n, nil
}

var errNotFound = &notFoundErr{}

type notFoundErr struct{}

func (e *notFoundErr) Error() string { return "network not found" }

func newTestManager(t *testing.T) (*Manager, *hostregistry.Registry, *fakeLookup) {
	t.Helper()
	reg := hostregistry.New(executor.New(), hostregistry.WithPersistPath(filepath.Join(t.TempDir(), "hosts.json")))
	reg.InjectHostForTest(&hostregistry.Host{
		ID: 1, Hostname: "h1", ManagementAddr: "10.0.0.1", OverlayAddr: "10.0.0.1",
		Kind: hostregistry.KindLocal, Status: hostregistry.StatusOnline,
		Bridges: []hostregistry.Bridge{{Name: "br0"}},
	})

	lookup := &fakeLookup{networks: map[int]NetworkInfo{
		1: {ID: 1, Name: "net1", VNI: 100, Subnet: "10.0.1.0/24", Gateway: "10.0.1.1", SwitchIDs: []int{1}},
	}}

	m := New(reg, executor.New(), lookup, &sync.Mutex{})
	m.SetPersistPath(filepath.Join(t.TempDir(), "dhcp.json"))
	return m, reg, lookup
}

func TestManager_Enable_MissingGateway(t *testing.T) {
	m, _, lookup := newTestManager(t)
	lookup.networks[2] = NetworkInfo{ID: 2, Subnet: "10.0.2.0/24"}
	_, err := m.Enable(context.Background(), 2, "10.0.0.1", "10.0.2.10", "10.0.2.250", nil, "")
	if err == nil {
		t.Fatal("Enable without a gateway should fail")
	}
}

func TestManager_Enable_UnknownNetwork(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, err := m.Enable(context.Background(), 99, "10.0.0.1", "a", "b", nil, "")
	if err == nil {
		t.Fatal("Enable on an unknown network should fail")
	}
}

func TestManager_Disable_NotEnabled(t *testing.T) {
	m, _, _ := newTestManager(t)
	if err := m.Disable(context.Background(), 1); err == nil {
		t.Error("Disable on a network without DHCP should error")
	}
}

func TestManager_AddReservation_RequiresEnabled(t *testing.T) {
	m, _, _ := newTestManager(t)
	if err := m.AddReservation(context.Background(), 1, "aa:bb:cc:dd:ee:ff", "10.0.1.50", ""); err == nil {
		t.Error("AddReservation before Enable should error")
	}
}

func TestManager_FindMemberBridge(t *testing.T) {
	m, _, _ := newTestManager(t)
	bridge, host, err := m.findMemberBridge("10.0.0.1", []int{1})
	if err != nil {
		t.Fatalf("findMemberBridge: %v", err)
	}
	if bridge != "br0" || host.Hostname != "h1" {
		t.Errorf("unexpected result: bridge=%q host=%+v", bridge, host)
	}
}

func TestManager_FindMemberBridge_NotAMember(t *testing.T) {
	m, _, _ := newTestManager(t)
	if _, _, err := m.findMemberBridge("10.0.0.1", []int{999}); err == nil {
		t.Error("expected error when no switch on the host belongs to the network")
	}
}
