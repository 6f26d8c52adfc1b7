// Package vni provides a VNI allocator shared between the tunnel and
// network managers, so that VXLAN Network Identifiers stay unique across
// both discovered tunnels and explicitly created networks.
package vni

import (
	"fmt"
	"sync"

	"github.com/recira/controller/pkg/util"
)

// Allocator hands out VXLAN Network Identifiers from a monotonic counter,
// skipping any value already reserved. Each reserved VNI carries a
// reference count rather than a plain boolean, so a VNI shared by a
// network and every tunnel in its mesh is only freed once every holder
// has released its own reference.
type Allocator struct {
	mu   sync.Mutex
	next int
	refs map[int]int
}

// New creates an Allocator starting from start.
func New(start int) *Allocator {
	return &Allocator{next: start, refs: make(map[int]int)}
}

// Allocate returns the next unused VNI and reserves it with one reference.
func (a *Allocator) Allocate() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	for a.refs[a.next] > 0 {
		a.next++
	}
	v := a.next
	a.refs[v] = 1
	a.next++
	return v
}

// Reserve marks vni as used with one reference, validating it first. It is
// used when a caller supplies an explicit VNI rather than requesting an
// allocated one, and fails if the VNI already has a holder.
func (a *Allocator) Reserve(v int) error {
	if err := util.ValidateVNI(v); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.refs[v] > 0 {
		return fmt.Errorf("VNI %d already in use", v)
	}
	a.refs[v] = 1
	return nil
}

// Hold adds another reference to a VNI a caller has already reserved —
// e.g. a tunnel created as part of a network's mesh, where the network
// itself holds the original reservation. Release only frees the VNI once
// every holder, including this one, has released its reference.
func (a *Allocator) Hold(v int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refs[v]++
}

// Observe records a VNI seen during discovery without failing if it's
// already reserved — discovery may see the same tunnel endpoint twice, so
// this never adds more than one reference.
func (a *Allocator) Observe(v int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.refs[v] == 0 {
		a.refs[v] = 1
	}
	if v >= a.next {
		a.next = v + 1
	}
}

// Release drops one reference to v, used when a tunnel or network that
// held it is deleted. The VNI is only freed for reallocation once its
// reference count reaches zero.
func (a *Allocator) Release(v int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.refs[v] <= 1 {
		delete(a.refs, v)
		return
	}
	a.refs[v]--
}

// InUse reports whether v currently has any holder.
func (a *Allocator) InUse(v int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refs[v] > 0
}

// Peek returns the counter's current position, for informational
// persistence (e.g. a next_vni field) — it does not reserve anything.
func (a *Allocator) Peek() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next
}
