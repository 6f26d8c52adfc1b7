package tunnel

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

type persistedDoc struct {
	Tunnels     []*Tunnel `json:"tunnels"`
	NextID      int       `json:"next_tunnel_id"`
	LastUpdated time.Time `json:"last_updated"`
}

// saveLocked writes every tunnel to disk. Callers must hold m.mu.
func (m *Manager) saveLocked() error {
	doc := persistedDoc{
		Tunnels:     make([]*Tunnel, 0, len(m.tunnels)),
		NextID:      m.nextID,
		LastUpdated: time.Now(),
	}
	for _, t := range m.tunnels {
		doc.Tunnels = append(doc.Tunnels, t)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(m.persistPath, data)
}

// Load reads persisted tunnels from disk, replacing in-memory state. It
// does not reconcile against live OVS state — call Discover for that.
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.persistPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var doc persistedDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.tunnels = make(map[int]*Tunnel, len(doc.Tunnels))
	for _, t := range doc.Tunnels {
		m.tunnels[t.ID] = t
		m.alloc.Observe(t.VNI)
	}
	if doc.NextID > m.nextID {
		m.nextID = doc.NextID
	}
	return nil
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
