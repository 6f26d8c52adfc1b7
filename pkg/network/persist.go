package network

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

type persistedDoc struct {
	Networks    []*Network `json:"networks"`
	NextID      int        `json:"next_network_id"`
	NextVNI     int        `json:"next_vni"`
	LastUpdated time.Time  `json:"last_updated"`
}

// saveLocked writes every network to disk. Callers must hold m.mu.
// NextVNI is recorded for operator visibility only — the shared allocator,
// not this field, is the authority on restart.
func (m *Manager) saveLocked() error {
	doc := persistedDoc{
		Networks:    make([]*Network, 0, len(m.networks)),
		NextID:      m.nextID,
		NextVNI:     m.alloc.Peek(),
		LastUpdated: time.Now(),
	}
	for _, n := range m.networks {
		doc.Networks = append(doc.Networks, n)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(m.persistPath, data)
}

// Load reads persisted networks from disk, replacing in-memory state and
// advancing the shared VNI allocator past every network's VNI.
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

	m.networks = make(map[int]*Network, len(doc.Networks))
	for _, n := range doc.Networks {
		m.networks[n.ID] = n
		m.alloc.Observe(n.VNI)
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
