package hostregistry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// persistedDoc is the on-disk shape of the host registry. Only remote hosts
// are written; the local host (and derived Bridges) are recomputed on every
// discovery.
type persistedDoc struct {
	Hosts       map[int]persistedHost `json:"hosts"`
	NextHostID  int                   `json:"next_host_id"`
	LastUpdated time.Time             `json:"last_updated"`
}

type persistedHost struct {
	ID             int          `json:"id"`
	Hostname       string       `json:"hostname"`
	ManagementAddr string       `json:"management_addr"`
	OverlayAddr    string       `json:"overlay_addr"`
	Status         Status       `json:"status"`
	OVSVersion     string       `json:"ovs_version"`
	Credentials    *Credentials `json:"credentials,omitempty"`
}

// saveLocked writes the registry to disk. Callers must hold r.mu.
func (r *Registry) saveLocked() error {
	doc := persistedDoc{
		Hosts:       make(map[int]persistedHost),
		NextHostID:  r.nextHostID,
		LastUpdated: time.Now(),
	}
	for id, h := range r.hosts {
		if h.Kind != KindRemote {
			continue
		}
		doc.Hosts[id] = persistedHost{
			ID:             h.ID,
			Hostname:       h.Hostname,
			ManagementAddr: h.ManagementAddr,
			OverlayAddr:    h.OverlayAddr,
			Status:         h.Status,
			OVSVersion:     h.OVSVersion,
			Credentials:    h.Credentials,
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(r.persistPath, data)
}

// load reads the registry from disk, replacing in-memory state.
func (r *Registry) load() error {
	data, err := os.ReadFile(r.persistPath)
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

	r.mu.Lock()
	defer r.mu.Unlock()

	r.hosts = make(map[int]*Host, len(doc.Hosts))
	for id, ph := range doc.Hosts {
		r.hosts[id] = &Host{
			ID:             ph.ID,
			Hostname:       ph.Hostname,
			ManagementAddr: ph.ManagementAddr,
			OverlayAddr:    ph.OverlayAddr,
			Kind:           KindRemote,
			Status:         ph.Status,
			OVSVersion:     ph.OVSVersion,
			Credentials:    ph.Credentials,
		}
	}
	if doc.NextHostID > r.nextHostID {
		r.nextHostID = doc.NextHostID
	}
	return nil
}

// atomicWrite writes data to path via a temp file in the same directory
// followed by a rename, so readers never observe a partial write.
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
