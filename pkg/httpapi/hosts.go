package httpapi

import (
	"net/http"

	"github.com/recira/controller/pkg/hostregistry"
)

// redact strips stored credentials before a host record leaves the process.
func redact(h *hostregistry.Host) *hostregistry.Host {
	cp := *h
	cp.Credentials = nil
	return &cp
}

func (s *Server) handleListHosts(w http.ResponseWriter, r *http.Request) {
	hosts := s.registry.ListHosts()
	out := make([]*hostregistry.Host, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, redact(h))
	}
	writeSuccess(w, map[string]any{"hosts": out})
}

type addHostRequest struct {
	IP       string `json:"ip"`
	Username string `json:"username"`
	Password string `json:"password"`
	VXLANIP  string `json:"vxlan_ip"`
}

func (s *Server) handleAddHost(w http.ResponseWriter, r *http.Request) {
	var req addHostRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	host, err := s.registry.RegisterRemote(r.Context(), req.IP, req.Username, req.Password, req.VXLANIP)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"host": redact(host)})
}

type provisionHostRequest struct {
	IP             string `json:"ip"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	VXLANInterface string `json:"vxlan_interface"`
	VXLANIP        string `json:"vxlan_ip"`
	ConfigureMTU   bool   `json:"configure_mtu"`
	Optimize       bool   `json:"optimize"`
}

func (s *Server) handleProvisionHost(w http.ResponseWriter, r *http.Request) {
	var req provisionHostRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	details, err := s.registry.Provision(r.Context(), req.IP, req.Username, req.Password, hostregistry.ProvisionOptions{
		VXLANInterface: req.VXLANInterface,
		ConfigureMTU:   req.ConfigureMTU,
		Optimize:       req.Optimize,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	host, err := s.registry.RegisterRemote(r.Context(), req.IP, req.Username, req.Password, req.VXLANIP)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"provision_details": details, "host": redact(host)})
}

type removeHostRequest struct {
	HostID   int  `json:"host_id"`
	KeepData bool `json:"keep_data"`
}

func (s *Server) handleRemoveHost(w http.ResponseWriter, r *http.Request) {
	var req removeHostRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	// keep_data only controls whether the host's own OVS state is left
	// alone; Forget never touches it either way, so there's nothing extra
	// to branch on here.
	if err := s.registry.Forget(req.HostID); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, nil)
}

type reattachHostRequest struct {
	HostID int `json:"host_id"`
}

func (s *Server) handleReattachHost(w http.ResponseWriter, r *http.Request) {
	var req reattachHostRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.registry.Reattach(r.Context(), req.HostID); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, nil)
}

func (s *Server) handleHostHealth(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	report, err := s.registry.Health(r.Context(), q.Get("ip"), q.Get("username"), q.Get("password"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"health": report})
}

func (s *Server) handleListSwitches(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, map[string]any{"switches": s.registry.ListSwitches()})
}
