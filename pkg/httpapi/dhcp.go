package httpapi

import (
	"net/http"
	"strconv"
)

type dhcpEnableRequest struct {
	NetworkID  int      `json:"network_id"`
	HostIP     string   `json:"host_ip"`
	DHCPStart  string   `json:"dhcp_start"`
	DHCPEnd    string   `json:"dhcp_end"`
	DNSServers []string `json:"dns_servers"`
	LeaseTime  string   `json:"lease_time"`
}

func (s *Server) handleDHCPEnable(w http.ResponseWriter, r *http.Request) {
	var req dhcpEnableRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	cfg, err := s.dhcp.Enable(r.Context(), req.NetworkID, req.HostIP, req.DHCPStart, req.DHCPEnd, req.DNSServers, req.LeaseTime)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"dhcp_config": cfg})
}

type dhcpDisableRequest struct {
	NetworkID int `json:"network_id"`
}

func (s *Server) handleDHCPDisable(w http.ResponseWriter, r *http.Request) {
	var req dhcpDisableRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.dhcp.Disable(r.Context(), req.NetworkID); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, nil)
}

func (s *Server) handleDHCPConfig(w http.ResponseWriter, r *http.Request) {
	networkID, err := strconv.Atoi(r.URL.Query().Get("network_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	cfg, err := s.dhcp.GetConfig(networkID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"dhcp_config": cfg})
}

func (s *Server) handleDHCPLeases(w http.ResponseWriter, r *http.Request) {
	networkID, err := strconv.Atoi(r.URL.Query().Get("network_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	leases, err := s.dhcp.ListLeases(r.Context(), networkID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"leases": leases})
}

type dhcpReservationRequest struct {
	NetworkID int    `json:"network_id"`
	MAC       string `json:"mac"`
	IP        string `json:"ip"`
	Hostname  string `json:"hostname"`
}

func (s *Server) handleDHCPAddReservation(w http.ResponseWriter, r *http.Request) {
	var req dhcpReservationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.dhcp.AddReservation(r.Context(), req.NetworkID, req.MAC, req.IP, req.Hostname); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"reservation": map[string]string{
		"mac": req.MAC, "ip": req.IP, "hostname": req.Hostname,
	}})
}

type dhcpReservationDeleteRequest struct {
	NetworkID int    `json:"network_id"`
	MAC       string `json:"mac"`
}

func (s *Server) handleDHCPDeleteReservation(w http.ResponseWriter, r *http.Request) {
	var req dhcpReservationDeleteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.dhcp.RemoveReservation(r.Context(), req.NetworkID, req.MAC); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, nil)
}
