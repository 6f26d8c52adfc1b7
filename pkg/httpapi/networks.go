package httpapi

import (
	"net/http"

	"github.com/recira/controller/pkg/network"
)

// networkView inlines DHCP status alongside a network record, per spec.md
// §6's `/api/networks` response shape.
type networkView struct {
	*network.Network
	DHCPEnabled bool `json:"dhcp_enabled"`
}

func (s *Server) handleListNetworks(w http.ResponseWriter, r *http.Request) {
	nets := s.networks.List()
	out := make([]networkView, 0, len(nets))
	for _, n := range nets {
		out = append(out, networkView{Network: n, DHCPEnabled: s.dhcp.IsEnabled(n.ID)})
	}
	writeSuccess(w, map[string]any{"networks": out})
}

type createNetworkRequest struct {
	Name     string `json:"name"`
	Switches []int  `json:"switches"`
	VNI      *int   `json:"vni"`
	Subnet   string `json:"subnet"`
	Gateway  string `json:"gateway"`
}

func (s *Server) handleCreateNetwork(w http.ResponseWriter, r *http.Request) {
	var req createNetworkRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	net, err := s.networks.Create(r.Context(), req.Name, req.Switches, req.VNI, req.Subnet, req.Gateway)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"network": net})
}

type deleteNetworkRequest struct {
	NetworkID int `json:"network_id"`
}

func (s *Server) handleDeleteNetwork(w http.ResponseWriter, r *http.Request) {
	var req deleteNetworkRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.networks.Delete(r.Context(), req.NetworkID); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, nil)
}
