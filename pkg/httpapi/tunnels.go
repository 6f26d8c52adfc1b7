package httpapi

import "net/http"

func (s *Server) handleListTunnels(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, map[string]any{"tunnels": s.tunnels.List()})
}

type createTunnelRequest struct {
	SrcSwitchID int  `json:"src_switch_id"`
	DstSwitchID int  `json:"dst_switch_id"`
	VNI         *int `json:"vni"`
}

func (s *Server) handleCreateTunnel(w http.ResponseWriter, r *http.Request) {
	var req createTunnelRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	t, err := s.tunnels.Create(r.Context(), req.SrcSwitchID, req.DstSwitchID, req.VNI)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, map[string]any{"tunnel": t})
}

type deleteTunnelRequest struct {
	TunnelID int `json:"tunnel_id"`
}

func (s *Server) handleDeleteTunnel(w http.ResponseWriter, r *http.Request) {
	var req deleteTunnelRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.tunnels.Delete(r.Context(), req.TunnelID); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, nil)
}
