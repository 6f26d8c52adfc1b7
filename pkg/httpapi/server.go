// Package httpapi exposes the controller's state over a JSON/HTTP façade,
// the surface the bundled UI and reciractl both speak.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/recira/controller/pkg/audit"
	"github.com/recira/controller/pkg/dhcp"
	"github.com/recira/controller/pkg/hostregistry"
	"github.com/recira/controller/pkg/network"
	"github.com/recira/controller/pkg/tunnel"
)

const apiVersion = "1.0.0"

// Server wires the core managers to HTTP handlers.
type Server struct {
	registry  *hostregistry.Registry
	tunnels   *tunnel.Manager
	networks  *network.Manager
	dhcp      *dhcp.Manager
	staticDir string
	startedAt time.Time
}

// NewServer builds a Server over already-constructed managers.
func NewServer(registry *hostregistry.Registry, tunnels *tunnel.Manager, networks *network.Manager, d *dhcp.Manager, staticDir string) *Server {
	return &Server{
		registry:  registry,
		tunnels:   tunnels,
		networks:  networks,
		dhcp:      d,
		staticDir: staticDir,
		startedAt: time.Now(),
	}
}

// Router builds the gorilla/mux router for this server: one route per
// spec.md §6 table row, a catch-all under /api/ for the documented unknown-
// path quirk, and a static file fallback for everything else.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.corsMiddleware)
	r.Use(s.auditMiddleware)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	api.HandleFunc("/hosts", s.handleListHosts).Methods(http.MethodGet)
	api.HandleFunc("/hosts/add", s.handleAddHost).Methods(http.MethodPost)
	api.HandleFunc("/hosts/provision", s.handleProvisionHost).Methods(http.MethodPost)
	api.HandleFunc("/hosts/remove", s.handleRemoveHost).Methods(http.MethodPost)
	api.HandleFunc("/hosts/reattach", s.handleReattachHost).Methods(http.MethodPost)
	api.HandleFunc("/hosts/health", s.handleHostHealth).Methods(http.MethodGet)

	api.HandleFunc("/switches", s.handleListSwitches).Methods(http.MethodGet)

	api.HandleFunc("/tunnels", s.handleListTunnels).Methods(http.MethodGet)
	api.HandleFunc("/tunnels/create", s.handleCreateTunnel).Methods(http.MethodPost)
	api.HandleFunc("/tunnels/delete", s.handleDeleteTunnel).Methods(http.MethodPost)

	api.HandleFunc("/networks", s.handleListNetworks).Methods(http.MethodGet)
	api.HandleFunc("/networks/create", s.handleCreateNetwork).Methods(http.MethodPost)
	api.HandleFunc("/networks/delete", s.handleDeleteNetwork).Methods(http.MethodPost)

	api.HandleFunc("/dhcp/enable", s.handleDHCPEnable).Methods(http.MethodPost)
	api.HandleFunc("/dhcp/disable", s.handleDHCPDisable).Methods(http.MethodPost)
	api.HandleFunc("/dhcp/config", s.handleDHCPConfig).Methods(http.MethodGet)
	api.HandleFunc("/dhcp/leases", s.handleDHCPLeases).Methods(http.MethodGet)
	api.HandleFunc("/dhcp/reservation", s.handleDHCPAddReservation).Methods(http.MethodPost)
	api.HandleFunc("/dhcp/reservation/delete", s.handleDHCPDeleteReservation).Methods(http.MethodPost)

	// Unknown /api/ paths: documented quirk, not a bug — spec.md keeps this
	// 200-with-error-body shape rather than 404ing it.
	api.PathPrefix("/").HandlerFunc(s.handleUnknownAPIPath)

	if s.staticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.staticDir)))
	}

	return r
}

func (s *Server) handleUnknownAPIPath(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"error": "unknown API endpoint",
		"path":  r.URL.Path,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	hosts := s.registry.ListHosts()
	switches := s.registry.ListSwitches()
	networks := s.networks.List()

	dhcpEnabled := false
	for _, n := range networks {
		if s.dhcp.IsEnabled(n.ID) {
			dhcpEnabled = true
			break
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "running",
		"version":      apiVersion,
		"uptime":       time.Since(s.startedAt).String(),
		"hosts":        len(hosts),
		"switches":     len(switches),
		"networks":     len(networks),
		"dhcp_enabled": dhcpEnabled,
	})
}
