// recira-controllerd is the centralized control plane for an OVS/VXLAN
// overlay network: it tracks remote OVS hosts over SSH, creates and
// tears down VXLAN tunnels and full-mesh networks between them, and
// optionally runs a dnsmasq-backed DHCP service per network. It exposes
// all of that over a JSON/HTTP API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/recira/controller/pkg/audit"
	"github.com/recira/controller/pkg/config"
	"github.com/recira/controller/pkg/util"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "recira-controllerd",
		Short:         "Control plane daemon for OVS/VXLAN overlay networks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the daemon config file")

	rootCmd.AddCommand(newServeCmd(), versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("recira-controllerd dev build")
	},
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the controller daemon and its HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if err := util.SetLogLevel(cfg.LogLevel); err != nil {
				util.Warnf("invalid log_level %q, keeping default: %v", cfg.LogLevel, err)
			}
			if cfg.LogFormat == "json" {
				util.SetJSONFormat()
			}

			if err := setupAudit(cfg); err != nil {
				return fmt.Errorf("setting up audit log: %w", err)
			}

			ctl := newController(cfg)

			ctx := context.Background()
			if err := ctl.registry.LoadAndReconnect(ctx); err != nil {
				util.Warnf("loading host registry: %v", err)
			}
			if _, err := ctl.registry.DiscoverLocal(ctx); err != nil {
				util.Warnf("discovering local host: %v", err)
			}
			for _, load := range []func() error{ctl.tunnels.Load, ctl.networks.Load, ctl.dhcp.Load} {
				if err := load(); err != nil {
					util.Warnf("loading persisted state: %v", err)
				}
			}

			srv := ctl.httpServer(cfg)
			util.WithField("addr", cfg.BindAddr).Info("recira-controllerd listening")
			return srv.ListenAndServe()
		},
	}
}

func setupAudit(cfg *config.Config) error {
	fileLogger, err := audit.NewFileLogger(cfg.Audit.LogPath, audit.RotationConfig{
		MaxSize:    cfg.Audit.MaxSizeMB * 1024 * 1024,
		MaxBackups: cfg.Audit.MaxBackups,
	})
	if err != nil {
		return err
	}

	var logger audit.Logger = fileLogger
	if cfg.Audit.RedisAddr != "" {
		logger = audit.NewRedisSink(fileLogger, cfg.Audit.RedisAddr)
	}
	audit.SetDefaultLogger(logger)
	return nil
}

// httpServer builds the *http.Server for the wired controller, listening
// on the config's bind address.
func (c *Controller) httpServer(cfg *config.Config) *http.Server {
	return &http.Server{
		Addr:    cfg.BindAddr,
		Handler: c.api.Router(),
	}
}
