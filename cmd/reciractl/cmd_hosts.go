package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/recira/controller/pkg/cli"
)

var hostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "Manage OVS hosts known to the controller",
}

type hostView struct {
	ID             int    `json:"id"`
	Hostname       string `json:"hostname"`
	ManagementAddr string `json:"management_addr"`
	OverlayAddr    string `json:"overlay_addr"`
	Kind           string `json:"kind"`
	Status         string `json:"status"`
	OVSVersion     string `json:"ovs_version"`
	Bridges        []struct {
		Name string `json:"name"`
	} `json:"bridges"`
}

var hostsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known hosts",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Hosts []hostView `json:"hosts"`
		}
		if err := app.client.Get("/api/hosts", nil, &resp); err != nil {
			return err
		}

		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(resp.Hosts)
		}

		t := cli.NewTable("ID", "HOSTNAME", "MANAGEMENT", "OVERLAY", "KIND", "STATUS", "OVS", "BRIDGES")
		for _, h := range resp.Hosts {
			status := yellow(h.Status)
			if h.Status == "online" {
				status = green(h.Status)
			} else if h.Status == "unreachable" {
				status = red(h.Status)
			}
			t.Row(strconv.Itoa(h.ID), h.Hostname, h.ManagementAddr, h.OverlayAddr, h.Kind, status, dash(h.OVSVersion), strconv.Itoa(len(h.Bridges)))
		}
		t.Flush()
		return nil
	},
}

var (
	hostAddFlagIP       string
	hostAddFlagUser     string
	hostAddFlagPassword string
	hostAddFlagVXLANIP  string
)

var hostsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a remote host",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Success bool     `json:"success"`
			Host    hostView `json:"host"`
		}
		err := app.client.Post("/api/hosts/add", map[string]any{
			"ip": hostAddFlagIP, "username": hostAddFlagUser,
			"password": hostAddFlagPassword, "vxlan_ip": hostAddFlagVXLANIP,
		}, &resp)
		if err != nil {
			return err
		}
		fmt.Printf("Registered host %d (%s)\n", resp.Host.ID, resp.Host.Hostname)
		return nil
	},
}

var (
	provFlagIP        string
	provFlagUser      string
	provFlagPassword  string
	provFlagIface     string
	provFlagVXLANIP   string
	provFlagConfigMTU bool
	provFlagOptimize  bool
)

var hostsProvisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Install and configure OVS on a remote host, then register it",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Success          bool            `json:"success"`
			ProvisionDetails json.RawMessage `json:"provision_details"`
			Host             hostView        `json:"host"`
		}
		err := app.client.Post("/api/hosts/provision", map[string]any{
			"ip": provFlagIP, "username": provFlagUser, "password": provFlagPassword,
			"vxlan_interface": provFlagIface, "vxlan_ip": provFlagVXLANIP,
			"configure_mtu": provFlagConfigMTU, "optimize": provFlagOptimize,
		}, &resp)
		if err != nil {
			return err
		}
		fmt.Printf("Provisioned and registered host %d (%s)\n", resp.Host.ID, resp.Host.Hostname)
		fmt.Println(string(resp.ProvisionDetails))
		return nil
	},
}

var (
	hostRemoveFlagKeepData bool
)

var hostsRemoveCmd = &cobra.Command{
	Use:   "remove <host_id>",
	Short: "Forget a host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid host id %q", args[0])
		}
		if err := app.client.Post("/api/hosts/remove", map[string]any{"host_id": id, "keep_data": hostRemoveFlagKeepData}, nil); err != nil {
			return err
		}
		fmt.Printf("Host %d removed\n", id)
		return nil
	},
}

var hostsReattachCmd = &cobra.Command{
	Use:   "reattach <host_id>",
	Short: "Re-probe and reattach a detached host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid host id %q", args[0])
		}
		if err := app.client.Post("/api/hosts/reattach", map[string]any{"host_id": id}, nil); err != nil {
			return err
		}
		fmt.Printf("Host %d reattached\n", id)
		return nil
	},
}

var (
	healthFlagIP       string
	healthFlagUser     string
	healthFlagPassword string
)

var hostsHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe a host's OVS/OS state without registering it",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Health json.RawMessage `json:"health"`
		}
		q := make(map[string][]string)
		q["ip"] = []string{healthFlagIP}
		q["username"] = []string{healthFlagUser}
		q["password"] = []string{healthFlagPassword}
		if err := app.client.Get("/api/hosts/health", q, &resp); err != nil {
			return err
		}
		fmt.Println(string(resp.Health))
		return nil
	},
}

func init() {
	hostsAddCmd.Flags().StringVar(&hostAddFlagIP, "ip", "", "Management IP of the host")
	hostsAddCmd.Flags().StringVar(&hostAddFlagUser, "user", "", "SSH username")
	hostsAddCmd.Flags().StringVar(&hostAddFlagPassword, "password", "", "SSH password")
	hostsAddCmd.Flags().StringVar(&hostAddFlagVXLANIP, "vxlan-ip", "", "Overlay IP tunnels terminate on (defaults to --ip)")

	hostsProvisionCmd.Flags().StringVar(&provFlagIP, "ip", "", "Management IP of the host")
	hostsProvisionCmd.Flags().StringVar(&provFlagUser, "user", "", "SSH username")
	hostsProvisionCmd.Flags().StringVar(&provFlagPassword, "password", "", "SSH password")
	hostsProvisionCmd.Flags().StringVar(&provFlagIface, "iface", "", "Interface to tune MTU on")
	hostsProvisionCmd.Flags().StringVar(&provFlagVXLANIP, "vxlan-ip", "", "Overlay IP tunnels terminate on")
	hostsProvisionCmd.Flags().BoolVar(&provFlagConfigMTU, "configure-mtu", false, "Configure jumbo-frame MTU")
	hostsProvisionCmd.Flags().BoolVar(&provFlagOptimize, "optimize", false, "Apply OVS performance tuning")

	hostsRemoveCmd.Flags().BoolVar(&hostRemoveFlagKeepData, "keep-data", false, "Keep the host's OVS state untouched (always true; flag accepted for parity with the API)")

	hostsHealthCmd.Flags().StringVar(&healthFlagIP, "ip", "", "Management IP to probe")
	hostsHealthCmd.Flags().StringVar(&healthFlagUser, "user", "", "SSH username")
	hostsHealthCmd.Flags().StringVar(&healthFlagPassword, "password", "", "SSH password")

	hostsCmd.AddCommand(hostsListCmd, hostsAddCmd, hostsProvisionCmd, hostsRemoveCmd, hostsReattachCmd, hostsHealthCmd)
}
