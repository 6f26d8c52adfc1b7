package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/recira/controller/pkg/cli"
)

type networkView struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	VNI         int    `json:"vni"`
	Subnet      string `json:"subnet"`
	Gateway     string `json:"gateway"`
	SwitchIDs   []int  `json:"switch_ids"`
	TunnelIDs   []int  `json:"tunnel_ids"`
	DHCPEnabled bool   `json:"dhcp_enabled"`
}

var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "Manage VXLAN networks",
}

var networksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List networks",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Networks []networkView `json:"networks"`
		}
		if err := app.client.Get("/api/networks", nil, &resp); err != nil {
			return err
		}

		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(resp.Networks)
		}

		t := cli.NewTable("ID", "NAME", "VNI", "SUBNET", "GATEWAY", "SWITCHES", "TUNNELS", "DHCP")
		for _, n := range resp.Networks {
			dhcp := "disabled"
			if n.DHCPEnabled {
				dhcp = green("enabled")
			}
			t.Row(strconv.Itoa(n.ID), n.Name, strconv.Itoa(n.VNI), dash(n.Subnet), dash(n.Gateway),
				strconv.Itoa(len(n.SwitchIDs)), strconv.Itoa(len(n.TunnelIDs)), dhcp)
		}
		t.Flush()
		return nil
	},
}

var (
	netCreateFlagSwitches string
	netCreateFlagVNI      int
	netCreateFlagSubnet   string
	netCreateFlagGateway  string
)

var networksCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Group switches into a full-mesh VXLAN network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var switchIDs []int
		for _, s := range strings.Split(netCreateFlagSwitches, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			id, err := strconv.Atoi(s)
			if err != nil {
				return fmt.Errorf("invalid switch id %q", s)
			}
			switchIDs = append(switchIDs, id)
		}

		body := map[string]any{
			"name": args[0], "switches": switchIDs,
			"subnet": netCreateFlagSubnet, "gateway": netCreateFlagGateway,
		}
		if cmd.Flags().Changed("vni") {
			body["vni"] = netCreateFlagVNI
		}

		var resp struct {
			Network networkView `json:"network"`
		}
		if err := app.client.Post("/api/networks/create", body, &resp); err != nil {
			return err
		}
		fmt.Printf("Created network %d (%s), VNI %d, %d tunnel(s)\n",
			resp.Network.ID, resp.Network.Name, resp.Network.VNI, len(resp.Network.TunnelIDs))
		return nil
	},
}

var networksDeleteCmd = &cobra.Command{
	Use:   "delete <network_id>",
	Short: "Delete a network, its tunnels, and its DHCP service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid network id %q", args[0])
		}
		if err := app.client.Post("/api/networks/delete", map[string]any{"network_id": id}, nil); err != nil {
			return err
		}
		fmt.Printf("Network %d deleted\n", id)
		return nil
	},
}

func init() {
	networksCreateCmd.Flags().StringVar(&netCreateFlagSwitches, "switches", "", "Comma-separated switch IDs (at least 2)")
	networksCreateCmd.Flags().IntVar(&netCreateFlagVNI, "vni", 0, "Explicit VNI (auto-allocated if unset)")
	networksCreateCmd.Flags().StringVar(&netCreateFlagSubnet, "subnet", "", "CIDR subnet, e.g. 10.1.0.0/24")
	networksCreateCmd.Flags().StringVar(&netCreateFlagGateway, "gateway", "", "Gateway IP within the subnet")

	networksCmd.AddCommand(networksListCmd, networksCreateCmd, networksDeleteCmd)
}
