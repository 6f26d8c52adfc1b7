package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/recira/controller/pkg/cli"
)

type tunnelView struct {
	ID           int    `json:"id"`
	SrcSwitchID  int    `json:"src_switch_id"`
	DstSwitchID  int    `json:"dst_switch_id"`
	VNI          int    `json:"vni"`
	SrcPortName  string `json:"src_port_name"`
	DstPortName  string `json:"dst_port_name"`
	Status       string `json:"status"`
	Discovered   bool   `json:"discovered"`
}

var tunnelsCmd = &cobra.Command{
	Use:   "tunnels",
	Short: "Manage VXLAN tunnels between switches",
}

var tunnelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tunnels",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Tunnels []tunnelView `json:"tunnels"`
		}
		if err := app.client.Get("/api/tunnels", nil, &resp); err != nil {
			return err
		}

		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(resp.Tunnels)
		}

		t := cli.NewTable("ID", "SRC", "DST", "VNI", "SRC PORT", "DST PORT", "STATUS", "DISCOVERED")
		for _, tun := range resp.Tunnels {
			status := tun.Status
			if status == "up" {
				status = green(status)
			} else {
				status = red(status)
			}
			disc := "no"
			if tun.Discovered {
				disc = "yes"
			}
			t.Row(strconv.Itoa(tun.ID), strconv.Itoa(tun.SrcSwitchID), strconv.Itoa(tun.DstSwitchID),
				strconv.Itoa(tun.VNI), tun.SrcPortName, tun.DstPortName, status, disc)
		}
		t.Flush()
		return nil
	},
}

var tunnelCreateFlagVNI int

var tunnelsCreateCmd = &cobra.Command{
	Use:   "create <src_switch_id> <dst_switch_id>",
	Short: "Create a VXLAN tunnel between two switches",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid source switch id %q", args[0])
		}
		dst, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid destination switch id %q", args[1])
		}

		body := map[string]any{"src_switch_id": src, "dst_switch_id": dst}
		if cmd.Flags().Changed("vni") {
			body["vni"] = tunnelCreateFlagVNI
		}

		var resp struct {
			Tunnel tunnelView `json:"tunnel"`
		}
		if err := app.client.Post("/api/tunnels/create", body, &resp); err != nil {
			return err
		}
		fmt.Printf("Created tunnel %d (VNI %d)\n", resp.Tunnel.ID, resp.Tunnel.VNI)
		return nil
	},
}

var tunnelsDeleteCmd = &cobra.Command{
	Use:   "delete <tunnel_id>",
	Short: "Delete a tunnel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid tunnel id %q", args[0])
		}
		if err := app.client.Post("/api/tunnels/delete", map[string]any{"tunnel_id": id}, nil); err != nil {
			return err
		}
		fmt.Printf("Tunnel %d deleted\n", id)
		return nil
	},
}

func init() {
	tunnelsCreateCmd.Flags().IntVar(&tunnelCreateFlagVNI, "vni", 0, "Explicit VNI (auto-allocated if unset)")
	tunnelsCmd.AddCommand(tunnelsListCmd, tunnelsCreateCmd, tunnelsDeleteCmd)
}
