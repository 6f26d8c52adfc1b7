package main

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/recira/controller/pkg/cli"
)

type switchView struct {
	ID         int    `json:"id"`
	HostID     int    `json:"host_id"`
	Hostname   string `json:"hostname"`
	HostAddr   string `json:"host_addr"`
	Name       string `json:"name"`
	FailMode   string `json:"fail_mode"`
	PortCount  int    `json:"port_count"`
}

var switchesCmd = &cobra.Command{
	Use:   "switches",
	Short: "List discovered OVS bridges",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Switches []switchView `json:"switches"`
		}
		if err := app.client.Get("/api/switches", nil, &resp); err != nil {
			return err
		}

		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(resp.Switches)
		}

		t := cli.NewTable("ID", "HOSTNAME", "HOST ADDR", "BRIDGE", "FAIL MODE", "PORTS")
		for _, sw := range resp.Switches {
			t.Row(strconv.Itoa(sw.ID), sw.Hostname, sw.HostAddr, sw.Name, string(sw.FailMode), strconv.Itoa(sw.PortCount))
		}
		t.Flush()
		return nil
	},
}
