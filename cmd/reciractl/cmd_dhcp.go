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

var dhcpCmd = &cobra.Command{
	Use:   "dhcp",
	Short: "Manage DHCP service on networks",
}

type dhcpConfigView struct {
	NetworkID    int      `json:"network_id"`
	HostAddr     string   `json:"host_addr"`
	Bridge       string   `json:"bridge"`
	PortName     string   `json:"port_name"`
	Gateway      string   `json:"gateway"`
	DHCPStart    string   `json:"dhcp_start"`
	DHCPEnd      string   `json:"dhcp_end"`
	Netmask      string   `json:"netmask"`
	LeaseTime    string   `json:"lease_time"`
	DNSServers   []string `json:"dns_servers"`
	Reservations []struct {
		MAC      string `json:"mac"`
		IP       string `json:"ip"`
		Hostname string `json:"hostname"`
	} `json:"reservations"`
}

var (
	dhcpEnableFlagHostIP string
	dhcpEnableFlagStart  string
	dhcpEnableFlagEnd    string
	dhcpEnableFlagDNS    string
	dhcpEnableFlagLease  string
)

var dhcpEnableCmd = &cobra.Command{
	Use:   "enable <network_id>",
	Short: "Turn up dnsmasq-backed DHCP for a network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid network id %q", args[0])
		}
		var dns []string
		if dhcpEnableFlagDNS != "" {
			dns = strings.Split(dhcpEnableFlagDNS, ",")
		}
		var resp struct {
			DHCPConfig dhcpConfigView `json:"dhcp_config"`
		}
		err = app.client.Post("/api/dhcp/enable", map[string]any{
			"network_id": id, "host_ip": dhcpEnableFlagHostIP,
			"dhcp_start": dhcpEnableFlagStart, "dhcp_end": dhcpEnableFlagEnd,
			"dns_servers": dns, "lease_time": dhcpEnableFlagLease,
		}, &resp)
		if err != nil {
			return err
		}
		fmt.Printf("DHCP enabled for network %d on %s:%s\n", id, resp.DHCPConfig.Bridge, resp.DHCPConfig.PortName)
		return nil
	},
}

var dhcpDisableCmd = &cobra.Command{
	Use:   "disable <network_id>",
	Short: "Tear down DHCP for a network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid network id %q", args[0])
		}
		if err := app.client.Post("/api/dhcp/disable", map[string]any{"network_id": id}, nil); err != nil {
			return err
		}
		fmt.Printf("DHCP disabled for network %d\n", id)
		return nil
	},
}

var dhcpConfigCmd = &cobra.Command{
	Use:   "config <network_id>",
	Short: "Show the DHCP config for a network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := strconv.Atoi(args[0]); err != nil {
			return fmt.Errorf("invalid network id %q", args[0])
		}
		var resp struct {
			DHCPConfig dhcpConfigView `json:"dhcp_config"`
		}
		q := map[string][]string{"network_id": {args[0]}}
		if err := app.client.Get("/api/dhcp/config", q, &resp); err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(resp.DHCPConfig)
	},
}

var dhcpLeasesCmd = &cobra.Command{
	Use:   "leases <network_id>",
	Short: "List current DHCP leases for a network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := strconv.Atoi(args[0]); err != nil {
			return fmt.Errorf("invalid network id %q", args[0])
		}
		var resp struct {
			Leases []struct {
				MAC       string `json:"mac"`
				IP        string `json:"ip"`
				Hostname  string `json:"hostname"`
				ExpiresAt string `json:"expires_at"`
			} `json:"leases"`
		}
		q := map[string][]string{"network_id": {args[0]}}
		if err := app.client.Get("/api/dhcp/leases", q, &resp); err != nil {
			return err
		}

		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(resp.Leases)
		}

		t := cli.NewTable("MAC", "IP", "HOSTNAME", "EXPIRES")
		for _, l := range resp.Leases {
			t.Row(l.MAC, l.IP, dash(l.Hostname), l.ExpiresAt)
		}
		t.Flush()
		return nil
	},
}

var (
	dhcpResFlagMAC      string
	dhcpResFlagIP       string
	dhcpResFlagHostname string
)

var dhcpReservationAddCmd = &cobra.Command{
	Use:   "add <network_id>",
	Short: "Add or replace a MAC->IP reservation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid network id %q", args[0])
		}
		err = app.client.Post("/api/dhcp/reservation", map[string]any{
			"network_id": id, "mac": dhcpResFlagMAC, "ip": dhcpResFlagIP, "hostname": dhcpResFlagHostname,
		}, nil)
		if err != nil {
			return err
		}
		fmt.Printf("Reservation %s -> %s added to network %d\n", dhcpResFlagMAC, dhcpResFlagIP, id)
		return nil
	},
}

var dhcpReservationDeleteCmd = &cobra.Command{
	Use:   "delete <network_id> <mac>",
	Short: "Remove a reservation by MAC",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid network id %q", args[0])
		}
		if err := app.client.Post("/api/dhcp/reservation/delete", map[string]any{"network_id": id, "mac": args[1]}, nil); err != nil {
			return err
		}
		fmt.Printf("Reservation %s removed from network %d\n", args[1], id)
		return nil
	},
}

var dhcpReservationCmd = &cobra.Command{
	Use:   "reservation",
	Short: "Manage DHCP reservations",
}

func init() {
	dhcpEnableCmd.Flags().StringVar(&dhcpEnableFlagHostIP, "host-ip", "", "Management/overlay IP of the gateway host")
	dhcpEnableCmd.Flags().StringVar(&dhcpEnableFlagStart, "start", "", "First address of the DHCP range")
	dhcpEnableCmd.Flags().StringVar(&dhcpEnableFlagEnd, "end", "", "Last address of the DHCP range")
	dhcpEnableCmd.Flags().StringVar(&dhcpEnableFlagDNS, "dns", "", "Comma-separated DNS servers (default: 8.8.8.8,8.8.4.4)")
	dhcpEnableCmd.Flags().StringVar(&dhcpEnableFlagLease, "lease-time", "", "dnsmasq lease time (default: 24h)")

	dhcpReservationAddCmd.Flags().StringVar(&dhcpResFlagMAC, "mac", "", "MAC address")
	dhcpReservationAddCmd.Flags().StringVar(&dhcpResFlagIP, "ip", "", "Reserved IP")
	dhcpReservationAddCmd.Flags().StringVar(&dhcpResFlagHostname, "hostname", "", "Optional hostname")

	dhcpReservationCmd.AddCommand(dhcpReservationAddCmd, dhcpReservationDeleteCmd)
	dhcpCmd.AddCommand(dhcpEnableCmd, dhcpDisableCmd, dhcpConfigCmd, dhcpLeasesCmd, dhcpReservationCmd)
}
