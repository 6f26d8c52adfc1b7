// reciractl is the command-line client for recira-controllerd.
//
// It talks to the controller's JSON API over HTTP; it does not touch OVS
// or SSH directly. Resources are grouped by noun (hosts, switches,
// tunnels, networks, dhcp):
//
//	reciractl hosts list
//	reciractl hosts add --ip 10.0.0.5 --user root --password secret
//	reciractl networks create prod --switches 1,2 --vni 1000 --subnet 10.1.0.0/24 --gateway 10.1.0.1
//	reciractl dhcp enable 1 --host-ip 10.0.0.5 --start 10.1.0.10 --end 10.1.0.250
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/recira/controller/pkg/apiclient"
	"github.com/recira/controller/pkg/cli"
	"github.com/recira/controller/pkg/settings"
	"github.com/recira/controller/pkg/util"
)

// App holds CLI state shared across all commands.
type App struct {
	serverAddr string
	jsonOutput bool

	settings *settings.Settings
	client   *apiclient.Client
}

var app = &App{}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "reciractl",
	Short:         "Command-line client for recira-controllerd",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if isSettingsOrHelp(cmd) {
			return nil
		}

		var err error
		app.settings, err = settings.Load()
		if err != nil {
			util.Logger.Warnf("could not load settings: %v", err)
			app.settings = &settings.Settings{}
		}

		addr := app.serverAddr
		if addr == "" {
			addr = app.settings.GetAPIAddr()
		}
		app.client = apiclient.New(addr)
		return nil
	},
}

func isSettingsOrHelp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "version", "settings":
			return true
		}
	}
	return false
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&app.serverAddr, "server", "S", "", "Controller API address (default: from settings, or "+settings.DefaultAPIAddr+")")
	rootCmd.PersistentFlags().BoolVar(&app.jsonOutput, "json", false, "JSON output")

	rootCmd.AddCommand(hostsCmd, switchesCmd, tunnelsCmd, networksCmd, dhcpCmd, settingsCmd, auditCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("reciractl dev build")
	},
}

// Color helpers — delegate to pkg/cli
func green(s string) string  { return cli.Green(s) }
func yellow(s string) string { return cli.Yellow(s) }
func red(s string) string    { return cli.Red(s) }

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
