package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/recira/controller/pkg/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage persistent CLI settings",
	Long: `Manage persistent settings stored in ~/.reciractl/settings.json.

Examples:
  reciractl settings show
  reciractl settings set api_addr http://10.0.0.5:8080
  reciractl settings set output_format json
  reciractl settings clear`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		fmt.Printf("Settings file: %s\n\n", settings.DefaultSettingsPath())

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SETTING\tVALUE")
		fmt.Fprintln(w, "-------\t-----")
		fmt.Fprintf(w, "api_addr\t%s\n", dash(s.APIAddr))
		fmt.Fprintf(w, "default_network\t%s\n", dash(s.DefaultNetwork))
		fmt.Fprintf(w, "output_format\t%s\n", dash(s.OutputFormat))
		fmt.Fprintf(w, "audit_log_path\t%s\n", dash(s.AuditLogPath))
		fmt.Fprintf(w, "audit_max_size_mb\t%s\n", dash(strconv.Itoa(s.AuditMaxSizeMB)))
		fmt.Fprintf(w, "audit_max_backups\t%s\n", dash(strconv.Itoa(s.AuditMaxBackups)))
		w.Flush()
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <setting> <value>",
	Short: "Set a setting value",
	Long: `Available settings: api_addr, default_network, output_format,
audit_log_path, audit_max_size_mb, audit_max_backups.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		setting, value := args[0], args[1]

		s, err := settings.Load()
		if err != nil {
			s = &settings.Settings{}
		}

		switch setting {
		case "api_addr":
			s.APIAddr = value
		case "default_network":
			s.DefaultNetwork = value
		case "output_format":
			s.OutputFormat = value
		case "audit_log_path":
			s.AuditLogPath = value
		case "audit_max_size_mb":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("audit_max_size_mb must be an integer: %w", err)
			}
			s.AuditMaxSizeMB = n
		case "audit_max_backups":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("audit_max_backups must be an integer: %w", err)
			}
			s.AuditMaxBackups = n
		default:
			return fmt.Errorf("unknown setting: %s", setting)
		}

		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Printf("%s set to: %s\n", setting, value)
		return nil
	},
}

var settingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := &settings.Settings{}
		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Println("All settings cleared.")
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsClearCmd)
}
