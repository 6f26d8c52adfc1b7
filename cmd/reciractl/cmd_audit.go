package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/recira/controller/pkg/audit"
	"github.com/recira/controller/pkg/settings"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View the controller's audit log",
	Long: `View audit log entries recorded by the controller daemon.

The audit log is read directly from disk (the same file the daemon
writes to), not through the HTTP API.

Examples:
  reciractl audit list --resource network:3
  reciractl audit list --last 24h
  reciractl audit list --actor 10.0.0.7 --failures`,
}

var (
	auditResource string
	auditOp       string
	auditActor    string
	auditLast     string
	auditLimit    int
	auditOffset   int
	auditFailures bool
	auditSuccess  bool
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			s = &settings.Settings{}
		}

		filter := audit.Filter{
			Resource:    auditResource,
			Operation:   auditOp,
			Actor:       auditActor,
			Limit:       auditLimit,
			Offset:      auditOffset,
			FailureOnly: auditFailures,
			SuccessOnly: auditSuccess,
		}

		if auditLast != "" {
			duration, err := time.ParseDuration(auditLast)
			if err != nil {
				return fmt.Errorf("invalid duration %q: %w", auditLast, err)
			}
			filter.StartTime = time.Now().Add(-duration)
		}

		logger, err := audit.NewFileLogger(s.GetAuditLogPath(), audit.RotationConfig{})
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		defer logger.Close()

		events, err := logger.Query(filter)
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}

		if app.jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(events)
		}

		if len(events) == 0 {
			fmt.Println("No audit events found")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIMESTAMP\tACTOR\tRESOURCE\tOPERATION\tSTATUS\tDETAIL")
		fmt.Fprintln(w, "---------\t-----\t--------\t---------\t------\t------")

		for _, event := range events {
			status := green("ok")
			if !event.Success {
				status = red("failed")
			}

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				event.Timestamp.Format("2006-01-02 15:04:05"),
				dash(event.Actor),
				event.Resource,
				event.Operation,
				status,
				dash(event.Detail),
			)
		}
		w.Flush()

		return nil
	},
}

func init() {
	auditListCmd.Flags().StringVar(&auditResource, "resource", "", "Filter by resource (e.g. network:3)")
	auditListCmd.Flags().StringVar(&auditOp, "operation", "", "Filter by operation name")
	auditListCmd.Flags().StringVar(&auditActor, "actor", "", "Filter by actor (client IP or user)")
	auditListCmd.Flags().StringVar(&auditLast, "last", "", "Show events from last duration (e.g., 24h, 168h)")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum events to show")
	auditListCmd.Flags().IntVar(&auditOffset, "offset", 0, "Skip this many matching events before limiting")
	auditListCmd.Flags().BoolVar(&auditFailures, "failures", false, "Show only failed operations")
	auditListCmd.Flags().BoolVar(&auditSuccess, "success", false, "Show only successful operations")

	auditCmd.AddCommand(auditListCmd)
}
