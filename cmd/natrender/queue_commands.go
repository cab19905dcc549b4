package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"natrender/internal/ipc"
	"natrender/internal/render"
)

var (
	renderHeaders = []string{"Writer", "State", "Frames", "Mode", "PID", "Sequence", "Since"}
	renderAligns  = []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft}
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage active and pending renders",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueCancelCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active and pending renders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, struct {
						Active  []render.Info `json:"active"`
						Pending []render.Info `json:"pending"`
					}{status.Active, status.Pending})
				}
				rows := buildRenderRows(status.Active, status.Pending, time.Now())
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No active or pending renders")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(renderHeaders, rows, renderAligns))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newQueueCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <writer>...",
		Short: "Cancel active renders or drop pending ones",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				for _, writer := range args {
					if _, err := client.Cancel(writer); err != nil {
						return fmt.Errorf("cancel %s: %w", writer, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Cancelled %s\n", writer)
				}
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <writer>...",
		Short: "Drop pending renders before they start",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				for _, writer := range args {
					if _, err := client.Remove(writer); err != nil {
						return fmt.Errorf("remove %s: %w", writer, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from the queue\n", writer)
				}
				return nil
			})
		},
	}
}

func buildRenderRows(active, pending []render.Info, now time.Time) [][]string {
	rows := make([][]string, 0, len(active)+len(pending))
	for _, info := range active {
		rows = append(rows, renderRow(info, "active", info.StartedAt, now))
	}
	for i, info := range pending {
		rows = append(rows, renderRow(info, fmt.Sprintf("pending #%d", i+1), info.SubmittedAt, now))
	}
	return rows
}

func renderRow(info render.Info, state string, since time.Time, now time.Time) []string {
	return []string{
		info.Writer,
		statusLabel(state),
		info.Range.String(),
		statusLabel(string(info.Mode)),
		formatPID(info.PID),
		info.SequenceName,
		relativeTime(since, now),
	}
}
