package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"natrender/internal/ipc"
	"natrender/internal/queue"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the render journal",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))
	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses []string
		limit    int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journaled renders, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, raw := range statuses {
				if _, ok := queue.ParseStatus(raw); !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
			}
			return ctx.withJournal(func(client *ipc.Client, store *queue.Store) error {
				var records []ipc.HistoryRecord
				if client != nil {
					resp, err := client.History(limit, statuses)
					if err != nil {
						return err
					}
					records = resp.Records
				} else {
					filter := make([]queue.Status, 0, len(statuses))
					for _, raw := range statuses {
						status, _ := queue.ParseStatus(raw)
						filter = append(filter, status)
					}
					items, err := store.List(cmd.Context(), limit, filter...)
					if err != nil {
						return err
					}
					records = make([]ipc.HistoryRecord, 0, len(items))
					for _, item := range items {
						records = append(records, historyRecordFromStore(item))
					}
				}

				if asJSON {
					return writeJSON(cmd, records)
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Journal is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Writer", "Frames", "Mode", "Status", "Progress", "Duration", "Updated", "Error"},
					buildHistoryRows(records, time.Now()),
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (pending, active, completed, failed, cancelled, rejected)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of records (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove finished records from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJournal(func(client *ipc.Client, store *queue.Store) error {
				var removed int64
				if client != nil {
					resp, err := client.ClearHistory(all)
					if err != nil {
						return err
					}
					removed = resp.Removed
				} else {
					var err error
					if all {
						removed, err = store.Clear(cmd.Context())
					} else {
						removed, err = store.ClearFinished(cmd.Context())
					}
					if err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d record(s)\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Remove every record, including pending and active ones")
	return cmd
}

func historyRecordFromStore(record *queue.Record) ipc.HistoryRecord {
	return ipc.HistoryRecord{
		ID:              record.ID,
		Writer:          record.Writer,
		SequenceName:    record.SequenceName,
		FirstFrame:      record.FirstFrame,
		LastFrame:       record.LastFrame,
		FrameStep:       record.FrameStep,
		Mode:            record.Mode,
		Status:          string(record.Status),
		PID:             record.PID,
		ProgressPercent: record.ProgressPercent,
		ErrorKind:       record.ErrorKind,
		ErrorMessage:    record.ErrorMessage,
		CreatedAt:       record.CreatedAt,
		UpdatedAt:       record.UpdatedAt,
		StartedAt:       record.StartedAt,
		FinishedAt:      record.FinishedAt,
	}
}

func buildHistoryRows(records []ipc.HistoryRecord, now time.Time) [][]string {
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		id := record.ID
		if len(id) > 8 {
			id = id[:8]
		}
		var duration time.Duration
		if record.StartedAt != nil {
			end := now
			if record.FinishedAt != nil {
				end = *record.FinishedAt
			}
			duration = end.Sub(*record.StartedAt)
		}
		rows = append(rows, []string{
			id,
			record.Writer,
			formatFrames(record.FirstFrame, record.LastFrame, record.FrameStep),
			statusLabel(record.Mode),
			statusLabel(record.Status),
			formatPercent(record.ProgressPercent),
			formatDuration(duration),
			relativeTime(record.UpdatedAt, now),
			record.ErrorMessage,
		})
	}
	return rows
}
