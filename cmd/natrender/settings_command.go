package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"natrender/internal/ipc"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	var (
		separateProcess bool
		queuing         bool
		maxParallel     int
		asJSON          bool
	)
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the daemon's render policy",
		Long: "Without flags the current policy is printed. Changes apply to the next submission; " +
			"renders already running keep the policy they started with.",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			changed := flags.Changed("separate-process") || flags.Changed("queuing") || flags.Changed("max-parallel")
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Settings()
				if err != nil {
					return err
				}
				if changed {
					update := resp.Settings
					if flags.Changed("separate-process") {
						update.SeparateProcess = separateProcess
					}
					if flags.Changed("queuing") {
						update.Queuing = queuing
					}
					if flags.Changed("max-parallel") {
						update.MaxParallel = maxParallel
					}
					if resp, err = client.UpdateSettings(update); err != nil {
						return err
					}
				}
				if asJSON {
					return writeJSON(cmd, resp.Settings)
				}
				stdout := cmd.OutOrStdout()
				if changed {
					fmt.Fprintln(stdout, "Settings updated")
				}
				printLines(stdout, settingsLines(resp.Settings, shouldColorize(stdout)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&separateProcess, "separate-process", false, "Render each writer in a child process")
	cmd.Flags().BoolVar(&queuing, "queuing", true, "Queue new renders behind active ones")
	cmd.Flags().IntVar(&maxParallel, "max-parallel", 0, "Worker pool size for blocking renders")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
