package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"natrender/internal/daemonctl"
	"natrender/internal/daemonrun"
	"natrender/internal/ipc"
	"natrender/internal/preflight"
	"natrender/internal/queue"
	"natrender/internal/render"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var logLevel string
	var development bool
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the natrender daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if socket := ctx.socketPath(); socket != cfg.Paths.SocketPath {
				cfg.Paths.SocketPath = socket
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
				ConfigPath:  ctx.loadedConfigPath(),
			})
		},
	}
	daemonCmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	daemonCmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log output")

	var startWait time.Duration
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Launch the natrender daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			executable, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			result, err := daemonctl.EnsureStarted(ctx.socketPath(), executable, daemonctl.LaunchOptions{
				ConfigPath: ctx.loadedConfigPath(),
				LogLevel:   logLevel,
			}, startWait)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			switch result.State {
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
			default:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			}
			return nil
		},
	}
	startCmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	startCmd.Flags().DurationVar(&startWait, "wait", 10*time.Second, "How long to wait for the daemon socket")

	var stopGrace time.Duration
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Cancel every render and stop the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), stopGrace)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			switch {
			case result.ForcedKill:
				fmt.Fprintf(stdout, "Daemon did not stop within %s; killed pid %d\n", stopGrace, result.PID)
			case result.StopAcknowledged:
				fmt.Fprintln(stdout, "Daemon stopped")
			default:
				fmt.Fprintln(stdout, "Stop request sent")
			}
			return nil
		},
	}
	stopCmd.Flags().DurationVar(&stopGrace, "grace", 10*time.Second, "How long to wait before killing the daemon")

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, render and preflight status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status *ipc.StatusResponse
			err := ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				status = resp
				return nil
			})
			switch {
			case errors.Is(err, errDaemonNotRunning):
				status, err = offlineStatus(cmd, ctx)
				if err != nil {
					return err
				}
			case err != nil:
				return err
			}

			if statusJSON {
				return writeJSON(cmd, status)
			}
			stdout := cmd.OutOrStdout()
			writeStatus(stdout, status, shouldColorize(stdout), time.Now())
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output status as JSON")

	return []*cobra.Command{daemonCmd, startCmd, stopCmd, statusCmd}
}

// offlineStatus builds a status report from local checks and the journal
// when no daemon answers.
func offlineStatus(cmd *cobra.Command, ctx *commandContext) (*ipc.StatusResponse, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	status := &ipc.StatusResponse{
		Project:     cfg.Paths.ProjectFile,
		Settings:    render.SettingsFromConfig(cfg),
		JournalPath: cfg.JournalPath(),
		LockPath:    cfg.LockPath(),
		History:     map[string]int{},
	}
	for _, result := range preflight.RunAll(cfg) {
		status.Preflight = append(status.Preflight, ipc.PreflightResult{
			Name:   result.Name,
			Passed: result.Passed,
			Detail: result.Detail,
		})
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open render journal: %w", err)
	}
	defer store.Close()
	stats, err := store.Stats(cmd.Context())
	if err != nil {
		return nil, err
	}
	for k, v := range stats {
		status.History[string(k)] = v
	}
	return status, nil
}

func writeStatus(w io.Writer, status *ipc.StatusResponse, colorize bool, now time.Time) {
	printLines(w, renderSectionHeader("Daemon", colorize))
	if status.Running {
		fmt.Fprintln(w, renderStatusLine("Daemon", statusOK, "running (pid "+strconv.Itoa(status.PID)+")", colorize))
	} else {
		fmt.Fprintln(w, renderStatusLine("Daemon", statusWarn, "not running", colorize))
	}
	project := status.Project
	if status.ProjectName != "" {
		project = fmt.Sprintf("%s (%s)", status.ProjectName, status.Project)
	}
	if project == "" {
		fmt.Fprintln(w, renderStatusLine("Project", statusWarn, "paths.project_file is not set", colorize))
	} else {
		fmt.Fprintln(w, renderStatusLine("Project", statusInfo, project, colorize))
	}
	fmt.Fprintln(w, renderStatusLine("Journal", statusInfo, status.JournalPath, colorize))
	fmt.Fprintln(w)

	printLines(w, renderSectionHeader("Settings", colorize))
	printLines(w, settingsLines(status.Settings, colorize))
	fmt.Fprintln(w)

	printLines(w, renderSectionHeader("Preflight", colorize))
	printLines(w, preflightLines(status.Preflight, colorize))
	fmt.Fprintln(w)

	printLines(w, renderSectionHeader("Renders", colorize))
	rows := buildRenderRows(status.Active, status.Pending, now)
	if len(rows) == 0 {
		fmt.Fprintln(w, "No active or pending renders")
	} else {
		fmt.Fprint(w, renderTable(renderHeaders, rows, renderAligns))
	}
	fmt.Fprintln(w)

	printLines(w, renderSectionHeader("History", colorize))
	historyRows := buildHistoryStatsRows(status.History)
	if len(historyRows) == 0 {
		fmt.Fprintln(w, "Journal is empty")
		return
	}
	fmt.Fprint(w, renderTable([]string{"Status", "Count"}, historyRows, []columnAlignment{alignLeft, alignRight}))
}

func buildHistoryStatsRows(stats map[string]int) [][]string {
	keys := make([]string, 0, len(stats))
	for key, count := range stats {
		if count > 0 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{statusLabel(key), strconv.Itoa(stats[key])})
	}
	return rows
}
