package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"natrender/internal/engine"
	"natrender/internal/ipc"
	"natrender/internal/logging"
	"natrender/internal/project"
	"natrender/internal/render"
	"natrender/internal/renderproc"
	"natrender/internal/services"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var (
		projectPath  string
		writers      []string
		ranges       []string
		step         int
		stats        bool
		background   bool
		progressJSON bool
	)
	cmd := &cobra.Command{
		Use:   "render [writer...]",
		Short: "Render writers in the foreground without a daemon",
		Long: "Render writers of a project and wait for every render to finish. Logs go to stderr. " +
			"With --progress-json, stdout carries one JSON progress object per line; the daemon " +
			"uses this mode for out-of-process renders.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			path := strings.TrimSpace(projectPath)
			if path == "" {
				path = cfg.Paths.ProjectFile
			}
			if path == "" {
				return services.Wrap(services.ErrConfiguration, "cli", "render",
					"no project: pass --project or set paths.project_file", nil)
			}
			spans, err := parseFrameSpans(ranges, step)
			if err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Writer: cmd.ErrOrStderr(),
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			proj, err := project.Load(path,
				project.WithRenderer(engine.New(cfg, engine.WithLogger(logger))),
				project.WithSnapshotDir(cfg.Paths.SnapshotDir),
			)
			if err != nil {
				return err
			}

			settings := render.SettingsFromConfig(cfg)
			settings.SeparateProcess = false
			settings.Background = background
			opts := []render.Option{
				render.WithLogger(logger),
				render.WithSettings(settings),
				render.WithMetricSink(nil),
			}
			if progressJSON {
				write := renderproc.ProgressWriter(cmd.OutOrStdout())
				opts = append(opts, render.WithObserver(render.ObserverFunc(func(_ context.Context, event render.Event) {
					if event.Type == render.EventProgress {
						write(event.Progress)
					}
				})))
			}
			dispatcher := render.NewDispatcher(proj, opts...)

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			sub, err := dispatcher.SubmitNames(runCtx, render.SubmitRequest{
				Writers:  append(writers, args...),
				Ranges:   spans,
				Stats:    stats,
				Blocking: true,
			})
			if err != nil {
				return err
			}
			if !progressJSON {
				outcomes := make([]ipc.Outcome, 0, len(sub.Outcomes))
				for _, outcome := range sub.Outcomes {
					out := ipc.Outcome{Item: outcome.Item, Status: string(outcome.Status)}
					if outcome.Err != nil {
						out.Error = outcome.Err.Error()
						out.ErrorKind = services.Kind(outcome.Err)
					}
					outcomes = append(outcomes, out)
				}
				writeOutcomes(cmd.OutOrStdout(), outcomes)
			}
			return sub.Err()
		},
	}
	cmd.Flags().StringVarP(&projectPath, "project", "p", "", "Project file (defaults to paths.project_file)")
	cmd.Flags().StringSliceVarP(&writers, "writer", "w", nil, "Writer node to render (repeatable)")
	cmd.Flags().StringArrayVarP(&ranges, "range", "r", nil, "Frame range first-last[xstep] (repeatable)")
	cmd.Flags().IntVar(&step, "step", 0, "Frame step for ranges without an explicit step")
	cmd.Flags().BoolVar(&stats, "stats", false, "Log per-frame render statistics")
	cmd.Flags().BoolVar(&background, "background", false, "Run as a headless child render")
	cmd.Flags().BoolVar(&progressJSON, "progress-json", false, "Write JSON progress lines to stdout")
	return cmd
}
