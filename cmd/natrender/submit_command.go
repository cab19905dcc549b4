package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"natrender/internal/ipc"
	"natrender/internal/render"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		writers []string
		ranges  []string
		step    int
		stats   bool
		restart bool
		wait    bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit writers to the daemon for rendering",
		Long: "Submit writers of the daemon's project. Without --writer every writer is rendered; " +
			"without --range each writer uses its own frame range.",
		RunE: func(cmd *cobra.Command, args []string) error {
			spans, err := parseFrameSpans(ranges, step)
			if err != nil {
				return err
			}
			req := ipc.SubmitRequest{
				Writers:  append(writers, args...),
				Ranges:   spans,
				Stats:    stats,
				Restart:  restart,
				Blocking: wait,
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Submit(req)
				if err != nil {
					return err
				}
				if asJSON {
					if err := writeJSON(cmd, resp); err != nil {
						return err
					}
				} else {
					writeOutcomes(cmd.OutOrStdout(), resp.Outcomes)
				}
				return outcomesError(resp.Outcomes)
			})
		},
	}
	cmd.Flags().StringSliceVarP(&writers, "writer", "w", nil, "Writer node to render (repeatable)")
	cmd.Flags().StringArrayVarP(&ranges, "range", "r", nil, "Frame range first-last[xstep] (repeatable)")
	cmd.Flags().IntVar(&step, "step", 0, "Frame step for ranges without an explicit step")
	cmd.Flags().BoolVar(&stats, "stats", false, "Log per-frame render statistics")
	cmd.Flags().BoolVar(&restart, "restart", false, "Report the render as restarted")
	cmd.Flags().BoolVar(&wait, "wait", false, "Block until every render finished")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output outcomes as JSON")
	return cmd
}

func writeOutcomes(w io.Writer, outcomes []ipc.Outcome) {
	if len(outcomes) == 0 {
		fmt.Fprintln(w, "Nothing to render")
		return
	}
	rows := make([][]string, 0, len(outcomes))
	for _, outcome := range outcomes {
		rows = append(rows, []string{
			outcome.Item.Writer,
			outcome.Item.Range.String(),
			statusLabel(outcome.Status),
			outcome.Error,
		})
	}
	fmt.Fprint(w, renderTable([]string{"Writer", "Frames", "Result", "Error"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft}))
}

func outcomesError(outcomes []ipc.Outcome) error {
	var failed []string
	for _, outcome := range outcomes {
		if outcome.Error != "" {
			failed = append(failed, outcome.Item.Writer)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d render(s) did not succeed: %s", len(failed), strings.Join(failed, ", "))
}

// parseFrameSpans parses "first-last", "first-lastxstep" or a single frame.
// defaultStep applies to spans without a step; zero keeps the writer's own.
func parseFrameSpans(values []string, defaultStep int) ([]render.FrameSpan, error) {
	if defaultStep < 0 {
		return nil, fmt.Errorf("--step must be positive, got %d", defaultStep)
	}
	spans := make([]render.FrameSpan, 0, len(values))
	for _, raw := range values {
		span, err := parseFrameSpan(raw)
		if err != nil {
			return nil, err
		}
		if span.Step == render.Unspecified && defaultStep > 0 {
			span.Step = defaultStep
		}
		spans = append(spans, span)
	}
	if len(spans) == 0 && defaultStep > 0 {
		spans = append(spans, render.FrameSpan{First: render.Unspecified, Last: render.Unspecified, Step: defaultStep})
	}
	return spans, nil
}

func parseFrameSpan(raw string) (render.FrameSpan, error) {
	match := frameSpanPattern.FindStringSubmatch(strings.ReplaceAll(raw, " ", ""))
	if match == nil {
		return render.FrameSpan{}, fmt.Errorf("invalid frame range %q (want first-last[xstep])", raw)
	}
	span := render.FrameSpan{Step: render.Unspecified}
	var err error
	if span.First, err = parseFrameNumber(raw, "first frame", match[1]); err != nil {
		return render.FrameSpan{}, err
	}
	span.Last = span.First
	if match[2] != "" {
		if span.Last, err = parseFrameNumber(raw, "last frame", match[2]); err != nil {
			return render.FrameSpan{}, err
		}
	}
	if match[3] != "" {
		if span.Step, err = parseFrameNumber(raw, "frame step", match[3]); err != nil {
			return render.FrameSpan{}, err
		}
		if span.Step < 1 {
			return render.FrameSpan{}, fmt.Errorf("invalid frame step in %q", raw)
		}
	}
	return span, nil
}

func parseFrameNumber(raw, field, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s in %q: %w", field, raw, err)
	}
	if n == render.Unspecified {
		return 0, fmt.Errorf("invalid %s in %q: out of range", field, raw)
	}
	return n, nil
}
