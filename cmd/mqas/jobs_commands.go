package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mqas/internal/api"
	"mqas/internal/queue"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage queued jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsReleaseCommand(ctx))
	jobsCmd.AddCommand(newJobsStatsCommand(ctx))

	return jobsCmd
}

// withJobService runs fn against a JobService for the configured partition.
func (c *commandContext) withJobService(cmd *cobra.Command, fn func(*api.JobService) error) error {
	return c.withQueue(cmd.Context(), func(q *queue.Queue, _ *slog.Logger) error {
		return fn(api.NewJobService(q))
	})
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var (
		channel    string
		statuses   []string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs in claim order",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseStatuses(statuses)
			if err != nil {
				return err
			}
			return ctx.withJobService(cmd, func(svc *api.JobService) error {
				jobs, err := svc.List(cmd.Context(), api.ListQuery{
					Channel:  strings.TrimSpace(channel),
					Statuses: parsed,
					Limit:    limit,
				})
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.JobListResponse{Items: jobs})
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Function", "Channel", "Status", "Priority", "Attempts", "Created"},
					buildJobRows(jobs),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&channel, "channel", "c", "", "Only list jobs on this channel")
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (pending, in_progress, failed, exhausted, done)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of jobs to list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJobService(cmd, func(svc *api.JobService) error {
				job, err := svc.Describe(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					if errors.Is(err, queue.ErrNotFound) {
						return fmt.Errorf("job %s not found", args[0])
					}
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.JobResponse{Item: *job})
				}
				printJobDetail(cmd.OutOrStdout(), job)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newJobsReleaseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "release ID [ID...]",
		Short: "Return jobs to the pending pool with a fresh attempt budget",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJobService(cmd, func(svc *api.JobService) error {
				out := cmd.OutOrStdout()
				var missing int
				for _, id := range args {
					id = strings.TrimSpace(id)
					if _, err := svc.Release(cmd.Context(), id); err != nil {
						if errors.Is(err, queue.ErrNotFound) {
							fmt.Fprintf(out, "Job %s not found\n", id)
							missing++
							continue
						}
						return err
					}
					fmt.Fprintf(out, "Job %s released\n", id)
				}
				if missing == len(args) {
					return errors.New("no jobs released")
				}
				return nil
			})
		},
	}
}

func newJobsStatsCommand(ctx *commandContext) *cobra.Command {
	var (
		channel    string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize jobs by status and channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJobService(cmd, func(svc *api.JobService) error {
				stats, err := svc.Stats(cmd.Context(), strings.TrimSpace(channel))
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, stats)
				}
				out := cmd.OutOrStdout()
				if stats.Total == 0 {
					fmt.Fprintln(out, "No jobs found")
					return nil
				}
				rows := make([][]string, 0, len(queue.AllStatuses()))
				for _, status := range queue.AllStatuses() {
					rows = append(rows, []string{formatStatusLabel(string(status)), strconv.Itoa(stats.Counts[string(status)])})
				}
				fmt.Fprint(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))

				channels := queue.Stats{ByChannel: stats.Channels}.Channels()
				channelRows := make([][]string, 0, len(channels))
				for _, ch := range channels {
					channelRows = append(channelRows, []string{ch, strconv.Itoa(stats.Channels[ch])})
				}
				fmt.Fprint(out, renderTable([]string{"Channel", "Jobs"}, channelRows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&channel, "channel", "c", "", "Only count jobs on this channel")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func parseStatuses(values []string) ([]queue.Status, error) {
	var out []queue.Status
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		out = append(out, status)
	}
	return out, nil
}
