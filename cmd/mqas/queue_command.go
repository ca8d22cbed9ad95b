package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mqas/internal/queue"
)

type enqueueFlags struct {
	channel     string
	priority    int
	jobID       string
	kwargs      []string
	extra       []string
	jobTimeout  string
	resultTTL   string
	ttl         string
	failureTTL  string
	dependsOn   []string
	description string
	onSuccess   string
	onFailure   string
	maxAttempts int
	lang        string
	jsonOutput  bool
}

func newQueueCommand(ctx *commandContext) *cobra.Command {
	flags := &enqueueFlags{}

	cmd := &cobra.Command{
		Use:   "queue FUNCTION [ARGS...]",
		Short: "Enqueue a job for a registered function",
		Long: "Enqueue a job for FUNCTION (a dotted name such as builtin.echo). Positional ARGS\n" +
			"and -k values are parsed as JSON literals when possible and kept as strings otherwise.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(cmd, args[1:])
			if err != nil {
				return err
			}
			return ctx.withQueue(cmd.Context(), func(q *queue.Queue, _ *slog.Logger) error {
				id, err := q.Enqueue(cmd.Context(), args[0], opts)
				if err != nil {
					return err
				}
				if flags.jsonOutput {
					return writeJSON(cmd, map[string]string{"id": id})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job successfully queued, %s\n", id)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.channel, "channel", "c", "", "Channel to queue on")
	f.IntVarP(&flags.priority, "priority", "p", 0, "Job priority; higher runs first")
	f.StringVarP(&flags.jobID, "job-id", "j", "", "Explicit job id")
	f.StringArrayVarP(&flags.kwargs, "kwargs", "k", nil, "Keyword argument as key:value (repeatable)")
	f.StringArrayVar(&flags.extra, "set", nil, "Extra named option as key=value, folded into kwargs (repeatable)")
	f.StringVar(&flags.jobTimeout, "job-timeout", "", "Advisory job timeout (seconds or 1w2d3h4m5s)")
	f.StringVar(&flags.resultTTL, "result-ttl", "", "Result retention (seconds or 1w2d3h4m5s)")
	f.StringVar(&flags.ttl, "ttl", "", "Record lifetime (seconds or 1w2d3h4m5s)")
	f.StringVar(&flags.failureTTL, "failure-ttl", "", "Failure retention (seconds or 1w2d3h4m5s)")
	f.StringArrayVar(&flags.dependsOn, "depends-on", nil, "Job id that must complete first (repeatable)")
	f.StringVar(&flags.description, "description", "", "Free-form description")
	f.StringVar(&flags.onSuccess, "on-success", "", "Function called after the job completes")
	f.StringVar(&flags.onFailure, "on-failure", "", "Function called after each failed attempt")
	f.IntVar(&flags.maxAttempts, "max-attempts", 0, "Attempt budget")
	f.StringVarP(&flags.lang, "lang", "l", "", "Worker language tag")
	f.BoolVar(&flags.jsonOutput, "json", false, "Print the job id as JSON")
	return cmd
}

func (f *enqueueFlags) options(cmd *cobra.Command, rawArgs []string) (queue.EnqueueOptions, error) {
	kwargs, err := parsePairs(f.kwargs, ":", "--kwargs")
	if err != nil {
		return queue.EnqueueOptions{}, fmt.Errorf("%w: %w", queue.ErrInvalidArgument, err)
	}
	extra, err := parsePairs(f.extra, "=", "--set")
	if err != nil {
		return queue.EnqueueOptions{}, fmt.Errorf("%w: %w", queue.ErrInvalidArgument, err)
	}

	opts := queue.EnqueueOptions{
		Args:        parseArgs(rawArgs),
		Kwargs:      kwargs,
		Extra:       extra,
		JobID:       strings.TrimSpace(f.jobID),
		Channel:     strings.TrimSpace(f.channel),
		Lang:        strings.TrimSpace(f.lang),
		DependsOn:   f.dependsOn,
		Description: f.description,
		OnSuccess:   strings.TrimSpace(f.onSuccess),
		OnFailure:   strings.TrimSpace(f.onFailure),
	}
	if cmd.Flags().Changed("priority") {
		opts.Priority = queue.Ptr(f.priority)
	}
	if cmd.Flags().Changed("max-attempts") {
		opts.MaxAttempts = queue.Ptr(f.maxAttempts)
	}
	for _, d := range []struct {
		raw string
		dst **time.Duration
	}{
		{f.jobTimeout, &opts.JobTimeout},
		{f.resultTTL, &opts.ResultTTL},
		{f.ttl, &opts.TTL},
		{f.failureTTL, &opts.FailureTTL},
	} {
		if strings.TrimSpace(d.raw) == "" {
			continue
		}
		parsed, err := queue.ParseDuration(d.raw)
		if err != nil {
			return queue.EnqueueOptions{}, err
		}
		*d.dst = &parsed
	}
	return opts, nil
}
