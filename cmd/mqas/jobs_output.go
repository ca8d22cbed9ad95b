package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mqas/internal/api"
)

func buildJobRows(jobs []api.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			job.ID,
			job.FunctionName,
			job.Channel,
			formatStatusLabel(job.Status),
			strconv.Itoa(job.Priority),
			fmt.Sprintf("%d/%d", job.Attempts, job.MaxAttempts),
			humanTime(job.CreatedAt),
		})
	}
	return rows
}

func printJobDetail(out io.Writer, job *api.Job) {
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(out, "%-14s %s\n", label+":", value)
		}
	}
	field("ID", job.ID)
	field("Function", job.FunctionName)
	field("Status", formatStatusLabel(job.Status))
	field("Channel", job.Channel)
	field("Consumer", job.ConsumerID)
	field("Lang", job.Lang)
	field("Description", job.Description)
	field("Priority", strconv.Itoa(job.Priority))
	field("Attempts", fmt.Sprintf("%d/%d", job.Attempts, job.MaxAttempts))
	field("Args", compactJSON(job.Args))
	if len(job.Kwargs) > 0 {
		field("Kwargs", compactJSON(job.Kwargs))
	}
	if len(job.DependsOn) > 0 {
		field("Depends on", strings.Join(job.DependsOn, ", "))
	}
	field("On success", job.OnSuccess)
	field("On failure", job.OnFailure)
	if job.Progress.Percent > 0 || job.Progress.Message != "" {
		progress := fmt.Sprintf("%d%%", job.Progress.Percent)
		if job.Progress.Message != "" {
			progress += " " + job.Progress.Message
		}
		field("Progress", progress)
	}
	if job.Result != nil {
		field("Result", compactJSON(job.Result))
	}
	field("Error", job.ErrorMessage)
	if job.JobTimeout > 0 {
		field("Timeout", (time.Duration(job.JobTimeout) * time.Second).String())
	}
	field("Created", humanTime(job.CreatedAt))
	field("Started", humanTime(job.StartedAt))
	field("Completed", humanTime(job.CompletedAt))
	field("Last error", humanTime(job.LastErrorAt))
	field("Released", humanTime(job.ReleasedAt))
}

var statusCaser = cases.Title(language.English)

// formatStatusLabel renders a status for humans, e.g. in_progress as "In Progress".
func formatStatusLabel(status string) string {
	return statusCaser.String(strings.ReplaceAll(status, "_", " "))
}

// humanTime renders an API timestamp relative to now ("3 minutes ago").
func humanTime(value string) string {
	if value == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return humanize.Time(t)
}

func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
