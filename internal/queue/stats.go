package queue

import "sort"

// Stats counts records per derived status and per channel.
type Stats struct {
	Total     int            `json:"total"`
	ByStatus  map[Status]int `json:"by_status"`
	ByChannel map[string]int `json:"by_channel"`
}

// Summarize folds records into Stats.
func Summarize(records []*Record) Stats {
	stats := Stats{
		ByStatus:  make(map[Status]int, len(AllStatuses())),
		ByChannel: make(map[string]int),
	}
	for _, s := range AllStatuses() {
		stats.ByStatus[s] = 0
	}
	for _, rec := range records {
		if rec == nil {
			continue
		}
		stats.Total++
		stats.ByStatus[rec.Status()]++
		stats.ByChannel[rec.Channel]++
	}
	return stats
}

// Channels returns the channel names in sorted order.
func (s Stats) Channels() []string {
	out := make([]string, 0, len(s.ByChannel))
	for ch := range s.ByChannel {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}
