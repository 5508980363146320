package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"liora/internal/storage"
)

// DailyStats aggregates one day of recorded interactions.
type DailyStats struct {
	Date                 string                  `json:"date"`
	TotalMessages        int                     `json:"total_messages"`
	UniqueUsers          int                     `json:"unique_users"`
	Conversations        int                     `json:"conversations"`
	AugmentedReplies     int                     `json:"augmented_replies"`
	AugmentationsByTopic map[string]int          `json:"augmentations_by_topic"`
	AverageEffectiveness float64                 `json:"average_effectiveness"`
	PersonaStats         map[string]PersonaStats `json:"persona_stats"`
}

type PersonaStats struct {
	Persona              string  `json:"persona"`
	Messages             int     `json:"messages"`
	AugmentedReplies     int     `json:"augmented_replies"`
	AverageEffectiveness float64 `json:"average_effectiveness"`
}

// AnalyzeDailyLogs computes stats for the calendar day of targetDate in its
// location. Events without a user message are ignored.
func AnalyzeDailyLogs(events []storage.Event, targetDate time.Time) *DailyStats {
	startOfDay := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	endOfDay := startOfDay.AddDate(0, 0, 1)

	stats := &DailyStats{
		Date:                 startOfDay.Format("2006-01-02"),
		AugmentationsByTopic: make(map[string]int),
		PersonaStats:         make(map[string]PersonaStats),
	}

	users := make(map[int64]bool)
	convs := make(map[string]bool)
	var total float64
	personaSums := make(map[string]float64)

	for _, ev := range events {
		if ev.Timestamp.Before(startOfDay) || !ev.Timestamp.Before(endOfDay) {
			continue
		}
		if ev.UserMessage == "" {
			continue
		}
		stats.TotalMessages++
		users[ev.UserID] = true
		convs[ev.ConversationID] = true
		total += ev.Effectiveness

		ps := stats.PersonaStats[ev.Persona]
		ps.Persona = ev.Persona
		ps.Messages++
		personaSums[ev.Persona] += ev.Effectiveness

		if ev.Augmented() {
			stats.AugmentedReplies++
			stats.AugmentationsByTopic[ev.AugmentationTopic]++
			ps.AugmentedReplies++
		}
		stats.PersonaStats[ev.Persona] = ps
	}

	stats.UniqueUsers = len(users)
	stats.Conversations = len(convs)
	if stats.TotalMessages > 0 {
		stats.AverageEffectiveness = total / float64(stats.TotalMessages)
	}
	for name, ps := range stats.PersonaStats {
		ps.AverageEffectiveness = personaSums[name] / float64(ps.Messages)
		stats.PersonaStats[name] = ps
	}
	return stats
}

// GenerateReportSummary renders the stats as a plain-text report.
func (ds *DailyStats) GenerateReportSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Liora usage for %s:\n\n", ds.Date)
	b.WriteString("Activity:\n")
	fmt.Fprintf(&b, "- Messages: %d\n", ds.TotalMessages)
	fmt.Fprintf(&b, "- Unique users: %d\n", ds.UniqueUsers)
	fmt.Fprintf(&b, "- Conversations: %d\n", ds.Conversations)
	fmt.Fprintf(&b, "- Replies with encyclopedia info: %d\n", ds.AugmentedReplies)
	fmt.Fprintf(&b, "- Average effectiveness: %.2f\n\n", ds.AverageEffectiveness)

	if len(ds.AugmentationsByTopic) > 0 {
		b.WriteString("Augmentation topics:\n")
		for _, topic := range sortedByCount(ds.AugmentationsByTopic) {
			fmt.Fprintf(&b, "- %s: %d\n", topic, ds.AugmentationsByTopic[topic])
		}
		b.WriteString("\n")
	}

	if len(ds.PersonaStats) > 0 {
		fmt.Fprintf(&b, "Personas (%d):\n", len(ds.PersonaStats))
		names := make([]string, 0, len(ds.PersonaStats))
		for name := range ds.PersonaStats {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			ps := ds.PersonaStats[name]
			fmt.Fprintf(&b, "- %s: %d messages, avg effectiveness %.2f", name, ps.Messages, ps.AverageEffectiveness)
			if ps.AugmentedReplies > 0 {
				fmt.Fprintf(&b, ", %d augmented", ps.AugmentedReplies)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// ToJSON serialises the stats for detailed inspection.
func (ds *DailyStats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func sortedByCount(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
