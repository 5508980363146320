package learning

import (
	"time"

	"liora/internal/analyzer"
)

// SnapshotVersion is the current on-disk schema version.
const SnapshotVersion = 1

const (
	maxSatisfactionScores = 100
	maxEffectiveResponses = 200
	preferredTopicsCached = 5
)

// Snapshot is the single persisted record of everything the assistant has learned.
type Snapshot struct {
	Version     int         `json:"version"`
	Learning    Counters    `json:"learning"`
	Patterns    Patterns    `json:"patterns"`
	Preferences Preferences `json:"preferences"`
}

type Counters struct {
	InteractionCount      int                         `json:"interaction_count"`
	SuccessfulResponses   int                         `json:"successful_responses"`
	SatisfactionScores    []float64                   `json:"satisfaction_scores"`
	TopicFrequency        map[analyzer.Topic]int      `json:"topic_frequency"`
	ResponseEffectiveness map[string]float64          `json:"response_effectiveness"`
	EngagementPatterns    map[analyzer.Engagement]int `json:"engagement_patterns"`
}

// EffectiveResponse is an interaction that scored above the archive threshold.
type EffectiveResponse struct {
	UserMessage        string            `json:"user_message"`
	AssistantResponse  string            `json:"assistant_response"`
	Context            analyzer.Analysis `json:"context"`
	EffectivenessScore float64           `json:"effectiveness_score"`
	Timestamp          time.Time         `json:"timestamp"`
}

type Patterns struct {
	EffectiveResponses []EffectiveResponse `json:"effective_responses"`
}

type Preferences struct {
	PreferredTopics    []analyzer.Topic `json:"preferred_topics"`
	CommunicationStyle analyzer.Style   `json:"communication_style"`
	ResponseLength     string           `json:"response_length"`
	HumorLevel         string           `json:"humor_level"`
	FormalityLevel     string           `json:"formality_level"`
}

// DefaultSnapshot is what a first run starts from.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		Version: SnapshotVersion,
		Learning: Counters{
			SatisfactionScores:    []float64{},
			TopicFrequency:        map[analyzer.Topic]int{},
			ResponseEffectiveness: map[string]float64{},
			EngagementPatterns:    map[analyzer.Engagement]int{},
		},
		Patterns: Patterns{
			EffectiveResponses: []EffectiveResponse{},
		},
		Preferences: Preferences{
			PreferredTopics:    []analyzer.Topic{},
			CommunicationStyle: analyzer.StyleCasual,
			ResponseLength:     "medium",
			HumorLevel:         "moderate",
			FormalityLevel:     "casual",
		},
	}
}

// Migrate upgrades s to SnapshotVersion. Version 0 is a record written before
// the schema carried a version; it is completed with defaults. Records from a
// newer release are kept as they are.
func Migrate(s Snapshot) Snapshot {
	if s.Version > SnapshotVersion {
		return normalize(s)
	}
	if s.Version == 0 {
		s.Version = 1
	}
	return normalize(s)
}

// normalize replaces nil collections and empty enums with defaults and
// enforces the size caps.
func normalize(s Snapshot) Snapshot {
	d := DefaultSnapshot()
	if s.Learning.SatisfactionScores == nil {
		s.Learning.SatisfactionScores = d.Learning.SatisfactionScores
	}
	if len(s.Learning.SatisfactionScores) > maxSatisfactionScores {
		s.Learning.SatisfactionScores = s.Learning.SatisfactionScores[len(s.Learning.SatisfactionScores)-maxSatisfactionScores:]
	}
	if s.Learning.TopicFrequency == nil {
		s.Learning.TopicFrequency = d.Learning.TopicFrequency
	}
	if s.Learning.ResponseEffectiveness == nil {
		s.Learning.ResponseEffectiveness = d.Learning.ResponseEffectiveness
	}
	if s.Learning.EngagementPatterns == nil {
		s.Learning.EngagementPatterns = d.Learning.EngagementPatterns
	}
	if s.Learning.SuccessfulResponses > s.Learning.InteractionCount {
		s.Learning.SuccessfulResponses = s.Learning.InteractionCount
	}
	if s.Patterns.EffectiveResponses == nil {
		s.Patterns.EffectiveResponses = d.Patterns.EffectiveResponses
	}
	if len(s.Patterns.EffectiveResponses) > maxEffectiveResponses {
		s.Patterns.EffectiveResponses = s.Patterns.EffectiveResponses[len(s.Patterns.EffectiveResponses)-maxEffectiveResponses:]
	}
	if s.Preferences.PreferredTopics == nil {
		s.Preferences.PreferredTopics = d.Preferences.PreferredTopics
	}
	switch s.Preferences.CommunicationStyle {
	case analyzer.StyleFormal, analyzer.StyleCasual, analyzer.StyleTechnical:
	default:
		s.Preferences.CommunicationStyle = d.Preferences.CommunicationStyle
	}
	if s.Preferences.ResponseLength == "" {
		s.Preferences.ResponseLength = d.Preferences.ResponseLength
	}
	if s.Preferences.HumorLevel == "" {
		s.Preferences.HumorLevel = d.Preferences.HumorLevel
	}
	if s.Preferences.FormalityLevel == "" {
		s.Preferences.FormalityLevel = d.Preferences.FormalityLevel
	}
	return s
}
