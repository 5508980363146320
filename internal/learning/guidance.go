package learning

import (
	"fmt"
	"strings"

	"liora/internal/analyzer"
)

const (
	LengthShort  = "short"
	LengthMedium = "medium"
	LengthLong   = "long"

	StrategyIncreaseEngagement = "increase_engagement"
	StrategyMaintainMomentum   = "maintain_momentum"
	StrategyBalanced           = "balanced"
)

// Personality is the tone adjustment suggested for the next reply.
type Personality struct {
	HumorLevel      string `json:"humor_level"`
	FormalityLevel  string `json:"formality_level"`
	EnthusiasmLevel string `json:"enthusiasm_level"`
}

// Guidance tells the prompt assembler how to shape the next reply.
type Guidance struct {
	PreferredTopics    []analyzer.Topic  `json:"preferred_topics"`
	CommunicationStyle analyzer.Style    `json:"communication_style"`
	ResponseLength     string            `json:"response_length"`
	EngagementStrategy string            `json:"engagement_strategy"`
	Personality        Personality       `json:"personality_adjustment"`
	Context            analyzer.Analysis `json:"conversation_context"`
}

func (s *Store) Guidance(userMessage, history string) Guidance {
	analysis := analyzer.Analyze(history)
	s.mu.Lock()
	preferred := s.preferredTopicsLocked(preferredTopicsCached)
	style := s.snap.Preferences.CommunicationStyle
	s.mu.Unlock()

	return Guidance{
		PreferredTopics:    preferred,
		CommunicationStyle: style,
		ResponseLength:     ResponseLength(userMessage, analysis.Flow),
		EngagementStrategy: EngagementStrategy(analysis.Engagement),
		Personality:        PersonalityFor(analysis),
		Context:            analysis,
	}
}

// ResponseLength picks a target length from the current message and the
// average user line length of the history.
func ResponseLength(userMessage string, flow analyzer.Flow) string {
	n := len([]rune(userMessage))
	switch {
	case n < 30 || flow.AvgUserLength < 40:
		return LengthShort
	case n > 100 || flow.AvgUserLength > 80:
		return LengthLong
	default:
		return LengthMedium
	}
}

func EngagementStrategy(e analyzer.Engagement) string {
	switch e {
	case analyzer.EngagementLow:
		return StrategyIncreaseEngagement
	case analyzer.EngagementHigh:
		return StrategyMaintainMomentum
	default:
		return StrategyBalanced
	}
}

func PersonalityFor(a analyzer.Analysis) Personality {
	p := Personality{HumorLevel: "moderate", FormalityLevel: "casual", EnthusiasmLevel: "normal"}
	switch a.Sentiment {
	case analyzer.SentimentPositive:
		p.EnthusiasmLevel = "high"
	case analyzer.SentimentNegative:
		p.HumorLevel = "low"
		p.EnthusiasmLevel = "low"
	}
	switch a.Style {
	case analyzer.StyleFormal:
		p.FormalityLevel = "formal"
	case analyzer.StyleCasual:
		p.FormalityLevel = "very_casual"
	}
	return p
}

// Prompt renders the guidance as instructions for the model.
func (g Guidance) Prompt() string {
	var b strings.Builder
	b.WriteString("Response guidance:\n")
	fmt.Fprintf(&b, "- Preferred response length: %s\n", g.ResponseLength)
	fmt.Fprintf(&b, "- User communication style: %s\n", g.CommunicationStyle)
	fmt.Fprintf(&b, "- Engagement strategy: %s\n", g.EngagementStrategy)
	fmt.Fprintf(&b, "- Tone: humor %s, formality %s, enthusiasm %s\n",
		g.Personality.HumorLevel, g.Personality.FormalityLevel, g.Personality.EnthusiasmLevel)
	if len(g.PreferredTopics) > 0 {
		topics := make([]string, len(g.PreferredTopics))
		for i, t := range g.PreferredTopics {
			topics[i] = string(t)
		}
		fmt.Fprintf(&b, "- Topics the user enjoys: %s\n", strings.Join(topics, ", "))
	}
	return b.String()
}
