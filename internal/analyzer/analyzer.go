// Package analyzer holds the keyword heuristics used to read a conversation:
// topics, sentiment, engagement, communication style and flow statistics.
//
// Every function is pure. Matching is case-insensitive substring matching
// and each indicator counts at most once per text.
package analyzer

import "strings"

type Topic string

const (
	TopicTechnology    Topic = "technology"
	TopicScience       Topic = "science"
	TopicEntertainment Topic = "entertainment"
	TopicPersonal      Topic = "personal"
	TopicWork          Topic = "work"
	TopicEducation     Topic = "education"
	TopicCurrentEvents Topic = "current_events"
	TopicPhilosophy    Topic = "philosophy"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

type Engagement string

const (
	EngagementLow    Engagement = "low"
	EngagementMedium Engagement = "medium"
	EngagementHigh   Engagement = "high"
)

type Style string

const (
	StyleFormal    Style = "formal"
	StyleCasual    Style = "casual"
	StyleTechnical Style = "technical"
)

type topicKeywords struct {
	topic    Topic
	keywords []string
}

// Ordered so that ExtractTopics is deterministic.
var topicTable = []topicKeywords{
	{TopicTechnology, []string{"ai", "programming", "computer", "software", "tech", "code"}},
	{TopicScience, []string{"science", "research", "experiment", "discovery", "theory"}},
	{TopicEntertainment, []string{"movie", "music", "game", "show", "entertainment", "fun"}},
	{TopicPersonal, []string{"life", "family", "friend", "personal", "experience"}},
	{TopicWork, []string{"work", "job", "career", "business", "professional"}},
	{TopicEducation, []string{"learn", "study", "education", "school", "knowledge"}},
	{TopicCurrentEvents, []string{"news", "current", "recent", "today", "latest"}},
	{TopicPhilosophy, []string{"think", "philosophy", "meaning", "purpose", "existence"}},
}

var (
	positiveWords = []string{"good", "great", "awesome", "amazing", "love", "like", "happy", "excited", "wonderful"}
	negativeWords = []string{"bad", "terrible", "hate", "dislike", "sad", "angry", "frustrated", "awful"}

	highEngagement   = []string{"!", "?", "wow", "amazing", "really", "tell me more", "interesting"}
	mediumEngagement = []string{"ok", "sure", "yes", "no", "maybe"}
	lowEngagement    = []string{"...", "hmm", "idk", "whatever", "fine"}

	formalMarkers    = []string{"please", "thank you", "would you", "could you", "kindly"}
	casualMarkers    = []string{"hey", "hi", "cool", "awesome", "lol", "omg", "btw"}
	technicalMarkers = []string{"algorithm", "function", "method", "parameter", "variable", "class"}
)

// Topics returns the closed topic vocabulary in its canonical order.
func Topics() []Topic {
	out := make([]Topic, 0, len(topicTable))
	for _, t := range topicTable {
		out = append(out, t.topic)
	}
	return out
}

// Analysis bundles every heuristic for one block of text.
type Analysis struct {
	Topics     []Topic    `json:"topics"`
	Sentiment  Sentiment  `json:"sentiment"`
	Engagement Engagement `json:"engagement_level"`
	Flow       Flow       `json:"conversation_flow"`
	Style      Style      `json:"user_communication_style"`
}

func Analyze(text string) Analysis {
	return Analysis{
		Topics:     ExtractTopics(text),
		Sentiment:  AnalyzeSentiment(text),
		Engagement: AssessEngagement(text),
		Flow:       AnalyzeFlow(text),
		Style:      DetectStyle(text),
	}
}

// ExtractTopics returns every topic with at least one keyword present.
func ExtractTopics(text string) []Topic {
	lower := strings.ToLower(text)
	var found []Topic
	for _, t := range topicTable {
		if countPresent(lower, t.keywords) > 0 {
			found = append(found, t.topic)
		}
	}
	return found
}

func AnalyzeSentiment(text string) Sentiment {
	lower := strings.ToLower(text)
	pos := countPresent(lower, positiveWords)
	neg := countPresent(lower, negativeWords)
	switch {
	case pos > neg:
		return SentimentPositive
	case neg > pos:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// AssessEngagement defaults to medium when no indicator is present. Ties
// between non-zero maxima resolve as high, then medium, then low.
func AssessEngagement(text string) Engagement {
	lower := strings.ToLower(text)
	high := countPresent(lower, highEngagement)
	medium := countPresent(lower, mediumEngagement)
	low := countPresent(lower, lowEngagement)

	top := max(high, medium, low)
	switch {
	case top == 0:
		return EngagementMedium
	case high == top:
		return EngagementHigh
	case medium == top:
		return EngagementMedium
	default:
		return EngagementLow
	}
}

func DetectStyle(text string) Style {
	lower := strings.ToLower(text)
	formal := countPresent(lower, formalMarkers)
	casual := countPresent(lower, casualMarkers)
	technical := countPresent(lower, technicalMarkers)

	switch {
	case technical > max(formal, casual):
		return StyleTechnical
	case formal > casual:
		return StyleFormal
	default:
		return StyleCasual
	}
}

// Flow describes the shape of a rendered "User: ...\nAssistant: ..." history.
type Flow struct {
	MessageCount          int     `json:"message_count"`
	UserMessageCount      int     `json:"user_message_count"`
	AssistantMessageCount int     `json:"assistant_message_count"`
	AvgUserLength         float64 `json:"average_user_message_length"`
	AvgAssistantLength    float64 `json:"average_assistant_message_length"`
	Depth                 int     `json:"conversation_depth"`
}

func AnalyzeFlow(text string) Flow {
	lines := strings.Split(text, "\n")
	var userLen, assistantLen int
	f := Flow{MessageCount: len(lines)}
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "User:"):
			f.UserMessageCount++
			userLen += len([]rune(line))
		case strings.HasPrefix(line, "Assistant:"):
			f.AssistantMessageCount++
			assistantLen += len([]rune(line))
		}
	}
	f.AvgUserLength = float64(userLen) / float64(max(f.UserMessageCount, 1))
	f.AvgAssistantLength = float64(assistantLen) / float64(max(f.AssistantMessageCount, 1))
	f.Depth = f.MessageCount / 2
	return f
}

func countPresent(lower string, indicators []string) int {
	n := 0
	for _, ind := range indicators {
		if strings.Contains(lower, ind) {
			n++
		}
	}
	return n
}
