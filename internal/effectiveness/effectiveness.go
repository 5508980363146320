// Package effectiveness scores how well an assistant reply matched the
// user's message. The score is an implicit learning signal in [0, 1].
package effectiveness

import (
	"strings"

	"liora/internal/analyzer"
)

const (
	baseScore          = 0.5
	topicOverlapWeight = 0.2
	lengthPenalty      = 0.1
	engagementBonus    = 0.1
	sentimentBonus     = 0.1
)

var engagementPhrases = []string{"interesting", "fascinating", "tell me more", "what do you think"}

// Score rates response against userMessage.
func Score(userMessage, response string) float64 {
	score := baseScore

	userTopics := analyzer.ExtractTopics(userMessage)
	if len(userTopics) > 0 {
		responseTopics := analyzer.ExtractTopics(response)
		overlap := 0
		for _, t := range userTopics {
			for _, r := range responseTopics {
				if t == r {
					overlap++
					break
				}
			}
		}
		score += topicOverlapWeight * float64(overlap) / float64(len(userTopics))
	}

	userLen := len([]rune(userMessage))
	respLen := len([]rune(response))
	if userLen < 50 && respLen > 200 {
		score -= lengthPenalty
	} else if userLen > 100 && respLen < 50 {
		score -= lengthPenalty
	}

	lower := strings.ToLower(response)
	for _, p := range engagementPhrases {
		if strings.Contains(lower, p) {
			score += engagementBonus
			break
		}
	}

	// Two neutral texts carry no alignment signal.
	userSentiment := analyzer.AnalyzeSentiment(userMessage)
	if userSentiment != analyzer.SentimentNeutral && userSentiment == analyzer.AnalyzeSentiment(response) {
		score += sentimentBonus
	}

	return min(1.0, max(0.0, score))
}
