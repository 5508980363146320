// Package learning keeps the assistant's adaptive state: interaction
// counters, satisfaction scores, topic frequencies, an archive of effective
// replies and the user's preferences. State is flushed to a Persister every
// flushEvery interactions, so an abnormal exit loses at most flushEvery-1
// interactions.
package learning

import (
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"liora/internal/analyzer"
	"liora/internal/effectiveness"
)

const (
	flushEvery        = 10
	archiveThreshold  = 0.7
	beginnerLimit     = 50
	intermediateLimit = 200
	StageBeginner     = "beginner"
	StageIntermediate = "intermediate"
	StageAdvanced     = "advanced"
)

var (
	positiveFeedback = []string{"good", "great", "excellent", "perfect"}
	negativeFeedback = []string{"bad", "terrible", "wrong", "incorrect"}
)

type Store struct {
	mu        sync.Mutex
	snap      Snapshot
	persister Persister
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New loads the persisted snapshot through p. A nil persister keeps state
// in memory only. Load failures are logged and start from defaults.
func New(p Persister, opts ...Option) *Store {
	s := &Store{
		snap:      DefaultSnapshot(),
		persister: p,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if p != nil {
		snap, err := p.Load()
		if err != nil {
			s.logger.Warn("failed to load learning snapshot, starting fresh", zap.Error(err))
		}
		s.snap = Migrate(snap)
	}
	return s
}

// RecordInteraction learns from one exchange and returns its effectiveness score.
func (s *Store) RecordInteraction(userMessage, assistantResponse, history, feedback string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := &s.snap.Learning
	l.InteractionCount++

	analysis := analyzer.Analyze(history)
	for _, t := range analysis.Topics {
		l.TopicFrequency[t]++
	}

	score := effectiveness.Score(userMessage, assistantResponse)
	for _, t := range analysis.Topics {
		// running mean; the topic frequency doubles as the sample count
		prev := l.ResponseEffectiveness[string(t)]
		l.ResponseEffectiveness[string(t)] = prev + (score-prev)/float64(l.TopicFrequency[t])
	}

	if score > archiveThreshold {
		s.archiveLocked(EffectiveResponse{
			UserMessage:        userMessage,
			AssistantResponse:  assistantResponse,
			Context:            analysis,
			EffectivenessScore: score,
			Timestamp:          s.now(),
		})
	}

	if analysis.Style != s.snap.Preferences.CommunicationStyle {
		s.logger.Debug("communication style changed",
			zap.String("from", string(s.snap.Preferences.CommunicationStyle)),
			zap.String("to", string(analysis.Style)))
		s.snap.Preferences.CommunicationStyle = analysis.Style
	}

	if feedback != "" {
		s.applyFeedbackLocked(feedback, score)
	}

	l.EngagementPatterns[analysis.Engagement]++
	s.snap.Preferences.PreferredTopics = s.preferredTopicsLocked(preferredTopicsCached)

	if l.InteractionCount%flushEvery == 0 {
		s.flushLocked()
	}
	return score
}

// ApplyFeedback records explicit user feedback about a reply whose
// effectiveness was scored as effectiveness.
func (s *Store) ApplyFeedback(feedback string, effectiveness float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyFeedbackLocked(feedback, effectiveness)
}

func (s *Store) applyFeedbackLocked(feedback string, score float64) {
	lower := strings.ToLower(feedback)
	l := &s.snap.Learning
	switch {
	case containsAny(lower, positiveFeedback):
		if l.SuccessfulResponses < l.InteractionCount {
			l.SuccessfulResponses++
		}
		l.SatisfactionScores = append(l.SatisfactionScores, 1.0)
	case containsAny(lower, negativeFeedback):
		l.SatisfactionScores = append(l.SatisfactionScores, 0.0)
	default:
		l.SatisfactionScores = append(l.SatisfactionScores, score)
	}
	if n := len(l.SatisfactionScores); n > maxSatisfactionScores {
		l.SatisfactionScores = append([]float64(nil), l.SatisfactionScores[n-maxSatisfactionScores:]...)
	}
}

func (s *Store) archiveLocked(r EffectiveResponse) {
	p := &s.snap.Patterns
	p.EffectiveResponses = append(p.EffectiveResponses, r)
	if n := len(p.EffectiveResponses); n > maxEffectiveResponses {
		p.EffectiveResponses = append([]EffectiveResponse(nil), p.EffectiveResponses[n-maxEffectiveResponses:]...)
	}
}

// PreferredTopics returns up to n topics ordered by how often they came up.
func (s *Store) PreferredTopics(n int) []analyzer.Topic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preferredTopicsLocked(n)
}

func (s *Store) preferredTopicsLocked(n int) []analyzer.Topic {
	topics := make([]analyzer.Topic, 0, len(s.snap.Learning.TopicFrequency))
	for t, c := range s.snap.Learning.TopicFrequency {
		if c > 0 {
			topics = append(topics, t)
		}
	}
	freq := s.snap.Learning.TopicFrequency
	sort.Slice(topics, func(i, j int) bool {
		if freq[topics[i]] != freq[topics[j]] {
			return freq[topics[i]] > freq[topics[j]]
		}
		return topics[i] < topics[j]
	})
	if len(topics) > n {
		topics = topics[:n]
	}
	return topics
}

// CommunicationStyle is the most recently detected style of the user.
func (s *Store) CommunicationStyle() analyzer.Style {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Preferences.CommunicationStyle
}

// Insights summarises learning progress.
type Insights struct {
	TotalInteractions      int                         `json:"total_interactions"`
	SuccessRate            float64                     `json:"success_rate"`
	AverageSatisfaction    float64                     `json:"average_satisfaction"`
	TopTopics              []analyzer.Topic            `json:"top_topics"`
	EngagementDistribution map[analyzer.Engagement]int `json:"engagement_distribution"`
	Stage                  string                      `json:"learning_progress"`
}

func (s *Store) Insights() Insights {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.snap.Learning

	var sum float64
	for _, v := range l.SatisfactionScores {
		sum += v
	}
	dist := make(map[analyzer.Engagement]int, len(l.EngagementPatterns))
	for k, v := range l.EngagementPatterns {
		dist[k] = v
	}
	return Insights{
		TotalInteractions:      l.InteractionCount,
		SuccessRate:            float64(l.SuccessfulResponses) / float64(max(l.InteractionCount, 1)),
		AverageSatisfaction:    sum / float64(max(len(l.SatisfactionScores), 1)),
		TopTopics:              s.preferredTopicsLocked(preferredTopicsCached),
		EngagementDistribution: dist,
		Stage:                  stageFor(l.InteractionCount),
	}
}

func stageFor(interactions int) string {
	switch {
	case interactions < beginnerLimit:
		return StageBeginner
	case interactions < intermediateLimit:
		return StageIntermediate
	default:
		return StageAdvanced
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSnapshot(s.snap)
}

// Flush writes the current state now.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persister == nil {
		return nil
	}
	return s.persister.Save(s.snap)
}

// Close flushes the state; the store must not be used afterwards.
func (s *Store) Close() error {
	return s.Flush()
}

// flushLocked swallows save errors; the next cadence point retries.
func (s *Store) flushLocked() {
	if s.persister == nil {
		return
	}
	if err := s.persister.Save(s.snap); err != nil {
		s.logger.Warn("failed to save learning snapshot", zap.Error(err),
			zap.Int("interactions", s.snap.Learning.InteractionCount))
		return
	}
	s.logger.Debug("learning snapshot saved", zap.Int("interactions", s.snap.Learning.InteractionCount))
}

func cloneSnapshot(in Snapshot) Snapshot {
	out := in
	out.Learning.SatisfactionScores = append([]float64{}, in.Learning.SatisfactionScores...)
	out.Learning.TopicFrequency = make(map[analyzer.Topic]int, len(in.Learning.TopicFrequency))
	for k, v := range in.Learning.TopicFrequency {
		out.Learning.TopicFrequency[k] = v
	}
	out.Learning.ResponseEffectiveness = make(map[string]float64, len(in.Learning.ResponseEffectiveness))
	for k, v := range in.Learning.ResponseEffectiveness {
		out.Learning.ResponseEffectiveness[k] = v
	}
	out.Learning.EngagementPatterns = make(map[analyzer.Engagement]int, len(in.Learning.EngagementPatterns))
	for k, v := range in.Learning.EngagementPatterns {
		out.Learning.EngagementPatterns[k] = v
	}
	out.Patterns.EffectiveResponses = append([]EffectiveResponse{}, in.Patterns.EffectiveResponses...)
	out.Preferences.PreferredTopics = append([]analyzer.Topic{}, in.Preferences.PreferredTopics...)
	return out
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
