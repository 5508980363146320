// Package augment decides, per incoming message, whether the reply should be
// enriched with encyclopedia facts, on which topic, and how to announce it.
package augment

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"liora/internal/analyzer"
	"liora/internal/encyclopedia"
)

const (
	lengthGateMinLines   = 4
	lengthGateRate       = 0.30
	spontaneousRate      = 0.10
	randomTopicRate      = 0.40
	augmentationResults  = 2
	preferredTopicsLimit = 5
)

// Phrases that mark a request for information. Order matters for topic
// extraction: the first phrase present wins.
var infoTriggers = []string{
	"what is", "who is", "tell me about", "explain", "how does", "history of",
	"definition of", "meaning of", "facts about", "information about",
	"details about", "background on",
}

// RandomSource is satisfied by *rand.Rand.
type RandomSource interface {
	Float64() float64
	Intn(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) Intn(n int) int   { return rand.Intn(n) }

// Knowledge is the encyclopedia the policy pulls facts from.
type Knowledge interface {
	Search(ctx context.Context, query string, maxResults int) []encyclopedia.Article
	RandomTopic(ctx context.Context) *encyclopedia.Article
}

// Learner exposes the learned preferences the policy adapts to.
type Learner interface {
	PreferredTopics(n int) []analyzer.Topic
	CommunicationStyle() analyzer.Style
}

type Policy struct {
	knowledge Knowledge
	learner   Learner
	rnd       RandomSource
	logger    *zap.Logger
}

type Option func(*Policy)

func WithLearner(l Learner) Option {
	return func(p *Policy) { p.learner = l }
}

func WithRandom(r RandomSource) Option {
	return func(p *Policy) { p.rnd = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Policy) {
		if l != nil {
			p.logger = l
		}
	}
}

func New(k Knowledge, opts ...Option) *Policy {
	p := &Policy{knowledge: k, rnd: globalRand{}, logger: zap.NewNop()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Decide reports whether to introduce encyclopedia content for message and
// on which topic. Random draws are taken lazily, in the order the gates are
// evaluated. Any internal failure yields (false, "").
func (p *Policy) Decide(ctx context.Context, message, history string) (introduce bool, topic string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("augmentation decision failed", zap.Any("panic", r))
			introduce, topic = false, ""
		}
	}()

	lower := strings.ToLower(message)
	asking := containsAny(lower, infoTriggers)
	length := historyLength(history)

	introduce = asking ||
		(length > lengthGateMinLines && p.rnd.Float64() < lengthGateRate) ||
		p.rnd.Float64() < spontaneousRate
	if !introduce && p.matchesPreferences(message) {
		introduce = true
	}
	if !introduce {
		return false, ""
	}
	if analyzer.AssessEngagement(history) == analyzer.EngagementLow {
		p.logger.Debug("augmentation suppressed for disengaged user")
		return false, ""
	}

	if topic = ExtractTopic(message); topic != "" {
		return true, topic
	}
	if p.knowledge != nil && p.rnd.Float64() < randomTopicRate {
		if a := p.knowledge.RandomTopic(ctx); a != nil {
			return true, a.Title
		}
	}
	return false, ""
}

func (p *Policy) matchesPreferences(message string) bool {
	if p.learner == nil {
		return false
	}
	preferred := p.learner.PreferredTopics(preferredTopicsLimit)
	for _, t := range analyzer.ExtractTopics(message) {
		for _, pt := range preferred {
			if t == pt {
				return true
			}
		}
	}
	return false
}

// ExtractTopic pulls a topic out of message. The text following an
// information trigger (up to the end of the sentence) wins when it is longer
// than two characters; otherwise the first capitalised word longer than two
// characters is used.
func ExtractTopic(message string) string {
	phrase := phraseTopic(message)
	if len([]rune(phrase)) > 2 {
		return phrase
	}
	if word := capitalizedWord(message); word != "" {
		return word
	}
	return phrase
}

func phraseTopic(message string) string {
	lower := strings.ToLower(message)
	// Lower-casing can change byte offsets for some scripts; slice the input
	// message only when the offsets still line up.
	source := message
	if len(lower) != len(message) {
		source = lower
	}
	for _, trig := range infoTriggers {
		idx := strings.Index(lower, trig)
		if idx < 0 {
			continue
		}
		rest := source[idx+len(trig):]
		if end := strings.IndexAny(rest, ".?"); end >= 0 {
			rest = rest[:end]
		}
		return strings.Trim(rest, " \t\n,;:!\"'")
	}
	return ""
}

func capitalizedWord(message string) string {
	for _, w := range strings.Fields(message) {
		w = strings.TrimFunc(w, func(r rune) bool { return unicode.IsPunct(r) })
		runes := []rune(w)
		if len(runes) > 2 && unicode.IsUpper(runes[0]) {
			return w
		}
	}
	return ""
}

// historyLength counts the lines of a rendered history.
func historyLength(history string) int {
	if history == "" {
		return 0
	}
	n := strings.Count(history, "\n")
	if !strings.HasSuffix(history, "\n") {
		n++
	}
	return n
}

func containsAny(lower string, phrases []string) bool {
	for _, ph := range phrases {
		if strings.Contains(lower, ph) {
			return true
		}
	}
	return false
}

// Augmentation is the enrichment attached to one reply.
type Augmentation struct {
	Topic      string
	Transition string
	Info       string
	Articles   []encyclopedia.Article
}

func (a Augmentation) Empty() bool { return a.Info == "" }

// Block is the text handed to the model: the announcement, then the facts.
func (a Augmentation) Block() string {
	if a.Empty() {
		return ""
	}
	return a.Transition + "\n\n" + a.Info
}

// Augment runs Decide and, when it says yes, fetches and formats the facts.
// An empty search result means no augmentation.
func (p *Policy) Augment(ctx context.Context, message, history string) Augmentation {
	ok, topic := p.Decide(ctx, message, history)
	if !ok || p.knowledge == nil {
		return Augmentation{}
	}
	articles := p.knowledge.Search(ctx, topic, augmentationResults)
	info := encyclopedia.Format(articles, fmt.Sprintf("about %s", topic))
	if info == "" {
		return Augmentation{}
	}
	p.logger.Info("augmenting reply", zap.String("topic", topic), zap.Int("articles", len(articles)))
	return Augmentation{
		Topic:      topic,
		Transition: p.Transition(topic, info),
		Info:       info,
		Articles:   articles,
	}
}
