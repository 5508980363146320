// Package encyclopedia looks up short article summaries used to enrich
// replies with facts. Lookups never fail from the caller's point of view:
// any provider error or timeout yields an empty result.
package encyclopedia

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Article is one ranked search hit.
type Article struct {
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	URL        string   `json:"url"`
	Categories []string `json:"categories"`
}

// Provider is an encyclopedia backend.
type Provider interface {
	Search(ctx context.Context, query, lang string, limit int) ([]Article, error)
}

// Random is the subset of *rand.Rand the retriever draws from.
type Random interface {
	Intn(n int) int
}

type globalRand struct{}

func (globalRand) Intn(n int) int { return rand.Intn(n) }

const (
	DefaultMaxResults = 3
	DefaultLanguage   = "en"
	defaultTimeout    = 8 * time.Second
	maxRelatedTopics  = 3
)

var interestingTopics = []string{
	"Artificial Intelligence", "Space exploration", "Ancient civilizations",
	"Modern technology", "Human psychology", "Natural phenomena",
	"Famous inventions", "Historical events", "Scientific discoveries",
	"Cultural movements", "Philosophy", "Mathematics", "Biology",
	"Physics", "Chemistry", "Astronomy", "Psychology", "Sociology",
}

var interestingCategoryKeywords = []string{
	"history", "science", "technology", "culture", "people",
	"philosophy", "art", "music", "literature", "politics",
}

type Retriever struct {
	provider Provider
	lang     string
	timeout  time.Duration
	rnd      Random
	logger   *zap.Logger
}

type Option func(*Retriever)

func WithLanguage(lang string) Option {
	return func(r *Retriever) {
		if lang != "" {
			r.lang = lang
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(r *Retriever) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithRandom(rnd Random) Option {
	return func(r *Retriever) { r.rnd = rnd }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewRetriever(p Provider, opts ...Option) *Retriever {
	r := &Retriever{
		provider: p,
		lang:     DefaultLanguage,
		timeout:  defaultTimeout,
		rnd:      globalRand{},
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Search returns up to maxResults articles for query, or nothing on failure.
func (r *Retriever) Search(ctx context.Context, query string, maxResults int) []Article {
	query = strings.TrimSpace(query)
	if query == "" || r.provider == nil {
		return nil
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	articles, err := r.provider.Search(ctx, query, r.lang, maxResults)
	if err != nil {
		r.logger.Warn("encyclopedia search failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	if len(articles) > maxResults {
		articles = articles[:maxResults]
	}
	r.logger.Debug("encyclopedia search", zap.String("query", query), zap.Int("results", len(articles)))
	return articles
}

// RandomTopic draws one of the curated subjects and returns its top article.
func (r *Retriever) RandomTopic(ctx context.Context) *Article {
	subject := interestingTopics[r.rnd.Intn(len(interestingTopics))]
	articles := r.Search(ctx, subject, 1)
	if len(articles) == 0 {
		return nil
	}
	return &articles[0]
}

// RelatedTopics returns up to three categories of the top article for topic
// that point at broad, conversation-friendly domains.
func (r *Retriever) RelatedTopics(ctx context.Context, topic string) []string {
	articles := r.Search(ctx, topic, 1)
	if len(articles) == 0 {
		return nil
	}
	var out []string
	for _, cat := range articles[0].Categories {
		lower := strings.ToLower(cat)
		for _, kw := range interestingCategoryKeywords {
			if strings.Contains(lower, kw) {
				out = append(out, cat)
				break
			}
		}
		if len(out) == maxRelatedTopics {
			break
		}
	}
	return out
}

// Format renders articles as a numbered block introduced by context.
func Format(articles []Article, context string) string {
	if len(articles) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📚 Wikipedia Info %s:\n\n", context)
	for i, a := range articles {
		fmt.Fprintf(&b, "%d. **%s**: %s\n", i+1, a.Title, a.Summary)
		if a.URL != "" {
			fmt.Fprintf(&b, "   Source: %s\n", a.URL)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatRelated renders related topics as one trailing line, or "" for none.
func FormatRelated(topics []string) string {
	if len(topics) == 0 {
		return ""
	}
	return "🔗 Related: " + strings.Join(topics, ", ") + "\n"
}
