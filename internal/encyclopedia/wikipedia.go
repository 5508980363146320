package encyclopedia

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	categoryPrefix     = "Category:"
	maxCategories      = 5
	summarySentences   = 2
	defaultConcurrency = 3
	defaultUserAgent   = "liora-chat/1.0 (https://github.com/liora-chat)"
)

// Wikipedia queries the MediaWiki Action API: one search call for titles,
// then one lookup per title for its intro, URL and categories.
type Wikipedia struct {
	httpClient  *http.Client
	endpoint    string // overrides the per-language endpoint when set
	limiter     *rate.Limiter
	userAgent   string
	concurrency int
	logger      *zap.Logger
}

type WikipediaOption func(*Wikipedia)

func WithHTTPClient(c *http.Client) WikipediaOption {
	return func(w *Wikipedia) { w.httpClient = c }
}

func WithEndpoint(endpoint string) WikipediaOption {
	return func(w *Wikipedia) { w.endpoint = endpoint }
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(perSecond float64) WikipediaOption {
	return func(w *Wikipedia) {
		if perSecond > 0 {
			w.limiter = rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
		}
	}
}

func WithWikipediaLogger(l *zap.Logger) WikipediaOption {
	return func(w *Wikipedia) {
		if l != nil {
			w.logger = l
		}
	}
}

func NewWikipedia(opts ...WikipediaOption) *Wikipedia {
	w := &Wikipedia{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(5), 5),
		userAgent:   defaultUserAgent,
		concurrency: defaultConcurrency,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

type searchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type pageResponse struct {
	Query struct {
		Pages []struct {
			Title      string `json:"title"`
			Missing    bool   `json:"missing"`
			Extract    string `json:"extract"`
			FullURL    string `json:"fullurl"`
			Categories []struct {
				Title string `json:"title"`
			} `json:"categories"`
		} `json:"pages"`
	} `json:"query"`
}

// Search returns articles in search-rank order. Titles whose lookup fails
// are skipped.
func (w *Wikipedia) Search(ctx context.Context, query, lang string, limit int) ([]Article, error) {
	if lang == "" {
		lang = DefaultLanguage
	}
	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {strconv.Itoa(limit)},
		"srprop":   {""},
	}
	var sr searchResponse
	if err := w.get(ctx, lang, params, &sr); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	results := make([]*Article, len(sr.Query.Search))
	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for i, hit := range sr.Query.Search {
		g.Go(func() error {
			a, err := w.page(ctx, lang, hit.Title)
			if err != nil {
				w.logger.Debug("skipping article", zap.String("title", hit.Title), zap.Error(err))
				return nil
			}
			results[i] = a
			return nil
		})
	}
	_ = g.Wait()

	articles := make([]Article, 0, len(results))
	for _, a := range results {
		if a != nil {
			articles = append(articles, *a)
		}
	}
	return articles, nil
}

func (w *Wikipedia) page(ctx context.Context, lang, title string) (*Article, error) {
	params := url.Values{
		"action":      {"query"},
		"prop":        {"extracts|info|categories"},
		"titles":      {title},
		"exintro":     {"1"},
		"explaintext": {"1"},
		"exsentences": {strconv.Itoa(summarySentences)},
		"inprop":      {"url"},
		"clshow":      {"!hidden"},
		"cllimit":     {strconv.Itoa(maxCategories)},
		"redirects":   {"1"},
	}
	var pr pageResponse
	if err := w.get(ctx, lang, params, &pr); err != nil {
		return nil, err
	}
	if len(pr.Query.Pages) == 0 || pr.Query.Pages[0].Missing {
		return nil, fmt.Errorf("page %q not found", title)
	}
	p := pr.Query.Pages[0]
	a := &Article{Title: p.Title, Summary: strings.TrimSpace(p.Extract), URL: p.FullURL, Categories: []string{}}
	for _, c := range p.Categories {
		if len(a.Categories) == maxCategories {
			break
		}
		a.Categories = append(a.Categories, strings.TrimPrefix(c.Title, categoryPrefix))
	}
	return a, nil
}

func (w *Wikipedia) get(ctx context.Context, lang string, params url.Values, out any) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	params.Set("format", "json")
	params.Set("formatversion", "2")

	endpoint := w.endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.wikipedia.org/w/api.php", lang)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", w.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer func(resp *http.Response) {
		_ = resp.Body.Close()
	}(resp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
