package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liora/internal/analyzer"
	"liora/internal/effectiveness"
	"liora/internal/encyclopedia"
	"liora/internal/learning"
	"liora/internal/persona"
)

const (
	defaultWikiResults = 3
	maxWikiResults     = 10
)

type AnalyzeTextParams struct {
	Text     string `json:"text" mcp:"the text to analyze"`
	Response string `json:"response,omitempty" mcp:"optional assistant reply to score against the text"`
}

type WikiSearchParams struct {
	Query string `json:"query" mcp:"topic to look up"`
	Limit int    `json:"limit,omitempty" mcp:"maximum number of articles (default: 3, max: 10)"`
}

type EmptyParams struct{}

// AnalyzeTextResult is the analyze_text payload.
type AnalyzeTextResult struct {
	analyzer.Analysis
	Effectiveness *float64 `json:"effectiveness,omitempty"`
}

type searcher interface {
	Search(ctx context.Context, query string, maxResults int) []encyclopedia.Article
	RelatedTopics(ctx context.Context, topic string) []string
}

type insighter interface {
	Insights() learning.Insights
}

// LioraMCPServer exposes the analysis core as MCP tools.
type LioraMCPServer struct {
	knowledge searcher
	learning  insighter
	personas  *persona.Selector
	logger    *zap.Logger
}

func (s *LioraMCPServer) AnalyzeText(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[AnalyzeTextParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	if strings.TrimSpace(args.Text) == "" {
		return errorResult("text is required"), nil
	}
	res := AnalyzeTextResult{Analysis: analyzer.Analyze(args.Text)}
	if args.Response != "" {
		score := effectiveness.Score(args.Text, args.Response)
		res.Effectiveness = &score
	}
	return jsonResult(res)
}

func (s *LioraMCPServer) WikiSearch(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[WikiSearchParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return errorResult("query is required"), nil
	}
	limit := args.Limit
	if limit <= 0 {
		limit = defaultWikiResults
	}
	limit = min(limit, maxWikiResults)

	articles := s.knowledge.Search(ctx, query, limit)
	s.logger.Info("wiki_search", zap.String("query", query), zap.Int("results", len(articles)))
	if len(articles) == 0 {
		return textResult(fmt.Sprintf("No articles found for %q", query)), nil
	}
	text := encyclopedia.Format(articles, "about "+query) + encyclopedia.FormatRelated(s.knowledge.RelatedTopics(ctx, query))
	return textResult(text), nil
}

func (s *LioraMCPServer) LearningInsights(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[EmptyParams]) (*mcp.CallToolResultFor[any], error) {
	return jsonResult(s.learning.Insights())
}

func (s *LioraMCPServer) ListPersonas(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[EmptyParams]) (*mcp.CallToolResultFor[any], error) {
	ids := s.personas.Names()
	out := make([]persona.Persona, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.personas.Get(id))
	}
	return jsonResult(out)
}

func textResult(text string) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func jsonResult(v any) (*mcp.CallToolResultFor[any], error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return textResult(string(data)), nil
}

func newMCPServer(s *LioraMCPServer) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "liora-mcp",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze_text",
		Description: "Extracts topics, sentiment, engagement, style and flow from text; scores a reply when one is given",
	}, s.AnalyzeText)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "wiki_search",
		Description: "Searches the encyclopedia and returns article summaries",
	}, s.WikiSearch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "learning_insights",
		Description: "Returns what the assistant has learned so far",
	}, s.LearningInsights)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_personas",
		Description: "Lists available personas",
	}, s.ListPersonas)

	return server
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the analysis tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			personas := persona.NewSelector(cfg.DefaultPersona)
			if cfg.PersonasFilePath != "" {
				if err := personas.LoadFile(cfg.PersonasFilePath); err != nil {
					logger.Warn("ignoring personas file", zap.String("path", cfg.PersonasFilePath), zap.Error(err))
				}
			}
			store, err := openLearning()
			if err != nil {
				return err
			}

			server := newMCPServer(&LioraMCPServer{
				knowledge: newRetriever(),
				learning:  store,
				personas:  personas,
				logger:    logger.Named("mcp"),
			})
			logger.Info("starting MCP server on stdio")
			// stdout belongs to the protocol; zap writes to stderr.
			return server.Run(cmd.Context(), mcp.NewStdioTransport())
		},
	}
}
