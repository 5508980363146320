package llm

import (
	"context"
	"fmt"
	"io"
	"iter"
	"strings"

	"google.golang.org/genai"
)

type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// split moves system messages into the system instruction and maps the
// remaining roles onto Gemini's user/model pair.
func (c *GeminiClient) split(messages []Message) ([]*genai.Content, *genai.GenerateContentConfig) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	cfg := &genai.GenerateContentConfig{}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	return contents, cfg
}

func (c *GeminiClient) Generate(ctx context.Context, messages []Message) (Response, error) {
	contents, cfg := c.split(messages)
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return Response{}, fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return Response{}, ErrEmptyResponse
	}
	out := Response{Content: text, Model: c.model}
	if u := resp.UsageMetadata; u != nil {
		out.PromptTokens = int(u.PromptTokenCount)
		out.CompletionTokens = int(u.CandidatesTokenCount)
		out.TotalTokens = int(u.TotalTokenCount)
	}
	return out, nil
}

func (c *GeminiClient) GenerateStream(ctx context.Context, messages []Message) (Stream, error) {
	contents, cfg := c.split(messages)
	next, stop := iter.Pull2(c.client.Models.GenerateContentStream(ctx, c.model, contents, cfg))
	return &geminiStream{next: next, stop: stop}, nil
}

type geminiStream struct {
	next func() (*genai.GenerateContentResponse, error, bool)
	stop func()
}

func (g *geminiStream) Recv() (string, error) {
	resp, err, ok := g.next()
	if !ok {
		return "", io.EOF
	}
	if err != nil {
		return "", fmt.Errorf("gemini stream: %w", err)
	}
	if resp == nil {
		return "", nil
	}
	return resp.Text(), nil
}

func (g *geminiStream) Close() error {
	g.stop()
	return nil
}
