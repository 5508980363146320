package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

type OpenAIClient struct {
	client *openai.Client
	model  string
}

type headerTransport struct {
	rt      http.RoundTripper
	headers http.Header
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cl := req.Clone(req.Context())
	for k, vs := range t.headers {
		for _, v := range vs {
			cl.Header.Add(k, v)
		}
	}
	return t.rt.RoundTrip(cl)
}

// NewOpenAI builds a client for any OpenAI-compatible endpoint. referrer and
// title become OpenRouter attribution headers when set.
func NewOpenAI(apiKey, baseURL, model, referrer, title string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if referrer != "" || title != "" {
		h := http.Header{}
		if referrer != "" {
			h.Set("HTTP-Referer", referrer)
		}
		if title != "" {
			h.Set("X-Title", title)
		}
		config.HTTPClient = &http.Client{Transport: headerTransport{rt: http.DefaultTransport, headers: h}}
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (c *OpenAIClient) request(messages []Message) openai.ChatCompletionRequest {
	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return openai.ChatCompletionRequest{Model: c.model, Messages: oaMsgs}
}

func (c *OpenAIClient) Generate(ctx context.Context, messages []Message) (Response, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.request(messages))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, ErrEmptyResponse
	}
	return Response{
		Content:          resp.Choices[0].Message.Content,
		Model:            c.model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

func (c *OpenAIClient) GenerateStream(ctx context.Context, messages []Message) (Stream, error) {
	req := c.request(messages)
	req.Stream = true
	s, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to open chat stream: %w", err)
	}
	return &openAIStream{s: s}, nil
}

type openAIStream struct {
	s *openai.ChatCompletionStream
}

func (o *openAIStream) Recv() (string, error) {
	resp, err := o.s.Recv()
	if err != nil {
		// io.EOF passes through unwrapped so Collect can stop on it.
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (o *openAIStream) Close() error { return o.s.Close() }
