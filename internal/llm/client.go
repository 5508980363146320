package llm

import (
	"context"
	"errors"
	"io"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var ErrEmptyResponse = errors.New("llm returned empty response")

type Message struct {
	Role    string
	Content string
}

type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Client interface {
	Generate(ctx context.Context, messages []Message) (Response, error)
}

// Stream yields reply chunks in order. Recv returns io.EOF after the last one.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Streamer is implemented by clients that can stream natively.
type Streamer interface {
	GenerateStream(ctx context.Context, messages []Message) (Stream, error)
}

// Complete streams from c when it supports streaming, otherwise it wraps a
// single Generate call in a one-chunk stream.
func Complete(ctx context.Context, c Client, messages []Message) (Stream, error) {
	if s, ok := c.(Streamer); ok {
		return s.GenerateStream(ctx, messages)
	}
	resp, err := c.Generate(ctx, messages)
	if err != nil {
		return nil, err
	}
	return &sliceStream{chunks: []string{resp.Content}}, nil
}

// Collect drains s and returns the concatenated text. onChunk, when set,
// sees every non-empty chunk as it arrives.
func Collect(s Stream, onChunk func(string)) (string, error) {
	defer func() { _ = s.Close() }()
	var b strings.Builder
	for {
		chunk, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		if chunk == "" {
			continue
		}
		b.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}
}

type sliceStream struct {
	chunks []string
	pos    int
}

func (s *sliceStream) Recv() (string, error) {
	if s.pos >= len(s.chunks) {
		return "", io.EOF
	}
	c := s.chunks[s.pos]
	s.pos++
	return c, nil
}

func (s *sliceStream) Close() error { return nil }

// Text is a convenience for single-prompt calls.
func Text(ctx context.Context, c Client, prompt string) (string, error) {
	resp, err := c.Generate(ctx, []Message{{Role: RoleUser, Content: prompt}})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
