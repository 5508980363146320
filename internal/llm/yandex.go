package llm

import (
	"context"
	"fmt"

	"github.com/Morwran/yagpt"
)

type YandexClient struct {
	ya       yagpt.YaGPTFace
	iamToken string
}

func NewYandex(oauthToken, folderID string) (*YandexClient, error) {
	iam, err := yagpt.NewYaIam(oauthToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init yandex iam: %w", err)
	}
	resp, err := iam.Create()
	if err != nil {
		return nil, fmt.Errorf("failed to create iam token: %w", err)
	}
	ya, err := yagpt.NewYagpt(folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to init yagpt: %w", err)
	}
	return &YandexClient{ya: ya, iamToken: resp.IamToken}, nil
}

func (c *YandexClient) Generate(ctx context.Context, messages []Message) (Response, error) {
	yaMsgs := make([]yagpt.Message, 0, len(messages))
	for _, m := range messages {
		msg := yagpt.Message{Content: m.Content}
		switch m.Role {
		case RoleSystem:
			msg.Role = "system"
		case RoleAssistant:
			msg.Role = "assistant"
		default:
			msg.Role = "user"
		}
		yaMsgs = append(yaMsgs, msg)
	}
	resp, err := c.ya.CompletionWithCtx(ctx, c.iamToken, yaMsgs)
	if err != nil {
		return Response{}, fmt.Errorf("yagpt completion failed: %w", err)
	}
	if resp == nil || len(resp.Alternatives) == 0 {
		return Response{}, ErrEmptyResponse
	}
	return Response{
		Content:          resp.Alternatives[0].Message.Content,
		Model:            yagpt.YaModelLite,
		PromptTokens:     int(resp.Usage.InputTextTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}, nil
}
