// Package openai adapts github.com/sashabaranov/go-openai to the
// chatclient.Provider contract.
package openai

import (
	"context"
	"fmt"
	"time"

	openaisdk "github.com/sashabaranov/go-openai"

	"github.com/ilkoid/revorc/pkg/chatclient"
)

// Client implements chatclient.Provider over the OpenAI (or
// OpenAI-compatible) chat completions API.
type Client struct {
	sdk *openaisdk.Client
}

// New builds a Client. baseURL may be empty to use the default OpenAI
// endpoint, or set to point at a compatible gateway.
func New(apiKey, baseURL string, timeout time.Duration) *Client {
	cfg := openaisdk.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if timeout > 0 {
		cfg.HTTPClient.Timeout = timeout
	}
	return &Client{sdk: openaisdk.NewClientWithConfig(cfg)}
}

func toSDKMessages(messages []chatclient.Message) []openaisdk.ChatCompletionMessage {
	out := make([]openaisdk.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		if len(m.Content) == 1 && m.Content[0].Type == chatclient.TypeText {
			out[i] = openaisdk.ChatCompletionMessage{Role: string(m.Role), Content: m.Content[0].Text}
			continue
		}
		parts := make([]openaisdk.ChatMessagePart, 0, len(m.Content))
		for _, p := range m.Content {
			switch p.Type {
			case chatclient.TypeText:
				parts = append(parts, openaisdk.ChatMessagePart{Type: openaisdk.ChatMessagePartTypeText, Text: p.Text})
			case chatclient.TypeImage:
				parts = append(parts, openaisdk.ChatMessagePart{
					Type:     openaisdk.ChatMessagePartTypeImageURL,
					ImageURL: &openaisdk.ChatMessageImageURL{URL: p.ImageURL},
				})
			}
		}
		out[i] = openaisdk.ChatCompletionMessage{Role: string(m.Role), MultiContent: parts}
	}
	return out
}

// Chat implements chatclient.Provider.
func (c *Client) Chat(ctx context.Context, req chatclient.Request) (string, error) {
	sdkReq := openaisdk.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    toSDKMessages(req.Messages),
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONMode {
		sdkReq.ResponseFormat = &openaisdk.ChatCompletionResponseFormat{Type: openaisdk.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := c.sdk.CreateChatCompletion(ctx, sdkReq)
	if err != nil {
		return "", fmt.Errorf("chatclient/openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chatclient/openai: empty choices in response")
	}
	content := resp.Choices[0].Message.Content
	if req.JSONMode {
		content = chatclient.StripCodeFence(content)
	}
	return content, nil
}
