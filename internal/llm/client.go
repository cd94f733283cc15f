// Package llm wraps chat completion for answer generation.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"pdfrag/config"
)

const (
	answerTemperature = 0.3
	answerMaxTokens   = 1000
)

type Client struct {
	client openai.Client
	model  string
}

func New() *Client {
	return &Client{
		client: openai.NewClient(option.WithAPIKey(config.Cfg.OpenAI.Key)),
		model:  config.Cfg.OpenAI.Model,
	}
}

func (c *Client) params(system, user string) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(answerTemperature),
		MaxTokens:   openai.Int(answerMaxTokens),
	}
}

// Complete returns the whole answer in one call.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	completion, err := c.client.Chat.Completions.New(ctx, c.params(system, user))
	if err != nil {
		return "", fmt.Errorf("llm: completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("llm: completion returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

// Stream emits the answer token deltas through emit as they arrive. An error
// from emit aborts the stream and is returned unchanged.
func (c *Client) Stream(ctx context.Context, system, user string, emit func(fragment string) error) error {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(system, user))
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := emit(delta); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("llm: stream failed: %w", err)
	}
	return nil
}
