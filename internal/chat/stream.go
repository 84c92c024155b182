package chat

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// Streamer produces completion fragments for a prompt, invoking
// onFragment for each one until the upstream stream closes.
type Streamer interface {
	Stream(ctx context.Context, prompt string, onFragment func(text string) error) error
}

// OpenAIStreamer streams completions from an OpenAI-compatible endpoint
// (Fireworks in the default deployment).
type OpenAIStreamer struct {
	client *openai.Client
	model  string
}

// NewOpenAIStreamer builds a streaming client. baseURL may point at any
// OpenAI-compatible inference endpoint.
func NewOpenAIStreamer(apiKey, baseURL, model string) *OpenAIStreamer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIStreamer{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Stream runs one completion to exhaustion. There is no cancellation
// control beyond the request context: a started stream runs until the
// upstream closes it or the network fails.
func (s *OpenAIStreamer) Stream(ctx context.Context, prompt string, onFragment func(text string) error) error {
	stream, err := s.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream: true,
	})
	if err != nil {
		return fmt.Errorf("open completion stream: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read completion stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if text := resp.Choices[0].Delta.Content; text != "" {
			if err := onFragment(text); err != nil {
				return err
			}
		}
	}
}
