package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OllamaBaseURL is the OpenAI-compatible endpoint of a local Ollama server.
const OllamaBaseURL = "http://localhost:11434/v1"

// OpenAIClient implements the Client interface using an OpenAI-compatible API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// OpenAIConfig holds configuration for the OpenAI client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // Optional, e.g. OllamaBaseURL
	Model   string // e.g., "gpt-4o-mini" or an Ollama model tag
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(oc),
		model:  model,
	}
}

func (c *OpenAIClient) chatRequest(req Request, stream bool) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
		Stream:   stream,
		User:     req.User,
	}
}

// Stream starts a streamed chat completion.
func (c *OpenAIClient) Stream(ctx context.Context, req Request) (Stream, error) {
	s, err := c.client.CreateChatCompletionStream(ctx, c.chatRequest(req, true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &openAIStream{stream: s}, nil
}

// Complete returns the full chat completion.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.chatRequest(req, false))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

type openAIStream struct {
	stream *openai.ChatCompletionStream
}

func (s *openAIStream) Recv() (Delta, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		return Delta{}, err
	}
	if len(resp.Choices) == 0 {
		return Delta{}, nil
	}
	choice := resp.Choices[0]
	return Delta{Content: choice.Delta.Content, FinishReason: string(choice.FinishReason)}, nil
}

func (s *openAIStream) Close() error {
	return s.stream.Close()
}
