package stt

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// WhisperClient implements the Model interface against an OpenAI-compatible
// /audio/transcriptions endpoint (OpenAI, faster-whisper-server, whisper.cpp).
type WhisperClient struct {
	client *openai.Client
	model  string
}

// WhisperConfig holds configuration for the Whisper client.
type WhisperConfig struct {
	APIKey  string
	BaseURL string // Optional, defaults to the OpenAI API
	Model   string // e.g., "whisper-1"
}

// NewWhisperClient creates a new Whisper transcription client.
func NewWhisperClient(cfg WhisperConfig) *WhisperClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperClient{
		client: openai.NewClientWithConfig(oc),
		model:  model,
	}
}

// Transcribe uploads the file and returns segments when the server provides
// them, the flat text otherwise.
func (c *WhisperClient) Transcribe(ctx context.Context, path, language string) (Result, error) {
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.model,
		FilePath: path,
		Language: language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to transcribe: %w", err)
	}

	if len(resp.Segments) == 0 {
		return FlatText(resp.Text), nil
	}
	segments := make(Segments, len(resp.Segments))
	for i, s := range resp.Segments {
		segments[i] = SegmentText{Start: s.Start, End: s.End, Text: s.Text}
	}
	return segments, nil
}
