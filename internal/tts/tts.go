package tts

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the synthesis provider cannot be reached
// or rejects the request.
var ErrUnavailable = errors.New("tts: synthesizer unavailable")

// Client defines the interface for text-to-speech providers.
type Client interface {
	// Synthesize converts text to speech and returns encoded audio (MP3 for
	// the network providers).
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// PlaceholderAudio is what Placeholder returns for every input.
var PlaceholderAudio = []byte("DummyAudioData")

// Placeholder is a Client that performs no synthesis. It backs the legacy
// speak endpoint, which reports only the length of the produced audio.
type Placeholder struct{}

// Synthesize returns PlaceholderAudio.
func (Placeholder) Synthesize(context.Context, string) ([]byte, error) {
	return PlaceholderAudio, nil
}
