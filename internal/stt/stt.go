package stt

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrShapeMismatch signals a model result of a shape the adapter does not know.
	ErrShapeMismatch = errors.New("stt: unrecognized transcription result shape")
	// ErrUnavailable is returned when the transcription model fails outright.
	ErrUnavailable = errors.New("stt: transcription model unavailable")
)

// Result is the raw output of a transcription model. It is either Segments
// or FlatText.
type Result interface {
	isResult()
}

// SegmentText is one timed segment of recognized speech.
type SegmentText struct {
	Start float64
	End   float64
	Text  string
}

// Segments is a segment-shaped result, in model order.
type Segments []SegmentText

// FlatText is a single-string result.
type FlatText string

func (Segments) isResult() {}
func (FlatText) isResult() {}

// Model defines the interface for transcription models.
type Model interface {
	// Transcribe recognizes speech in the PCM WAV file at path. language is
	// an optional hint; empty lets the model detect it.
	Transcribe(ctx context.Context, path, language string) (Result, error)
}

// Normalize collapses a Result into a single transcript string. Segment
// texts are joined with single spaces in their given order.
func Normalize(r Result) (string, error) {
	switch v := r.(type) {
	case Segments:
		parts := make([]string, len(v))
		for i, s := range v {
			parts[i] = s.Text
		}
		return strings.TrimSpace(strings.Join(parts, " ")), nil
	case FlatText:
		return strings.TrimSpace(string(v)), nil
	default:
		return "", ErrShapeMismatch
	}
}
