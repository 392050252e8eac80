package vad

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/lukasbauer/samanta/internal/audio"
)

// ErrUnavailable is returned when the VAD model cannot be reached or fails outright.
var ErrUnavailable = errors.New("vad: model unavailable")

// Segment is an interval of detected speech, in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Annotation is the model's native output: labelled tracks in the order the
// model produced them.
type Annotation struct {
	Content []Track `json:"content"`
}

// Track is one labelled region of an Annotation.
type Track struct {
	Segment Segment `json:"segment"`
	Track   string  `json:"track,omitempty"`
	Label   string  `json:"label,omitempty"`
}

// Model defines the interface for voice activity detection models.
type Model interface {
	// Annotate runs the model on the audio file at path.
	Annotate(ctx context.Context, path string) (*Annotation, error)
}

// Detector stages raw uploaded audio and runs voice activity detection on it.
// The audio is handed to the model as uploaded, without transcoding.
type Detector struct {
	model   Model
	tempDir string
	logger  *log.Logger
}

// NewDetector creates a new Detector.
func NewDetector(model Model, tempDir string, logger *log.Logger) *Detector {
	return &Detector{model: model, tempDir: tempDir, logger: logger}
}

// Detect returns the speech segments found in data. No speech yields an
// empty, non-nil slice.
func (d *Detector) Detect(ctx context.Context, data []byte) ([]Segment, error) {
	f, err := audio.Stage(d.tempDir, data, ".wav")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := f.Release(); err != nil {
			d.logger.Printf("vad: %v", err)
		}
	}()

	ann, err := d.model.Annotate(ctx, f.Path())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return Support(ann), nil
}

// Support flattens an annotation into its timeline support: consecutive
// overlapping or touching regions are merged, degenerate ones dropped. The
// model's ordering is kept.
func Support(ann *Annotation) []Segment {
	segments := []Segment{}
	if ann == nil {
		return segments
	}
	for _, t := range ann.Content {
		s := t.Segment
		if s.End <= s.Start {
			continue
		}
		if n := len(segments); n > 0 && s.Start >= segments[n-1].Start && s.Start <= segments[n-1].End {
			if s.End > segments[n-1].End {
				segments[n-1].End = s.End
			}
			continue
		}
		segments = append(segments, s)
	}
	return segments
}
