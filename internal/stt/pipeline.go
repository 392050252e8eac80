package stt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lukasbauer/samanta/internal/audio"
	"github.com/lukasbauer/samanta/internal/metrics"
)

// State is a stage of a pipeline run.
type State int

const (
	StateIdle State = iota
	StateStaged
	StateNormalized
	StateTranscribed
	StateCleanedUp
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStaged:
		return "staged"
	case StateNormalized:
		return "normalized"
	case StateTranscribed:
		return "transcribed"
	case StateCleanedUp:
		return "cleaned_up"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Blob is uploaded audio plus its container hint, e.g. ".webm".
type Blob struct {
	Data   []byte
	Suffix string
}

// Normalizer converts staged audio into the PCM form the model requires.
type Normalizer interface {
	Normalize(ctx context.Context, src *audio.StagedFile) (*audio.StagedFile, error)
}

// PipelineConfig holds configuration for the speech-to-text pipeline.
type PipelineConfig struct {
	TempDir  string
	Language string // optional language hint, e.g. "it"
}

// Pipeline runs stage -> normalize -> transcribe -> cleanup for one upload.
type Pipeline struct {
	normalizer Normalizer
	model      Model
	cfg        PipelineConfig
	logger     *log.Logger
	metrics    *metrics.Metrics
}

// NewPipeline creates a new Pipeline. m may be nil.
func NewPipeline(cfg PipelineConfig, normalizer Normalizer, model Model, logger *log.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		normalizer: normalizer,
		model:      model,
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
	}
}

// Run transcribes blob. Whatever happens, every temporary file it created is
// removed before it returns. On failure the transcript is "" and the error
// tells why; IsRecoverable separates bad input from a broken service.
func (p *Pipeline) Run(ctx context.Context, blob Blob) (transcript string, err error) {
	start := time.Now()
	state := StateIdle
	var staged []*audio.StagedFile

	defer func() {
		for _, f := range staged {
			if rerr := f.Release(); rerr != nil {
				p.logger.Printf("stt: cleanup: %v", rerr)
			}
		}
		if err != nil {
			p.logger.Printf("stt: %s -> %s: %v", state, StateFailed, err)
		} else {
			p.logger.Printf("stt: %s -> %s", state, StateCleanedUp)
		}
		p.metrics.RecordTranscription(Reason(err), time.Since(start).Seconds())
	}()

	raw, err := audio.Stage(p.cfg.TempDir, blob.Data, blob.Suffix)
	if err != nil {
		return "", err
	}
	staged = append(staged, raw)
	state = StateStaged
	p.logger.Printf("stt: staged %d bytes at %s", len(blob.Data), raw.Path())

	transcodeStart := time.Now()
	wav, err := p.normalizer.Normalize(ctx, raw)
	p.metrics.RecordTranscode(time.Since(transcodeStart).Seconds())
	if err != nil {
		return "", err
	}
	staged = append(staged, wav)
	state = StateNormalized

	result, err := p.model.Transcribe(ctx, wav.Path(), p.cfg.Language)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	transcript, err = Normalize(result)
	if err != nil {
		p.logger.Printf("stt: defect: model returned %T", result)
		return "", err
	}
	state = StateTranscribed
	p.logger.Printf("stt: transcription completed: %q", transcript)
	return transcript, nil
}

// IsRecoverable reports whether err means the audio produced nothing usable,
// as opposed to the service being broken.
func IsRecoverable(err error) bool {
	return errors.Is(err, audio.ErrTranscodeTimeout) ||
		errors.Is(err, audio.ErrTranscodeFailure) ||
		errors.Is(err, audio.ErrTranscodeEmptyOutput) ||
		errors.Is(err, ErrShapeMismatch)
}

// Reason returns a short label for err, suitable for metrics and event logs.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, audio.ErrTranscodeTimeout):
		return "transcode_timeout"
	case errors.Is(err, audio.ErrTranscodeFailure):
		return "transcode_failure"
	case errors.Is(err, audio.ErrTranscodeEmptyOutput):
		return "transcode_empty_output"
	case errors.Is(err, audio.ErrTranscoderUnavailable):
		return "transcoder_unavailable"
	case errors.Is(err, ErrShapeMismatch):
		return "shape_mismatch"
	case errors.Is(err, audio.ErrIO):
		return "io_failure"
	case errors.Is(err, ErrUnavailable):
		return "model_unavailable"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "error"
	}
}
