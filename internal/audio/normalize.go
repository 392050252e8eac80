package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"time"
)

// DefaultTranscodeTimeout bounds a single ffmpeg invocation.
const DefaultTranscodeTimeout = 10 * time.Second

var (
	ErrTranscodeTimeout     = errors.New("audio: transcode timed out")
	ErrTranscodeFailure     = errors.New("audio: transcode failed")
	ErrTranscodeEmptyOutput = errors.New("audio: transcode produced no output")

	// ErrTranscoderUnavailable means ffmpeg could not be started at all. It
	// is a server fault and does not match ErrTranscodeFailure.
	ErrTranscoderUnavailable = errors.New("audio: transcoder unavailable")
)

// TranscodeError carries the diagnostics of a failed ffmpeg run.
type TranscodeError struct {
	ExitCode int
	Stderr   string
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("audio: transcode failed (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *TranscodeError) Is(target error) bool {
	return target == ErrTranscodeFailure
}

// NormalizerConfig holds configuration for the ffmpeg normalizer.
type NormalizerConfig struct {
	FFmpegPath string        // defaults to "ffmpeg" on PATH
	Timeout    time.Duration // defaults to DefaultTranscodeTimeout
	TempDir    string        // directory for the output file, os.TempDir when empty
}

// Normalizer converts arbitrary container/codec input into mono 16 kHz
// 16-bit PCM WAV using an external ffmpeg process.
type Normalizer struct {
	ffmpeg  string
	timeout time.Duration
	tempDir string
	logger  *log.Logger
}

// NewNormalizer creates a new Normalizer.
func NewNormalizer(cfg NormalizerConfig, logger *log.Logger) *Normalizer {
	ffmpeg := cfg.FFmpegPath
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTranscodeTimeout
	}
	return &Normalizer{
		ffmpeg:  ffmpeg,
		timeout: timeout,
		tempDir: cfg.TempDir,
		logger:  logger,
	}
}

// ffmpegArgs builds the fixed argument list: tolerate corrupt input, resample
// to avoid timestamp drift, and emit pcm_s16le mono at 16 kHz.
func ffmpegArgs(in, out string) []string {
	return []string{
		"-y",
		"-fflags", "+discardcorrupt+genpts",
		"-i", in,
		"-af", "aresample=async=1000",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-f", "wav",
		"-loglevel", "warning",
		out,
	}
}

// Normalize transcodes src into a new staged WAV file. On error the output
// file has already been released; on success the caller owns it.
func (n *Normalizer) Normalize(ctx context.Context, src *StagedFile) (*StagedFile, error) {
	out, err := Reserve(n.tempDir, ".wav")
	if err != nil {
		return nil, err
	}

	if err := n.run(ctx, src.Path(), out.Path()); err != nil {
		out.Release()
		return nil, err
	}

	size, err := out.Size()
	if err != nil || size == 0 {
		out.Release()
		return nil, ErrTranscodeEmptyOutput
	}

	info, err := InspectWAV(out.Path())
	if err != nil {
		out.Release()
		return nil, &TranscodeError{Stderr: err.Error()}
	}
	if !info.IsTarget() {
		out.Release()
		return nil, &TranscodeError{Stderr: "unexpected output format: " + info.String()}
	}

	if n.logger != nil {
		n.logger.Printf("audio: normalized %s -> %s (%d bytes)", src.Path(), out.Path(), size)
	}
	return out, nil
}

func (n *Normalizer) run(ctx context.Context, in, out string) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, n.ffmpeg, ffmpegArgs(in, out)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return fmt.Errorf("%w after %s", ErrTranscodeTimeout, n.timeout)
	case context.Canceled:
		return fmt.Errorf("audio: transcode cancelled: %w", context.Canceled)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &TranscodeError{ExitCode: exitErr.ExitCode(), Stderr: strings.TrimSpace(stderr.String())}
		}
		// The binary could not be started: missing, not executable, etc.
		return fmt.Errorf("%w: %w", ErrTranscoderUnavailable, err)
	}
	return nil
}
