// Package audiotest provides WAV fixtures and fake ffmpeg binaries for tests.
package audiotest

import (
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV writes a PCM16 sine tone of the given duration to path.
func WriteWAV(t testing.TB, path string, sampleRate, channels int, seconds float64) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav fixture: %v", err)
	}
	defer f.Close()

	frames := int(float64(sampleRate) * seconds)
	data := make([]int, 0, frames*channels)
	for i := 0; i < frames; i++ {
		v := int(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		for c := 0; c < channels; c++ {
			data = append(data, v)
		}
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode wav fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav encoder: %v", err)
	}
}

// FakeFFmpeg writes an executable shell script standing in for ffmpeg and
// returns its path. The output path is the script's last argument.
func FakeFFmpeg(t testing.TB, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake ffmpeg scripts require a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\nfor last; do :; done\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake ffmpeg: %v", err)
	}
	return path
}

// CopyFixture returns a fake ffmpeg that copies fixture to the output path.
func CopyFixture(t testing.TB, fixture string) string {
	return FakeFFmpeg(t, `cp "`+fixture+`" "$last"`)
}

// Failing returns a fake ffmpeg that prints stderr and exits with status 1.
func Failing(t testing.TB, stderr string) string {
	return FakeFFmpeg(t, `echo "`+stderr+`" >&2
exit 1`)
}

// Silent returns a fake ffmpeg that exits 0 without writing any output.
func Silent(t testing.TB) string {
	return FakeFFmpeg(t, "exit 0")
}

// Hanging returns a fake ffmpeg that never finishes within a test timeout.
func Hanging(t testing.TB) string {
	return FakeFFmpeg(t, "exec sleep 30")
}
