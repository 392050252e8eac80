package httpapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lukasbauer/samanta/internal/audio"
	"github.com/lukasbauer/samanta/internal/stt"
	"github.com/lukasbauer/samanta/internal/vad"
)

func multipartRequest(t *testing.T, path, field, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = fw.Write(data)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHandleDetectVoice(t *testing.T) {
	t.Run("returns segments", func(t *testing.T) {
		det := &fakeDetector{segments: []vad.Segment{{Start: 0.5, End: 1.25}}}
		r := newTestRouter(t, testDeps{detector: det})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, multipartRequest(t, "/api/detect-voice", "file", "clip.wav", []byte("RIFF")))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		segs, ok := decodeJSON(t, rec.Body)["voice_segments"].([]any)
		if !ok || len(segs) != 1 {
			t.Fatalf("voice_segments = %v", segs)
		}
		seg := segs[0].(map[string]any)
		if seg["start"] != 0.5 || seg["end"] != 1.25 {
			t.Errorf("segment = %v", seg)
		}
		if string(det.got) != "RIFF" {
			t.Errorf("detector got %q", det.got)
		}
	})

	t.Run("no speech is an empty list", func(t *testing.T) {
		r := newTestRouter(t, testDeps{detector: &fakeDetector{segments: []vad.Segment{}}})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, multipartRequest(t, "/api/detect-voice", "file", "clip.wav", []byte("RIFF")))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if body := rec.Body.String(); body != "{\"voice_segments\":[]}\n" {
			t.Errorf("body = %q, want empty list", body)
		}
	})

	t.Run("model failure is a server error", func(t *testing.T) {
		det := &fakeDetector{err: fmt.Errorf("%w: sidecar down", vad.ErrUnavailable)}
		r := newTestRouter(t, testDeps{detector: det})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, multipartRequest(t, "/api/detect-voice", "file", "clip.wav", []byte("RIFF")))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
	})

	t.Run("missing file field", func(t *testing.T) {
		r := newTestRouter(t, testDeps{detector: &fakeDetector{}})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, multipartRequest(t, "/api/detect-voice", "audio", "clip.wav", []byte("RIFF")))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandleTranscribe(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "transcript", text: "ciao come stai", wantStatus: http.StatusOK, wantBody: "ciao come stai"},
		{name: "recognized silence", text: "", wantStatus: http.StatusBadRequest, wantBody: "No speech detected in the audio"},
		{name: "whitespace only", text: "   ", wantStatus: http.StatusBadRequest, wantBody: "No speech detected in the audio"},
		{name: "transcode timeout", err: audio.ErrTranscodeTimeout, wantStatus: http.StatusBadRequest, wantBody: "No speech detected in the audio"},
		{name: "transcode failure", err: &audio.TranscodeError{ExitCode: 1}, wantStatus: http.StatusBadRequest, wantBody: "No speech detected in the audio"},
		{name: "empty output", err: audio.ErrTranscodeEmptyOutput, wantStatus: http.StatusBadRequest, wantBody: "No speech detected in the audio"},
		{name: "shape mismatch", err: stt.ErrShapeMismatch, wantStatus: http.StatusBadRequest, wantBody: "No speech detected in the audio"},
		{name: "io failure", err: fmt.Errorf("%w: disk full", audio.ErrIO), wantStatus: http.StatusInternalServerError, wantBody: "transcription failed"},
		{name: "model unavailable", err: fmt.Errorf("%w: 401", stt.ErrUnavailable), wantStatus: http.StatusInternalServerError, wantBody: "transcription failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTranscriber{text: tt.text, err: tt.err}
			r := newTestRouter(t, testDeps{transcriber: tr})

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, multipartRequest(t, "/api/transcribe", "file", "recording.webm", []byte("webm")))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			body := decodeJSON(t, rec.Body)
			key := "detail"
			if tt.wantStatus == http.StatusOK {
				key = "transcription"
			}
			if body[key] != tt.wantBody {
				t.Errorf("%s = %v, want %q", key, body[key], tt.wantBody)
			}
		})
	}
}

func TestHandleTranscribeServerFaults(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCapture bool
	}{
		{name: "missing ffmpeg", err: fmt.Errorf("%w: exec: \"ffmpeg\": executable file not found in $PATH", audio.ErrTranscoderUnavailable), wantCapture: true},
		{name: "client went away", err: fmt.Errorf("audio: transcode cancelled: %w", context.Canceled), wantCapture: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, testDeps{transcriber: &fakeTranscriber{err: tt.err}})
			var captured []error
			r.capture = func(_ *http.Request, err error, _ string) { captured = append(captured, err) }

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, multipartRequest(t, "/api/transcribe", "file", "recording.webm", []byte("webm")))

			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500 (body %s)", rec.Code, rec.Body.String())
			}
			if got := len(captured) > 0; got != tt.wantCapture {
				t.Errorf("captured = %v, want capture %v", captured, tt.wantCapture)
			}
			if tt.wantCapture && !errors.Is(captured[0], tt.err) {
				t.Errorf("captured %v, want %v", captured[0], tt.err)
			}
		})
	}
}

func TestHandleTranscribeSuffix(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"recording.webm", ".webm"},
		{"voice.OGG", ".ogg"},
		{"blob", ".webm"},
		{"weird.extension-too-long", ".webm"},
	}
	for _, tt := range tests {
		tr := &fakeTranscriber{text: "ciao"}
		r := newTestRouter(t, testDeps{transcriber: tr})
		r.ServeHTTP(httptest.NewRecorder(), multipartRequest(t, "/api/transcribe", "file", tt.filename, []byte("x")))
		if tr.got.Suffix != tt.want {
			t.Errorf("suffix for %q = %q, want %q", tt.filename, tr.got.Suffix, tt.want)
		}
	}
}

func TestUploadTooLarge(t *testing.T) {
	tr := &fakeTranscriber{text: "ciao"}
	r := newTestRouter(t, testDeps{transcriber: tr, cfg: RouterConfig{MaxUploadBytes: 1024}})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, multipartRequest(t, "/api/transcribe", "file", "big.webm", bytes.Repeat([]byte("a"), 4096)))
	if rec.Code == http.StatusOK {
		t.Errorf("status = %d, want rejection", rec.Code)
	}
	if tr.got.Data != nil {
		t.Error("oversized upload reached the pipeline")
	}
}
