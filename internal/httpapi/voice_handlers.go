package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/lukasbauer/samanta/internal/eventlog"
	"github.com/lukasbauer/samanta/internal/stt"
)

// defaultUploadSuffix is assumed for uploads without a usable extension;
// browsers record webm by default.
const defaultUploadSuffix = ".webm"

var errNoFile = errors.New("missing file field")

// readUpload returns the bytes and file name of the multipart "file" field.
func (r *Router) readUpload(w http.ResponseWriter, req *http.Request) ([]byte, string, error) {
	req.Body = http.MaxBytesReader(w, req.Body, r.cfg.MaxUploadBytes)
	file, header, err := req.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", err
		}
		return nil, "", errNoFile
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}
	return data, header.Filename, nil
}

func (r *Router) writeUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", tooLarge.Limit))
	case errors.Is(err, errNoFile):
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

// uploadSuffix keeps the client's extension so ffmpeg can probe the
// container, falling back to webm.
func uploadSuffix(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || len(ext) > 6 || strings.ContainsAny(ext, `/\`) {
		return defaultUploadSuffix
	}
	return ext
}

// handleDetectVoice returns the speech segments found in the uploaded audio.
func (r *Router) handleDetectVoice(w http.ResponseWriter, req *http.Request) {
	data, _, err := r.readUpload(w, req)
	if err != nil {
		r.writeUploadError(w, err)
		return
	}

	segments, err := r.detector.Detect(req.Context(), data)
	if err != nil {
		r.logger.Printf("detect_voice: %v", err)
		r.capture(req, err, "detect_voice: detection failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	r.metrics.RecordVoiceSegments(len(segments))
	r.eventLog.LogAsync(uuid.NewString(), sessionKey(req.Context()), eventlog.EventVoiceDetected, map[string]any{
		"segments": len(segments),
		"bytes":    len(data),
	})
	writeJSON(w, http.StatusOK, map[string]any{"voice_segments": segments})
}

// handleTranscribe transcribes an uploaded browser recording. Every
// recoverable pipeline failure and recognized silence answer the same 400, so
// clients see "your audio produced nothing usable"; the distinct reason is
// kept in logs, metrics and the event log.
func (r *Router) handleTranscribe(w http.ResponseWriter, req *http.Request) {
	data, filename, err := r.readUpload(w, req)
	if err != nil {
		r.writeUploadError(w, err)
		return
	}
	r.logger.Printf("transcribe: received %q (%d bytes)", filename, len(data))

	eventID := uuid.NewString()
	session := sessionKey(req.Context())

	transcript, err := r.pipeline.Run(req.Context(), stt.Blob{Data: data, Suffix: uploadSuffix(filename)})
	if err != nil && !stt.IsRecoverable(err) {
		r.logger.Printf("transcribe: %v", err)
		// A client that hung up mid-transcode is not a server fault.
		if !errors.Is(err, context.Canceled) {
			r.capture(req, err, "transcribe: pipeline failed")
		}
		r.eventLog.LogAsync(eventID, session, eventlog.EventTranscriptionFailed, map[string]any{"reason": stt.Reason(err)})
		writeError(w, http.StatusInternalServerError, "transcription failed")
		return
	}

	if strings.TrimSpace(transcript) == "" {
		reason := "silence"
		if err != nil {
			reason = stt.Reason(err)
		}
		if errors.Is(err, stt.ErrShapeMismatch) {
			r.capture(req, err, "transcribe: unrecognized transcription result")
		}
		r.logger.Printf("transcribe: no speech detected (%s)", reason)
		r.eventLog.LogAsync(eventID, session, eventlog.EventTranscriptionFailed, map[string]any{"reason": reason})
		writeError(w, http.StatusBadRequest, "No speech detected in the audio")
		return
	}

	r.eventLog.LogAsync(eventID, session, eventlog.EventTranscriptionCompleted, map[string]any{"chars": len(transcript)})
	writeJSON(w, http.StatusOK, map[string]string{"transcription": transcript})
}
