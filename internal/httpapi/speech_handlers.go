package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/lukasbauer/samanta/internal/tts"
)

// handleSpeak runs the placeholder synthesizer and reports the audio size.
func (r *Router) handleSpeak(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	audio, err := r.dummy.Synthesize(req.Context(), body.Text)
	if err != nil {
		r.capture(req, err, "speak: synthesis failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Text-to-Speech conversion successful.",
		"audio_length": len(audio),
	})
}

// handleTTS sanitizes the message, synthesizes it and returns base64 MP3.
func (r *Router) handleTTS(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text := tts.Sanitize(body.Message)
	if text == "" {
		writeError(w, http.StatusBadRequest, "message has no speakable text")
		return
	}

	if r.speech == nil {
		writeError(w, http.StatusServiceUnavailable, "speech synthesis not configured")
		return
	}
	audio, err := r.speech.Synthesize(req.Context(), text)
	if err != nil {
		r.logger.Printf("tts: %v", err)
		r.capture(req, err, "tts: synthesis failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"audio": base64.StdEncoding.EncodeToString(audio)})
}
