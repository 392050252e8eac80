package app

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestGetenv(t *testing.T) {
	tests := []struct {
		name     string
		envKey   string
		envValue string
		defValue string
		want     string
	}{
		{
			name:     "env set",
			envKey:   "TEST_ENV_VAR",
			envValue: "custom_value",
			defValue: "default",
			want:     "custom_value",
		},
		{
			name:     "env not set",
			envKey:   "TEST_ENV_VAR_NOTSET",
			envValue: "",
			defValue: "default",
			want:     "default",
		},
		{
			name:     "empty default",
			envKey:   "TEST_ENV_VAR_EMPTY",
			envValue: "",
			defValue: "",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.envKey, tt.envValue)
				defer os.Unsetenv(tt.envKey)
			}

			got := getenv(tt.envKey, tt.defValue)
			if got != tt.want {
				t.Errorf("getenv(%q, %q) = %q, want %q", tt.envKey, tt.defValue, got, tt.want)
			}
		})
	}
}

func TestGetenvIntClamped(t *testing.T) {
	tests := []struct {
		name     string
		envKey   string
		envValue string
		def      int
		min      int
		max      int
		want     int
	}{
		{
			name:     "value within range",
			envKey:   "TEST_INT_NORMAL",
			envValue: "500",
			def:      100,
			min:      0,
			max:      1000,
			want:     500,
		},
		{
			name:     "value below min - clamp to min",
			envKey:   "TEST_INT_LOW",
			envValue: "-100",
			def:      100,
			min:      0,
			max:      1000,
			want:     0,
		},
		{
			name:     "value above max - clamp to max",
			envKey:   "TEST_INT_HIGH",
			envValue: "2000",
			def:      100,
			min:      0,
			max:      1000,
			want:     1000,
		},
		{
			name:     "env not set - use default",
			envKey:   "TEST_INT_NOTSET",
			envValue: "",
			def:      100,
			min:      0,
			max:      1000,
			want:     100,
		},
		{
			name:     "invalid value - use default",
			envKey:   "TEST_INT_INVALID",
			envValue: "not_a_number",
			def:      100,
			min:      0,
			max:      1000,
			want:     100,
		},
		{
			name:     "boundary: exactly min",
			envKey:   "TEST_INT_MIN",
			envValue: "200",
			def:      500,
			min:      200,
			max:      800,
			want:     200,
		},
		{
			name:     "boundary: exactly max",
			envKey:   "TEST_INT_MAX",
			envValue: "800",
			def:      500,
			min:      200,
			max:      800,
			want:     800,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.envKey, tt.envValue)
				defer os.Unsetenv(tt.envKey)
			}

			got := getenvIntClamped(tt.envKey, tt.def, tt.min, tt.max)
			if got != tt.want {
				t.Errorf("getenvIntClamped(%q, %d, %d, %d) = %d, want %d",
					tt.envKey, tt.def, tt.min, tt.max, got, tt.want)
			}
		})
	}
}

func TestGetenvBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		want     bool
	}{
		{name: "python style True", envValue: "True", def: false, want: true},
		{name: "false", envValue: "false", def: true, want: false},
		{name: "zero", envValue: "0", def: true, want: false},
		{name: "not set - use default", envValue: "", def: true, want: true},
		{name: "invalid - use default", envValue: "yes please", def: false, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv("TEST_BOOL", tt.envValue)
				defer os.Unsetenv("TEST_BOOL")
			}

			if got := getenvBool("TEST_BOOL", tt.def); got != tt.want {
				t.Errorf("getenvBool(%q) = %v, want %v", tt.envValue, got, tt.want)
			}
		})
	}
}

func TestGetenvDuration(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      time.Duration
		want     time.Duration
	}{
		{name: "valid", envValue: "250ms", def: time.Second, want: 250 * time.Millisecond},
		{name: "not set - use default", envValue: "", def: time.Second, want: time.Second},
		{name: "invalid - use default", envValue: "ten seconds", def: time.Second, want: time.Second},
		{name: "negative - use default", envValue: "-5s", def: time.Second, want: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv("TEST_DURATION", tt.envValue)
				defer os.Unsetenv("TEST_DURATION")
			}

			if got := getenvDuration("TEST_DURATION", tt.def); got != tt.want {
				t.Errorf("getenvDuration(%q) = %v, want %v", tt.envValue, got, tt.want)
			}
		})
	}
}

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	// Clear any existing env vars that might interfere
	keysToClean := []string{
		"HTTP_ADDR", "CORS_ORIGIN", "STREAM", "USER_NAME", "MEMOBASE_URL", "MEMOBASE_API_KEY",
		"FLUSH_GRACE", "STT_MODEL", "STT_LANGUAGE", "FFMPEG_PATH", "TRANSCODE_TIMEOUT",
		"MAX_UPLOAD_MB", "TTS_PROVIDER", "TTS_MODEL", "TTS_VOICE", "SYSTEM_PROMPT",
	}
	for _, key := range keysToClean {
		os.Unsetenv(key)
	}

	cfg := LoadConfigFromEnv()

	if cfg.HTTPAddr != ":8000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8000")
	}
	if cfg.CORSOrigin != "http://localhost:3000" {
		t.Errorf("CORSOrigin = %q, want %q", cfg.CORSOrigin, "http://localhost:3000")
	}
	if !cfg.Stream {
		t.Error("Stream = false, want true")
	}
	if cfg.UserName != "test35" {
		t.Errorf("UserName = %q, want %q", cfg.UserName, "test35")
	}

	// Memory defaults
	if cfg.MemobaseURL != "http://localhost:8019" || cfg.MemobaseAPIKey != "secret" {
		t.Errorf("Memobase = %q/%q", cfg.MemobaseURL, cfg.MemobaseAPIKey)
	}
	if cfg.FlushGrace != 100*time.Millisecond {
		t.Errorf("FlushGrace = %v, want 100ms", cfg.FlushGrace)
	}

	// Transcoding defaults
	if cfg.FFmpegPath != "ffmpeg" {
		t.Errorf("FFmpegPath = %q, want ffmpeg", cfg.FFmpegPath)
	}
	if cfg.TranscodeTimeout != 10*time.Second {
		t.Errorf("TranscodeTimeout = %v, want 10s", cfg.TranscodeTimeout)
	}
	if cfg.MaxUploadMB != 25 {
		t.Errorf("MaxUploadMB = %d, want 25", cfg.MaxUploadMB)
	}

	// STT and TTS defaults
	if cfg.STTModel != "whisper-1" || cfg.STTLanguage != "it" {
		t.Errorf("STT = %q/%q", cfg.STTModel, cfg.STTLanguage)
	}
	if cfg.TTSProvider != "openai" || cfg.TTSModel != "tts-1" || cfg.TTSVoice != "alloy" {
		t.Errorf("TTS = %q/%q/%q", cfg.TTSProvider, cfg.TTSModel, cfg.TTSVoice)
	}
	if !strings.HasPrefix(cfg.SystemPrompt, "Sei Samanta") {
		t.Errorf("SystemPrompt = %q", cfg.SystemPrompt)
	}
}

func TestLoadConfigFromEnvCustomValues(t *testing.T) {
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("STREAM", "False")
	os.Setenv("USER_NAME", "marco")
	os.Setenv("FLUSH_GRACE", "250ms")
	os.Setenv("MAX_UPLOAD_MB", "500")
	os.Setenv("TTS_PROVIDER", "ElevenLabs")

	defer func() {
		os.Unsetenv("HTTP_ADDR")
		os.Unsetenv("STREAM")
		os.Unsetenv("USER_NAME")
		os.Unsetenv("FLUSH_GRACE")
		os.Unsetenv("MAX_UPLOAD_MB")
		os.Unsetenv("TTS_PROVIDER")
	}()

	cfg := LoadConfigFromEnv()

	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.Stream {
		t.Error("Stream = true, want false")
	}
	if cfg.UserName != "marco" {
		t.Errorf("UserName = %q, want marco", cfg.UserName)
	}
	if cfg.FlushGrace != 250*time.Millisecond {
		t.Errorf("FlushGrace = %v, want 250ms", cfg.FlushGrace)
	}
	if cfg.MaxUploadMB != 200 {
		t.Errorf("MaxUploadMB = %d, want clamped 200", cfg.MaxUploadMB)
	}
	if cfg.TTSProvider != "elevenlabs" {
		t.Errorf("TTSProvider = %q, want elevenlabs", cfg.TTSProvider)
	}
}

func TestConfigWarnings(t *testing.T) {
	cfg := Config{TTSProvider: "openai"}
	if got := cfg.Warnings(); len(got) != 2 {
		t.Errorf("Warnings() = %v, want HF_TOKEN and OPENAI_API_KEY", got)
	}

	cfg = Config{HFToken: "hf", OpenAIAPIKey: "sk", TTSProvider: "openai"}
	if got := cfg.Warnings(); len(got) != 0 {
		t.Errorf("Warnings() = %v, want none", got)
	}
}
