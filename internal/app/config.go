package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string
	CORSOrigin  string
	SentryDSN   string
	DatabaseURL string // optional, enables the event log

	// Chat
	Stream          bool   // streaming flag for WebSocket chat; /api/chat always streams
	UserName        string // session key when no bearer token is presented
	InferenceServer string // "ollama" or empty for OpenAI
	OllamaBaseURL   string
	ChatModel       string
	OpenAIAPIKey    string
	SystemPrompt    string

	// Memory
	MemobaseURL    string
	MemobaseAPIKey string
	FlushGrace     time.Duration

	// Voice
	HFToken     string
	VADURL      string
	STTBaseURL  string
	STTModel    string
	STTLanguage string

	// Transcoding and uploads
	FFmpegPath       string
	TranscodeTimeout time.Duration
	TempDir          string
	MaxUploadMB      int

	// Speech synthesis
	TTSProvider      string // "openai" or "elevenlabs"
	TTSModel         string
	TTSVoice         string
	ElevenLabsAPIKey string
	TTSVoiceID       string // ElevenLabs voice ID

	// JWT Authentication, optional
	JWTSecret string
}

// LoadConfigFromEnv reads configuration from the environment, after loading
// a .env file from the working directory if one exists.
func LoadConfigFromEnv() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":8000"),
		CORSOrigin:  getenv("CORS_ORIGIN", "http://localhost:3000"),
		SentryDSN:   getenv("SENTRY_DSN", ""),
		DatabaseURL: getenv("DATABASE_URL", ""),

		// Chat
		Stream:          getenvBool("STREAM", true),
		UserName:        getenv("USER_NAME", "test35"),
		InferenceServer: getenv("INFERENCE_SERVER", ""),
		OllamaBaseURL:   getenv("OLLAMA_BASE_URL", "http://localhost:11434/v1"),
		ChatModel:       getenv("OLLAMA_MODEL", ""),
		OpenAIAPIKey:    getenv("OPENAI_API_KEY", ""),
		SystemPrompt:    getenv("SYSTEM_PROMPT", "Sei Samanta, una compagna senziente e empatica."),

		// Memory
		MemobaseURL:    getenv("MEMOBASE_URL", "http://localhost:8019"),
		MemobaseAPIKey: getenv("MEMOBASE_API_KEY", "secret"),
		FlushGrace:     getenvDuration("FLUSH_GRACE", 100*time.Millisecond),

		// Voice
		HFToken:     getenv("HF_TOKEN", ""),
		VADURL:      getenv("VAD_URL", "http://localhost:8001"),
		STTBaseURL:  getenv("STT_BASE_URL", ""),
		STTModel:    getenv("STT_MODEL", "whisper-1"),
		STTLanguage: getenv("STT_LANGUAGE", "it"),

		// Transcoding and uploads
		FFmpegPath:       getenv("FFMPEG_PATH", "ffmpeg"),
		TranscodeTimeout: getenvDuration("TRANSCODE_TIMEOUT", 10*time.Second),
		TempDir:          getenv("TEMP_DIR", os.TempDir()),
		MaxUploadMB:      getenvIntClamped("MAX_UPLOAD_MB", 25, 1, 200),

		// Speech synthesis
		TTSProvider:      strings.ToLower(getenv("TTS_PROVIDER", "openai")),
		TTSModel:         getenv("TTS_MODEL", "tts-1"),
		TTSVoice:         getenv("TTS_VOICE", "alloy"),
		ElevenLabsAPIKey: getenv("ELEVENLABS_API_KEY", ""),
		TTSVoiceID:       getenv("TTS_VOICE_ID", ""),

		JWTSecret: os.Getenv("JWT_SECRET"), // empty disables bearer auth
	}
}

// Warnings lists missing credentials that degrade a subsystem without
// preventing startup.
func (c Config) Warnings() []string {
	var w []string
	if c.HFToken == "" {
		w = append(w, "HF_TOKEN environment variable not set. Voice detection may fail!")
	}
	if c.OpenAIAPIKey == "" {
		w = append(w, "OPENAI_API_KEY not set. TTS functionality will not work!")
	}
	if c.TTSProvider == "elevenlabs" && c.ElevenLabsAPIKey == "" {
		w = append(w, "ELEVENLABS_API_KEY not set. TTS functionality will not work!")
	}
	return w
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvBool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func getenvIntClamped(k string, def, min, max int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
