package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lukasbauer/samanta/internal/audio"
	"github.com/lukasbauer/samanta/internal/chat"
	"github.com/lukasbauer/samanta/internal/eventlog"
	"github.com/lukasbauer/samanta/internal/httpapi"
	"github.com/lukasbauer/samanta/internal/interrupt"
	"github.com/lukasbauer/samanta/internal/llm"
	"github.com/lukasbauer/samanta/internal/memory"
	"github.com/lukasbauer/samanta/internal/metrics"
	"github.com/lukasbauer/samanta/internal/stt"
	"github.com/lukasbauer/samanta/internal/tts"
	"github.com/lukasbauer/samanta/internal/vad"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type App struct {
	cfg        Config
	logger     *log.Logger
	db         *pgxpool.Pool
	eventLog   *eventlog.Logger
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	memory     *memory.Client
	chat       *chat.Orchestrator
	pipeline   *stt.Pipeline
	detector   *vad.Detector
	speech     tts.Client
	interrupts *interrupt.Registry
	turns      *httpapi.TurnRegistry
}

func New(cfg Config, logger *log.Logger) (*App, error) {
	for _, w := range cfg.Warnings() {
		logger.Printf("config: %s", w)
	}

	a := &App{
		cfg:        cfg,
		logger:     logger,
		interrupts: interrupt.NewRegistry(),
		turns:      httpapi.NewTurnRegistry(),
	}

	// The event log is optional; without a database every event is dropped.
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		db, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to reach database: %w", err)
		}
		a.db = db
		a.eventLog = eventlog.New(db)
		if err := a.eventLog.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
	} else {
		a.eventLog = eventlog.New(nil)
		logger.Printf("config: DATABASE_URL not set, turn events will not be recorded")
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)

	// Shared HTTP client with connection pooling for the sidecars and TTS.
	httpClient := &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	// Chat
	store := memory.NewMemobaseClient(memory.MemobaseConfig{
		ProjectURL: cfg.MemobaseURL,
		APIKey:     cfg.MemobaseAPIKey,
		HTTPClient: httpClient,
	})
	a.memory = memory.Augment(chatModel(cfg), store, logger)
	a.chat = chat.New(chat.Config{
		SystemPrompt: cfg.SystemPrompt,
		FlushGrace:   cfg.FlushGrace,
	}, a.memory, a.memory, a.eventLog, logger, a.metrics)

	// Voice
	normalizer := audio.NewNormalizer(audio.NormalizerConfig{
		FFmpegPath: cfg.FFmpegPath,
		Timeout:    cfg.TranscodeTimeout,
		TempDir:    cfg.TempDir,
	}, logger)
	whisper := stt.NewWhisperClient(stt.WhisperConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.STTBaseURL,
		Model:   cfg.STTModel,
	})
	a.pipeline = stt.NewPipeline(stt.PipelineConfig{
		TempDir:  cfg.TempDir,
		Language: cfg.STTLanguage,
	}, normalizer, whisper, logger, a.metrics)
	a.detector = vad.NewDetector(vad.NewSidecarClient(vad.SidecarConfig{
		BaseURL:    cfg.VADURL,
		Token:      cfg.HFToken,
		HTTPClient: httpClient,
	}), cfg.TempDir, logger)

	a.speech = speechClient(cfg)
	return a, nil
}

// chatModel selects the completion backend. Ollama speaks the OpenAI
// protocol, so both go through the same client.
func chatModel(cfg Config) llm.Client {
	if cfg.InferenceServer == "ollama" {
		return llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:  "ollama",
			BaseURL: cfg.OllamaBaseURL,
			Model:   cfg.ChatModel,
		})
	}
	return llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey: cfg.OpenAIAPIKey,
		Model:  cfg.ChatModel,
	})
}

func speechClient(cfg Config) tts.Client {
	switch cfg.TTSProvider {
	case "elevenlabs":
		return tts.NewElevenLabsClient(tts.ElevenLabsConfig{
			APIKey:  cfg.ElevenLabsAPIKey,
			VoiceID: cfg.TTSVoiceID,
		})
	default:
		return tts.NewOpenAIClient(tts.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.TTSModel,
			Voice:  cfg.TTSVoice,
		})
	}
}

func (a *App) Router() http.Handler {
	routerCfg := httpapi.RouterConfig{
		CORSOrigin:     a.cfg.CORSOrigin,
		UserName:       a.cfg.UserName,
		JWTSecret:      a.cfg.JWTSecret,
		Stream:         a.cfg.Stream,
		MaxUploadBytes: int64(a.cfg.MaxUploadMB) << 20,
	}
	return httpapi.NewRouter(routerCfg, httpapi.Deps{
		Detector:    a.detector,
		Transcriber: a.pipeline,
		Chat:        a.chat,
		Speech:      a.speech,
		Interrupts:  a.interrupts,
		Turns:       a.turns,
		EventLog:    a.eventLog,
		Metrics:     a.metrics,
		Gatherer:    a.registry,
	}, a.logger)
}

// Turns exposes the in-flight turn registry for graceful shutdown.
func (a *App) Turns() *httpapi.TurnRegistry {
	return a.turns
}

// Interrupts exposes the per-session interrupt tokens.
func (a *App) Interrupts() *interrupt.Registry {
	return a.interrupts
}

// Close waits for pending memory writes and releases the database.
func (a *App) Close() error {
	if a.memory != nil {
		a.memory.Wait()
	}
	if a.db != nil {
		a.db.Close()
	}
	return nil
}
