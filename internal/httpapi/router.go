package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/lukasbauer/samanta/internal/chat"
	"github.com/lukasbauer/samanta/internal/eventlog"
	"github.com/lukasbauer/samanta/internal/interrupt"
	"github.com/lukasbauer/samanta/internal/metrics"
	"github.com/lukasbauer/samanta/internal/stt"
	"github.com/lukasbauer/samanta/internal/tts"
	"github.com/lukasbauer/samanta/internal/vad"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	CORSOrigin string

	// Session key used when bearer auth is disabled. Empty runs chat turns
	// anonymously.
	UserName string

	// JWT Authentication. Empty disables it.
	JWTSecret string

	// Stream selects streamed turns on the WebSocket chat.
	Stream bool

	MaxUploadBytes int64
}

// VoiceDetector finds speech segments in raw audio.
type VoiceDetector interface {
	Detect(ctx context.Context, data []byte) ([]vad.Segment, error)
}

// Transcriber turns an uploaded recording into text.
type Transcriber interface {
	Run(ctx context.Context, blob stt.Blob) (string, error)
}

// Conversation opens chat turns.
type Conversation interface {
	Converse(ctx context.Context, req chat.TurnRequest, tok *interrupt.Token) (*chat.Turn, error)
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Detector    VoiceDetector
	Transcriber Transcriber
	Chat        Conversation
	Speech      tts.Client // /api/tts
	Placeholder tts.Client // /api/speak
	Interrupts  *interrupt.Registry
	Turns       *TurnRegistry
	EventLog    *eventlog.Logger
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
}

type Router struct {
	cfg        RouterConfig
	logger     *log.Logger
	detector   VoiceDetector
	pipeline   Transcriber
	chat       Conversation
	speech     tts.Client
	dummy      tts.Client
	interrupts *interrupt.Registry
	turns      *TurnRegistry
	eventLog   *eventlog.Logger
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
	mux        *http.ServeMux

	// capture reports handler errors; captureError outside tests.
	capture func(req *http.Request, err error, msg string)
}

const defaultMaxUploadBytes = 25 << 20

func NewRouter(cfg RouterConfig, deps Deps, logger *log.Logger) http.Handler {
	return newRouter(cfg, deps, logger).handler()
}

func newRouter(cfg RouterConfig, deps Deps, logger *log.Logger) *Router {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if deps.Interrupts == nil {
		deps.Interrupts = interrupt.NewRegistry()
	}
	if deps.Turns == nil {
		deps.Turns = NewTurnRegistry()
	}
	if deps.Placeholder == nil {
		deps.Placeholder = tts.Placeholder{}
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	r := &Router{
		cfg:        cfg,
		logger:     logger,
		detector:   deps.Detector,
		pipeline:   deps.Transcriber,
		chat:       deps.Chat,
		speech:     deps.Speech,
		dummy:      deps.Placeholder,
		interrupts: deps.Interrupts,
		turns:      deps.Turns,
		eventLog:   deps.EventLog,
		metrics:    deps.Metrics,
		gatherer:   deps.Gatherer,
		mux:        http.NewServeMux(),
		capture:    captureError,
	}
	r.routes()
	return r
}

func (r *Router) handler() http.Handler {
	return withSentryRecovery(r.withMetrics(withCORS(r.cfg.CORSOrigin, r.mux)))
}

func (r *Router) routes() {
	// Health and metrics
	r.mux.HandleFunc("GET /{$}", r.handleRoot)
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)
	r.mux.HandleFunc("GET /readyz", r.handleReadyz)
	r.mux.Handle("GET /metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))

	// Voice
	r.mux.HandleFunc("POST /api/detect-voice", r.withSession(r.handleDetectVoice))
	r.mux.HandleFunc("POST /api/transcribe", r.withSession(r.handleTranscribe))

	// Speech synthesis
	r.mux.HandleFunc("POST /api/speak", r.withSession(r.handleSpeak))
	r.mux.HandleFunc("POST /api/tts", r.withSession(r.handleTTS))

	// Chat
	r.mux.HandleFunc("POST /api/interrupt", r.withSession(r.handleInterrupt))
	r.mux.HandleFunc("POST /api/chat", r.withSession(r.handleChat))
	r.mux.HandleFunc("GET /api/chat/ws", r.withSession(r.handleChatWS))
}

func (r *Router) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Samanta Virtual Assistant backend is running!"})
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Router) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if r.turns.IsDraining() {
		http.Error(w, "draining", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError uses the {"detail": ...} body the web client expects.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"detail": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(origin string, next http.Handler) http.Handler {
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		if origin != "*" {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// withMetrics records request counts and latency by route pattern. It must
// wrap the mux so req.Pattern is set once the mux has routed the request.
func (r *Router) withMetrics(next http.Handler) http.Handler {
	if r.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)

		route := req.Pattern
		if route == "" {
			route = "unmatched"
		}
		r.metrics.RecordHTTPRequest(req.Method, route, strconv.Itoa(rec.status), time.Since(start).Seconds())
	})
}

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}
