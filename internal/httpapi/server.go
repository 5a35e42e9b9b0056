package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/ent0n29/kanavoz/internal/audio"
	"github.com/ent0n29/kanavoz/internal/audiostore"
	"github.com/ent0n29/kanavoz/internal/config"
	"github.com/ent0n29/kanavoz/internal/observability"
	"github.com/ent0n29/kanavoz/internal/pipeline"
	"github.com/ent0n29/kanavoz/internal/protocol"
	"github.com/ent0n29/kanavoz/internal/speech"
	"github.com/ent0n29/kanavoz/internal/translation"
)

const maxBodyBytes = 64 << 10

const (
	msgEmptyText       = "empty text"
	msgLegacyEmptyText = "Texto vacío"
	msgAudioExpired    = "expired, retry"
)

type Translator interface {
	Translate(ctx context.Context, text string) (pipeline.Outcome, error)
}

// AudioSource serves stored audio and reports store state.
type AudioSource interface {
	Retrieve(ctx context.Context, key string) ([]byte, error)
	Len() int
	BackendKind() string
}

type Server struct {
	cfg        config.ServerConfig
	translator Translator
	audio      AudioSource
	metrics    *observability.Metrics
	log        zerolog.Logger
	static     http.Handler
}

func New(cfg config.ServerConfig, translator Translator, audio AudioSource, metrics *observability.Metrics, log zerolog.Logger) *Server {
	return &Server{
		cfg:        cfg,
		translator: translator,
		audio:      audio,
		metrics:    metrics,
		log:        log,
		static:     newStaticHandler(),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(s.log))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Get("/ui", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Handle("/ui/*", http.StripPrefix("/ui/", s.static))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/v1/perf/latency", s.handlePerfLatency)
	r.Delete("/v1/perf/latency", s.handleResetPerfLatency)

	r.Post("/translate", s.handleTranslate)
	r.Post("/traducir", s.handleLegacyTranslate)
	r.Get("/audio/{filename}", s.handleAudio)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ready",
		"audio_backend": s.audio.BackendKind(),
		"live_assets":   s.audio.Len(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		http.NotFound(w, r)
		return
	}
	s.metrics.Handler().ServeHTTP(w, r)
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r)
	if err != nil {
		respondBodyError(w, err)
		return
	}
	text, err := protocol.ParseTranslateRequest(raw)
	if err != nil {
		s.outcome("translate", protocol.CodeEmptyText)
		respondError(w, http.StatusBadRequest, protocol.CodeEmptyText, msgEmptyText)
		return
	}

	out, err := s.translator.Translate(r.Context(), text)
	if err != nil {
		status, code, msg := classifyError(err)
		s.outcome("translate", code)
		s.logFailure(r, status, code, err)
		respondError(w, status, code, msg)
		return
	}
	s.outcome("translate", "ok")
	respondJSON(w, http.StatusOK, protocol.TranslateResponse{
		Hiragana:      out.Result.Hiragana,
		Romanji:       out.Result.Romanji,
		Translation:   out.Result.Translation,
		Pronunciation: out.Result.Pronunciation,
		AudioURL:      s.audioURL(out.Asset),
	})
}

// handleLegacyTranslate serves the Spanish-key contract of the first frontend.
func (s *Server) handleLegacyTranslate(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r)
	if err != nil {
		respondBodyError(w, err)
		return
	}
	text, err := protocol.ParseLegacyTranslateRequest(raw)
	if err != nil {
		s.outcome("traducir", protocol.CodeEmptyText)
		respondError(w, http.StatusBadRequest, protocol.CodeEmptyText, msgLegacyEmptyText)
		return
	}

	out, err := s.translator.Translate(r.Context(), text)
	if err != nil {
		status, code, msg := classifyError(err)
		if code == protocol.CodeEmptyText {
			msg = msgLegacyEmptyText
		}
		s.outcome("traducir", code)
		s.logFailure(r, status, code, err)
		respondError(w, status, code, msg)
		return
	}
	s.outcome("traducir", "ok")
	respondJSON(w, http.StatusOK, protocol.LegacyTranslateResponse{
		Hiragana:      out.Result.Hiragana,
		Romanji:       out.Result.Romanji,
		Traduccion:    out.Result.Translation,
		Pronunciacion: out.Result.Pronunciation,
		AudioURL:      s.audioURL(out.Asset),
	})
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	data, err := s.audio.Retrieve(r.Context(), name)
	if err != nil {
		if errors.Is(err, audiostore.ErrNotFound) || errors.Is(err, audiostore.ErrInvalidKey) {
			s.assetEvent(observability.AssetMissing)
			respondError(w, http.StatusNotFound, protocol.CodeAudioExpired, msgAudioExpired)
			return
		}
		hlog.FromRequest(r).Error().Err(err).Str("key", name).Msg("audio retrieval failed")
		respondError(w, http.StatusInternalServerError, protocol.CodeInternal, "audio unavailable")
		return
	}

	s.assetEvent(observability.AssetRetrieved)
	w.Header().Set("Content-Type", audio.ContentTypeForName(name))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// classifyError maps pipeline errors to a status, an error code and the
// message shown to the user.
func classifyError(err error) (int, string, string) {
	var (
		malformed *translation.MalformedResponseError
		provider  *translation.ProviderError
		synth     *speech.SynthesisError
		store     *pipeline.StoreError
	)
	switch {
	case errors.Is(err, translation.ErrEmptyInput):
		return http.StatusBadRequest, protocol.CodeEmptyText, msgEmptyText
	case errors.As(err, &malformed):
		return http.StatusBadRequest, protocol.CodeMalformedResponse, malformed.Error()
	case errors.As(err, &provider):
		return http.StatusBadGateway, protocol.CodeProviderError, provider.Error()
	case errors.As(err, &synth):
		return http.StatusInternalServerError, protocol.CodeSynthesisFailed, synth.Error()
	case errors.As(err, &store):
		return http.StatusInternalServerError, protocol.CodeAudioStoreFailed, store.Error()
	default:
		return http.StatusInternalServerError, protocol.CodeInternal, "internal error"
	}
}

func (s *Server) audioURL(asset audiostore.Asset) string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/audio/" + asset.Key
}

func (s *Server) outcome(endpoint, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveOutcome(endpoint, outcome)
	}
}

func (s *Server) assetEvent(event string) {
	if s.metrics != nil {
		s.metrics.AssetEvent(event)
	}
}

func (s *Server) logFailure(r *http.Request, status int, code string, err error) {
	ev := hlog.FromRequest(r).Warn()
	if status >= http.StatusInternalServerError {
		ev = hlog.FromRequest(r).Error()
	}
	ev.Err(err).Int("status", status).Str("code", code).Msg("translate failed")
}

// cors allows the configured origins. A single "*" allows any origin.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowedOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "3600")
			if origin != "*" {
				w.Header().Add("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowedOrigin(origin string) string {
	for _, allowed := range s.cfg.AllowedOrigins {
		allowed = strings.TrimSpace(allowed)
		if allowed == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

var errEmptyBody = errors.New("empty body")

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, errEmptyBody
	}
	defer r.Body.Close()
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// respondBodyError reports a body that could not be read. Empty input is
// reported separately once the body is parsed.
func respondBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(w, http.StatusRequestEntityTooLarge, protocol.CodeBodyTooLarge, "request body too large")
		return
	}
	respondError(w, http.StatusBadRequest, protocol.CodeInvalidBody, "unreadable request body")
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, protocol.ErrorResponse{Error: message, Code: code})
}
