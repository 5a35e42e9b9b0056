// Package app wires the translation backend from a validated config.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/ent0n29/kanavoz/internal/audio"
	"github.com/ent0n29/kanavoz/internal/audiostore"
	"github.com/ent0n29/kanavoz/internal/config"
	"github.com/ent0n29/kanavoz/internal/httpapi"
	"github.com/ent0n29/kanavoz/internal/logging"
	"github.com/ent0n29/kanavoz/internal/observability"
	"github.com/ent0n29/kanavoz/internal/pipeline"
	"github.com/ent0n29/kanavoz/internal/speech"
	"github.com/ent0n29/kanavoz/internal/translation"
)

// Clients are the upstream calls the backend makes. *openai.Client
// satisfies both.
type Clients struct {
	Chat   translation.ChatClient
	Speech speech.Client
}

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Store    *audiostore.Store
	Pipeline *pipeline.Service
	Metrics  *observability.Metrics

	// Cleanup should be called on shutdown to release the audio backend connection.
	Cleanup func() error

	log zerolog.Logger
}

// NewOpenAIClient builds the provider client, honouring a base URL override.
func NewOpenAIClient(cfg config.OpenAIConfig) *openai.Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(oc)
}

// OpenAIClients returns Clients backed by one provider client.
func OpenAIClients(cfg config.OpenAIConfig) Clients {
	c := NewOpenAIClient(cfg)
	return Clients{Chat: c, Speech: c}
}

// NewSynthesizer builds the speech stage from config.
func NewSynthesizer(cfg config.SpeechConfig, client speech.Client, log zerolog.Logger) (*speech.Synthesizer, speech.Voice, error) {
	format, err := audio.ParseFormat(cfg.Format)
	if err != nil {
		return nil, "", err
	}
	voice, err := speech.ParseVoice(cfg.Voice)
	if err != nil {
		return nil, "", err
	}
	return speech.NewSynthesizer(client, format, logging.Component(log, "speech")), voice, nil
}

// Build constructs every component. reg receives the metrics; nil uses the
// default prometheus registry. Leftover audio from a previous run is
// scheduled for deletion before Build returns.
func Build(ctx context.Context, cfg config.Config, clients Clients, reg prometheus.Registerer, log zerolog.Logger) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.Metrics.Namespace, reg)

	backend, closeBackend, err := newBackend(cfg.Audio)
	if err != nil {
		return nil, err
	}

	store := audiostore.New(backend, cfg.Audio.TTL, audiostore.WithLogger(logging.Component(log, "audiostore")))
	store.SetStoreHook(func(audiostore.Asset) {
		metrics.LiveAssets.Set(float64(store.Len()))
	})
	store.SetExpireHook(func(audiostore.Asset) {
		metrics.AssetEvent(observability.AssetExpired)
		metrics.LiveAssets.Set(float64(store.Len()))
	})

	recovered, err := store.Recover(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("audio recovery failed, leftover files will not be deleted")
	}
	for i := 0; i < recovered; i++ {
		metrics.AssetEvent(observability.AssetRecovered)
	}

	synth, voice, err := NewSynthesizer(cfg.Speech, clients.Speech, log)
	if err != nil {
		_ = closeBackend()
		return nil, err
	}
	requestor := translation.NewRequestor(clients.Chat, logging.Component(log, "translation"))
	svc := pipeline.NewService(requestor, synth, store, voice, metrics, logging.Component(log, "pipeline"))
	api := httpapi.New(cfg.Server, svc, store, metrics, logging.Component(log, "http"))

	log.Info().
		Str("audio_backend", backend.Kind()).
		Dur("audio_ttl", store.TTL()).
		Str("voice", string(voice)).
		Str("format", string(synth.Format())).
		Msg("backend ready")

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Store:    store,
		Pipeline: svc,
		Metrics:  metrics,
		Cleanup:  closeBackend,
		log:      log,
	}, nil
}

func newBackend(cfg config.AudioConfig) (audiostore.Backend, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case "", "disk":
		b, err := audiostore.NewDiskBackend(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return b, noop, nil
	case "nats":
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("kanavoz"))
		if err != nil {
			return nil, nil, fmt.Errorf("connect to nats %s: %w", cfg.NATSURL, err)
		}
		js, err := nc.JetStream()
		if err != nil {
			nc.Close()
			return nil, nil, fmt.Errorf("jetstream context: %w", err)
		}
		b, err := audiostore.NewNATSBackend(js, cfg.NATSBucket)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		return b, nc.Drain, nil
	default:
		return nil, nil, fmt.Errorf("unknown audio backend %q", cfg.Backend)
	}
}

// Serve runs the HTTP server on ln together with the expiry scheduler until
// ctx is done, then shuts the server down within the configured timeout.
// Pending deletions of this process are picked up by the next start.
func (b *BuildResult) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           b.API.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Store.Run(gctx)
	})
	g.Go(func() error {
		b.log.Info().Str("addr", ln.Addr().String()).Msg("server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.Config.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		b.log.Info().Msg("shutdown complete")
		return nil
	})
	return g.Wait()
}
