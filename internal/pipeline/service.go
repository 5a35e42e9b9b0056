// Package pipeline runs one translation request end to end: chat
// translation, normalization, speech synthesis of the hiragana and storage
// of the resulting audio.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/kanavoz/internal/audiostore"
	"github.com/ent0n29/kanavoz/internal/observability"
	"github.com/ent0n29/kanavoz/internal/speech"
	"github.com/ent0n29/kanavoz/internal/translation"
)

type Translator interface {
	RequestTranslation(ctx context.Context, text string) (translation.Result, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice speech.Voice) (speech.Audio, error)
}

type AudioStore interface {
	Store(ctx context.Context, data []byte, ext string) (audiostore.Asset, error)
}

// StoreError reports that synthesized audio could not be persisted.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("could not store audio: %v", e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

// Outcome is the result of one successful request.
type Outcome struct {
	Result translation.Result
	Asset  audiostore.Asset
}

type Service struct {
	translator Translator
	synth      Synthesizer
	store      AudioStore
	voice      speech.Voice
	metrics    *observability.Metrics
	log        zerolog.Logger
}

// NewService wires the stages. metrics may be nil.
func NewService(translator Translator, synth Synthesizer, store AudioStore, voice speech.Voice, metrics *observability.Metrics, log zerolog.Logger) *Service {
	if voice == "" {
		voice = speech.DefaultVoice
	}
	return &Service{
		translator: translator,
		synth:      synth,
		store:      store,
		voice:      voice,
		metrics:    metrics,
		log:        log,
	}
}

// Translate runs every stage once. Stage errors are returned unchanged,
// except store failures which are wrapped in *StoreError.
func (s *Service) Translate(ctx context.Context, text string) (Outcome, error) {
	start := time.Now()

	stageStart := start
	result, err := s.translator.RequestTranslation(ctx, text)
	if err != nil {
		s.providerError("openai_chat", err)
		return Outcome{}, err
	}
	s.observe(observability.StageTranslate, stageStart)

	stageStart = time.Now()
	clip, err := s.synth.Synthesize(ctx, result.Hiragana, s.voice)
	if err != nil {
		s.providerError("openai_speech", err)
		return Outcome{}, err
	}
	s.observe(observability.StageSynthesize, stageStart)

	stageStart = time.Now()
	asset, err := s.store.Store(ctx, clip.Data, clip.Ext())
	if err != nil {
		s.log.Error().Err(err).Msg("audio store failed")
		return Outcome{}, &StoreError{Err: err}
	}
	s.observe(observability.StageStore, stageStart)
	s.observe(observability.StageTotal, start)

	if s.metrics != nil {
		s.metrics.AssetEvent(observability.AssetStored)
	}
	s.log.Info().
		Str("asset_id", asset.ID).
		Dur("elapsed", time.Since(start)).
		Msg("translation served")
	return Outcome{Result: result, Asset: asset}, nil
}

func (s *Service) observe(stage string, since time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveStage(stage, time.Since(since))
}

func (s *Service) providerError(provider string, err error) {
	if s.metrics == nil {
		return
	}
	var providerErr *translation.ProviderError
	var synthErr *speech.SynthesisError
	switch {
	case errors.As(err, &providerErr):
		s.metrics.ProviderErrors.WithLabelValues(provider, providerErr.Failure.Code).Inc()
	case errors.As(err, &synthErr):
		s.metrics.ProviderErrors.WithLabelValues(provider, synthErr.Failure.Code).Inc()
	}
}
