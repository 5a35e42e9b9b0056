package translation

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ent0n29/kanavoz/internal/policy"
	"github.com/ent0n29/kanavoz/internal/reliability"
)

// Requestor sends one chat completion per translation. It never retries.
type Requestor struct {
	client ChatClient
	log    zerolog.Logger
}

func NewRequestor(client ChatClient, log zerolog.Logger) *Requestor {
	return &Requestor{client: client, log: log}
}

// RequestTranslation translates text. Empty input fails with ErrEmptyInput
// without contacting the provider.
func (r *Requestor) RequestTranslation(ctx context.Context, text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrEmptyInput
	}

	resp, err := r.client.CreateChatCompletion(ctx, BuildRequest(text))
	if err != nil {
		failure := reliability.Classify(err)
		r.log.Warn().
			Str("code", failure.Code).
			Int("upstream_status", failure.UpstreamStatus).
			Str("error", policy.RedactString(err.Error())).
			Msg("chat completion failed")
		return Result{}, &ProviderError{
			Message: policy.RedactString(err.Error()),
			Failure: failure,
			Err:     err,
		}
	}
	if len(resp.Choices) == 0 {
		r.log.Warn().Str("response_id", resp.ID).Msg("chat completion returned no choices")
		return Result{}, &ProviderError{
			Message: "no completion returned",
			Failure: reliability.Failure{Code: reliability.CodeUnknown},
		}
	}

	raw := resp.Choices[0].Message.Content
	r.log.Debug().
		Str("response_id", resp.ID).
		Str("raw", policy.RedactString(raw)).
		Msg("model response")

	result, err := Normalize(raw)
	if err != nil {
		r.log.Warn().Err(err).Msg("model response could not be normalized")
		return Result{}, err
	}
	return result, nil
}
