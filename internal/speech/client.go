package speech

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

//go:generate mockgen -source=client.go -destination=../mocks/speech/mock_client.go -package=mock_speech

// Client is the subset of *openai.Client used by the synthesizer.
type Client interface {
	CreateSpeech(ctx context.Context, request openai.CreateSpeechRequest) (openai.RawResponse, error)
}
