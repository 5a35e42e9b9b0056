package translation

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

//go:generate mockgen -source=client.go -destination=../mocks/translation/mock_client.go -package=mock_translation

// ChatClient is the subset of *openai.Client used by the requestor.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}
