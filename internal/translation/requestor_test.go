package translation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	mock_translation "github.com/ent0n29/kanavoz/internal/mocks/translation"
	"github.com/ent0n29/kanavoz/internal/reliability"
)

func completion(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		ID: "chatcmpl-1",
		Choices: []openai.ChatCompletionChoice{
			{
				Index:        0,
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
				FinishReason: openai.FinishReasonStop,
			},
		},
	}
}

func TestRequestTranslation_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock_translation.NewMockChatClient(ctrl)

	client.EXPECT().
		CreateChatCompletion(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			assert.Equal(t, ChatModel, req.Model)
			require.Len(t, req.Messages, 2)
			assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
			assert.Equal(t, openai.ChatMessageRoleUser, req.Messages[1].Role)
			assert.Contains(t, req.Messages[1].Content, "'Hola'")
			return completion("```json\n" + holaReply + "\n```"), nil
		}).
		Times(1)

	r := NewRequestor(client, zerolog.Nop())
	got, err := r.RequestTranslation(context.Background(), "Hola")
	require.NoError(t, err)
	assert.Equal(t, holaResult, got)
}

func TestRequestTranslation_EmptyInputMakesNoCall(t *testing.T) {
	for _, text := range []string{"", " ", "\t\n  "} {
		t.Run(strings.ReplaceAll(text, "\n", `\n`), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			client := mock_translation.NewMockChatClient(ctrl)
			client.EXPECT().CreateChatCompletion(gomock.Any(), gomock.Any()).Times(0)

			r := NewRequestor(client, zerolog.Nop())
			_, err := r.RequestTranslation(context.Background(), text)
			assert.ErrorIs(t, err, ErrEmptyInput)
		})
	}
}

func TestRequestTranslation_ProviderFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock_translation.NewMockChatClient(ctrl)
	upstream := &openai.APIError{HTTPStatusCode: 429, Message: "Rate limit reached"}
	client.EXPECT().CreateChatCompletion(gomock.Any(), gomock.Any()).Return(openai.ChatCompletionResponse{}, upstream).Times(1)

	r := NewRequestor(client, zerolog.Nop())
	_, err := r.RequestTranslation(context.Background(), "Hola")

	var providerErr *ProviderError
	require.True(t, errors.As(err, &providerErr))
	assert.Equal(t, reliability.CodeRateLimited, providerErr.Failure.Code)
	assert.True(t, providerErr.Failure.Retryable)
	assert.Contains(t, providerErr.Message, "Rate limit reached")
	assert.ErrorIs(t, err, upstream)
}

func TestRequestTranslation_NoChoices(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock_translation.NewMockChatClient(ctrl)
	client.EXPECT().CreateChatCompletion(gomock.Any(), gomock.Any()).Return(openai.ChatCompletionResponse{ID: "x"}, nil)

	r := NewRequestor(client, zerolog.Nop())
	_, err := r.RequestTranslation(context.Background(), "Hola")

	var providerErr *ProviderError
	require.True(t, errors.As(err, &providerErr))
	assert.Equal(t, "no completion returned", providerErr.Message)
}

func TestRequestTranslation_MalformedReply(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock_translation.NewMockChatClient(ctrl)
	client.EXPECT().CreateChatCompletion(gomock.Any(), gomock.Any()).Return(completion("no sé"), nil)

	r := NewRequestor(client, zerolog.Nop())
	_, err := r.RequestTranslation(context.Background(), "Hola")

	var malformed *MalformedResponseError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "no sé", malformed.Raw)
}

func TestBuildRequestIsDeterministic(t *testing.T) {
	a := BuildRequest("¿Dónde está la estación?")
	b := BuildRequest("¿Dónde está la estación?")
	assert.Equal(t, a, b)
	assert.Contains(t, a.Messages[1].Content, "'¿Dónde está la estación?'")
}
