package translation

import (
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// ChatModel is the fixed model identifier used for every translation.
const ChatModel = openai.GPT3Dot5Turbo

const systemPrompt = "Eres un traductor experto en japonés. Responde únicamente con JSON válido."

const userPromptFormat = "Convierte '%s' a hiragana y romanji, da su traducción al español y una guía de " +
	"pronunciación en romanji. Devuelve SOLO un objeto JSON válido con las claves " +
	"'hiragana', 'romanji', 'traduccion' y 'pronunciacion'."

// BuildRequest returns the chat request for text. The text is embedded
// verbatim; the output is fully determined by the input.
func BuildRequest(text string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(userPromptFormat, text),
			},
		},
	}
}
