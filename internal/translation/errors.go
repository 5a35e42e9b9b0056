package translation

import (
	"errors"
	"fmt"

	"github.com/ent0n29/kanavoz/internal/reliability"
)

// ErrEmptyInput is returned before any upstream call when the text is empty
// or whitespace only.
var ErrEmptyInput = errors.New("empty text")

// ProviderError wraps a transport or provider failure of the chat call.
type ProviderError struct {
	Message string
	Failure reliability.Failure
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("translation provider error: %s", e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// MalformedResponseError reports a model reply that could not be parsed.
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("the model response is not valid JSON, please retry: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
