package speech

import (
	"errors"
	"fmt"

	"github.com/ent0n29/kanavoz/internal/reliability"
)

// ErrEmptyText is wrapped in a SynthesisError when there is nothing to speak.
var ErrEmptyText = errors.New("no text to synthesize")

// SynthesisError reports a failed speech call. It is distinct from a
// translation failure and never retried.
type SynthesisError struct {
	Message string
	Failure reliability.Failure
	Err     error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("audio synthesis failed: %s", e.Message)
}

func (e *SynthesisError) Unwrap() error { return e.Err }
