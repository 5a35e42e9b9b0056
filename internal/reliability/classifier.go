package reliability

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// Failure codes used as metric labels and log fields.
const (
	CodeRateLimited = "rate_limited"
	CodeUnavailable = "upstream_unavailable"
	CodeAuth        = "auth"
	CodeRejected    = "rejected"
	CodeTimeout     = "timeout"
	CodeCanceled    = "canceled"
	CodeTransport   = "transport"
	CodeUnknown     = "unknown"
)

// Failure describes an upstream error. Retryable is advisory: callers
// surface it but never retry on their own.
type Failure struct {
	Code           string
	UpstreamStatus int
	Retryable      bool
}

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// Classify inspects an error returned by the OpenAI client.
func Classify(err error) Failure {
	if err == nil {
		return Failure{}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Failure{Code: CodeTimeout, Retryable: true}
	case errors.Is(err, context.Canceled):
		return Failure{Code: CodeCanceled}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fromStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fromStatus(reqErr.HTTPStatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Failure{Code: CodeTimeout, Retryable: true}
		}
		return Failure{Code: CodeTransport, Retryable: true}
	}
	return Failure{Code: CodeUnknown}
}

func fromStatus(status int) Failure {
	f := Failure{UpstreamStatus: status, Retryable: IsRetryableHTTPStatus(status)}
	switch {
	case status == http.StatusTooManyRequests:
		f.Code = CodeRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		f.Code = CodeAuth
	case status >= 500:
		f.Code = CodeUnavailable
	case status >= 400:
		f.Code = CodeRejected
	default:
		f.Code = CodeUnknown
	}
	return f
}
