// Package protocol defines the JSON bodies exchanged with the web frontend.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyBody   = errors.New("request body is empty")
	ErrInvalidBody = errors.New("request body is not a JSON object")
)

// TranslateRequest is the body of POST /translate.
type TranslateRequest struct {
	Text string `json:"text"`
}

// TranslateResponse is the success body of POST /translate.
type TranslateResponse struct {
	Hiragana      string `json:"hiragana"`
	Romanji       string `json:"romanji"`
	Translation   string `json:"translation"`
	Pronunciation string `json:"pronunciation"`
	AudioURL      string `json:"audioUrl"`
}

// LegacyTranslateRequest is the body of POST /traducir, the route the first
// frontend still calls.
type LegacyTranslateRequest struct {
	Texto string `json:"texto"`
}

// LegacyTranslateResponse keeps the Spanish keys the first frontend reads.
type LegacyTranslateResponse struct {
	Hiragana      string `json:"hiragana"`
	Romanji       string `json:"romanji"`
	Traduccion    string `json:"traduccion"`
	Pronunciacion string `json:"pronunciacion"`
	AudioURL      string `json:"audio_url"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Error codes carried next to the human readable message.
const (
	CodeEmptyText         = "empty_text"
	CodeInvalidBody       = "invalid_body"
	CodeBodyTooLarge      = "body_too_large"
	CodeMalformedResponse = "malformed_response"
	CodeProviderError     = "provider_error"
	CodeSynthesisFailed   = "synthesis_failed"
	CodeAudioStoreFailed  = "audio_store_failed"
	CodeAudioExpired      = "audio_expired"
	CodeInternal          = "internal_error"
)

// ParseTranslateRequest returns the text of a /translate body. A missing
// text field yields "".
func ParseTranslateRequest(raw []byte) (string, error) {
	var req TranslateRequest
	if err := decodeObject(raw, &req); err != nil {
		return "", err
	}
	return req.Text, nil
}

// ParseLegacyTranslateRequest returns the texto of a /traducir body.
func ParseLegacyTranslateRequest(raw []byte) (string, error) {
	var req LegacyTranslateRequest
	if err := decodeObject(raw, &req); err != nil {
		return "", err
	}
	return req.Texto, nil
}

func decodeObject(raw []byte, v any) error {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return ErrEmptyBody
	}
	if !strings.HasPrefix(trimmed, "{") {
		return ErrInvalidBody
	}
	if err := json.Unmarshal([]byte(trimmed), v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	return nil
}
