package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ent0n29/kanavoz/internal/audio"
	"github.com/ent0n29/kanavoz/internal/audiostore"
	"github.com/ent0n29/kanavoz/internal/config"
	mock_speech "github.com/ent0n29/kanavoz/internal/mocks/speech"
	mock_translation "github.com/ent0n29/kanavoz/internal/mocks/translation"
	"github.com/ent0n29/kanavoz/internal/observability"
	"github.com/ent0n29/kanavoz/internal/pipeline"
	"github.com/ent0n29/kanavoz/internal/speech"
	"github.com/ent0n29/kanavoz/internal/translation"
)

const holaReply = `{"hiragana":"こんにちは","romanji":"konnichiwa","traduccion":"Hola","pronunciacion":"Koh-nnee-chee-wah"}`

var mockAudio = []byte("ID3\x03mock-mpeg-audio-bytes")

type testEnv struct {
	chat  *mock_translation.MockChatClient
	tts   *mock_speech.MockClient
	store *audiostore.Store
	dir   string
	ts    *httptest.Server
}

func newTestEnv(t *testing.T, cfg config.ServerConfig) *testEnv {
	t.Helper()
	ctrl := gomock.NewController(t)
	chat := mock_translation.NewMockChatClient(ctrl)
	tts := mock_speech.NewMockClient(ctrl)

	dir := t.TempDir()
	backend, err := audiostore.NewDiskBackend(dir)
	require.NoError(t, err)
	store := audiostore.New(backend, audiostore.DefaultTTL)
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())

	svc := pipeline.NewService(
		translation.NewRequestor(chat, zerolog.Nop()),
		speech.NewSynthesizer(tts, audio.FormatMP3, zerolog.Nop()),
		store,
		speech.VoiceAlloy,
		metrics,
		zerolog.Nop(),
	)
	srv := New(cfg, svc, store, metrics, zerolog.Nop())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &testEnv{chat: chat, tts: tts, store: store, dir: dir, ts: ts}
}

func (e *testEnv) expectHola() {
	e.chat.EXPECT().CreateChatCompletion(gomock.Any(), gomock.Any()).
		Return(openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: holaReply},
		}}}, nil).
		Times(1)
	e.tts.EXPECT().CreateSpeech(gomock.Any(), gomock.Any()).
		Return(openai.RawResponse{ReadCloser: io.NopCloser(bytes.NewReader(mockAudio))}, nil).
		Times(1)
}

func postJSON(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	res, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()

	var payload map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&payload))
	return res, payload
}

func TestTranslateHolaEndToEnd(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})
	env.expectHola()

	res, payload := postJSON(t, env.ts.URL+"/translate", `{"text":"Hola"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "こんにちは", payload["hiragana"])
	assert.Equal(t, "konnichiwa", payload["romanji"])
	assert.Equal(t, "Hola", payload["translation"])
	assert.Equal(t, "Koh-nnee-chee-wah", payload["pronunciation"])

	audioURL, _ := payload["audioUrl"].(string)
	require.NotEmpty(t, audioURL)
	assert.True(t, strings.HasPrefix(audioURL, "/audio/"), "audioUrl = %q", audioURL)

	audioRes, err := http.Get(env.ts.URL + audioURL)
	require.NoError(t, err)
	defer audioRes.Body.Close()
	require.Equal(t, http.StatusOK, audioRes.StatusCode)
	assert.Equal(t, "audio/mpeg", audioRes.Header.Get("Content-Type"))
	assert.Equal(t, "no-store", audioRes.Header.Get("Cache-Control"))
	got, err := io.ReadAll(audioRes.Body)
	require.NoError(t, err)
	assert.Equal(t, mockAudio, got)
}

func TestTranslateEmptyTextMakesNoProviderCalls(t *testing.T) {
	for _, body := range []string{`{"text":""}`, `{"text":"   "}`, `{}`, ``, `not json`} {
		t.Run(body, func(t *testing.T) {
			env := newTestEnv(t, config.ServerConfig{})
			env.chat.EXPECT().CreateChatCompletion(gomock.Any(), gomock.Any()).Times(0)
			env.tts.EXPECT().CreateSpeech(gomock.Any(), gomock.Any()).Times(0)

			res, payload := postJSON(t, env.ts.URL+"/translate", body)
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
			assert.Equal(t, "empty text", payload["error"])
			assert.Equal(t, "empty_text", payload["code"])
			assert.Zero(t, env.store.Len())
		})
	}
}

func TestTranslateErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		chatReply  string
		chatErr    error
		ttsErr     error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "malformed model output",
			chatReply:  "Lo siento, no puedo.",
			wantStatus: http.StatusBadRequest,
			wantCode:   "malformed_response",
			wantMsg:    "not valid JSON",
		},
		{
			name:       "provider failure",
			chatErr:    &openai.APIError{HTTPStatusCode: 429, Message: "Rate limit reached"},
			wantStatus: http.StatusBadGateway,
			wantCode:   "provider_error",
			wantMsg:    "Rate limit reached",
		},
		{
			name:       "synthesis failure",
			chatReply:  holaReply,
			ttsErr:     &openai.APIError{HTTPStatusCode: 500, Message: "speech backend down"},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "synthesis_failed",
			wantMsg:    "speech backend down",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, config.ServerConfig{})
			resp := openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Content: tt.chatReply},
			}}}
			env.chat.EXPECT().CreateChatCompletion(gomock.Any(), gomock.Any()).Return(resp, tt.chatErr).Times(1)
			if tt.ttsErr != nil {
				env.tts.EXPECT().CreateSpeech(gomock.Any(), gomock.Any()).Return(openai.RawResponse{}, tt.ttsErr).Times(1)
			} else {
				env.tts.EXPECT().CreateSpeech(gomock.Any(), gomock.Any()).Times(0)
			}

			res, payload := postJSON(t, env.ts.URL+"/translate", `{"text":"Hola"}`)
			assert.Equal(t, tt.wantStatus, res.StatusCode)
			assert.Equal(t, tt.wantCode, payload["code"])
			assert.Contains(t, payload["error"], tt.wantMsg)
		})
	}
}

func TestLegacyTraducir(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{PublicBaseURL: "https://kanavoz.example/"})
	env.expectHola()

	res, payload := postJSON(t, env.ts.URL+"/traducir", `{"texto":"Hola"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "こんにちは", payload["hiragana"])
	assert.Equal(t, "Hola", payload["traduccion"])
	assert.Equal(t, "Koh-nnee-chee-wah", payload["pronunciacion"])
	audioURL, _ := payload["audio_url"].(string)
	assert.True(t, strings.HasPrefix(audioURL, "https://kanavoz.example/audio/"), "audio_url = %q", audioURL)
}

func TestLegacyTraducirEmpty(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})
	env.chat.EXPECT().CreateChatCompletion(gomock.Any(), gomock.Any()).Times(0)

	res, payload := postJSON(t, env.ts.URL+"/traducir", `{"texto":""}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "Texto vacío", payload["error"])
}

func TestAudioExpired(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})
	ctx := context.Background()

	asset, err := env.store.Store(ctx, mockAudio, ".mp3")
	require.NoError(t, err)
	require.NoError(t, env.store.Expire(ctx, asset.ID))

	for _, name := range []string{asset.Key, "never-existed.mp3", "bad%20name.mp3"} {
		res, err := http.Get(env.ts.URL + "/audio/" + name)
		require.NoError(t, err)
		var payload map[string]any
		require.NoError(t, json.NewDecoder(res.Body).Decode(&payload))
		res.Body.Close()

		assert.Equal(t, http.StatusNotFound, res.StatusCode, "name=%s", name)
		assert.Equal(t, "expired, retry", payload["error"])
		assert.Equal(t, "audio_expired", payload["code"])
	}
}

func TestAudioDoesNotServeForeignFiles(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "config.yaml"), []byte("api_key: secret"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "song.mp3"), []byte("ID3"), 0o644))

	for _, name := range []string{"config.yaml", "song.mp3"} {
		res, err := http.Get(env.ts.URL + "/audio/" + name)
		require.NoError(t, err)
		body, err := io.ReadAll(res.Body)
		res.Body.Close()
		require.NoError(t, err)

		assert.Equal(t, http.StatusNotFound, res.StatusCode, "name=%s", name)
		assert.NotContains(t, string(body), "secret")
	}
}

func TestOversizedBodyIsRejected(t *testing.T) {
	big := `{"text":"` + strings.Repeat("a", 70<<10) + `"}`
	for _, path := range []string{"/translate", "/traducir"} {
		t.Run(path, func(t *testing.T) {
			env := newTestEnv(t, config.ServerConfig{})
			env.chat.EXPECT().CreateChatCompletion(gomock.Any(), gomock.Any()).Times(0)

			res, payload := postJSON(t, env.ts.URL+path, big)
			assert.Equal(t, http.StatusRequestEntityTooLarge, res.StatusCode)
			assert.Equal(t, "body_too_large", payload["code"])
			assert.Equal(t, "request body too large", payload["error"])
		})
	}
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{AllowedOrigins: []string{"http://localhost:3000"}})

	req, err := http.NewRequest(http.MethodOptions, env.ts.URL+"/translate", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Equal(t, "http://localhost:3000", res.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://evil.example")
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Empty(t, res.Header.Get("Access-Control-Allow-Origin"))
}

func TestHealthReadyAndPerf(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})
	env.expectHola()
	postJSON(t, env.ts.URL+"/translate", `{"text":"Hola"}`)

	res, err := http.Get(env.ts.URL + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(env.ts.URL + "/readyz")
	require.NoError(t, err)
	var ready map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&ready))
	res.Body.Close()
	assert.Equal(t, "disk", ready["audio_backend"])
	assert.Equal(t, 1.0, ready["live_assets"])

	res, err = http.Get(env.ts.URL + "/v1/perf/latency")
	require.NoError(t, err)
	var snap observability.StageSnapshot
	require.NoError(t, json.NewDecoder(res.Body).Decode(&snap))
	res.Body.Close()
	assert.Len(t, snap.Stages, 4)

	req, err := http.NewRequest(http.MethodDelete, env.ts.URL+"/v1/perf/latency", nil)
	require.NoError(t, err)
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	res, err = http.Get(env.ts.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `test_translate_requests_total{endpoint="translate",outcome="ok"} 1`)
}

func TestUIRoutes(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	rootRes, err := client.Get(env.ts.URL + "/")
	if err != nil {
		t.Fatalf("GET / error = %v", err)
	}
	defer rootRes.Body.Close()
	if rootRes.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("GET / status = %d, want %d", rootRes.StatusCode, http.StatusTemporaryRedirect)
	}
	if got := rootRes.Header.Get("Location"); got != "/ui/" {
		t.Fatalf("GET / location = %q, want %q", got, "/ui/")
	}

	uiRes, err := http.Get(env.ts.URL + "/ui/")
	if err != nil {
		t.Fatalf("GET /ui/ error = %v", err)
	}
	defer uiRes.Body.Close()
	if uiRes.StatusCode != http.StatusOK {
		t.Fatalf("GET /ui/ status = %d, want %d", uiRes.StatusCode, http.StatusOK)
	}

	var body bytes.Buffer
	if _, err := body.ReadFrom(uiRes.Body); err != nil {
		t.Fatalf("reading /ui/ body failed: %v", err)
	}
	if !strings.Contains(body.String(), `id="translate-form"`) {
		t.Fatalf("GET /ui/ body missing expected content")
	}
}
