package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, &Config{
		OpenAI: OpenAIConfig{APIKey: "sk-test"},
		Server: ServerConfig{
			BindAddr:        ":5000",
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Metrics: MetricsConfig{Namespace: "kanavoz"},
		Log:     LogConfig{Level: "info", Format: "json"},
		Speech:  SpeechConfig{Voice: "alloy", Format: "mp3"},
		Audio: AudioConfig{
			Backend:    "disk",
			Dir:        "audio",
			TTL:        300 * time.Second,
			NATSBucket: "kanavoz-audio",
		},
	}, cfg)
}

func TestLoadMissingCredential(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai.api_key is a required field")
}

func TestLoadFromFileAndEnv(t *testing.T) {
	tests := []struct {
		name              string
		configContent     string
		env               map[string]string
		wantErr           bool
		wantErrorContains []string
		check             func(t *testing.T, cfg *Config)
	}{
		{
			name: "file values",
			configContent: `openai:
  api_key: sk-from-file
server:
  bind_addr: 127.0.0.1:7000
  allowed_origins: [http://localhost:3000]
speech:
  voice: nova
  format: pcm
audio:
  ttl: 90s
  dir: /tmp/kanavoz-audio
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "sk-from-file", cfg.OpenAI.APIKey)
				assert.Equal(t, "127.0.0.1:7000", cfg.Server.BindAddr)
				assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
				assert.Equal(t, "nova", cfg.Speech.Voice)
				assert.Equal(t, "pcm", cfg.Speech.Format)
				assert.Equal(t, 90*time.Second, cfg.Audio.TTL)
				assert.Equal(t, "/tmp/kanavoz-audio", cfg.Audio.Dir)
			},
		},
		{
			name:          "env overrides file",
			configContent: "openai:\n  api_key: sk-from-file\nlog:\n  level: debug\n",
			env: map[string]string{
				"OPENAI_API_KEY": "sk-from-env",
				"LOG_LEVEL":      "WARN",
				"AUDIO_TTL":      "2m",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "sk-from-env", cfg.OpenAI.APIKey)
				assert.Equal(t, "warn", cfg.Log.Level)
				assert.Equal(t, 2*time.Minute, cfg.Audio.TTL)
			},
		},
		{
			name:          "PORT applies without APP_BIND_ADDR",
			configContent: "openai:\n  api_key: sk-x\n",
			env:           map[string]string{"PORT": "8123"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ":8123", cfg.Server.BindAddr)
			},
		},
		{
			name:          "APP_BIND_ADDR wins over PORT",
			configContent: "openai:\n  api_key: sk-x\n",
			env:           map[string]string{"PORT": "8123", "APP_BIND_ADDR": ":9000"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ":9000", cfg.Server.BindAddr)
			},
		},
		{
			name:              "nats backend needs url",
			configContent:     "openai:\n  api_key: sk-x\naudio:\n  backend: nats\n",
			wantErr:           true,
			wantErrorContains: []string{"nats_url"},
		},
		{
			name:          "nats backend with url",
			configContent: "openai:\n  api_key: sk-x\naudio:\n  backend: nats\n  nats_url: nats://127.0.0.1:4222\n",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "nats", cfg.Audio.Backend)
				assert.Equal(t, "kanavoz-audio", cfg.Audio.NATSBucket)
			},
		},
		{
			name:              "unknown voice",
			configContent:     "openai:\n  api_key: sk-x\nspeech:\n  voice: coral\n",
			wantErr:           true,
			wantErrorContains: []string{"voice"},
		},
		{
			name:              "ttl below one second",
			configContent:     "openai:\n  api_key: sk-x\naudio:\n  ttl: 10ms\n",
			wantErr:           true,
			wantErrorContains: []string{"ttl"},
		},
		{
			name: "invalid YAML format",
			configContent: `openai:
  api_key: sk-x
  invalid yaml format here [[[
`,
			wantErr: true,
			wantErrorContains: []string{
				"configuration file found but could not be read",
				"Please check the file format and permissions",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), "kanavoz.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.configContent), 0o644))

			cfg, err := Load(path)
			if tt.wantErr {
				require.Error(t, err)
				for _, want := range tt.wantErrorContains {
					assert.Contains(t, err.Error(), want)
				}
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadSearchesWorkingDirectory(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kanavoz.yaml"), []byte("openai:\n  api_key: sk-cwd\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-cwd", cfg.OpenAI.APIKey)
}

// clearEnv unsets every bound variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, env := range envBindings {
		t.Setenv(env, "")
		require.NoError(t, os.Unsetenv(env))
	}
}
