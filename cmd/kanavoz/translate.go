package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ent0n29/kanavoz/internal/app"
	"github.com/ent0n29/kanavoz/internal/config"
	"github.com/ent0n29/kanavoz/internal/logging"
	"github.com/ent0n29/kanavoz/internal/translation"
)

type translateOutput struct {
	translation.Result
	Audio string `json:"audio,omitempty"`
}

func newTranslateCommand() *cobra.Command {
	var (
		output string
		voice  voiceFlag
		format formatFlag
	)

	cmd := &cobra.Command{
		Use:   "translate <text>",
		Short: "Translate one phrase without starting the server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return translation.ErrEmptyInput
			}

			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}
			if voice != "" {
				cfg.Speech.Voice = voice.String()
			}
			if format != "" {
				cfg.Speech.Format = format.String()
			}
			return runTranslate(cmd, *cfg, app.OpenAIClients(cfg.OpenAI), text, output, log)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&output, "output", "o", "", "write the synthesized audio to this file")
	flags.Var(&voice, "voice", "speech voice, overrides speech.voice")
	flags.Var(&format, "format", "audio format, overrides speech.format")
	return cmd
}

func runTranslate(cmd *cobra.Command, cfg config.Config, clients app.Clients, text, output string, log zerolog.Logger) error {
	ctx := cmd.Context()

	requestor := translation.NewRequestor(clients.Chat, logging.Component(log, "translation"))
	result, err := requestor.RequestTranslation(ctx, text)
	if err != nil {
		return err
	}

	out := translateOutput{Result: result}

	if output != "" {
		synth, voice, err := app.NewSynthesizer(cfg.Speech, clients.Speech, log)
		if err != nil {
			return err
		}
		clip, err := synth.Synthesize(ctx, result.Hiragana, voice)
		if err != nil {
			return err
		}
		if err := os.WriteFile(output, clip.Data, 0o644); err != nil {
			return fmt.Errorf("write audio: %w", err)
		}
		out.Audio = output
	}

	return writeJSON(cmd.OutOrStdout(), out)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
