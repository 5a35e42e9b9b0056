// Command kanaperf replays translation requests against a running kanavoz
// server and reports client-side and server-side stage latency.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"resty.dev/v3"

	"github.com/ent0n29/kanavoz/internal/observability"
	"github.com/ent0n29/kanavoz/internal/protocol"
)

type options struct {
	baseURL       string
	runs          int
	timeout       time.Duration
	interRunDelay time.Duration
	texts         []string
	textsRaw      string
	reset         bool
	fetchAudio    bool
	verbose       bool
}

var defaultPhrases = []string{
	"Hola",
	"Buenos días",
	"¿Dónde está la estación?",
	"Muchas gracias por todo",
}

type runResult struct {
	text       string
	latency    time.Duration
	audioBytes int
	err        error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "kanaperf: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "kanaperf",
		Short:         "Replay translations against a kanavoz server and report latency",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.baseURL, "base-url", "http://127.0.0.1:5000", "kanavoz base URL")
	flags.IntVar(&opts.runs, "runs", 10, "number of translations to request")
	flags.DurationVar(&opts.timeout, "timeout", 45*time.Second, "per-request timeout")
	flags.DurationVar(&opts.interRunDelay, "inter-run-delay", 0, "pause between requests")
	flags.StringVar(&opts.textsRaw, "texts", "", "phrases separated by '|' (optional)")
	flags.BoolVar(&opts.reset, "reset", true, "clear the server latency window before replaying")
	flags.BoolVar(&opts.fetchAudio, "fetch-audio", true, "download each audioUrl after translating")
	flags.BoolVar(&opts.verbose, "verbose", true, "print per-run progress")
	return cmd
}

func (o *options) validate() error {
	o.baseURL = strings.TrimRight(strings.TrimSpace(o.baseURL), "/")
	if o.baseURL == "" {
		return errors.New("base-url is required")
	}
	if o.runs <= 0 {
		return errors.New("runs must be > 0")
	}
	if o.timeout < time.Second {
		o.timeout = time.Second
	}
	if o.interRunDelay < 0 {
		o.interRunDelay = 0
	}

	o.texts = nil
	if strings.TrimSpace(o.textsRaw) == "" {
		o.texts = append([]string(nil), defaultPhrases...)
		return nil
	}
	for _, part := range strings.Split(o.textsRaw, "|") {
		if t := strings.TrimSpace(part); t != "" {
			o.texts = append(o.texts, t)
		}
	}
	if len(o.texts) == 0 {
		return errors.New("texts produced no non-empty phrases")
	}
	return nil
}

func run(ctx context.Context, opts options, out io.Writer) error {
	client := resty.New().
		SetBaseURL(opts.baseURL).
		SetTimeout(opts.timeout).
		SetHeader("Accept", "application/json")
	defer client.Close()

	if opts.reset {
		if err := resetWindow(ctx, client); err != nil {
			return fmt.Errorf("reset latency window: %w", err)
		}
	}
	if opts.verbose {
		fmt.Fprintf(out, "kanaperf: base=%s runs=%d phrases=%d\n", opts.baseURL, opts.runs, len(opts.texts))
	}

	results := make([]runResult, 0, opts.runs)
	for i := 0; i < opts.runs; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		text := opts.texts[i%len(opts.texts)]
		res := translateOnce(ctx, client, text, opts.fetchAudio)
		results = append(results, res)

		if opts.verbose {
			if res.err != nil {
				fmt.Fprintf(out, "kanaperf: run %d/%d text=%q error=%v\n", i+1, opts.runs, text, res.err)
			} else {
				fmt.Fprintf(out, "kanaperf: run %d/%d text=%q latency_ms=%.1f audio_bytes=%d\n", i+1, opts.runs, text, ms(res.latency), res.audioBytes)
			}
		}
		if opts.interRunDelay > 0 && i < opts.runs-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(opts.interRunDelay):
			}
		}
	}

	snapshot, err := fetchSnapshot(ctx, client)
	if err != nil {
		fmt.Fprintf(out, "kanaperf: server latency unavailable: %v\n", err)
	}
	report(out, results, snapshot)

	if failed := countFailures(results); failed == len(results) {
		return fmt.Errorf("all %d runs failed", failed)
	}
	return nil
}

func resetWindow(ctx context.Context, client *resty.Client) error {
	res, err := client.R().SetContext(ctx).Delete("/v1/perf/latency")
	if err != nil {
		return err
	}
	if res.IsError() {
		return fmt.Errorf("HTTP %d: %s", res.StatusCode(), strings.TrimSpace(res.String()))
	}
	return nil
}

func translateOnce(ctx context.Context, client *resty.Client, text string, fetchAudio bool) runResult {
	out := runResult{text: text}
	start := time.Now()

	var body protocol.TranslateResponse
	var apiErr protocol.ErrorResponse
	res, err := client.R().
		SetContext(ctx).
		SetBody(protocol.TranslateRequest{Text: text}).
		SetResult(&body).
		SetError(&apiErr).
		Post("/translate")
	if err != nil {
		out.err = err
		return out
	}
	if res.IsError() {
		out.err = fmt.Errorf("HTTP %d: %s (%s)", res.StatusCode(), apiErr.Error, apiErr.Code)
		return out
	}

	if fetchAudio && body.AudioURL != "" {
		n, err := fetchAudioBytes(ctx, client, body.AudioURL)
		if err != nil {
			out.err = fmt.Errorf("fetch audio: %w", err)
			return out
		}
		out.audioBytes = n
	}
	out.latency = time.Since(start)
	return out
}

// fetchAudioBytes downloads an audioUrl. Absolute URLs are used as given,
// anything else is resolved against the base URL.
func fetchAudioBytes(ctx context.Context, client *resty.Client, audioURL string) (int, error) {
	res, err := client.R().
		SetContext(ctx).
		SetHeader("Accept", "*/*").
		Get(audioURL)
	if err != nil {
		return 0, err
	}
	if res.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("HTTP %d", res.StatusCode())
	}
	return len(res.Bytes()), nil
}

func fetchSnapshot(ctx context.Context, client *resty.Client) (*observability.StageSnapshot, error) {
	var snapshot observability.StageSnapshot
	res, err := client.R().
		SetContext(ctx).
		SetResult(&snapshot).
		Get("/v1/perf/latency")
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("HTTP %d", res.StatusCode())
	}
	return &snapshot, nil
}

func report(out io.Writer, results []runResult, snapshot *observability.StageSnapshot) {
	latencies := make([]float64, 0, len(results))
	for _, r := range results {
		if r.err == nil {
			latencies = append(latencies, ms(r.latency))
		}
	}
	sort.Float64s(latencies)

	fmt.Fprintf(out, "\nclient: runs=%d ok=%d failed=%d\n", len(results), len(latencies), len(results)-len(latencies))
	if len(latencies) > 0 {
		fmt.Fprintf(out, "client: p50_ms=%.1f p95_ms=%.1f max_ms=%.1f\n",
			percentile(latencies, 0.50), percentile(latencies, 0.95), latencies[len(latencies)-1])
	}

	if snapshot != nil {
		fmt.Fprintf(out, "server: window=%d\n", snapshot.WindowSize)
		for _, st := range snapshot.Stages {
			line := fmt.Sprintf("server: %-10s samples=%d p50_ms=%.1f p95_ms=%.1f p99_ms=%.1f", st.Stage, st.Samples, st.P50MS, st.P95MS, st.P99MS)
			if st.TargetP95MS > 0 {
				status := "ok"
				if st.P95MS > st.TargetP95MS {
					status = "over"
				}
				line += fmt.Sprintf(" target_p95_ms=%.0f (%s)", st.TargetP95MS, status)
			}
			fmt.Fprintln(out, line)
		}
		for _, ind := range snapshot.Indicators {
			fmt.Fprintf(out, "server: %s=%d\n", ind.Name, ind.Count)
		}
	}

	for _, r := range results {
		if r.err != nil {
			fmt.Fprintf(out, "failure: text=%q %v\n", r.text, r.err)
		}
	}
}

func countFailures(results []runResult) int {
	n := 0
	for _, r := range results {
		if r.err != nil {
			n++
		}
	}
	return n
}

// percentile expects sorted input and uses nearest-rank.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(q*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
