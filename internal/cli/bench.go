package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"p2pmessage/pkg/models"

	"github.com/spf13/cobra"
	vegeta "github.com/tsenart/vegeta/lib"
)

// BenchConfig describes one load run against a node.
type BenchConfig struct {
	Node       string
	APIKey     string
	Pattern    string
	Conversant models.AgentKey
	RPS        int
	Duration   time.Duration
	TextSize   int
}

// BenchReport is the summary printed after a run.
type BenchReport struct {
	Pattern     string         `json:"pattern"`
	Requests    uint64         `json:"requests"`
	SuccessRate float64        `json:"success_rate"`
	Mean        string         `json:"latency_mean"`
	P50         string         `json:"latency_p50"`
	P95         string         `json:"latency_p95"`
	P99         string         `json:"latency_p99"`
	Max         string         `json:"latency_max"`
	StatusCodes map[string]int `json:"status_codes"`
	Errors      []string       `json:"errors,omitempty"`
}

var benchPatterns = []string{"send", "latest", "next"}

func benchCmd(o *options) *cobra.Command {
	cfg := BenchConfig{}
	var to string
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Load-test a node's client API",
		Long: `Run a fixed-rate load test against one node. Patterns:
  send    POST /v1/messages with text to --to
  latest  GET /v1/messages/latest
  next    POST /v1/messages/next for --to`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Node, cfg.APIKey = o.node, o.apiKey
			if to != "" {
				k, err := models.ParseAgentKey(to)
				if err != nil {
					return fmt.Errorf("--to: %w", err)
				}
				cfg.Conversant = k
			}
			targeter, err := benchTargeter(cfg)
			if err != nil {
				return err
			}
			return o.print(runBench(cfg, targeter))
		},
	}
	cmd.Flags().StringVar(&cfg.Pattern, "pattern", "latest", "one of send, latest, next")
	cmd.Flags().StringVar(&to, "to", "", "peer agent key for send and next")
	cmd.Flags().IntVar(&cfg.RPS, "rps", 100, "requests per second")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 10*time.Second, "run length")
	cmd.Flags().IntVar(&cfg.TextSize, "text-size", 64, "text payload bytes for send")
	return cmd
}

func benchHeader(cfg BenchConfig) http.Header {
	h := http.Header{"Content-Type": {"application/json"}}
	if cfg.APIKey != "" {
		h.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	return h
}

// benchTargeter builds the request stream for cfg.Pattern.
func benchTargeter(cfg BenchConfig) (vegeta.Targeter, error) {
	hdr := benchHeader(cfg)
	switch cfg.Pattern {
	case "latest":
		return vegeta.NewStaticTargeter(vegeta.Target{
			Method: http.MethodGet,
			URL:    cfg.Node + "/v1/messages/latest",
			Header: hdr,
		}), nil
	case "next":
		if cfg.Conversant.IsZero() {
			return nil, fmt.Errorf("pattern next needs --to")
		}
		body, err := json.Marshal(models.FilterByBatch{Conversant: cfg.Conversant, BatchSize: models.DefaultBatchSize, PayloadType: models.PayloadTypeAll})
		if err != nil {
			return nil, err
		}
		return vegeta.NewStaticTargeter(vegeta.Target{
			Method: http.MethodPost,
			URL:    cfg.Node + "/v1/messages/next",
			Body:   body,
			Header: hdr,
		}), nil
	case "send":
		if cfg.Conversant.IsZero() {
			return nil, fmt.Errorf("pattern send needs --to")
		}
		pad := make([]byte, max(cfg.TextSize, 1))
		for i := range pad {
			pad[i] = 'a' + byte(i%26)
		}
		var seq atomic.Uint64
		// each message gets distinct text so hashes differ
		return func(t *vegeta.Target) error {
			in := models.MessageInput{
				Receiver: cfg.Conversant,
				Payload:  models.PayloadInput{Kind: models.PayloadText, Text: fmt.Sprintf("bench-%d %s", seq.Add(1), pad)},
			}
			body, err := json.Marshal(in)
			if err != nil {
				return err
			}
			t.Method = http.MethodPost
			t.URL = cfg.Node + "/v1/messages"
			t.Body = body
			t.Header = hdr
			return nil
		}, nil
	}
	return nil, fmt.Errorf("unknown pattern %q (want one of %v)", cfg.Pattern, benchPatterns)
}

func runBench(cfg BenchConfig, targeter vegeta.Targeter) BenchReport {
	rate := vegeta.Rate{Freq: cfg.RPS, Per: time.Second}
	attacker := vegeta.NewAttacker(vegeta.Workers(uint64(runtime.NumCPU())))

	var metrics vegeta.Metrics
	for res := range attacker.Attack(targeter, rate, cfg.Duration, cfg.Pattern) {
		metrics.Add(res)
	}
	metrics.Close()
	return reportFrom(cfg.Pattern, &metrics)
}

func reportFrom(pattern string, m *vegeta.Metrics) BenchReport {
	errs := append([]string(nil), m.Errors...)
	sort.Strings(errs)
	return BenchReport{
		Pattern:     pattern,
		Requests:    m.Requests,
		SuccessRate: m.Success,
		Mean:        m.Latencies.Mean.String(),
		P50:         m.Latencies.P50.String(),
		P95:         m.Latencies.P95.String(),
		P99:         m.Latencies.P99.String(),
		Max:         m.Latencies.Max.String(),
		StatusCodes: m.StatusCodes,
		Errors:      errs,
	}
}
