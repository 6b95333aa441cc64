// Copyright (c) 2026 rizalgns All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dnswitch

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Default benchmark configuration.
const (
	defaultSamples             = 3
	defaultUnreliableThreshold = 0.5
)

// defaultTestDomains are the well-known domains probed by benchmarks and
// leak checks.
var defaultTestDomains = []string{"google.com", "cloudflare.com", "github.com"}

// DefaultTestDomains returns a copy of the built-in test domain list.
func DefaultTestDomains() []string {
	domains := make([]string, len(defaultTestDomains))
	copy(domains, defaultTestDomains)
	return domains
}

// ProviderScore is one provider's benchmark outcome.
type ProviderScore struct {
	// Provider is the scored provider.
	Provider Provider

	// Median is the median latency across all successful probes.
	Median time.Duration

	// SuccessRate is the fraction of probes that succeeded, in [0, 1].
	SuccessRate float64

	// Samples is the total number of probes issued for this provider.
	Samples int

	// Unreliable marks providers whose success rate fell below the
	// threshold; they rank last regardless of latency.
	Unreliable bool
}

// Benchmarker measures candidate providers through a [ProbeEngine] and
// ranks them. The ranking itself is pure and deterministic ([Rank]);
// randomness only enters through real network timing.
type Benchmarker struct {
	engine    *ProbeEngine
	samples   int
	threshold float64
	log       zerolog.Logger
}

// BenchmarkOption is a functional option for configuring a [Benchmarker].
type BenchmarkOption func(*Benchmarker)

// WithSamples sets how many probes are issued per provider and domain.
// The default is 3.
func WithSamples(n int) BenchmarkOption {
	return func(b *Benchmarker) {
		if n > 0 {
			b.samples = n
		}
	}
}

// WithUnreliableThreshold sets the success-rate floor below which a
// provider is flagged unreliable. The default is 0.5.
func WithUnreliableThreshold(f float64) BenchmarkOption {
	return func(b *Benchmarker) {
		if f > 0 && f <= 1 {
			b.threshold = f
		}
	}
}

// WithBenchmarkLogger sets the structured logger for benchmark events.
func WithBenchmarkLogger(log zerolog.Logger) BenchmarkOption {
	return func(b *Benchmarker) { b.log = log }
}

// NewBenchmarker creates a [Benchmarker] on top of the given engine.
func NewBenchmarker(engine *ProbeEngine, opts ...BenchmarkOption) *Benchmarker {
	b := &Benchmarker{
		engine:    engine,
		samples:   defaultSamples,
		threshold: defaultUnreliableThreshold,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run probes every provider against the test domains and returns the
// ranked scores, best first. An empty domain list falls back to
// [DefaultTestDomains]. A cancelled context returns the scores computed
// from whatever probes completed, together with the context error.
func (b *Benchmarker) Run(ctx context.Context, providers []Provider, domains []string) ([]ProviderScore, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	if len(domains) == 0 {
		domains = DefaultTestDomains()
	}

	results := b.engine.ProbeAll(ctx, providers, domains, b.samples)
	scores := b.rank(providers, results)

	for _, s := range scores {
		b.log.Info().
			Str("provider", s.Provider.ID).
			Dur("median", s.Median).
			Float64("success_rate", s.SuccessRate).
			Bool("unreliable", s.Unreliable).
			Msg("benchmark score")
	}

	if err := ctx.Err(); err != nil {
		return scores, err
	}
	return scores, nil
}

// Rank scores providers from a fixed set of probe results using the
// default unreliability threshold. Deterministic: identical inputs
// always produce the same ranking.
func Rank(providers []Provider, results []ProbeResult) []ProviderScore {
	b := &Benchmarker{threshold: defaultUnreliableThreshold}
	return b.rank(providers, results)
}

// rank groups results by provider, computes the median latency of the
// successful probes and sorts: reliable providers by median ascending,
// unreliable providers last, ties broken by lexical provider ID. The
// sort is stable so equal inputs cannot reorder.
func (b *Benchmarker) rank(providers []Provider, results []ProbeResult) []ProviderScore {
	type bucket struct {
		latencies []time.Duration
		total     int
	}
	buckets := make(map[string]*bucket, len(providers))
	for _, p := range providers {
		buckets[p.ID] = &bucket{}
	}
	for _, r := range results {
		bk, ok := buckets[r.ProviderID]
		if !ok {
			continue
		}
		bk.total++
		if r.Success {
			bk.latencies = append(bk.latencies, r.Latency)
		}
	}

	scores := make([]ProviderScore, 0, len(providers))
	for _, p := range providers {
		bk := buckets[p.ID]
		score := ProviderScore{Provider: p, Samples: bk.total}
		if bk.total > 0 {
			score.SuccessRate = float64(len(bk.latencies)) / float64(bk.total)
		}
		score.Median = median(bk.latencies)
		score.Unreliable = score.SuccessRate < b.threshold
		scores = append(scores, score)
	}

	sort.SliceStable(scores, func(i, j int) bool {
		a, c := scores[i], scores[j]
		if a.Unreliable != c.Unreliable {
			return !a.Unreliable
		}
		if a.Unreliable {
			return a.Provider.ID < c.Provider.ID
		}
		if a.Median != c.Median {
			return a.Median < c.Median
		}
		return a.Provider.ID < c.Provider.ID
	})
	return scores
}

// median returns the median of the given durations, zero for an empty
// slice. The input is copied so callers keep their ordering.
func median(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(ds))
	copy(sorted, ds)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
