// Copyright (c) 2026 rizalgns All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dnswitch

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"github.com/rs/zerolog"
)

// Default probe configuration.
const (
	defaultProbeTimeout     = 5 * time.Second
	defaultProbeConcurrency = 8 // keep the fan-out gentle on the network stack
	defaultEDNS0Size        = 1232
)

// ProbeResult is the outcome of a single resolution probe. Network
// failures never escape the engine as errors: a timeout or refusal is a
// terminal result with Success=false and retrying is the caller's call.
type ProbeResult struct {
	// ProviderID identifies the probed provider.
	ProviderID string

	// Domain is the test domain that was resolved.
	Domain string

	// Server is the nameserver address that answered (or was last tried).
	Server string

	// Latency is the round-trip time of the query. Meaningless when
	// Success is false.
	Latency time.Duration

	// ResolvedAddr is the first address in the answer, if any.
	ResolvedAddr string

	// Success reports whether the probe resolved within the timeout.
	Success bool

	// Err carries the typed failure when Success is false.
	Err error
}

// ProbeEngine issues concurrent resolution probes against provider
// nameservers. Probes are independent and fan out across a bounded
// worker pool sized to avoid overwhelming the network stack regardless
// of the provider and domain counts.
type ProbeEngine struct {
	timeout     time.Duration
	concurrency int
	edns0Size   uint16
	client      *dns.Client
	log         zerolog.Logger
}

// ProbeOption is a functional option for configuring a [ProbeEngine].
type ProbeOption func(*ProbeEngine)

// WithProbeTimeout sets the per-probe timeout. The default is 5 seconds.
func WithProbeTimeout(d time.Duration) ProbeOption {
	return func(e *ProbeEngine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithProbeConcurrency caps the number of outstanding probes.
// The default is 8.
func WithProbeConcurrency(n int) ProbeOption {
	return func(e *ProbeEngine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithProbeClient sets a custom [dns.Client] for all probes, allowing
// TCP or DNS-over-TLS transport. When set, the client's own Timeout
// takes precedence over [WithProbeTimeout] for the exchange itself.
func WithProbeClient(client *dns.Client) ProbeOption {
	return func(e *ProbeEngine) {
		if client != nil {
			e.client = client
		}
	}
}

// WithProbeEDNS0Size sets the EDNS0 UDP buffer size. The default is
// 1232 bytes, the recommended size to prevent IP fragmentation.
func WithProbeEDNS0Size(size uint16) ProbeOption {
	return func(e *ProbeEngine) {
		if size > 0 {
			e.edns0Size = size
		}
	}
}

// WithProbeLogger sets the structured logger for probe events.
func WithProbeLogger(log zerolog.Logger) ProbeOption {
	return func(e *ProbeEngine) { e.log = log }
}

// NewProbeEngine creates a [ProbeEngine]. Use functional options to
// customize behavior.
func NewProbeEngine(opts ...ProbeOption) *ProbeEngine {
	e := &ProbeEngine{
		timeout:     defaultProbeTimeout,
		concurrency: defaultProbeConcurrency,
		edns0Size:   defaultEDNS0Size,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.client == nil {
		e.client = &dns.Client{
			Timeout: e.timeout,
			Net:     "udp",
		}
	}
	return e
}

// Probe resolves each domain once against the provider's nameservers
// and returns one result per domain.
func (e *ProbeEngine) Probe(ctx context.Context, p Provider, domains []string) []ProbeResult {
	return e.ProbeAll(ctx, []Provider{p}, domains, 1)
}

// ProbeAll fans out samples probes per provider and domain across the
// bounded worker pool. Results are ordered by submission: all samples of
// one provider×domain pair are adjacent, which is what the benchmarker's
// per-provider grouping needs. Workers recover panics into typed results.
func (e *ProbeEngine) ProbeAll(ctx context.Context, providers []Provider, domains []string, samples int) []ProbeResult {
	if samples < 1 {
		samples = 1
	}

	type job struct {
		provider Provider
		domain   string
	}
	jobs := make([]job, 0, len(providers)*len(domains)*samples)
	for _, p := range providers {
		for _, d := range domains {
			for s := 0; s < samples; s++ {
				jobs = append(jobs, job{provider: p, domain: normalizeDomain(d)})
			}
		}
	}

	results := make([]ProbeResult, len(jobs))
	var wg sync.WaitGroup

	// Semaphore to limit concurrency.
	sem := make(chan struct{}, e.concurrency)

Loop:
	for i, jb := range jobs {
		// Check context before starting new work.
		select {
		case <-ctx.Done():
			// Fill remaining results with the context error. Do not
			// return yet: active workers must finish first.
			for j := i; j < len(jobs); j++ {
				results[j] = ProbeResult{
					ProviderID: jobs[j].provider.ID,
					Domain:     jobs[j].domain,
					Err:        ctx.Err(),
				}
			}
			break Loop
		default:
		}

		wg.Add(1)

		// Acquire the semaphore before spawning to bound the number
		// of active goroutines.
		sem <- struct{}{}

		go func(idx int, jb job) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					results[idx] = ProbeResult{
						ProviderID: jb.provider.ID,
						Domain:     jb.domain,
						Err:        fmt.Errorf("%w: %v", ErrInternalPanic, r),
					}
				}
			}()

			results[idx] = e.probeOne(ctx, jb.provider, jb.domain)
		}(i, jb)
	}

	wg.Wait()
	return results
}

// probeOne tries the provider's nameservers in order (primary with
// secondary failover) and returns the first successful result, or the
// last failure when neither answers. No retries against the same
// server: a timeout is terminal for that probe.
func (e *ProbeEngine) probeOne(ctx context.Context, p Provider, domain string) ProbeResult {
	if !IsValidDomain(domain) {
		return ProbeResult{
			ProviderID: p.ID,
			Domain:     domain,
			Err:        fmt.Errorf("%w: %s", ErrInvalidDomain, domain),
		}
	}

	var last ProbeResult
	for _, server := range p.Addresses() {
		last = e.query(ctx, p.ID, domain, server)
		if last.Success {
			return last
		}
	}
	return last
}

// query sends a single A query to one nameserver.
func (e *ProbeEngine) query(ctx context.Context, providerID, domain, server string) ProbeResult {
	result := ProbeResult{
		ProviderID: providerID,
		Domain:     domain,
		Server:     server,
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeA)
	msg.RecursionDesired = true
	msg.SetEdns0(e.edns0Size, false)

	qctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	resp, rtt, err := e.client.ExchangeContext(qctx, msg, withDefaultPort(server))
	if err != nil {
		if os.IsTimeout(err) || qctx.Err() != nil {
			result.Err = fmt.Errorf("%w: %v", ErrProbeTimeout, err)
		} else {
			result.Err = err
		}
		e.log.Debug().Str("server", server).Str("domain", domain).Err(err).Msg("probe failed")
		return result
	}

	if rtt > 0 {
		result.Latency = rtt
	} else {
		result.Latency = time.Since(start)
	}

	if resp.Rcode != dns.RcodeSuccess {
		result.Err = fmt.Errorf("dnswitch: unexpected response code: %s", dns.RcodeToString[resp.Rcode])
		return result
	}

	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			result.ResolvedAddr = a.A.String()
			break
		}
	}
	result.Success = true
	return result
}

// withDefaultPort appends the DNS port when the address has none.
func withDefaultPort(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	if strings.Contains(server, ":") {
		// Bare IPv6 literal.
		return net.JoinHostPort(server, "53")
	}
	return server + ":53"
}
