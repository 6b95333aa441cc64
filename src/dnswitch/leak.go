// Copyright (c) 2026 rizalgns All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dnswitch

import (
	"context"
	"net"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// LeakReport is the outcome of a leak check. Leaked=true is a reportable
// finding, never an error: the check itself succeeded, the configuration
// did not.
type LeakReport struct {
	// Leaked reports whether any observed resolver is outside the
	// expected set.
	Leaked bool

	// Observed are the resolver addresses that actually answered,
	// sorted and deduplicated.
	Observed []string

	// Expected are the addresses the active provider should answer from.
	Expected []string

	// Results are the per-domain probe outcomes.
	Results []ProbeResult
}

// LookupFunc resolves a domain through some resolution path and reports
// the nameserver address that was consulted. Injectable for tests.
type LookupFunc func(ctx context.Context, domain string) (resolved []string, server string, err error)

// LeakDetector verifies that resolution actually flows through the
// expected provider. Unlike [Benchmarker], which queries provider
// addresses directly, the detector resolves through the system's active
// resolution path and records which nameserver the OS really consulted.
type LeakDetector struct {
	timeout time.Duration
	domains []string
	lookup  LookupFunc
	log     zerolog.Logger
}

// LeakOption is a functional option for configuring a [LeakDetector].
type LeakOption func(*LeakDetector)

// WithLeakTimeout sets the per-domain timeout. The default is 5 seconds.
func WithLeakTimeout(d time.Duration) LeakOption {
	return func(l *LeakDetector) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithLeakDomains replaces the test domains. The default is
// [DefaultTestDomains].
func WithLeakDomains(domains []string) LeakOption {
	return func(l *LeakDetector) {
		if len(domains) > 0 {
			l.domains = domains
		}
	}
}

// WithLeakLookup sets a custom resolution path. By default the detector
// uses the OS resolver configuration via a hooked [net.Resolver].
func WithLeakLookup(fn LookupFunc) LeakOption {
	return func(l *LeakDetector) {
		if fn != nil {
			l.lookup = fn
		}
	}
}

// WithLeakLogger sets the structured logger for leak check events.
func WithLeakLogger(log zerolog.Logger) LeakOption {
	return func(l *LeakDetector) { l.log = log }
}

// NewLeakDetector creates a [LeakDetector].
func NewLeakDetector(opts ...LeakOption) *LeakDetector {
	l := &LeakDetector{
		timeout: defaultProbeTimeout,
		domains: DefaultTestDomains(),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.lookup == nil {
		l.lookup = systemLookup
	}
	return l
}

// Check resolves the test domains through the active resolution path and
// compares the responding servers against the expected provider's
// addresses. With DoT enabled the local stub listener is an expected
// responder, since the encrypted hop happens behind it.
//
// Returns [ErrAllProbesFailed] when nothing resolved at all; a working
// path answering from the wrong server is a leak, not an error.
func (l *LeakDetector) Check(ctx context.Context, expected Provider, dotEnabled bool) (LeakReport, error) {
	allowed := expected.Addresses()
	if dotEnabled {
		allowed = append(allowed, localStubAddress)
	}

	report := LeakReport{Expected: expected.Addresses()}
	observed := make(map[string]struct{})
	failures := 0

	for _, domain := range l.domains {
		domain = normalizeDomain(domain)
		result := ProbeResult{ProviderID: expected.ID, Domain: domain}

		dctx, cancel := context.WithTimeout(ctx, l.timeout)
		start := time.Now()
		resolved, server, err := l.lookup(dctx, domain)
		cancel()

		result.Latency = time.Since(start)
		result.Server = stripPort(server)
		if err != nil {
			result.Err = err
			failures++
			l.log.Debug().Str("domain", domain).Err(err).Msg("leak probe failed")
		} else {
			result.Success = true
			if len(resolved) > 0 {
				result.ResolvedAddr = resolved[0]
			}
			if result.Server != "" {
				observed[result.Server] = struct{}{}
			}
		}
		report.Results = append(report.Results, result)
	}

	report.Observed = sortedKeys(observed)
	report.Leaked = evaluateLeak(report.Observed, allowed)

	if failures == len(l.domains) {
		return report, ErrAllProbesFailed
	}

	l.log.Info().
		Bool("leaked", report.Leaked).
		Strs("observed", report.Observed).
		Strs("expected", report.Expected).
		Msg("leak check complete")
	return report, nil
}

// evaluateLeak reports whether any observed resolver address falls
// outside the allowed set. Pure and deterministic.
func evaluateLeak(observed, allowed []string) bool {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		allowedSet[a] = struct{}{}
	}
	for _, o := range observed {
		if _, ok := allowedSet[o]; !ok {
			return true
		}
	}
	return false
}

// systemLookup resolves through the OS resolver configuration. The Go
// resolver is forced so the dial hook sees the nameserver address it
// picked from the system configuration; that address is what a leak
// check is actually about.
func systemLookup(ctx context.Context, domain string) ([]string, string, error) {
	var server string
	resolver := &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			server = address
			var d net.Dialer
			return d.DialContext(ctx, network, address)
		},
	}

	addrs, err := resolver.LookupHost(ctx, domain)
	if err != nil {
		return nil, server, err
	}
	return addrs, server, nil
}

// stripPort drops the port from host:port, tolerating bare hosts.
func stripPort(addr string) string {
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// sortedKeys returns the keys of set in lexical order.
func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
