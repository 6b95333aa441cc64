// Copyright (c) 2026 rizalgns All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dnswitch

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestDNSServer starts a local UDP DNS server for probing.
func startTestDNSServer(t *testing.T, handler dns.HandlerFunc) (string, func()) {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err, "failed to listen")

	server := &dns.Server{
		PacketConn: pc,
		Handler:    handler,
	}

	started := make(chan struct{})
	go func() {
		server.NotifyStartedFunc = func() { close(started) }
		if err := server.ActivateAndServe(); err != nil {
			// Server shutdown is expected after started.
			select {
			case <-started:
			default:
				t.Logf("DNS server error: %v", err)
			}
		}
	}()

	<-started
	addr := pc.LocalAddr().String()

	return addr, func() {
		_ = server.Shutdown()
	}
}

// startAnsweringDNSServer answers every A query with the given address.
func startAnsweringDNSServer(t *testing.T, answer string) (string, func()) {
	t.Helper()

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		m.Answer = append(m.Answer, &dns.A{
			Hdr: dns.RR_Header{
				Name:   r.Question[0].Name,
				Rrtype: dns.TypeA,
				Class:  dns.ClassINET,
				Ttl:    60,
			},
			A: net.ParseIP(answer),
		})
		_ = w.WriteMsg(m)
	})

	return startTestDNSServer(t, handler)
}

// startSilentDNSServer swallows every query without answering, which is
// how probe timeouts are exercised.
func startSilentDNSServer(t *testing.T) (string, func()) {
	t.Helper()

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {})
	return startTestDNSServer(t, handler)
}

func TestProbeSuccess(t *testing.T) {
	addr, cleanup := startAnsweringDNSServer(t, "93.184.216.34")
	defer cleanup()

	e := NewProbeEngine(WithProbeTimeout(5 * time.Second))
	p := Provider{ID: "test", Name: "Test", Primary: addr}

	results := e.Probe(context.Background(), p, []string{"example.com"})
	require.Len(t, results, 1)

	r := results[0]
	assert.True(t, r.Success)
	assert.NoError(t, r.Err)
	assert.Equal(t, "test", r.ProviderID)
	assert.Equal(t, "example.com", r.Domain)
	assert.Equal(t, "93.184.216.34", r.ResolvedAddr)
	assert.Greater(t, r.Latency, time.Duration(0))
}

func TestProbeTimeout(t *testing.T) {
	addr, cleanup := startSilentDNSServer(t)
	defer cleanup()

	e := NewProbeEngine(
		WithProbeTimeout(200 * time.Millisecond),
		WithProbeClient(&dns.Client{Timeout: 200 * time.Millisecond, Net: "udp"}),
	)
	p := Provider{ID: "silent", Name: "Silent", Primary: addr}

	results := e.Probe(context.Background(), p, []string{"example.com"})
	require.Len(t, results, 1)

	r := results[0]
	assert.False(t, r.Success)
	assert.ErrorIs(t, r.Err, ErrProbeTimeout)
}

func TestProbeSecondaryFailover(t *testing.T) {
	silent, cleanupSilent := startSilentDNSServer(t)
	defer cleanupSilent()
	answering, cleanupAnswering := startAnsweringDNSServer(t, "1.2.3.4")
	defer cleanupAnswering()

	e := NewProbeEngine(
		WithProbeTimeout(200 * time.Millisecond),
		WithProbeClient(&dns.Client{Timeout: 200 * time.Millisecond, Net: "udp"}),
	)
	p := Provider{ID: "failover", Name: "Failover", Primary: silent, Secondary: answering}

	results := e.Probe(context.Background(), p, []string{"example.com"})
	require.Len(t, results, 1)

	r := results[0]
	assert.True(t, r.Success, "secondary should have answered")
	assert.Equal(t, answering, r.Server)
}

func TestProbeInvalidDomain(t *testing.T) {
	e := NewProbeEngine()
	p := Provider{ID: "test", Name: "Test", Primary: "127.0.0.1"}

	results := e.Probe(context.Background(), p, []string{"not_a_domain"})
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.ErrorIs(t, results[0].Err, ErrInvalidDomain)
}

func TestProbeAllGroupsBySubmissionOrder(t *testing.T) {
	addr, cleanup := startAnsweringDNSServer(t, "1.2.3.4")
	defer cleanup()

	e := NewProbeEngine(WithProbeConcurrency(2))
	providers := []Provider{
		{ID: "a", Name: "A", Primary: addr},
		{ID: "b", Name: "B", Primary: addr},
	}
	domains := []string{"example.com", "example.org"}

	results := e.ProbeAll(context.Background(), providers, domains, 2)
	require.Len(t, results, len(providers)*len(domains)*2)

	// Submission order: all of provider a first, then provider b.
	for i, r := range results {
		want := "a"
		if i >= len(domains)*2 {
			want = "b"
		}
		assert.Equal(t, want, r.ProviderID, "results[%d]", i)
	}
}

func TestProbeAllContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewProbeEngine()
	p := Provider{ID: "test", Name: "Test", Primary: "127.0.0.1"}

	results := e.ProbeAll(ctx, []Provider{p}, []string{"example.com", "example.org"}, 1)
	require.Len(t, results, 2)
	for i, r := range results {
		assert.False(t, r.Success, "results[%d]", i)
		assert.Error(t, r.Err, "results[%d]", i)
	}
}

func TestWithDefaultPort(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"8.8.8.8", "8.8.8.8:53"},
		{"8.8.8.8:5353", "8.8.8.8:5353"},
		{"2001:4860:4860::8888", "[2001:4860:4860::8888]:53"},
		{"[::1]:53", "[::1]:53"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, withDefaultPort(tt.input))
		})
	}
}
