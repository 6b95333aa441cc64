// Copyright (c) 2026 rizalgns All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dnswitch_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rizalgns/dnswitch/src/dnswitch"
)

func TestDefaultProviders(t *testing.T) {
	providers := dnswitch.DefaultProviders()
	require.Len(t, providers, 5)

	for i := 1; i < len(providers); i++ {
		assert.Less(t, providers[i-1].ID, providers[i].ID, "registry must be sorted by ID")
	}
	for _, p := range providers {
		assert.NoError(t, p.Validate(), "provider %q", p.ID)
	}

	google, err := dnswitch.Lookup(providers, "google")
	require.NoError(t, err)
	assert.Equal(t, "8.8.8.8", google.Primary)
	assert.Equal(t, "8.8.4.4", google.Secondary)
	assert.True(t, google.SupportsDoT)

	cloudflare, err := dnswitch.Lookup(providers, "cloudflare")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.1.1.1", "1.0.0.1"}, cloudflare.Addresses())
}

func TestLookupUnknown(t *testing.T) {
	_, err := dnswitch.Lookup(dnswitch.DefaultProviders(), "nonsense")
	assert.ErrorIs(t, err, dnswitch.ErrUnknownProvider)
}

func TestProviderValidate(t *testing.T) {
	tests := []struct {
		name     string
		provider dnswitch.Provider
		wantErr  error
	}{
		{
			"valid minimal",
			dnswitch.Provider{ID: "x", Name: "X", Primary: "192.0.2.1"},
			nil,
		},
		{
			"missing id",
			dnswitch.Provider{Name: "X", Primary: "192.0.2.1"},
			dnswitch.ErrUnknownProvider,
		},
		{
			"bad primary",
			dnswitch.Provider{ID: "x", Name: "X", Primary: "not-an-ip"},
			dnswitch.ErrInvalidAddress,
		},
		{
			"bad secondary",
			dnswitch.Provider{ID: "x", Name: "X", Primary: "192.0.2.1", Secondary: "192.0.2"},
			dnswitch.ErrInvalidAddress,
		},
		{
			"dot without hostname",
			dnswitch.Provider{ID: "x", Name: "X", Primary: "192.0.2.1", SupportsDoT: true},
			dnswitch.ErrDoTUnsupported,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.provider.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestLoadProviders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- id: mullvad
  name: Mullvad
  primary: 194.242.2.2
  supports_dot: true
  dot_hostname: dns.mullvad.net
- id: internal
  name: Internal
  primary: 10.0.0.53
  secondary: 10.0.1.53
`), 0o644))

	providers, err := dnswitch.LoadProviders(path)
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, "mullvad", providers[0].ID)
	assert.Equal(t, []string{"10.0.0.53", "10.0.1.53"}, providers[1].Addresses())
}

func TestLoadProvidersRejectsInvalidEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- id: good
  name: Good
  primary: 192.0.2.1
- id: bad
  name: Bad
  primary: not-an-ip
`), 0o644))

	_, err := dnswitch.LoadProviders(path)
	assert.ErrorIs(t, err, dnswitch.ErrInvalidAddress)
}

func TestLoadProvidersEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("[]\n"), 0o644))

	_, err := dnswitch.LoadProviders(path)
	assert.ErrorIs(t, err, dnswitch.ErrNoProviders)
}

func TestRenderResolvConfDeterministic(t *testing.T) {
	google, err := dnswitch.Lookup(dnswitch.DefaultProviders(), "google")
	require.NoError(t, err)

	first := dnswitch.RenderResolvConf(google, false)
	second := dnswitch.RenderResolvConf(google, false)
	assert.Equal(t, first, second, "rendering must be deterministic")

	content := string(first)
	assert.Contains(t, content, "nameserver 8.8.8.8\n")
	assert.Contains(t, content, "nameserver 8.8.4.4\n")
	assert.NotContains(t, content, "127.0.0.53")
}

func TestRenderResolvConfDoTStub(t *testing.T) {
	cloudflare, err := dnswitch.Lookup(dnswitch.DefaultProviders(), "cloudflare")
	require.NoError(t, err)

	content := string(dnswitch.RenderResolvConf(cloudflare, true))
	assert.Contains(t, content, "nameserver 127.0.0.53\n")
	assert.Contains(t, content, "options edns0 trust-ad\n")
	assert.NotContains(t, content, "1.1.1.1", "DoT mode resolves through the stub, not directly")
}

func TestRenderDoTDescriptor(t *testing.T) {
	quad9, err := dnswitch.Lookup(dnswitch.DefaultProviders(), "quad9")
	require.NoError(t, err)

	content := string(dnswitch.RenderDoTDescriptor(quad9))
	assert.Contains(t, content, "[Resolve]\n")
	assert.Contains(t, content, "DNS=9.9.9.9#dns.quad9.net 149.112.112.112#dns.quad9.net\n")
	assert.Contains(t, content, "DNSOverTLS=yes\n")
}

func TestParseNameservers(t *testing.T) {
	content := []byte(`# a comment
nameserver 8.8.8.8
search example.com
nameserver 8.8.4.4
nameserver
`)
	assert.Equal(t, []string{"8.8.8.8", "8.8.4.4"}, dnswitch.ParseNameservers(content))
	assert.Nil(t, dnswitch.ParseNameservers(nil))
}

func TestIsValidDomain(t *testing.T) {
	tests := []struct {
		name   string
		domain string
		want   bool
	}{
		{"valid .com", "example.com", true},
		{"valid subdomain", "sub.example.com", true},
		{"valid hyphen", "my-site.example.com", true},
		{"valid short label", "a.com", true},
		{"invalid empty", "", false},
		{"invalid single label", "localhost", false},
		{"invalid starts with hyphen", "-example.com", false},
		{"invalid ends with hyphen", "example-.com", false},
		{"invalid special chars", "exam!ple.com", false},
		{"invalid spaces", "example .com", false},
		{"invalid TLD with digits", "example.c0m", false},
		{"invalid single-char TLD", "example.x", false},
		{"invalid label too long", "example." + strings.Repeat("a", 64) + ".com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dnswitch.IsValidDomain(tt.domain), "IsValidDomain(%q)", tt.domain)
		})
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"8.8.8.8", "8.8.8.8", false},
		{"  1.1.1.1  ", "1.1.1.1", false},
		{"2606:4700:4700::1111", "2606:4700:4700::1111", false},
		{"not-an-ip", "", true},
		{"8.8.8.8:53", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := dnswitch.ParseAddress(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, dnswitch.ErrInvalidAddress)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
