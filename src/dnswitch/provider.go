// Copyright (c) 2026 rizalgns All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dnswitch

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Provider describes a registered DNS service. Providers are immutable:
// the set is loaded once at startup and never mutated at runtime.
type Provider struct {
	// ID is the short identifier used on the CLI and in the persisted state.
	ID string `yaml:"id"`

	// Name is the human-readable display name.
	Name string `yaml:"name"`

	// Primary is the primary nameserver IP address.
	Primary string `yaml:"primary"`

	// Secondary is the optional secondary nameserver IP address.
	Secondary string `yaml:"secondary,omitempty"`

	// SupportsDoT reports whether the provider offers DNS-over-TLS.
	SupportsDoT bool `yaml:"supports_dot,omitempty"`

	// DoTHostname is the TLS server name used for DNS-over-TLS.
	// Required when SupportsDoT is true.
	DoTHostname string `yaml:"dot_hostname,omitempty"`
}

// defaultProviders are the pre-registered DNS providers.
var defaultProviders = []Provider{
	{
		ID:          "google",
		Name:        "Google",
		Primary:     "8.8.8.8",
		Secondary:   "8.8.4.4",
		SupportsDoT: true,
		DoTHostname: "dns.google",
	},
	{
		ID:          "cloudflare",
		Name:        "Cloudflare",
		Primary:     "1.1.1.1",
		Secondary:   "1.0.0.1",
		SupportsDoT: true,
		DoTHostname: "cloudflare-dns.com",
	},
	{
		ID:          "quad9",
		Name:        "Quad9 (Security)",
		Primary:     "9.9.9.9",
		Secondary:   "149.112.112.112",
		SupportsDoT: true,
		DoTHostname: "dns.quad9.net",
	},
	{
		ID:          "adguard",
		Name:        "AdGuard (No Ads)",
		Primary:     "94.140.14.14",
		Secondary:   "94.140.15.15",
		SupportsDoT: true,
		DoTHostname: "dns.adguard-dns.com",
	},
	{
		ID:        "cleanbrowsing",
		Name:      "CleanBrowsing (Family)",
		Primary:   "185.228.168.9",
		Secondary: "185.228.169.9",
	},
}

// Addresses returns the provider's nameserver addresses in query order:
// primary first, then the secondary if configured.
func (p Provider) Addresses() []string {
	addrs := []string{p.Primary}
	if p.Secondary != "" {
		addrs = append(addrs, p.Secondary)
	}
	return addrs
}

// Validate checks that the provider descriptor is well formed.
func (p Provider) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: empty provider id", ErrUnknownProvider)
	}
	if _, err := ParseAddress(p.Primary); err != nil {
		return fmt.Errorf("provider %q: primary: %w", p.ID, err)
	}
	if p.Secondary != "" {
		if _, err := ParseAddress(p.Secondary); err != nil {
			return fmt.Errorf("provider %q: secondary: %w", p.ID, err)
		}
	}
	if p.SupportsDoT && p.DoTHostname == "" {
		return fmt.Errorf("%w: provider %q has no DoT hostname", ErrDoTUnsupported, p.ID)
	}
	return nil
}

// DefaultProviders returns a copy of the built-in provider registry,
// sorted by ID.
func DefaultProviders() []Provider {
	providers := make([]Provider, len(defaultProviders))
	copy(providers, defaultProviders)
	sort.Slice(providers, func(i, j int) bool { return providers[i].ID < providers[j].ID })
	return providers
}

// LoadProviders reads a provider registry from a YAML file. Every entry
// is validated; a single invalid entry rejects the whole file so a typo
// cannot silently shrink the registry.
func LoadProviders(path string) ([]Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dnswitch: read providers: %w", err)
	}

	var providers []Provider
	if err := yaml.Unmarshal(data, &providers); err != nil {
		return nil, fmt.Errorf("dnswitch: parse providers: %w", err)
	}
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	for _, p := range providers {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return providers, nil
}

// Lookup finds a provider by ID in the given registry.
func Lookup(providers []Provider, id string) (Provider, error) {
	for _, p := range providers {
		if p.ID == id {
			return p, nil
		}
	}
	return Provider{}, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
}
