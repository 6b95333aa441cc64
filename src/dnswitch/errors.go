// Copyright (c) 2026 rizalgns All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dnswitch

import "errors"

// Sentinel errors for the dnswitch package.
var (
	// ErrNoProviders is returned when no DNS providers are registered.
	ErrNoProviders = errors.New("dnswitch: no DNS providers registered")

	// ErrUnknownProvider is returned when a provider ID does not match
	// any registered provider.
	ErrUnknownProvider = errors.New("dnswitch: unknown provider")

	// ErrPermissionDenied is returned when the caller lacks the privilege
	// required for lock or file operations (typically: not running as root).
	ErrPermissionDenied = errors.New("dnswitch: permission denied")

	// ErrLockUnsupported is returned when the underlying filesystem does
	// not support the immutable file attribute.
	ErrLockUnsupported = errors.New("dnswitch: filesystem does not support the immutable attribute")

	// ErrCorruptBackup is returned when a backup's content digest does
	// not match the digest recorded at snapshot time.
	ErrCorruptBackup = errors.New("dnswitch: backup digest mismatch")

	// ErrDoTUnsupported is returned when DNS-over-TLS is requested for a
	// provider that does not publish a DoT hostname.
	ErrDoTUnsupported = errors.New("dnswitch: provider does not support DNS-over-TLS")

	// ErrProbeTimeout is returned inside a ProbeResult when a DNS probe
	// exceeds the configured timeout.
	ErrProbeTimeout = errors.New("dnswitch: DNS probe timed out")

	// ErrAllProbesFailed is returned when every probe of a leak check
	// failed, leaving nothing to compare against the expected resolver.
	ErrAllProbesFailed = errors.New("dnswitch: all leak probes failed")

	// ErrInvalidDomain is returned when a test domain fails validation.
	ErrInvalidDomain = errors.New("dnswitch: invalid domain name")

	// ErrInvalidAddress is returned when a nameserver address fails validation.
	ErrInvalidAddress = errors.New("dnswitch: invalid IP address")

	// ErrInternalPanic is returned when an internal panic is recovered
	// during concurrent probing.
	ErrInternalPanic = errors.New("dnswitch: internal panic recovered")
)
