// Copyright (c) 2026 rizalgns All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package dnswitch switches a host's DNS resolution configuration
// between registered providers, optionally with DNS-over-TLS, and
// verifies the result is both durable and correct.
//
// The package has two halves. The configuration engine ([Manager],
// [BackupStore], [StateStore], [Locker]) performs atomic, crash-safe
// switches of the live resolver file: every destructive write is
// preceded by a timestamped, digest-verified backup, performed as a
// temp-write-then-rename so no reader ever observes a partial file, and
// sealed afterwards with the immutable file attribute so nothing on the
// host can silently overwrite it. The probing half ([ProbeEngine],
// [Benchmarker], [LeakDetector]) measures candidate providers over the
// network and verifies that resolution really flows through the
// configured one.
//
// # Switching
//
//	m := dnswitch.NewManager()
//	providers := dnswitch.DefaultProviders()
//	p, _ := dnswitch.Lookup(providers, "cloudflare")
//
//	result, err := m.Switch(ctx, p, true) // with DNS-over-TLS
//
// A switch that would produce content byte-identical to what is already
// live is an idempotent no-op: no backup, no write, no service restart.
// Failures are tagged with the pipeline step that was reached
// ([SwitchError]), so "new config written but not yet re-locked" is
// diagnosable from the error alone.
//
// # Benchmarking
//
//	engine := dnswitch.NewProbeEngine()
//	bench := dnswitch.NewBenchmarker(engine)
//	scores, err := bench.Run(ctx, providers, nil)
//
// Providers are ranked by median latency of successful probes; providers
// answering less than half the time are flagged unreliable and ranked
// last. Given identical probe results the ranking is deterministic, with
// ties broken by provider ID.
//
// # Leak detection
//
//	det := dnswitch.NewLeakDetector()
//	report, err := det.Check(ctx, p, false)
//
// The detector resolves well-known domains through whatever the OS is
// actually using — not against the provider's address directly — and
// flags answers arriving from an unexpected resolver. A leak is a
// finding in the report, not an error.
//
// # Privilege
//
// Switching, resetting and locking require root. [RequireRoot] checks
// the precondition explicitly; probing and benchmarking work unprivileged.
//
// # Errors
//
// Failures are sentinel errors matchable with [errors.Is]:
// [ErrPermissionDenied], [ErrCorruptBackup], [ErrLockUnsupported],
// [ErrUnknownProvider], [ErrProbeTimeout] and friends. Network-level
// probe failures never surface as errors from the probing APIs; they
// become typed [ProbeResult] values aggregated into scoring.
package dnswitch
