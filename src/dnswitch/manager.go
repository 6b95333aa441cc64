// Copyright (c) 2026 rizalgns All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dnswitch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Default file locations. All of them are injectable through options so
// tests can run against a temporary directory.
const (
	DefaultResolvConfPath   = "/etc/resolv.conf"
	DefaultResolvedConfPath = "/etc/systemd/resolved.conf"
	DefaultStateDir         = "/var/lib/dnswitch"
)

// Step identifies how far a switch got before failing, so a partial
// state can be diagnosed from the error alone.
type Step string

// Switch pipeline steps.
const (
	StepRead      Step = "read-current"
	StepUnlock    Step = "unlock"
	StepBackup    Step = "backup"
	StepTransport Step = "transport"
	StepWrite     Step = "write"
	StepLock      Step = "lock"
	StepState     Step = "state"
)

// SwitchError is a switch or reset failure tagged with the pipeline step
// that was reached.
type SwitchError struct {
	Step Step
	Err  error
}

// Error implements the error interface.
func (e *SwitchError) Error() string {
	return fmt.Sprintf("dnswitch: switch failed at %s: %v", e.Step, e.Err)
}

// Unwrap returns the underlying error for errors.Is matching.
func (e *SwitchError) Unwrap() error { return e.Err }

func stepErr(step Step, err error) *SwitchError {
	return &SwitchError{Step: step, Err: err}
}

// SwitchResult reports the outcome of a switch or reset.
type SwitchResult struct {
	// ProviderID is the newly active provider, empty after a reset.
	ProviderID string

	// DoTEnabled reports whether encrypted transport was configured.
	DoTEnabled bool

	// NoOp reports that the live configuration already matched the
	// target byte for byte and nothing was touched.
	NoOp bool

	// Backup is the snapshot taken before the live file was mutated.
	// Nil for no-ops.
	Backup *BackupRecord

	// Locked reports whether the live file is protected after the
	// operation.
	Locked bool

	// Verified reports whether the live file re-read back with the
	// expected content after the switch.
	Verified bool

	// Nameservers are the addresses now present in the live file.
	Nameservers []string
}

// Manager orchestrates atomic configuration switches. It is the only
// writer of the live resolver file and of the persisted state record:
// an in-process mutex makes Switch, Reset and Restore mutually
// exclusive, and the immutable attribute keeps everything else out
// between calls.
type Manager struct {
	mu sync.Mutex

	livePath string
	dotPath  string
	store    *StateStore
	backups  *BackupStore
	locker   Locker
	services ServiceController
	log      zerolog.Logger
}

// ManagerOption is a functional option for configuring a [Manager].
type ManagerOption func(*Manager)

// WithLivePath overrides the live resolver file location.
func WithLivePath(path string) ManagerOption {
	return func(m *Manager) { m.livePath = path }
}

// WithDoTPath overrides the resolver-service descriptor location.
func WithDoTPath(path string) ManagerOption {
	return func(m *Manager) { m.dotPath = path }
}

// WithStateStore sets a custom [StateStore].
func WithStateStore(store *StateStore) ManagerOption {
	return func(m *Manager) { m.store = store }
}

// WithBackupStore sets a custom [BackupStore].
func WithBackupStore(store *BackupStore) ManagerOption {
	return func(m *Manager) { m.backups = store }
}

// WithLocker sets a custom [Locker] implementation.
func WithLocker(locker Locker) ManagerOption {
	return func(m *Manager) { m.locker = locker }
}

// WithServiceController sets a custom [ServiceController].
func WithServiceController(services ServiceController) ManagerOption {
	return func(m *Manager) { m.services = services }
}

// WithManagerLogger sets the structured logger for switch events.
func WithManagerLogger(log zerolog.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

// NewManager creates a [Manager] with the default system paths, the
// immutable-attribute locker and the systemctl service controller.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		livePath: DefaultResolvConfPath,
		dotPath:  DefaultResolvedConfPath,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		m.store = NewStateStore(filepath.Join(DefaultStateDir, "state.yaml"))
	}
	if m.backups == nil {
		m.backups = NewBackupStore(filepath.Join(DefaultStateDir, "backups"), WithBackupLogger(m.log))
	}
	if m.locker == nil {
		m.locker = NewFileAttrLocker()
	}
	if m.services == nil {
		m.services = NewSystemdController(m.log)
	}
	return m
}

// Backups returns the manager's backup store.
func (m *Manager) Backups() *BackupStore { return m.backups }

// Status returns the persisted state together with the nameservers
// currently present in the live file.
func (m *Manager) Status() (SystemState, []string, error) {
	state, err := m.store.Load()
	if err != nil {
		return SystemState{}, nil, err
	}
	content, err := os.ReadFile(m.livePath)
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil, nil
		}
		return state, nil, classifyIOError(err)
	}
	return state, ParseNameservers(content), nil
}

// Switch moves the host onto the given provider, optionally with
// DNS-over-TLS. The pipeline is strictly sequential:
//
//  1. render the target and short-circuit if the live file already
//     matches byte for byte
//  2. release the immutable attribute
//  3. snapshot the current content
//  4. (DoT only) write the transport descriptor and restart the resolver
//  5. atomically replace the live file
//  6. reacquire the immutable attribute
//  7. persist the new state
//  8. flush caches and verify
//
// Any failure before step 5's rename leaves the live file untouched.
// Failure after the rename but before the lock leaves the new
// configuration live but unprotected; that is reported through the
// returned [SwitchError], not rolled back. Past step 3 the operation is
// not cancellable: once a backup exists it runs to completion.
func (m *Manager) Switch(ctx context.Context, p Provider, enableDoT bool) (SwitchResult, error) {
	if err := p.Validate(); err != nil {
		return SwitchResult{}, err
	}
	if enableDoT && !p.SupportsDoT {
		return SwitchResult{}, fmt.Errorf("%w: %s", ErrDoTUnsupported, p.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.store.Load()
	if err != nil {
		return SwitchResult{}, stepErr(StepRead, err)
	}
	state = m.resyncLockState(state)

	target := RenderResolvConf(p, enableDoT)
	current, err := m.readLive()
	if err != nil {
		return SwitchResult{}, stepErr(StepRead, err)
	}

	if bytes.Equal(current, target) {
		m.log.Info().Str("provider", p.ID).Bool("dot", enableDoT).Msg("configuration already in place")
		return SwitchResult{
			ProviderID:  p.ID,
			DoTEnabled:  enableDoT,
			NoOp:        true,
			Locked:      state.Locked,
			Verified:    true,
			Nameservers: ParseNameservers(current),
		}, nil
	}

	if err := ctx.Err(); err != nil {
		return SwitchResult{}, err
	}

	if err := m.unlockLive(state); err != nil {
		return SwitchResult{}, stepErr(StepUnlock, err)
	}

	rec, err := m.backups.Snapshot(current, BackupPreSwitch)
	if err != nil {
		return SwitchResult{}, stepErr(StepBackup, err)
	}

	// Point of no return: a backup exists, run to completion.
	if enableDoT {
		if err := atomicWrite(m.dotPath, RenderDoTDescriptor(p), 0o644); err != nil {
			return SwitchResult{}, stepErr(StepTransport, err)
		}
		if err := m.services.RestartResolver(ctx); err != nil {
			return SwitchResult{}, stepErr(StepTransport, err)
		}
	} else if state.DoTEnabled {
		// Leaving DoT mode: put the resolver service back on its
		// defaults. Non-fatal, the plain nameserver file works either way.
		if err := atomicWrite(m.dotPath, RenderDefaultDescriptor(), 0o644); err != nil {
			m.log.Warn().Err(err).Msg("could not reset transport descriptor")
		} else if err := m.services.RestartResolver(ctx); err != nil {
			m.log.Warn().Err(err).Msg("could not restart resolver after transport reset")
		}
	}

	if err := atomicWrite(m.livePath, target, 0o644); err != nil {
		return SwitchResult{}, stepErr(StepWrite, err)
	}

	result := SwitchResult{
		ProviderID:  p.ID,
		DoTEnabled:  enableDoT,
		Backup:      &rec,
		Nameservers: ParseNameservers(target),
	}

	lockErr := m.lockLive(&result)

	state = SystemState{
		ActiveProviderID: p.ID,
		DoTEnabled:       enableDoT,
		Locked:           result.Locked,
		LastSwitchAt:     time.Now(),
		LastBackup:       rec.Path,
	}
	if err := m.store.Save(state); err != nil {
		return result, stepErr(StepState, err)
	}
	if lockErr != nil {
		// The new configuration is live and recorded; only the
		// protection property is degraded until a retried switch.
		return result, stepErr(StepLock, lockErr)
	}

	m.services.FlushCaches(ctx)
	result.Verified = m.verifyLive(target)

	m.log.Info().
		Str("provider", p.ID).
		Bool("dot", enableDoT).
		Bool("locked", result.Locked).
		Bool("verified", result.Verified).
		Str("backup", rec.Path).
		Msg("switched DNS configuration")
	return result, nil
}

// Reset returns the host to its OS default (DHCP/network-manager
// controlled) configuration: the resolver-service descriptor goes back
// to defaults, the live file is removed so the network manager can
// regenerate it, and the persisted state returns to first-run defaults.
func (m *Manager) Reset(ctx context.Context) (SwitchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.store.Load()
	if err != nil {
		return SwitchResult{}, stepErr(StepRead, err)
	}
	state = m.resyncLockState(state)

	current, err := m.readLive()
	if err != nil {
		return SwitchResult{}, stepErr(StepRead, err)
	}
	if current == nil && state.IsDefault() {
		return SwitchResult{NoOp: true, Verified: true}, nil
	}

	if err := ctx.Err(); err != nil {
		return SwitchResult{}, err
	}

	if err := m.unlockLive(state); err != nil {
		return SwitchResult{}, stepErr(StepUnlock, err)
	}

	rec, err := m.backups.Snapshot(current, BackupPreReset)
	if err != nil {
		return SwitchResult{}, stepErr(StepBackup, err)
	}

	if err := atomicWrite(m.dotPath, RenderDefaultDescriptor(), 0o644); err != nil {
		return SwitchResult{}, stepErr(StepTransport, err)
	}
	if err := m.services.RestartResolver(ctx); err != nil {
		m.log.Warn().Err(err).Msg("could not restart resolver during reset")
	}

	if err := os.Remove(m.livePath); err != nil && !os.IsNotExist(err) {
		return SwitchResult{}, stepErr(StepWrite, classifyIOError(err))
	}
	if err := m.services.RestartNetworkManager(ctx); err != nil {
		m.log.Warn().Err(err).Msg("could not restart network manager during reset")
	}
	m.services.FlushCaches(ctx)

	if err := m.store.Save(SystemState{LastSwitchAt: time.Now(), LastBackup: rec.Path}); err != nil {
		return SwitchResult{Backup: &rec}, stepErr(StepState, err)
	}

	m.log.Info().Str("backup", rec.Path).Msg("reset DNS configuration to OS default")
	return SwitchResult{Backup: &rec, Verified: true}, nil
}

// Restore writes a digest-verified backup over the live file, using the
// same unlock, write, relock discipline as a switch. The restored
// content predates dnswitch's bookkeeping, so the persisted state keeps
// no active provider.
func (m *Manager) Restore(ctx context.Context, rec BackupRecord) (SwitchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	content, err := m.backups.Restore(rec)
	if err != nil {
		return SwitchResult{}, err
	}

	state, err := m.store.Load()
	if err != nil {
		return SwitchResult{}, stepErr(StepRead, err)
	}
	state = m.resyncLockState(state)

	if err := m.unlockLive(state); err != nil {
		return SwitchResult{}, stepErr(StepUnlock, err)
	}
	if err := atomicWrite(m.livePath, content, 0o644); err != nil {
		return SwitchResult{}, stepErr(StepWrite, err)
	}

	result := SwitchResult{Nameservers: ParseNameservers(content)}
	lockErr := m.lockLive(&result)

	if err := m.store.Save(SystemState{
		Locked:       result.Locked,
		LastSwitchAt: time.Now(),
		LastBackup:   rec.Path,
	}); err != nil {
		return result, stepErr(StepState, err)
	}
	if lockErr != nil {
		return result, stepErr(StepLock, lockErr)
	}

	m.services.FlushCaches(ctx)
	result.Verified = m.verifyLive(content)

	m.log.Info().Str("backup", rec.Path).Msg("restored DNS configuration from backup")
	return result, nil
}

// readLive returns the live file content, nil when the file is absent.
func (m *Manager) readLive() ([]byte, error) {
	content, err := os.ReadFile(m.livePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, classifyIOError(err)
	}
	return content, nil
}

// resyncLockState compares the recorded lock flag with the attribute
// actually present on the live file. A divergence is recovered locally:
// the state record is corrected to observed reality and a warning logged.
func (m *Manager) resyncLockState(state SystemState) SystemState {
	observed, err := m.locker.Locked(m.livePath)
	if err != nil {
		return state
	}
	if observed != state.Locked {
		m.log.Warn().
			Bool("recorded", state.Locked).
			Bool("observed", observed).
			Msg("lock state desync, resynchronizing to observed reality")
		state.Locked = observed
		if err := m.store.Save(state); err != nil {
			m.log.Warn().Err(err).Msg("could not persist resynchronized lock state")
		}
	}
	return state
}

// unlockLive releases the immutable attribute ahead of a rewrite. The
// attribute forbids writes while set, so this must come first. An
// unsupported filesystem is fine; a privilege failure is not.
func (m *Manager) unlockLive(state SystemState) error {
	if _, err := os.Stat(m.livePath); os.IsNotExist(err) {
		return nil
	}
	if err := m.locker.Release(m.livePath); err != nil {
		if errors.Is(err, ErrLockUnsupported) {
			m.log.Debug().Msg("immutable attribute unsupported, skipping unlock")
			return nil
		}
		return err
	}
	return nil
}

// lockLive reacquires the immutable attribute after the rename completed
// and records the outcome on the result. Returns a non-nil error only
// for failures worth surfacing; an unsupported filesystem just leaves
// the file unprotected.
func (m *Manager) lockLive(result *SwitchResult) error {
	err := m.locker.Acquire(m.livePath)
	if err == nil {
		result.Locked = true
		return nil
	}
	if errors.Is(err, ErrLockUnsupported) {
		m.log.Warn().Msg("immutable attribute unsupported, configuration left unprotected")
		return nil
	}
	return err
}

// verifyLive re-reads the live file and checks it matches the expected
// content. A mismatch means something overwrote the file between the
// rename and now, which is exactly what the lock exists to prevent.
func (m *Manager) verifyLive(expected []byte) bool {
	got, err := os.ReadFile(m.livePath)
	if err != nil || !bytes.Equal(got, expected) {
		m.log.Warn().Err(err).Msg("post-switch verification failed")
		return false
	}
	return true
}
