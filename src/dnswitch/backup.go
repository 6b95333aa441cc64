// Copyright (c) 2026 rizalgns All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dnswitch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Default backup retention.
const defaultBackupCap = 10

// backupTimeLayout names backup files by creation time with nanosecond
// precision so two snapshots in the same second cannot collide.
const backupTimeLayout = "20060102-150405.000000000"

// digestSuffix is the sidecar file extension holding the SHA-256 digest
// recorded at snapshot time.
const digestSuffix = ".sha256"

// BackupReason records why a snapshot was taken.
type BackupReason string

// Snapshot reasons.
const (
	BackupPreSwitch BackupReason = "pre-switch"
	BackupPreReset  BackupReason = "pre-reset"
)

// BackupRecord describes one persisted snapshot of prior resolver
// configuration.
type BackupRecord struct {
	// CreatedAt is the snapshot creation time.
	CreatedAt time.Time

	// Path is the file holding the backed-up content verbatim.
	Path string

	// Digest is the hex SHA-256 of the content, recorded at snapshot
	// time and verified on restore.
	Digest string

	// Reason is why the snapshot was taken.
	Reason BackupReason
}

// BackupStore persists timestamped snapshots of the live resolver file
// in a single directory, with bounded-size rotation. Snapshots are
// correctness-critical (a failed snapshot aborts the switch that asked
// for it); rotation is disk hygiene and its failures are only logged.
type BackupStore struct {
	dir string
	cap int
	log zerolog.Logger
	now func() time.Time
}

// BackupOption is a functional option for configuring a [BackupStore].
type BackupOption func(*BackupStore)

// WithBackupCap sets the retention cap. The default is 10.
func WithBackupCap(n int) BackupOption {
	return func(s *BackupStore) {
		if n > 0 {
			s.cap = n
		}
	}
}

// WithBackupLogger sets the structured logger for rotation and prune events.
func WithBackupLogger(log zerolog.Logger) BackupOption {
	return func(s *BackupStore) {
		s.log = log
	}
}

// NewBackupStore creates a [BackupStore] rooted at dir. The directory is
// created on first snapshot.
func NewBackupStore(dir string, opts ...BackupOption) *BackupStore {
	s := &BackupStore{
		dir: dir,
		cap: defaultBackupCap,
		log: zerolog.Nop(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the backup directory.
func (s *BackupStore) Dir() string { return s.dir }

// Snapshot writes content to a new timestamped backup file together with
// its digest sidecar and returns the record. It never fails silently: on
// any write failure the caller must abort the switch that triggered it.
// Rotation runs only after the snapshot has fully succeeded, so an
// eviction can never race a snapshot in flight.
func (s *BackupStore) Snapshot(content []byte, reason BackupReason) (BackupRecord, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return BackupRecord{}, classifyIOError(err)
	}

	createdAt := s.now()
	name := fmt.Sprintf("%s_%s.conf", createdAt.Format(backupTimeLayout), reason)
	path := filepath.Join(s.dir, name)

	sum := sha256.Sum256(content)
	digest := hex.EncodeToString(sum[:])

	if err := atomicWrite(path, content, 0o600); err != nil {
		return BackupRecord{}, err
	}
	if err := atomicWrite(path+digestSuffix, []byte(digest+"\n"), 0o600); err != nil {
		os.Remove(path)
		return BackupRecord{}, err
	}

	rec := BackupRecord{
		CreatedAt: createdAt,
		Path:      path,
		Digest:    digest,
		Reason:    reason,
	}

	if err := s.Rotate(s.cap); err != nil {
		s.log.Warn().Err(err).Msg("backup rotation failed")
	}
	return rec, nil
}

// Restore reads back the content of a backup and verifies its digest
// against the record. A mismatch returns [ErrCorruptBackup] and does not
// affect any other backup.
func (s *BackupStore) Restore(rec BackupRecord) ([]byte, error) {
	content, err := os.ReadFile(rec.Path)
	if err != nil {
		return nil, classifyIOError(err)
	}

	sum := sha256.Sum256(content)
	if got := hex.EncodeToString(sum[:]); got != rec.Digest {
		return nil, fmt.Errorf("%w: %s: recorded %s, computed %s",
			ErrCorruptBackup, rec.Path, rec.Digest, got)
	}
	return content, nil
}

// List returns all backup records ordered by creation time, oldest first.
func (s *BackupStore) List() ([]BackupRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, classifyIOError(err)
	}

	var records []BackupRecord
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), digestSuffix) {
			continue
		}
		rec, ok := s.parseName(entry.Name())
		if !ok {
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// Rotate deletes the oldest records beyond cap. Deletion failures are
// logged, not fatal.
func (s *BackupStore) Rotate(cap int) error {
	if cap <= 0 {
		cap = defaultBackupCap
	}
	records, err := s.List()
	if err != nil {
		return err
	}
	if len(records) <= cap {
		return nil
	}

	for _, rec := range records[:len(records)-cap] {
		s.remove(rec)
	}
	return nil
}

// Prune deletes backups older than maxAge and returns how many were
// removed. Used for startup hygiene; failures are logged, not fatal.
func (s *BackupStore) Prune(maxAge time.Duration) (int, error) {
	records, err := s.List()
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-maxAge)
	pruned := 0
	for _, rec := range records {
		if rec.CreatedAt.After(cutoff) {
			break
		}
		s.remove(rec)
		pruned++
	}
	return pruned, nil
}

// remove deletes one backup and its digest sidecar.
func (s *BackupStore) remove(rec BackupRecord) {
	if err := os.Remove(rec.Path); err != nil {
		s.log.Warn().Err(err).Str("path", rec.Path).Msg("could not delete old backup")
		return
	}
	if err := os.Remove(rec.Path + digestSuffix); err != nil && !os.IsNotExist(err) {
		s.log.Warn().Err(err).Str("path", rec.Path).Msg("could not delete backup digest")
	}
	s.log.Debug().Str("path", rec.Path).Msg("evicted old backup")
}

// parseName reconstructs a record from a backup file name of the form
// <timestamp>_<reason>.conf plus its digest sidecar.
func (s *BackupStore) parseName(name string) (BackupRecord, bool) {
	base := strings.TrimSuffix(name, ".conf")
	if base == name {
		return BackupRecord{}, false
	}

	stamp, reason, ok := strings.Cut(base, "_")
	if !ok {
		return BackupRecord{}, false
	}
	createdAt, err := time.ParseInLocation(backupTimeLayout, stamp, time.Local)
	if err != nil {
		return BackupRecord{}, false
	}

	path := filepath.Join(s.dir, name)
	digest := ""
	if raw, err := os.ReadFile(path + digestSuffix); err == nil {
		digest = strings.TrimSpace(string(raw))
	}

	return BackupRecord{
		CreatedAt: createdAt,
		Path:      path,
		Digest:    digest,
		Reason:    BackupReason(reason),
	}, true
}
