// Copyright (c) 2026 rizalgns All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dnswitch

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotAndRestore(t *testing.T) {
	s := NewBackupStore(t.TempDir())
	content := []byte("nameserver 8.8.8.8\n")

	rec, err := s.Snapshot(content, BackupPreSwitch)
	require.NoError(t, err)

	assert.Equal(t, BackupPreSwitch, rec.Reason)
	assert.FileExists(t, rec.Path)

	sum := sha256.Sum256(content)
	assert.Equal(t, hex.EncodeToString(sum[:]), rec.Digest)

	restored, err := s.Restore(rec)
	require.NoError(t, err)
	assert.Equal(t, content, restored)
}

func TestRestoreCorruptBackup(t *testing.T) {
	s := NewBackupStore(t.TempDir())

	rec, err := s.Snapshot([]byte("nameserver 1.1.1.1\n"), BackupPreSwitch)
	require.NoError(t, err)

	// Tamper with the backed-up content.
	require.NoError(t, os.WriteFile(rec.Path, []byte("nameserver 6.6.6.6\n"), 0o600))

	_, err = s.Restore(rec)
	assert.ErrorIs(t, err, ErrCorruptBackup)
}

func TestListOrderedByCreation(t *testing.T) {
	s := NewBackupStore(t.TempDir())

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.Local)
	stamps := []time.Time{base.Add(2 * time.Hour), base, base.Add(time.Hour)}
	for i, stamp := range stamps {
		s.now = func() time.Time { return stamp }
		_, err := s.Snapshot([]byte{byte(i)}, BackupPreSwitch)
		require.NoError(t, err)
	}

	records, err := s.List()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.True(t, records[0].CreatedAt.Equal(base))
	assert.True(t, records[1].CreatedAt.Equal(base.Add(time.Hour)))
	assert.True(t, records[2].CreatedAt.Equal(base.Add(2*time.Hour)))
}

func TestRotateEvictsOldestFirst(t *testing.T) {
	s := NewBackupStore(t.TempDir(), WithBackupCap(2))

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.Local)
	for i := 0; i < 5; i++ {
		stamp := base.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return stamp }
		_, err := s.Snapshot([]byte{byte(i)}, BackupPreSwitch)
		require.NoError(t, err)
	}

	records, err := s.List()
	require.NoError(t, err)
	require.Len(t, records, 2, "rotation keeps exactly the cap")

	// The survivors are the two most recent.
	assert.True(t, records[0].CreatedAt.Equal(base.Add(3*time.Minute)))
	assert.True(t, records[1].CreatedAt.Equal(base.Add(4*time.Minute)))

	// Sidecars of evicted backups are gone too.
	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 4, "two backups and two digest sidecars")
}

func TestPruneByAge(t *testing.T) {
	s := NewBackupStore(t.TempDir())

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.Local)
	for i := 0; i < 3; i++ {
		stamp := base.Add(time.Duration(i) * 24 * time.Hour)
		s.now = func() time.Time { return stamp }
		_, err := s.Snapshot([]byte{byte(i)}, BackupPreReset)
		require.NoError(t, err)
	}

	// Half a day past the first snapshot's seventh day, only that one
	// is older than the cutoff.
	s.now = func() time.Time { return base.Add(7*24*time.Hour + 12*time.Hour) }
	pruned, err := s.Prune(7 * 24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	records, err := s.List()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestListEmptyDirectory(t *testing.T) {
	s := NewBackupStore(t.TempDir() + "/never-created")

	records, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}
