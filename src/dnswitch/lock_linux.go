// Copyright (c) 2026 rizalgns All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

//go:build linux

package dnswitch

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// fsImmutableFl is FS_IMMUTABLE_FL from linux/fs.h. x/sys/unix exports
// the FS_IOC_GETFLAGS/FS_IOC_SETFLAGS ioctl numbers but not the flag
// bits themselves.
const fsImmutableFl = 0x10

// FileAttrLocker implements [Locker] with the Linux immutable file
// attribute (FS_IMMUTABLE_FL), set and cleared through the
// FS_IOC_GETFLAGS/FS_IOC_SETFLAGS ioctls. Requires CAP_LINUX_IMMUTABLE,
// which in practice means root.
type FileAttrLocker struct{}

// NewFileAttrLocker returns a [Locker] backed by the immutable attribute.
func NewFileAttrLocker() *FileAttrLocker {
	return &FileAttrLocker{}
}

// Acquire sets the immutable attribute on path. Idempotent.
func (l *FileAttrLocker) Acquire(path string) error {
	return l.setImmutable(path, true)
}

// Release clears the immutable attribute on path. Idempotent.
func (l *FileAttrLocker) Release(path string) error {
	return l.setImmutable(path, false)
}

// Locked reports whether path carries the immutable attribute.
func (l *FileAttrLocker) Locked(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, classifyLockError(err)
	}
	defer f.Close()

	flags, err := unix.IoctlGetInt(int(f.Fd()), unix.FS_IOC_GETFLAGS)
	if err != nil {
		return false, classifyLockError(err)
	}
	return flags&fsImmutableFl != 0, nil
}

func (l *FileAttrLocker) setImmutable(path string, on bool) error {
	f, err := os.Open(path)
	if err != nil {
		return classifyLockError(err)
	}
	defer f.Close()

	fd := int(f.Fd())
	flags, err := unix.IoctlGetInt(fd, unix.FS_IOC_GETFLAGS)
	if err != nil {
		return classifyLockError(err)
	}

	want := flags | fsImmutableFl
	if !on {
		want = flags &^ fsImmutableFl
	}
	if want == flags {
		return nil
	}

	if err := unix.IoctlSetPointerInt(fd, unix.FS_IOC_SETFLAGS, want); err != nil {
		return classifyLockError(err)
	}
	return nil
}

// classifyLockError maps raw syscall errors onto the package sentinels.
// ENOTTY/EOPNOTSUPP/EINVAL mean the filesystem has no attribute support
// (tmpfs, NFS, ...); EPERM/EACCES mean insufficient privilege.
func classifyLockError(err error) error {
	switch {
	case errors.Is(err, unix.EPERM), errors.Is(err, unix.EACCES), os.IsPermission(err):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case errors.Is(err, unix.ENOTTY), errors.Is(err, unix.EOPNOTSUPP), errors.Is(err, unix.EINVAL):
		return fmt.Errorf("%w: %v", ErrLockUnsupported, err)
	default:
		return err
	}
}
