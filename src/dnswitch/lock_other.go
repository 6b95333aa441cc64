// Copyright (c) 2026 rizalgns All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

//go:build !linux

package dnswitch

// FileAttrLocker is the non-Linux stub: the immutable attribute is a
// Linux facility, so every operation reports [ErrLockUnsupported] and
// Manager degrades to running without configuration protection.
type FileAttrLocker struct{}

// NewFileAttrLocker returns the stub [Locker] for non-Linux platforms.
func NewFileAttrLocker() *FileAttrLocker {
	return &FileAttrLocker{}
}

// Acquire reports that protection is unavailable on this platform.
func (l *FileAttrLocker) Acquire(path string) error {
	return ErrLockUnsupported
}

// Release reports that protection is unavailable on this platform.
func (l *FileAttrLocker) Release(path string) error {
	return ErrLockUnsupported
}

// Locked always reports unprotected on this platform.
func (l *FileAttrLocker) Locked(path string) (bool, error) {
	return false, nil
}
