// Copyright (c) 2026 rizalgns All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dnswitch

import (
	"fmt"
	"os"
	"path/filepath"
)

// atomicWrite writes data to path so that readers observe either the old
// content or the new content, never a partial file. The data is written
// to a temporary file in the same directory, flushed to disk, and then
// renamed over the target in a single step. On any failure the target is
// left untouched and the temporary file is removed.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-")
	if err != nil {
		return classifyIOError(err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return classifyIOError(err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return classifyIOError(err)
	}
	if err := tmp.Chmod(perm); err != nil {
		cleanup()
		return classifyIOError(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return classifyIOError(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return classifyIOError(err)
	}

	// Make the rename itself durable. Failure here does not affect
	// correctness of the visible content, so it is not fatal.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// classifyIOError maps privilege failures onto the package sentinel so
// callers can distinguish "run as root" from genuine I/O trouble.
func classifyIOError(err error) error {
	if os.IsPermission(err) {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}
