// Copyright (c) 2026 rizalgns All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dnswitch

// Locker controls an exclusive "protect" state on the live resolver file
// so the OS or other processes cannot silently overwrite it. The Linux
// implementation toggles the immutable file attribute (the same bit
// `chattr +i` sets); other platforms may substitute a different
// exclusivity primitive without changing Manager's logic.
type Locker interface {
	// Acquire sets the protection on path. Acquiring an already
	// protected file is not an error.
	Acquire(path string) error

	// Release clears the protection on path. Releasing an unprotected
	// file is not an error.
	Release(path string) error

	// Locked reports whether path currently carries the protection.
	Locked(path string) (bool, error)
}
