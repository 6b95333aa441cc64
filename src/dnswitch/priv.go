// Copyright (c) 2026 rizalgns All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dnswitch

import (
	"fmt"
	"os"
)

// RequireRoot checks the elevated-privilege precondition shared by every
// operation that touches the live file or the lock primitive. Callers
// that mutate configuration should check it up front instead of finding
// out halfway through a switch.
func RequireRoot() error {
	if os.Geteuid() != 0 {
		return fmt.Errorf("%w: must run as root", ErrPermissionDenied)
	}
	return nil
}
