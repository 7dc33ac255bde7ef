//go:build linux || darwin || freebsd

package secure

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

func lockMemory() (ProtectionLevel, error) {
	err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE)
	if err != nil {
		// Unprivileged processes or kernels without mlockall
		// still get zeroisation.
		if errors.Is(err, unix.EPERM) || errors.Is(err, unix.ENOSYS) || errors.Is(err, unix.ENOMEM) {
			return ProtectionPartial, nil
		}
		return ProtectionNone, fmt.Errorf("secure: failed to lock memory: %w", err)
	}
	return ProtectionFull, nil
}

func unlockMemory() error {
	if err := unix.Munlockall(); err != nil {
		return fmt.Errorf("secure: failed to unlock memory: %w", err)
	}
	return nil
}
