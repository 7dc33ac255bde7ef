//go:build !linux && !darwin && !freebsd

package secure

func lockMemory() (ProtectionLevel, error) {
	return ProtectionPartial, nil
}

func unlockMemory() error {
	return nil
}
