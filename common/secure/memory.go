package secure

// ProtectionLevel indicates how well process memory could be
// protected from being swapped to disk.
type ProtectionLevel int

const (
	// ProtectionNone means no memory protection could be applied.
	ProtectionNone ProtectionLevel = iota

	// ProtectionPartial means secrets are zeroised, but pages may
	// still be swapped.
	ProtectionPartial

	// ProtectionFull means all current and future pages are locked.
	ProtectionFull
)

func (p ProtectionLevel) String() string {
	switch p {
	case ProtectionFull:
		return "full"
	case ProtectionPartial:
		return "partial"
	default:
		return "none"
	}
}

// LockMemory attempts to prevent the process's memory from being
// swapped to disk.
func LockMemory() (ProtectionLevel, error) {
	return lockMemory()
}

// UnlockMemory releases any memory locks applied by LockMemory.
func UnlockMemory() error {
	return unlockMemory()
}
