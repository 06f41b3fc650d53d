package packaging

// SystemdController abstracts systemd service management for testability.
type SystemdController interface {
	// IsAvailable returns true if systemd (systemctl) is available on the system.
	IsAvailable() bool

	// IsActive returns true if the named service is currently running.
	IsActive(service string) bool

	// Restart restarts the named service.
	Restart(service string) error
}

// RootChecker abstracts privilege checking for testability.
type RootChecker interface {
	// IsRoot returns true if the current process has root privileges.
	IsRoot() bool
}
