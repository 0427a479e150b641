package pgserver

import "sync"

// sharedMu guards the process-wide instance slot.
var (
	sharedMu sync.Mutex
	shared   *Server
)

// Shared lazily constructs the process-wide instance. Subsequent calls
// return the same instance regardless of their configuration, so this
// accessor is not a way to obtain independent instances — use New for
// that. The caller is expected to arrange for CleanupShared to run at
// process exit (a TestMain, or a signal handler in a command).
func Shared(cfg Config) (*Server, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if shared != nil {
		return shared, nil
	}
	s, err := New(cfg)
	if err != nil {
		return nil, err
	}
	shared = s
	return s, nil
}

// CleanupShared tears down the shared instance if one exists. Safe to
// call repeatedly, and when Shared was never called.
func CleanupShared() {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if shared == nil {
		return
	}
	shared.Cleanup()
	shared = nil
}
