// Package testutil provides shared test infrastructure for integration tests.
package testutil

import (
	"net"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/vaxhacker/pgtemp/internal/constants"
	"github.com/vaxhacker/pgtemp/internal/pgserver"
)

// pgServer tracks the singleton temporary postgres instance shared by all
// integration tests in the same test binary invocation. Started once via
// sync.Once; torn down at process exit by the last user.
var (
	pgOnce    sync.Once
	pgErr     error
	pgSockDir string
	// pgLock is held shared for the lifetime of the test binary. This
	// prevents other test processes from killing the server while we're
	// still using it. See CleanupPostgres for the shutdown protocol.
	pgLock *flock.Flock
)

// LockFilePath is the cross-process startup/shutdown lock.
func LockFilePath() string {
	return "/tmp/pgtemp-test-server.lock"
}

// StateFilePath records the shared instance (pid, socket dir, temp dir)
// so any last-exiting process can clean up.
func StateFilePath() string {
	return "/tmp/pgtemp-test-server.json"
}

// RequirePostgres ensures a temporary postgres server is running and
// returns its socket directory. The instance is shared across all tests
// in the same test binary invocation, and across concurrent test
// binaries.
//
// Contention strategy:
//
//  1. In-process: sync.Once ensures only one goroutine attempts startup.
//
//  2. Cross-process: a file lock serializes startup across concurrent
//     test binaries. The first process to acquire the exclusive lock
//     starts the server and writes its state file. After startup, the
//     lock is downgraded to shared and held for the lifetime of the
//     test binary.
//
//  3. Safe shutdown: CleanupPostgres tries to upgrade from shared to
//     exclusive (non-blocking). If it succeeds, no other test processes
//     hold the shared lock, so it's safe to kill the server.
func RequirePostgres(t *testing.T) string {
	t.Helper()

	if _, err := exec.LookPath(constants.InitDBTool); err != nil {
		t.Skip("initdb not installed, skipping test")
	}

	pgOnce.Do(func() {
		pgErr = startServer()
	})

	if pgErr != nil {
		t.Fatalf("postgres server setup failed: %v", pgErr)
	}
	return pgSockDir
}

func startServer() error {
	fl := flock.New(LockFilePath())
	if err := fl.Lock(); err != nil {
		return err
	}

	// Under the exclusive lock: reuse a server another process started.
	if st, err := pgserver.LoadState(StateFilePath()); err == nil {
		if socketReady(st.SocketDir, 2*time.Second) {
			pgSockDir = st.SocketDir
			return downgrade(fl)
		}
		// Stale state: the server died or its socket is gone.
		reapState(st)
	}

	srv, err := pgserver.New(pgserver.Config{
		Retries:       30,
		RetryInterval: 500 * time.Millisecond,
	})
	if err != nil {
		_ = fl.Unlock()
		return err
	}
	if err := pgserver.SaveState(StateFilePath(), srv.State()); err != nil {
		srv.Cleanup()
		_ = fl.Unlock()
		return err
	}

	// Deliberately no srv.Cleanup here: teardown belongs to whichever
	// process turns out to be the last user, via the state file.
	pgSockDir = srv.SocketDir
	return downgrade(fl)
}

// downgrade swaps the exclusive startup lock for the long-held shared one.
func downgrade(fl *flock.Flock) error {
	if err := fl.Unlock(); err != nil {
		return err
	}
	if err := fl.RLock(); err != nil {
		return err
	}
	pgLock = fl
	return nil
}

// socketReady reports whether the postgres unix socket accepts connections.
func socketReady(sockDir string, timeout time.Duration) bool {
	if sockDir == "" {
		return false
	}
	conn, err := net.DialTimeout("unix", pgserver.SocketPath(sockDir), timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// reapState kills and removes whatever a state file still refers to.
func reapState(st *pgserver.State) {
	if st.ContainerID != "" {
		_ = exec.Command(constants.DockerTool, "kill", st.ContainerID).Run()
	} else if st.PID > 0 {
		if proc, err := os.FindProcess(st.PID); err == nil {
			_ = proc.Kill()
			_, _ = proc.Wait()
		}
	}
	if st.TempDir != "" {
		_ = os.RemoveAll(st.TempDir)
	}
	_ = os.Remove(StateFilePath())
}

// CleanupPostgres conditionally tears down the shared test server.
// Called from TestMain.
//
// Shutdown protocol: try to upgrade from the shared lock to the
// exclusive one (non-blocking). Success means no other test process
// holds the shared lock, so we're the last user and kill the server from
// the state file. Failure means another process is still using it — skip
// cleanup; the last process to exit handles it.
func CleanupPostgres() {
	defer func() {
		if pgLock != nil {
			_ = pgLock.Unlock()
			pgLock = nil
		}
	}()

	if pgLock == nil {
		return
	}

	locked, err := pgLock.TryLock()
	if err != nil || !locked {
		// Another process is using the server. Don't kill it.
		return
	}

	st, err := pgserver.LoadState(StateFilePath())
	if err != nil {
		// No state file — already cleaned up.
		return
	}
	reapState(st)
	_ = os.Remove(LockFilePath())
}
