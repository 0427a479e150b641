package pgserver

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"
)

// writeScript drops an executable shell script into dir. Tests drive the
// whole pipeline against fake tools so no PostgreSQL install is needed.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

// fakeTools returns a Config whose four external tools are shell fakes.
// psql and createuser append their arguments to the returned log file;
// the fake postgres just stays alive until killed.
func fakeTools(t *testing.T) (Config, string) {
	t.Helper()
	bin := t.TempDir()
	log := filepath.Join(bin, "calls.log")

	cfg := Config{
		Retries:       3,
		RetryInterval: 5 * time.Millisecond,
		InitDB:        writeScript(t, bin, "initdb", "exit 0"),
		Postgres:      writeScript(t, bin, "postgres", "exec sleep 60"),
		Psql:          writeScript(t, bin, "psql", `printf '%s\n' "psql $*" >> `+log+`; exit 0`),
		CreateUser:    writeScript(t, bin, "createuser", `printf '%s\n' "createuser $*" >> `+log+`; exit 0`),
	}
	return cfg, log
}

func readLog(t *testing.T, log string) []string {
	t.Helper()
	data, err := os.ReadFile(log)
	if err != nil {
		t.Fatalf("reading call log: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

// confineTmp points TMPDIR at a fresh directory so controller-owned base
// directories can be enumerated.
func confineTmp(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("TMPDIR", root)
	return root
}

func ownedBaseDirs(t *testing.T, root string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(root, "pg_tmp_*"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	return matches
}

func pidAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

func TestNewProvisionsServer(t *testing.T) {
	root := confineTmp(t)
	cfg, log := fakeTools(t)
	cfg.Databases = []string{"alpha", "beta"}

	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer srv.Cleanup()

	if _, err := os.Stat(srv.DataDir); err != nil {
		t.Errorf("data dir: %v", err)
	}
	info, err := os.Stat(srv.SocketDir)
	if err != nil {
		t.Fatalf("socket dir: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o777 {
		t.Errorf("socket dir perm = %o, want 777", perm)
	}

	lines := readLog(t, log)
	var probes, creates []string
	var createUserLine string
	for _, l := range lines {
		switch {
		case strings.Contains(l, `\dt`):
			probes = append(probes, l)
		case strings.Contains(l, "create database"):
			creates = append(creates, l)
		case strings.HasPrefix(l, "createuser"):
			createUserLine = l
		}
	}
	if len(probes) == 0 {
		t.Error("no readiness probe issued")
	}
	if createUserLine == "" || !strings.Contains(createUserLine, "-s") {
		t.Errorf("superuser creation missing or not -s: %q", createUserLine)
	}
	if len(creates) != 2 ||
		!strings.Contains(creates[0], "create database alpha;") ||
		!strings.Contains(creates[1], "create database beta;") {
		t.Errorf("database creations out of order or missing: %v", creates)
	}

	pid := srv.State().PID
	if pid <= 0 || !pidAlive(pid) {
		t.Fatalf("server process not running (pid %d)", pid)
	}

	srv.Cleanup()
	if pidAlive(pid) {
		t.Errorf("server process %d survived cleanup", pid)
	}
	if dirs := ownedBaseDirs(t, root); len(dirs) != 0 {
		t.Errorf("cleanup left base dirs: %v", dirs)
	}
}

func TestProbeRespectsRetryBudget(t *testing.T) {
	confineTmp(t)
	cfg, _ := fakeTools(t)
	bin := filepath.Dir(cfg.Psql)
	probeLog := filepath.Join(bin, "probe.log")
	pidFile := filepath.Join(bin, "postgres.pid")
	cfg.Psql = writeScript(t, bin, "psql-fail", "echo probe >> "+probeLog+"; exit 1")
	cfg.Postgres = writeScript(t, bin, "postgres-pid", "echo $$ > "+pidFile+"\nexec sleep 60")
	cfg.Retries = 4
	cfg.RetryInterval = 20 * time.Millisecond

	start := time.Now()
	_, err := New(cfg)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected readiness timeout")
	}
	var se *SetupError
	if !errors.As(err, &se) {
		t.Fatalf("error is %T, want *SetupError", err)
	}
	if want := 4 * 20 * time.Millisecond; elapsed < want {
		t.Errorf("probing took %v, want at least %v", elapsed, want)
	}
	if probes := readLog(t, probeLog); len(probes) != 4 {
		t.Errorf("got %d probe attempts, want 4", len(probes))
	}

	// The failed construction must not leak the server process.
	data, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatalf("reading pid file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("parsing pid: %v", err)
	}
	if pidAlive(pid) {
		t.Errorf("server process %d leaked after failed setup", pid)
	}
}

func TestInitdbFailureCleansUp(t *testing.T) {
	root := confineTmp(t)
	cfg, log := fakeTools(t)
	cfg.InitDB = writeScript(t, filepath.Dir(cfg.InitDB), "initdb-fail", "exit 1")

	_, err := New(cfg)
	if err == nil {
		t.Fatal("expected initdb failure")
	}
	if !strings.Contains(err.Error(), "initialize") {
		t.Errorf("unexpected error: %v", err)
	}
	if dirs := ownedBaseDirs(t, root); len(dirs) != 0 {
		t.Errorf("failed setup left base dirs: %v", dirs)
	}
	if _, statErr := os.Stat(log); statErr == nil {
		t.Error("client commands ran despite initdb failure")
	}
}

func TestNoExecutionPath(t *testing.T) {
	confineTmp(t)
	cfg, _ := fakeTools(t)
	cfg.Postgres = filepath.Join(t.TempDir(), "missing-postgres")
	t.Setenv("PATH", t.TempDir()) // no docker either

	_, err := New(cfg)
	if err == nil {
		t.Fatal("expected setup failure with no execution path")
	}
	var se *SetupError
	if !errors.As(err, &se) {
		t.Fatalf("error is %T, want *SetupError", err)
	}
}

func TestCallerSuppliedDirSurvivesCleanup(t *testing.T) {
	cfg, _ := fakeTools(t)
	base := t.TempDir()
	cfg.Dir = base

	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv.Cleanup()

	if _, err := os.Stat(base); err != nil {
		t.Fatalf("caller-supplied base dir removed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "data")); err != nil {
		t.Errorf("data dir under caller-supplied base removed: %v", err)
	}
}

func TestCallerSuppliedSocketDir(t *testing.T) {
	cfg, _ := fakeTools(t)
	base := t.TempDir()
	sock := t.TempDir()
	cfg.Dir = base
	cfg.SocketDir = sock

	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer srv.Cleanup()

	if srv.SocketDir != sock {
		t.Errorf("SocketDir = %s, want %s", srv.SocketDir, sock)
	}
	if _, err := os.Stat(filepath.Join(base, "socket")); !os.IsNotExist(err) {
		t.Error("default socket dir created despite override")
	}
}

func TestBatchCreationContinuesAfterFailure(t *testing.T) {
	confineTmp(t)
	cfg, log := fakeTools(t)
	bin := filepath.Dir(cfg.Psql)
	cfg.Psql = writeScript(t, bin, "psql-bad", `case "$*" in
  *"create database bad;"*) exit 1 ;;
esac
printf '%s\n' "psql $*" >> `+log+`
exit 0`)
	cfg.Databases = []string{"bad", "good"}

	_, err := New(cfg)
	if err == nil {
		t.Fatal("expected batch creation failure")
	}
	if !strings.Contains(err.Error(), "create databases") {
		t.Errorf("unexpected error: %v", err)
	}

	// The failing name must not short-circuit the rest of the batch.
	found := false
	for _, l := range readLog(t, log) {
		if strings.Contains(l, "create database good;") {
			found = true
		}
	}
	if !found {
		t.Error("remaining database not attempted after earlier failure")
	}
}

func TestRoleCreationFailureTolerated(t *testing.T) {
	confineTmp(t)
	cfg, log := fakeTools(t)
	cfg.CreateUser = writeScript(t, filepath.Dir(cfg.CreateUser), "createuser-fail", "exit 1")
	cfg.Databases = []string{"alpha"}

	// The role may already exist; a failing createuser must not abort
	// provisioning or skip database creation.
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer srv.Cleanup()

	found := false
	for _, l := range readLog(t, log) {
		if strings.Contains(l, "create database alpha;") {
			found = true
		}
	}
	if !found {
		t.Error("database creation skipped after role creation failure")
	}
}

func TestCleanupIdempotent(t *testing.T) {
	confineTmp(t)
	cfg, _ := fakeTools(t)

	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv.Cleanup()
	srv.Cleanup() // must not panic or error
}

func TestTwoInstancesAreIndependent(t *testing.T) {
	confineTmp(t)
	cfgA, _ := fakeTools(t)
	cfgB, _ := fakeTools(t)

	a, err := New(cfgA)
	if err != nil {
		t.Fatalf("New a: %v", err)
	}
	defer a.Cleanup()
	b, err := New(cfgB)
	if err != nil {
		t.Fatalf("New b: %v", err)
	}
	defer b.Cleanup()

	if a.SocketDir == b.SocketDir {
		t.Errorf("instances share socket dir %s", a.SocketDir)
	}
}

func TestSharedReturnsSameInstance(t *testing.T) {
	confineTmp(t)
	cfg, _ := fakeTools(t)
	defer CleanupShared()

	first, err := Shared(cfg)
	if err != nil {
		t.Fatalf("Shared: %v", err)
	}
	// A second call ignores its configuration entirely.
	second, err := Shared(Config{})
	if err != nil {
		t.Fatalf("Shared (second): %v", err)
	}
	if first != second {
		t.Error("Shared constructed a second instance")
	}

	CleanupShared()
	CleanupShared() // safe to repeat
}

func TestStateRoundTrip(t *testing.T) {
	confineTmp(t)
	cfg, _ := fakeTools(t)
	cfg.Databases = []string{"alpha"}

	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer srv.Cleanup()

	path := filepath.Join(t.TempDir(), "state.json")
	if err := SaveState(path, srv.State()); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	st, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if st.ID != srv.ID || st.SocketDir != srv.SocketDir || st.PID != srv.State().PID {
		t.Errorf("state mismatch: %+v", st)
	}
}
