// Package pgserver provisions a disposable PostgreSQL server for the
// lifetime of a test run or short-lived process.
//
// New runs a strictly ordered pipeline: resolve the account the server
// must run as, allocate an isolated data and socket directory, launch the
// server (locally, or inside a container when no local installation
// exists), poll until it accepts connections, then create a superuser
// role and the requested databases. Any failure along the way tears down
// everything allocated so far before the error is returned; a caller
// never observes a half-built instance.
//
// The instance is addressed through its socket directory rather than a
// TCP port, so independently constructed instances can run side by side
// without interfering.
//
//	srv, err := pgserver.New(pgserver.Config{Databases: []string{"app"}})
//	if err != nil {
//	    return err
//	}
//	defer srv.Cleanup()
//	// connect with host=<srv.SocketDir>
package pgserver

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/user"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vaxhacker/pgtemp/internal/constants"
)

// Config controls a single temporary server instance. The zero value is
// usable: it provisions a silent server with no databases using the tools
// found on PATH.
type Config struct {
	// Databases are created, in order, once the server is ready.
	// Empty means server only.
	Databases []string

	// Verbosity gates progress output. 0 suppresses everything,
	// 1 shows progress messages, 2 additionally echoes each external
	// command and streams its output.
	Verbosity int

	// Retries is the readiness probe budget. Defaults to
	// constants.DefaultRetries.
	Retries int

	// RetryInterval is the pause before each readiness probe attempt.
	// Defaults to constants.DefaultRetryInterval.
	RetryInterval time.Duration

	// DockerImage forces container mode with the given image, even when
	// a local installation exists.
	DockerImage string

	// RunAs names the OS account the server process must run as. Empty
	// means: run as the caller, unless the caller is root, in which case
	// the postgres service account is required.
	RunAs string

	// Tool path overrides. Empty strings mean the defaults from the
	// constants package, resolved via PATH.
	InitDB     string
	Postgres   string
	Psql       string
	CreateUser string

	// Dir reuses a caller-owned base directory instead of allocating a
	// temporary one. Caller-supplied directories are never removed by
	// Cleanup.
	Dir string

	// SocketDir uses a caller-owned socket directory instead of the
	// <base>/socket default.
	SocketDir string

	// Options are server configuration parameters passed to postgres as
	// repeated -c key=value flags.
	Options map[string]string
}

func (c *Config) applyDefaults() {
	if c.Retries == 0 {
		c.Retries = constants.DefaultRetries
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = constants.DefaultRetryInterval
	}
	if c.InitDB == "" {
		c.InitDB = constants.InitDBTool
	}
	if c.Postgres == "" {
		c.Postgres = constants.PostgresTool
	}
	if c.Psql == "" {
		c.Psql = constants.PsqlTool
	}
	if c.CreateUser == "" {
		c.CreateUser = constants.CreateUserTool
	}
}

// Server is a provisioned temporary PostgreSQL instance. Fields are set
// during New and must be treated as read-only afterwards.
type Server struct {
	// ID uniquely identifies this instance in state files and messages.
	ID string

	// DataDir is the server storage directory.
	DataDir string

	// SocketDir is the connection endpoint directory. Connect with
	// `psql -h <SocketDir>` or a DSN of host=<SocketDir>.
	SocketDir string

	cfg         Config
	currentUser string
	runAs       *account

	baseDir      string // controller-owned temp dir, "" when caller-supplied
	sockProvided bool

	proc        *exec.Cmd
	containerID string
	cmdPrefix   []string // docker run/exec prefix; nil in direct mode

	hostSocketDir string // host-visible socket path while provisioning through the container
	startedAt     time.Time

	mu      sync.Mutex
	cleaned bool
}

// New provisions a temporary server. On failure every resource acquired
// so far (process, container, owned directories) has already been
// released, and the returned error is a *SetupError.
func New(cfg Config) (*Server, error) {
	cfg.applyDefaults()

	s := &Server{
		ID:        uuid.NewString(),
		cfg:       cfg,
		startedAt: time.Now(),
	}

	cur, err := user.Current()
	if err != nil {
		return nil, wrapSetupError(err, "resolving current user")
	}
	s.currentUser = cur.Username

	s.runAs, err = resolveRunAs(cfg.RunAs)
	if err != nil {
		return nil, err
	}

	if err := s.setup(); err != nil {
		s.Cleanup()
		return nil, err
	}
	return s, nil
}

// setup runs the ordered provisioning stages. The caller owns rollback.
func (s *Server) setup() error {
	s.printf(1, "Creating temp PG server...")

	if err := s.withRunAs(s.setupDirectories); err != nil {
		return err
	}
	if err := s.launch(); err != nil {
		return err
	}

	// In container mode the server sees the mounted socket directory at a
	// fixed internal path; client commands run through `docker exec` and
	// must address that path until provisioning finishes.
	if s.containerID != "" {
		s.hostSocketDir = s.SocketDir
		s.SocketDir = constants.ContainerSocketDir
	}

	if err := s.waitReady(); err != nil {
		return err
	}
	s.createSuperuser()
	if err := s.createDatabases(); err != nil {
		return err
	}

	if s.containerID != "" {
		s.SocketDir = s.hostSocketDir
	}

	s.printf(1, "done")
	s.printf(1, "(Connect on: `psql -h %s`)", s.SocketDir)
	return nil
}

// ConnHint returns the human-facing connection hint for this instance.
func (s *Server) ConnHint() string {
	return fmt.Sprintf("psql -h %s", s.SocketDir)
}

// optionFlags renders cfg.Options as repeated -c key=value flags, sorted
// for deterministic command lines.
func (s *Server) optionFlags() []string {
	if len(s.cfg.Options) == 0 {
		return nil
	}
	keys := make([]string, 0, len(s.cfg.Options))
	for k := range s.cfg.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	flags := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		flags = append(flags, "-c", fmt.Sprintf("%s=%s", k, s.cfg.Options[k]))
	}
	return flags
}

// clientUserArgs returns the extra flags client commands need in
// container mode, where connections are made as the image superuser.
func (s *Server) clientUserArgs() []string {
	if s.cmdPrefix == nil {
		return nil
	}
	return []string{"-U", constants.ContainerSuperuser}
}

// runCmd runs an external command to completion, applying the container
// or run-as wrapping, and reports whether it exited zero. Command output
// is surfaced only at the given verbosity level.
func (s *Server) runCmd(args []string, level int) bool {
	cmd := s.command(args, level)
	return cmd.Run() == nil
}

// startCmd starts an external command in the background and returns its
// handle without waiting.
func (s *Server) startCmd(args []string, level int) (*exec.Cmd, error) {
	cmd := s.command(args, level)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func (s *Server) command(args []string, level int) *exec.Cmd {
	argv := s.wrapCmd(args)
	s.printf(2, "Running %s", strings.Join(argv, " "))
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = s.output(level, os.Stdout)
	cmd.Stderr = s.output(level, os.Stderr)
	return cmd
}

// output selects the stream for subordinate command output at the given
// verbosity level. Returning nil discards it.
func (s *Server) output(level int, w io.Writer) io.Writer {
	if level > s.cfg.Verbosity {
		return nil
	}
	return w
}

func (s *Server) printf(level int, format string, args ...interface{}) {
	if level > s.cfg.Verbosity {
		return
	}
	fmt.Printf(format+"\n", args...)
}
