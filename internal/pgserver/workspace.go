package pgserver

import (
	"os"
	"path/filepath"

	"github.com/vaxhacker/pgtemp/internal/constants"
)

// setupDirectories produces the data and socket directories. Without a
// caller-supplied base directory a fresh temporary one is allocated and
// owned by the controller; caller-supplied paths are left untouched by
// Cleanup.
func (s *Server) setupDirectories() error {
	dir := s.cfg.Dir
	if dir == "" {
		base, err := os.MkdirTemp("", constants.TempDirPattern)
		if err != nil {
			return wrapSetupError(err, "creating temp base directory")
		}
		s.baseDir = base
		dir = base
	}

	s.DataDir = filepath.Join(dir, "data")
	if err := os.Mkdir(s.DataDir, 0o700); err != nil {
		return wrapSetupError(err, "creating data directory")
	}

	if s.cfg.SocketDir != "" {
		s.SocketDir = s.cfg.SocketDir
		s.sockProvided = true
		return nil
	}

	s.SocketDir = filepath.Join(dir, "socket")
	if err := os.Mkdir(s.SocketDir, 0o755); err != nil {
		return wrapSetupError(err, "creating socket directory")
	}
	// World-writable so a server process running under a different,
	// possibly container-internal, account can create the socket.
	// Mkdir permissions are filtered through the umask; Chmod is not.
	if err := os.Chmod(s.SocketDir, 0o777); err != nil {
		return wrapSetupError(err, "opening up socket directory permissions")
	}
	return nil
}

// SocketPath returns the PostgreSQL unix socket file for a socket
// directory, assuming the default port.
func SocketPath(sockDir string) string {
	return filepath.Join(sockDir, ".s.PGSQL.5432")
}
