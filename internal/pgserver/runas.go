package pgserver

import (
	"os"
	"os/user"
	"strconv"
	"syscall"

	"github.com/vaxhacker/pgtemp/internal/config"
	"github.com/vaxhacker/pgtemp/internal/constants"
)

// account is a resolved OS account the server subprocess and storage
// initialization must run as. nil means no privilege switch is needed.
type account struct {
	Name string
	UID  int
	GID  int
}

// resolveRunAs determines the target account. An explicit name must
// resolve or setup fails. Without one, a root caller requires the
// postgres service account — running the server as root is refused
// categorically by PostgreSQL itself.
func resolveRunAs(name string) (*account, error) {
	if name != "" {
		u, err := user.Lookup(name)
		if err != nil {
			return nil, setupErrorf("can't locate user %s", name)
		}
		return newAccount(u)
	}

	if os.Geteuid() == 0 {
		u, err := user.Lookup(constants.ServiceAccount)
		if err != nil {
			return nil, setupErrorf("can't create DB server as root, and there's no %s user", constants.ServiceAccount)
		}
		return newAccount(u)
	}

	return nil, nil
}

func newAccount(u *user.User) (*account, error) {
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return nil, setupErrorf("non-numeric uid %q for user %s", u.Uid, u.Username)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return nil, setupErrorf("non-numeric gid %q for user %s", u.Gid, u.Username)
	}
	return &account{Name: u.Username, UID: uid, GID: gid}, nil
}

// withRunAs runs fn with the effective group then user identity switched
// to the target account, restoring the originals on every exit path. It
// is used only while creating the workspace directories, so they end up
// owned by the account the server runs as.
func (s *Server) withRunAs(fn func() error) error {
	if s.runAs == nil {
		return fn()
	}

	euid := syscall.Geteuid()
	egid := syscall.Getegid()

	if err := syscall.Setegid(s.runAs.GID); err != nil {
		return wrapSetupError(err, "switching to group %d", s.runAs.GID)
	}
	if err := syscall.Seteuid(s.runAs.UID); err != nil {
		_ = syscall.Setegid(egid)
		return wrapSetupError(err, "switching to user %d", s.runAs.UID)
	}
	defer func() {
		_ = syscall.Seteuid(euid)
		_ = syscall.Setegid(egid)
	}()

	return fn()
}

// wrapCmd rewrites an argument vector for the active execution mode.
// Container mode prefixes the docker run/exec invocation. With a
// privilege switch configured, the command becomes a `su` subshell:
// postgres checks that euid == uid and refuses euid 0, and setting both
// uid and euid away from root is irreversible for this process, so the
// command must start life in a child already owning the target identity.
func (s *Server) wrapCmd(args []string) []string {
	if len(s.cmdPrefix) > 0 {
		return append(append([]string{}, s.cmdPrefix...), args...)
	}
	if s.runAs == nil {
		return args
	}
	return []string{"su", "-", s.runAs.Name, "-c", config.ShellJoin(args)}
}
