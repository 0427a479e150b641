package pgserver

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/vaxhacker/pgtemp/internal/constants"
)

// launch decides the execution mode and starts the server. An explicit
// image override forces container mode. Otherwise a local installation
// is preferred; without one, a container runtime is the fallback; with
// neither there is no viable execution path and setup fails.
func (s *Server) launch() error {
	if s.cfg.DockerImage != "" {
		return s.launchContainer(s.cfg.DockerImage)
	}

	if _, err := exec.LookPath(s.cfg.Postgres); err == nil {
		return s.launchDirect()
	}

	if _, err := exec.LookPath(constants.DockerTool); err == nil {
		fmt.Fprintf(os.Stderr, "pgtemp: no local %s installation found, falling back to docker image %s\n",
			s.cfg.Postgres, constants.DefaultDockerImage)
		return s.launchContainer(constants.DefaultDockerImage)
	}

	return setupErrorf("no %s installation found and no %s runtime available",
		s.cfg.Postgres, constants.DockerTool)
}

// launchDirect initializes the data directory and starts the server as a
// local background process bound to the socket directory. The process is
// deliberately not awaited; listening does not imply ready-to-serve, and
// the readiness prober owns that question.
func (s *Server) launchDirect() error {
	if ok := s.runCmd([]string{s.cfg.InitDB, s.DataDir}, 2); !ok {
		return setupErrorf("couldn't initialize temp PG data dir")
	}

	args := []string{s.cfg.Postgres, "-F", "-T", "-D", s.DataDir, "-k", s.SocketDir, "-h", ""}
	args = append(args, s.optionFlags()...)

	proc, err := s.startCmd(args, 2)
	if err != nil {
		return wrapSetupError(err, "starting %s", s.cfg.Postgres)
	}
	s.proc = proc
	return nil
}

// launchContainer starts a detached container running the server, with
// the host socket directory mounted on the image's well-known internal
// socket path. Storage initialization is skipped; the image performs it
// on first start. The container ID comes back through a cidfile, after
// which client commands run through `docker exec`.
func (s *Server) launchContainer(image string) error {
	cidfile, err := tempFileName()
	if err != nil {
		return wrapSetupError(err, "allocating cidfile")
	}

	s.cmdPrefix = []string{
		constants.DockerTool, "run", "--rm",
		"-e", "POSTGRES_HOST_AUTH_METHOD=trust",
	}

	args := []string{
		"-d", "--cidfile", cidfile,
		"-v", s.SocketDir + ":" + constants.ContainerSocketDir,
		image,
		s.cfg.Postgres, "-F", "-T", "-h", "",
	}
	args = append(args, s.optionFlags()...)

	if ok := s.runCmd(args, 2); !ok {
		s.cmdPrefix = nil
		return setupErrorf("couldn't start docker container from image %s", image)
	}

	cid, err := os.ReadFile(cidfile)
	if err != nil {
		s.cmdPrefix = nil
		return wrapSetupError(err, "reading container id")
	}
	os.Remove(cidfile)

	s.containerID = strings.TrimSpace(string(cid))
	if s.containerID == "" {
		s.cmdPrefix = nil
		return setupErrorf("container runtime reported no container id")
	}
	s.cmdPrefix = []string{constants.DockerTool, "exec", s.containerID}
	return nil
}

// tempFileName reserves a unique path for the container runtime to write
// into. Docker refuses an existing cidfile, so the file is removed and
// only its name kept.
func tempFileName() (string, error) {
	f, err := os.CreateTemp("", "pgtemp_cid_")
	if err != nil {
		return "", err
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return name, nil
}
