package pgserver

import (
	"os"
	"os/exec"

	"github.com/vaxhacker/pgtemp/internal/constants"
)

// Cleanup releases everything the controller acquired: the container or
// server process, then the owned temporary base directory. It is
// idempotent, safe to call concurrently with process exit, never returns
// an error, and leaves caller-supplied directories untouched. It runs
// automatically when New fails partway through, so every field it reads
// has a defined zero value.
func (s *Server) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cleaned {
		return
	}
	s.cleaned = true

	if s.containerID != "" {
		kill := exec.Command(constants.DockerTool, "kill", s.containerID)
		// Output suppressed; the container may already be gone.
		_ = kill.Run()
	} else if s.proc != nil && s.proc.Process != nil {
		_ = s.proc.Process.Kill()
		_ = s.proc.Wait()
	}

	if s.baseDir != "" {
		// The directory may already be gone, or contain files owned by
		// the run-as account; removal errors are not surfaced.
		_ = os.RemoveAll(s.baseDir)
	}
}
