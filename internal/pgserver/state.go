package pgserver

import (
	"encoding/json"
	"os"
	"time"

	"github.com/vaxhacker/pgtemp/internal/util"
)

// State is the serializable description of a provisioned instance, used
// by the pgtemp CLI state file and by test infrastructure that shares an
// instance across processes.
type State struct {
	ID          string    `json:"id"`
	PID         int       `json:"pid,omitempty"`
	ContainerID string    `json:"container_id,omitempty"`
	DataDir     string    `json:"data_dir"`
	SocketDir   string    `json:"socket_dir"`
	TempDir     string    `json:"temp_dir,omitempty"`
	Databases   []string  `json:"databases,omitempty"`
	StartedAt   time.Time `json:"started_at"`
}

// State snapshots the instance.
func (s *Server) State() State {
	st := State{
		ID:          s.ID,
		ContainerID: s.containerID,
		DataDir:     s.DataDir,
		SocketDir:   s.SocketDir,
		TempDir:     s.baseDir,
		Databases:   s.cfg.Databases,
		StartedAt:   s.startedAt,
	}
	if s.proc != nil && s.proc.Process != nil {
		st.PID = s.proc.Process.Pid
	}
	return st
}

// SaveState writes instance state to disk using an atomic write.
func SaveState(path string, st State) error {
	return util.AtomicWriteJSON(path, st)
}

// LoadState loads instance state from disk.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
