package pgserver

import "time"

// waitReady polls the server with a lightweight psql invocation, sleeping
// the retry interval before each attempt, up to the retry budget. Server
// startup time is unbounded and externally opaque; attempting a
// connection is the only readiness signal there is.
func (s *Server) waitReady() error {
	args := []string{s.cfg.Psql, "-d", "postgres", "-h", s.SocketDir, "-c", `\dt`}
	args = append(args, s.clientUserArgs()...)

	for i := 0; i < s.cfg.Retries; i++ {
		time.Sleep(s.cfg.RetryInterval)
		if s.runCmd(args, 2) {
			return nil
		}
	}
	return setupErrorf("couldn't start PG server (no connection after %d attempts)", s.cfg.Retries)
}
