package pgserver

import "fmt"

// createSuperuser creates a superuser role named for the invoking
// account. A non-zero exit is tolerated and ignored: the role may already
// exist, which is the expected steady state. No further check is made, so
// a genuine permission or connectivity problem is indistinguishable here
// and also ignored; database creation will surface it.
func (s *Server) createSuperuser() {
	args := []string{s.cfg.CreateUser, "-h", s.SocketDir, s.currentUser, "-s"}
	args = append(args, s.clientUserArgs()...)
	_ = s.runCmd(args, 2)
}

// createDatabases issues a CREATE DATABASE for each requested name in
// caller order. A failure marks the batch as failed but the remaining
// names are still attempted before the batch error is raised.
//
// Names are interpolated into the SQL unescaped; callers are trusted not
// to pass adversarial names.
func (s *Server) createDatabases() error {
	ok := true
	for _, db := range s.cfg.Databases {
		args := []string{
			s.cfg.Psql, "-d", "postgres", "-h", s.SocketDir,
			"-c", fmt.Sprintf("create database %s;", db),
		}
		args = append(args, s.clientUserArgs()...)
		if !s.runCmd(args, 2) {
			ok = false
		}
	}
	if !ok {
		return setupErrorf("couldn't create databases")
	}
	return nil
}
