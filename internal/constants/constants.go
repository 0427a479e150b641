// Package constants defines shared constant values used throughout pgtemp.
// Centralizing these magic strings improves maintainability and consistency.
package constants

import "time"

// Default names of the external PostgreSQL tools. Each can be overridden
// per instance (pgserver.Config) or via the TOML config file.
const (
	InitDBTool     = "initdb"
	PostgresTool   = "postgres"
	PsqlTool       = "psql"
	CreateUserTool = "createuser"

	// DockerTool is the container runtime binary used for the fallback
	// execution mode when no local PostgreSQL installation is found.
	DockerTool = "docker"
)

// ServiceAccount is the OS account the server runs as when pgtemp is
// invoked by root. PostgreSQL refuses to run as the superuser, so a
// root caller needs this account to exist.
const ServiceAccount = "postgres"

// DefaultDockerImage is the image used when falling back to container
// mode without an explicit image override.
const DefaultDockerImage = "postgres:16"

// ContainerSocketDir is the well-known socket directory inside the
// official PostgreSQL images. The host socket directory is mounted here,
// and client commands executed inside the container address this path.
const ContainerSocketDir = "/var/run/postgresql"

// ContainerSuperuser is the database superuser created by the official
// PostgreSQL images. Client commands in container mode connect as it.
const ContainerSuperuser = "postgres"

// Readiness probe defaults.
const (
	// DefaultRetries is the number of connection attempts before the
	// server is declared dead.
	DefaultRetries = 5

	// DefaultRetryInterval is the pause before each connection attempt.
	DefaultRetryInterval = time.Second
)

// TempDirPattern is the os.MkdirTemp pattern for controller-owned base
// directories.
const TempDirPattern = "pg_tmp_"
