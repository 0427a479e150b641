// Package deps discovers the external binaries pgtemp orchestrates.
package deps

import (
	"context"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/vaxhacker/pgtemp/internal/constants"
)

// ToolStatus represents the state of an external tool installation.
type ToolStatus int

const (
	ToolOK         ToolStatus = iota // tool found
	ToolNotFound                     // tool not in PATH
	ToolExecFailed                   // tool found but --version failed to execute
	ToolUnknown                      // tool ran but output couldn't be parsed
)

// Tool describes a discovered external command.
type Tool struct {
	Name    string
	Path    string
	Version string
	Status  ToolStatus
	Detail  string
}

// versionTimeout bounds the --version probe; a hung binary should not
// hang pgtemp tool discovery.
const versionTimeout = 10 * time.Second

var pgVersionRe = regexp.MustCompile(`\(PostgreSQL\) (\d+(?:\.\d+)*)`)
var dockerVersionRe = regexp.MustCompile(`Docker version ([^,\s]+)`)

// CheckPostgres checks the postgres server binary and extracts its version
// from `postgres --version` output ("postgres (PostgreSQL) 16.3").
func CheckPostgres(name string) Tool {
	return checkVersioned(name, pgVersionRe)
}

// CheckDocker checks the container runtime used for the fallback
// execution mode.
func CheckDocker() Tool {
	return checkVersioned(constants.DockerTool, dockerVersionRe)
}

// CheckTool checks that a client tool (initdb, psql, createuser) is on PATH.
func CheckTool(name string) Tool {
	path, err := exec.LookPath(name)
	if err != nil {
		return Tool{Name: name, Status: ToolNotFound}
	}
	return Tool{Name: name, Path: path, Status: ToolOK}
}

// CheckAll reports on every external command pgtemp may invoke, using the
// given tool name overrides (empty strings mean the defaults).
func CheckAll(initdb, postgres, psql, createuser string) []Tool {
	if initdb == "" {
		initdb = constants.InitDBTool
	}
	if postgres == "" {
		postgres = constants.PostgresTool
	}
	if psql == "" {
		psql = constants.PsqlTool
	}
	if createuser == "" {
		createuser = constants.CreateUserTool
	}
	return []Tool{
		CheckTool(initdb),
		CheckPostgres(postgres),
		CheckTool(psql),
		CheckTool(createuser),
		CheckDocker(),
	}
}

func checkVersioned(name string, re *regexp.Regexp) Tool {
	path, err := exec.LookPath(name)
	if err != nil {
		return Tool{Name: name, Status: ToolNotFound}
	}

	ctx, cancel := context.WithTimeout(context.Background(), versionTimeout)
	defer cancel()
	output, err := exec.CommandContext(ctx, path, "--version").CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail == "" {
			detail = err.Error()
		}
		return Tool{Name: name, Path: path, Status: ToolExecFailed, Detail: detail}
	}

	m := re.FindStringSubmatch(string(output))
	if len(m) < 2 {
		return Tool{Name: name, Path: path, Status: ToolUnknown, Detail: strings.TrimSpace(string(output))}
	}
	return Tool{Name: name, Path: path, Version: m[1], Status: ToolOK}
}
