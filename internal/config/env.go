// Package config provides configuration loading and environment variable management.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables recognized by pgtemp. They override the config
// file but lose to explicit CLI flags.
const (
	EnvConfig        = "PGTEMP_CONFIG"
	EnvVerbosity     = "PGTEMP_VERBOSITY"
	EnvRetries       = "PGTEMP_RETRIES"
	EnvRetryInterval = "PGTEMP_RETRY_INTERVAL"
	EnvImage         = "PGTEMP_IMAGE"
)

// EnvInt returns the integer value of an environment variable, or def
// when it is unset or malformed.
func EnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// EnvDuration returns the duration value of an environment variable
// (time.ParseDuration syntax), or def when unset or malformed.
func EnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// EnvString returns the value of an environment variable, or def when unset.
func EnvString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ShellQuote returns a shell-safe quoted string.
// Values containing special characters are wrapped in single quotes.
// Single quotes within the value are escaped using the quote-break idiom.
// The empty string quotes to a pair of single quotes so it survives as a
// distinct argument; the server is launched with an empty -h value to
// disable TCP listening.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}

	// Check if quoting is needed (contains shell special chars)
	needsQuoting := false
	for _, c := range s {
		switch c {
		case ' ', '\t', '\n', '"', '\'', '`', '$', '\\', '!', '*', '?',
			'[', ']', '{', '}', '(', ')', '<', '>', '|', '&', ';', '#':
			needsQuoting = true
		}
		if needsQuoting {
			break
		}
	}

	if !needsQuoting {
		return s
	}

	// Use single quotes, escaping any embedded single quotes
	// 'foo'\''bar' means: 'foo' + escaped-single-quote + 'bar'
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}

// ShellJoin quotes each argument and joins them into a single command
// line suitable for `su -c` or `sh -c`.
func ShellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = ShellQuote(a)
	}
	return strings.Join(quoted, " ")
}
