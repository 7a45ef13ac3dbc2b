// Package cli implements the monopub command-line interface.
//
// # Commands
//
// The main commands are:
//   - publish: Publish every unpublished workspace package in dependency order
//   - snapshot: Publish a commit-stamped pre-release of every package
//   - upgrade: Move external dependency requests to their latest versions
//   - version: Bump the root version and align every member with it
//   - link: Join sibling repositories into one generated workspace
//   - list: Show the workspace packages in publish order
//   - graph: Export the internal dependency graph as DOT or SVG
//   - cache: Manage the dist-tag cache used by upgrade
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging, which also
// traces registry requests and cache lookups. Loggers are passed through
// context.Context and injected into the orchestrators.
package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/monopub/pkg/cache"
	"github.com/matzehuels/monopub/pkg/npmrc"
	"github.com/matzehuels/monopub/pkg/proc"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "monopub"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Runner executes npm and git. Defaults to a proc.Exec using Logger.
	Runner proc.Runner

	// LookupEnv reads environment variables. Defaults to os.LookupEnv.
	LookupEnv npmrc.LookupEnv

	// CacheDir overrides the dist-tag cache directory.
	CacheDir string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger:    newLogger(w, level),
		LookupEnv: os.LookupEnv,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// runner returns the configured Runner, or one that logs to logger.
func (c *CLI) runner(logger *log.Logger) proc.Runner {
	if c.Runner != nil {
		return c.Runner
	}
	return proc.NewExec(logger)
}

func (c *CLI) lookupEnv() npmrc.LookupEnv {
	if c.LookupEnv != nil {
		return c.LookupEnv
	}
	return os.LookupEnv
}

// cacheDir returns the file cache directory.
func (c *CLI) cacheDir() (string, error) {
	if c.CacheDir != "" {
		return c.CacheDir, nil
	}
	return cache.DefaultDir()
}

// targetPath returns the optional [path] argument, defaulting to ".".
func targetPath(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return "."
}
