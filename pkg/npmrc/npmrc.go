// Package npmrc loads npm configuration files.
//
// npm merges several INI-style files, later ones overriding earlier ones:
// the global config, the user config (~/.npmrc) and the nearest project
// .npmrc. [Load] takes that ordered list of paths explicitly, so callers and
// tests control exactly which files participate; [CandidatePaths] computes
// the list npm itself would use.
//
// Values may reference environment variables as ${NAME}. A reference to an
// unset variable is an error. A reference preceded by an odd number of
// backslashes is left untouched.
package npmrc

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/matzehuels/monopub/pkg/errors"
)

// FileName is the name of user and project config files.
const FileName = ".npmrc"

// Config is a merged key/value view of one or more npmrc files.
type Config map[string]string

// Get returns the value for key, or "" when unset.
func (c Config) Get(key string) string { return c[key] }

// Registry returns the configured default registry, or "".
func (c Config) Registry() string { return c["registry"] }

// Parse reads INI-style key=value lines. Blank lines, comments (";" or
// "#") and section headers are ignored, as are lines without "=".
// Keys may contain ":" and "//", as in "//registry.npmjs.org/:_authToken".
func Parse(data []byte) Config {
	cfg := Config{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "[") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		cfg[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return cfg
}

// LookupEnv resolves environment variables. os.LookupEnv satisfies it.
type LookupEnv func(key string) (string, bool)

var envExpression = regexp.MustCompile(`(\\*)\$\{([^}]+)\}`)

// Substitute replaces ${NAME} references in value using lookup.
func Substitute(value string, lookup LookupEnv) (string, error) {
	var missing string
	out := envExpression.ReplaceAllStringFunc(value, func(match string) string {
		sub := envExpression.FindStringSubmatch(match)
		escapes, name := sub[1], sub[2]
		if len(escapes)%2 == 1 {
			return match
		}
		v, ok := lookup(name)
		if !ok {
			if missing == "" {
				missing = name
			}
			return match
		}
		return v
	})
	if missing != "" {
		return "", errors.New(errors.ErrCodeEnvVarUnset, "environment variable %q is referenced, but isn't set", missing)
	}
	return out, nil
}

// Load merges the files at paths in order, later files overriding earlier
// ones, and substitutes environment references in every value. Paths that
// do not exist are skipped; an empty path is ignored.
func Load(paths []string, lookup LookupEnv) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	merged := Config{}
	for _, p := range paths {
		if p == "" {
			continue
		}
		data, err := os.ReadFile(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read %s", p)
		}
		for k, v := range Parse(data) {
			merged[k] = v
		}
	}
	for k, v := range merged {
		resolved, err := Substitute(v, lookup)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "npmrc key %q", k)
		}
		merged[k] = resolved
	}
	return merged, nil
}

// CandidatePaths returns the config files npm reads for basePath, lowest
// precedence first: the global config (NPM_CONFIG_GLOBALCONFIG), the user
// config (NPM_CONFIG_USERCONFIG, or ~/.npmrc) and the nearest .npmrc found
// walking upward from basePath. Entries may name files that do not exist.
func CandidatePaths(basePath string, lookup LookupEnv) []string {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var paths []string
	if global, ok := lookup("NPM_CONFIG_GLOBALCONFIG"); ok && global != "" {
		paths = append(paths, global)
	}
	if user, ok := lookup("NPM_CONFIG_USERCONFIG"); ok && user != "" {
		paths = append(paths, user)
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, FileName))
	}
	if project := findUp(basePath, FileName); project != "" && !containsPath(paths, project) {
		paths = append(paths, project)
	}
	return paths
}

func findUp(start, name string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func containsPath(paths []string, p string) bool {
	for _, existing := range paths {
		if filepath.Clean(existing) == filepath.Clean(p) {
			return true
		}
	}
	return false
}
