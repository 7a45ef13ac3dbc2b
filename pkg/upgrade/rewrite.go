package upgrade

import (
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// localProtocols mark requests that point at local packages. They are never
// resolved against the registry and never rewritten.
var localProtocols = []string{"file:", "link:", "workspace:"}

// IsLocal reports whether request refers to a local package.
func IsLocal(request string) bool {
	for _, p := range localProtocols {
		if strings.HasPrefix(request, p) {
			return true
		}
	}
	return false
}

// IsNumeric reports whether request is a bare major version such as "20".
func IsNumeric(request string) bool {
	if request == "" {
		return false
	}
	for _, c := range request {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

var versionPattern = regexp.MustCompile(`(\d+)(?:\.(\d+))?(?:\.(\d+))?`)

// Coerce extracts the first version-looking part of request, filling
// missing minor and patch numbers with zero: "~1.2" -> 1.2.0,
// ">=3 <4" -> 3.0.0.
func Coerce(request string) (*semver.Version, bool) {
	m := versionPattern.FindStringSubmatch(request)
	if m == nil {
		return nil, false
	}
	parts := []string{m[1], "0", "0"}
	if m[2] != "" {
		parts[1] = m[2]
	}
	if m[3] != "" {
		parts[2] = m[3]
	}
	v, err := semver.NewVersion(strings.Join(parts, "."))
	if err != nil {
		return nil, false
	}
	return v, true
}

// Rewrite returns the request that points current at resolved. A "~"
// range stays "~"; anything else becomes "^". Local requests and requests
// already ahead of resolved are returned unchanged.
func Rewrite(current, resolved string) string {
	if IsLocal(current) {
		return current
	}
	if cur, ok := Coerce(current); ok {
		if target, err := semver.NewVersion(resolved); err == nil && cur.GreaterThan(target) {
			return current
		}
	}
	if strings.HasPrefix(current, "~") {
		return "~" + resolved
	}
	return "^" + resolved
}
