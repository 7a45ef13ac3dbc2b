package upgrade

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ChangeType classifies a replacement by the size of its version jump.
type ChangeType string

const (
	ChangeMajor      ChangeType = "major"
	ChangeMinor      ChangeType = "minor"
	ChangePatch      ChangeType = "patch"
	ChangePrerelease ChangeType = "prerelease"
	ChangeUnknown    ChangeType = "unknown"
)

// ClassifyChange compares the coerced versions of two requests. A target
// that is itself a prerelease is always ChangePrerelease; requests without
// a version, or without a difference in major.minor.patch, are
// ChangeUnknown.
func ClassifyChange(from, to string) ChangeType {
	if v, err := semver.NewVersion(strings.TrimLeft(to, "^~=<> ")); err == nil && v.Prerelease() != "" {
		return ChangePrerelease
	}
	old, ok := Coerce(from)
	if !ok {
		return ChangeUnknown
	}
	next, ok := Coerce(to)
	if !ok {
		return ChangeUnknown
	}
	switch {
	case old.Major() != next.Major():
		return ChangeMajor
	case old.Minor() != next.Minor():
		return ChangeMinor
	case old.Patch() != next.Patch():
		return ChangePatch
	}
	return ChangeUnknown
}
