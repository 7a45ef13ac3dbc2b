package errors

import (
	"strings"
	"unicode"
)

// maxPackageNameLength is the npm registry's limit for package names.
const maxPackageNameLength = 214

// ValidatePackageName validates an npm package name before it is used to
// build registry URLs or subprocess arguments.
//
// The rules mirror the registry's own:
//   - No empty names, no names longer than 214 characters
//   - No control characters or whitespace
//   - No path traversal sequences or backslashes
//   - Scoped names have exactly the form "@scope/name"
func ValidatePackageName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidPackage, "package name cannot be empty")
	}

	if len(name) > maxPackageNameLength {
		return New(ErrCodeInvalidPackage, "package name too long (max %d characters)", maxPackageNameLength)
	}

	for _, r := range name {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidPackage, "package name %q contains invalid characters", name)
		}
	}

	for _, pattern := range []string{"..", "//", "\\"} {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidPackage, "package name %q contains invalid characters: %q", name, pattern)
		}
	}

	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
		return New(ErrCodeInvalidPackage, "package name %q cannot start with %q", name, name[:1])
	}

	if strings.HasPrefix(name, "@") {
		scope, pkg, ok := strings.Cut(name[1:], "/")
		if !ok || scope == "" || pkg == "" || strings.Contains(pkg, "/") {
			return New(ErrCodeInvalidPackage, "scoped package name %q must look like @scope/name", name)
		}
	} else if strings.Contains(name, "/") {
		return New(ErrCodeInvalidPackage, "package name %q contains a slash but has no scope", name)
	}

	return nil
}
