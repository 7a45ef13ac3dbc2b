package registry

import (
	"net/url"
	"strings"
)

// Identifier returns the npm "nerf-dart" form of a registry URL: scheme,
// query, fragment and credentials stripped, always ending in "/".
//
//	Identifier("https://registry.npmjs.org")          // "//registry.npmjs.org/"
//	Identifier("https://npm.corp.io:8443/api/npm/x/") // "//npm.corp.io:8443/api/npm/x/"
//
// The result prefixes per-registry .npmrc settings such as
// "//registry.npmjs.org/:_authToken".
func Identifier(registryURL string) string {
	u, err := url.Parse(registryURL)
	if err != nil || u.Host == "" {
		s := strings.TrimPrefix(strings.TrimPrefix(registryURL, "https:"), "http:")
		if !strings.HasPrefix(s, "//") {
			s = "//" + s
		}
		if !strings.HasSuffix(s, "/") {
			s += "/"
		}
		return s
	}
	path := u.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return "//" + u.Host + path
}
