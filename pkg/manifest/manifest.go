// Package manifest models package.json files.
//
// A [Manifest] keeps the whole document as an ordered [Object], so rewriting
// a version or a dependency request leaves every other field, and the order
// of all keys, exactly as the author wrote them. Typed accessors cover the
// fields monopub reads: name, version, private, license, scripts,
// dependency sections and workspaces.
//
// # Usage
//
//	pkg, err := manifest.Load("packages/app/package.json")
//	if err != nil {
//	    return err
//	}
//	pkg.Manifest.SetRequest(manifest.Dependencies, "react", "^19.0.0")
//	err = pkg.Write()
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FileName is the manifest file name looked up in every package directory.
const FileName = "package.json"

// Section names a dependency section of a manifest.
type Section string

const (
	Dependencies     Section = "dependencies"
	DevDependencies  Section = "devDependencies"
	PeerDependencies Section = "peerDependencies"

	scripts Section = "scripts"
)

// Lifecycle scripts npm runs around a publish. They are executed by monopub
// when publishing from a subdirectory and stripped from the copied manifest.
var PublishScripts = []string{"prepare", "prepublishOnly", "prepack"}

// Dependency is a single name/request pair from a dependency section.
type Dependency struct {
	Name    string
	Request string
}

// Manifest is a parsed package.json document.
type Manifest struct {
	doc      Object
	sections map[Section]*Object
}

// Parse decodes a package.json document. The top level must be a JSON
// object; dependency sections that are present must be objects too. A
// section set to null is treated as absent.
func Parse(data []byte) (*Manifest, error) {
	m := &Manifest{sections: make(map[Section]*Object)}
	if err := m.doc.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	for _, s := range []Section{Dependencies, DevDependencies, PeerDependencies, scripts} {
		raw, ok := m.doc.Get(string(s))
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		var obj Object
		if err := obj.UnmarshalJSON(raw); err != nil {
			return nil, fmt.Errorf("%s: %w", s, err)
		}
		m.sections[s] = &obj
	}
	return m, nil
}

// Name returns the package name, or "" when absent or not a string.
func (m *Manifest) Name() string {
	s, _ := m.doc.GetString("name")
	return s
}

// Version returns the package version, or "" when absent or not a string.
func (m *Manifest) Version() string {
	s, _ := m.doc.GetString("version")
	return s
}

// HasName reports whether the manifest has a string name.
func (m *Manifest) HasName() bool {
	_, ok := m.doc.GetString("name")
	return ok
}

// HasVersion reports whether the manifest has a string version.
func (m *Manifest) HasVersion() bool {
	_, ok := m.doc.GetString("version")
	return ok
}

// License returns the SPDX license expression, if any.
func (m *Manifest) License() string {
	s, _ := m.doc.GetString("license")
	return s
}

// Private reports whether the manifest is marked "private": true.
func (m *Manifest) Private() bool {
	raw, ok := m.doc.Get("private")
	if !ok {
		return false
	}
	var b bool
	return json.Unmarshal(raw, &b) == nil && b
}

// Workspaces returns the raw workspaces declaration, or nil.
func (m *Manifest) Workspaces() json.RawMessage {
	raw, _ := m.doc.Get("workspaces")
	return raw
}

// Script returns the command declared for a lifecycle script.
func (m *Manifest) Script(name string) (string, bool) {
	obj := m.sections[scripts]
	if obj == nil {
		return "", false
	}
	return obj.GetString(name)
}

// HasScripts reports whether the manifest declares a scripts object with at
// least one entry.
func (m *Manifest) HasScripts() bool {
	obj := m.sections[scripts]
	return obj != nil && obj.Len() > 0
}

// Deps returns the string-valued entries of a dependency section in
// document order. Non-string values are ignored.
func (m *Manifest) Deps(s Section) []Dependency {
	obj := m.sections[s]
	if obj == nil {
		return nil
	}
	deps := make([]Dependency, 0, obj.Len())
	for _, name := range obj.keys {
		if req, ok := obj.GetString(name); ok {
			deps = append(deps, Dependency{Name: name, Request: req})
		}
	}
	return deps
}

// Request returns the request string for name in section s.
func (m *Manifest) Request(s Section, name string) (string, bool) {
	obj := m.sections[s]
	if obj == nil {
		return "", false
	}
	return obj.GetString(name)
}

// SetRequest sets the request for name in section s, creating the section
// if needed. An existing entry keeps its position.
func (m *Manifest) SetRequest(s Section, name, request string) error {
	obj := m.sections[s]
	if obj == nil {
		obj = &Object{}
		m.sections[s] = obj
	}
	if err := obj.Set(name, request); err != nil {
		return err
	}
	return m.doc.Set(string(s), obj)
}

// SetVersion replaces the version field.
func (m *Manifest) SetVersion(version string) error {
	return m.doc.Set("version", version)
}

// RemoveScripts deletes the named lifecycle scripts. It reports whether any
// of them was present.
func (m *Manifest) RemoveScripts(names ...string) (bool, error) {
	obj := m.sections[scripts]
	if obj == nil {
		return false, nil
	}
	removed := false
	for _, name := range names {
		if obj.Delete(name) {
			removed = true
		}
	}
	if !removed {
		return false, nil
	}
	return true, m.doc.Set(string(scripts), obj)
}

// Encode serializes the manifest with two-space indentation and a single
// trailing newline. When crlf is set, every line ends in "\r\n".
func (m *Manifest) Encode(crlf bool) ([]byte, error) {
	out, err := m.doc.Indent()
	if err != nil {
		return nil, err
	}
	out = append(out, '\n')
	if crlf {
		out = bytes.ReplaceAll(out, []byte("\n"), []byte("\r\n"))
	}
	return out, nil
}
