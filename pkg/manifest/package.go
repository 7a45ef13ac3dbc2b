package manifest

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/matzehuels/monopub/pkg/errors"
)

// Package is one package.json on disk together with its parsed contents.
//
// Raw always holds what is persisted at Path. Mutating Manifest has no
// effect on disk until Write is called.
type Package struct {
	DisplayName string // manifest name, or Path when unnamed
	Dir         string // absolute directory containing the manifest
	Path        string // absolute path of the manifest
	Raw         []byte // bytes last read from or written to Path
	Manifest    *Manifest
}

// Load reads and parses the manifest at path.
func Load(path string) (*Package, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "resolve %s", path)
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeManifestNotFound, err, "no manifest at %s", abs)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "read %s", abs)
	}
	return FromBytes(abs, raw)
}

// FromBytes parses raw as the manifest stored at the absolute path abs.
func FromBytes(abs string, raw []byte) (*Package, error) {
	m, err := Parse(raw)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "%s is not a valid manifest", abs)
	}
	p := &Package{
		Dir:      filepath.Dir(abs),
		Path:     abs,
		Raw:      raw,
		Manifest: m,
	}
	p.DisplayName = m.Name()
	if p.DisplayName == "" {
		p.DisplayName = abs
	}
	return p, nil
}

// Name returns the manifest name, or "" for unnamed packages.
func (p *Package) Name() string { return p.Manifest.Name() }

// Version returns the manifest version.
func (p *Package) Version() string { return p.Manifest.Version() }

// CRLF reports whether the persisted manifest uses Windows line endings.
func (p *Package) CRLF() bool { return bytes.Contains(p.Raw, []byte("\r\n")) }

// Encode serializes the manifest in the line-ending style of Raw.
func (p *Package) Encode() ([]byte, error) {
	return p.Manifest.Encode(p.CRLF())
}

// Write persists the manifest and updates Raw on success.
func (p *Package) Write() error {
	data, err := p.Encode()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode %s", p.Path)
	}
	if err := os.WriteFile(p.Path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write %s", p.Path)
	}
	p.Raw = data
	return nil
}
