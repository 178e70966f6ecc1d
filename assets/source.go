// Package assets reads the carrier configuration XML files: the bundled and
// partner APN lists, the SPN override table and the four MVNO override
// tables. Files are read through a Source so that they can live in a local
// directory tree or in an object store.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Info is what a Source reports about an asset without reading it.
type Info struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Source is a read-only area holding asset files. Missing files are
// reported with an error wrapping fs.ErrNotExist.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Stat(ctx context.Context, name string) (Info, error)
	String() string
}

// DirSource serves assets from a local directory.
type DirSource struct {
	Root string
}

// NewDirSource returns a Source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{Root: dir}
}

func (d *DirSource) path(name string) (string, error) {
	clean := filepath.Clean("/" + name)
	if strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid asset name %q", name)
	}
	return filepath.Join(d.Root, clean), nil
}

// Open opens name for reading.
func (d *DirSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	p, err := d.path(name)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// Stat reports size and modification time of name.
func (d *DirSource) Stat(_ context.Context, name string) (Info, error) {
	p, err := d.path(name)
	if err != nil {
		return Info{}, err
	}
	st, err := os.Stat(p)
	if err != nil {
		return Info{}, err
	}
	return Info{Name: name, Size: st.Size(), ModTime: st.ModTime()}, nil
}

func (d *DirSource) String() string {
	return "dir:" + d.Root
}

// IsNotExist reports whether err means the asset is absent.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// Ref names one file inside one Source.
type Ref struct {
	Source Source
	Name   string
}

// Valid reports whether the ref points anywhere.
func (r Ref) Valid() bool {
	return r.Source != nil && r.Name != ""
}

func (r Ref) String() string {
	if r.Source == nil {
		return r.Name
	}
	return r.Source.String() + "/" + r.Name
}

// Open opens the referenced file.
func (r Ref) Open(ctx context.Context) (io.ReadCloser, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("asset %s: %w", r, fs.ErrNotExist)
	}
	return r.Source.Open(ctx, r.Name)
}

// Stat stats the referenced file.
func (r Ref) Stat(ctx context.Context) (Info, error) {
	if !r.Valid() {
		return Info{}, fmt.Errorf("asset %s: %w", r, fs.ErrNotExist)
	}
	return r.Source.Stat(ctx, r.Name)
}

// SelectNewer picks between a partner file and a vendor overlay of the same
// logical file. The vendor file wins wholesale when it exists and its
// modification time is later than the partner's; a missing partner file
// counts as infinitely old. ok is false when neither file exists.
func SelectNewer(ctx context.Context, partner, vendor Ref) (chosen Ref, ok bool) {
	pInfo, pErr := partner.Stat(ctx)
	vInfo, vErr := vendor.Stat(ctx)
	switch {
	case vErr == nil && (pErr != nil || vInfo.ModTime.After(pInfo.ModTime)):
		return vendor, true
	case pErr == nil:
		return partner, true
	}
	return Ref{}, false
}
