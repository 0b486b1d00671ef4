package schemadiff

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"schemaflow/internal/mapstyle"
)

const (
	pieceFilePrefix  = "diffpiece-"
	diffMapExt       = ".diffmap"
	pieceStampLayout = "20060102-150405"
)

// DiffMapFile locates the history of one project: piece files, one per diff
// under a year directory, and the monolithic legacy file.
type DiffMapFile struct {
	FS          afero.Fs
	ProjectName string
	PieceDir    string
	// MonolithicPath overrides the default
	// <PieceDir>/../project-history-<project>.diffmap location.
	MonolithicPath string
}

// MonolithicFile returns the path of the monolithic history file.
func (f *DiffMapFile) MonolithicFile() string {
	if f.MonolithicPath != "" {
		return f.MonolithicPath
	}
	return filepath.Join(filepath.Dir(filepath.Clean(f.PieceDir)), "project-history-"+f.ProjectName+diffMapExt)
}

// PiecePath returns the piece file path for d:
// <PieceDir>/<yyyy>/diffpiece-<project>-<yyyyMMdd-HHmmss>.diffmap.
func (f *DiffMapFile) PiecePath(d *SchemaDiff) (string, error) {
	t, err := d.Time()
	if err != nil {
		return "", fmt.Errorf("invalid diff date %q: %w", d.DiffDate, err)
	}
	name := pieceFilePrefix + f.ProjectName + "-" + t.Format(pieceStampLayout) + diffMapExt
	return filepath.Join(f.PieceDir, t.Format("2006"), name), nil
}

// WritePiece writes d as a one-entry history map in its own piece file and
// returns the path.
func (f *DiffMapFile) WritePiece(d *SchemaDiff) (string, error) {
	path, err := f.PiecePath(d)
	if err != nil {
		return "", err
	}
	m := mapstyle.NewMap()
	m.Put(d.DiffDate, Serialize(d))
	return path, writeDiffMap(f.FS, path, m)
}

// PieceFiles lists the piece files of the project, sorted by path.
func (f *DiffMapFile) PieceFiles() ([]string, error) {
	prefix := pieceFilePrefix + f.ProjectName + "-"
	var paths []string
	err := afero.Walk(f.FS, f.PieceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == f.PieceDir {
				return nil
			}
			return err
		}
		name := info.Name()
		if !info.IsDir() && strings.HasPrefix(name, prefix) && strings.HasSuffix(name, diffMapExt) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to list piece files in %s: %w", f.PieceDir, err)
	}
	slices.Sort(paths)
	return paths, nil
}

// CollectDiffMap merges the monolithic file and every piece file into one
// map sorted descending by diff date. Pieces are read concurrently and
// merged afterwards in path order, so the result does not depend on how the
// directory is enumerated. For a date present more than once a piece
// overrides the monolithic file, and among pieces the greater path wins.
// A file with an undecodable entry fails with a HistoryReadError naming it.
func (f *DiffMapFile) CollectDiffMap() (*mapstyle.Map, error) {
	paths, err := f.PieceFiles()
	if err != nil {
		return nil, err
	}

	pieces := make([]*mapstyle.Map, len(paths))
	var g errgroup.Group
	for i, path := range paths {
		g.Go(func() error {
			m, err := readDiffMap(f.FS, path)
			if err != nil {
				return err
			}
			pieces[i] = m
			return checkEntries(path, m)
		})
	}
	var monolithic *mapstyle.Map
	g.Go(func() error {
		path := f.MonolithicFile()
		m, err := readDiffMap(f.FS, path)
		if err != nil {
			return err
		}
		monolithic = m
		return checkEntries(path, m)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := mapstyle.NewMap()
	for _, m := range append([]*mapstyle.Map{monolithic}, pieces...) {
		for _, key := range m.Keys() {
			v, _ := m.Get(key)
			merged.Put(key, v)
		}
	}
	return sortDescending(merged), nil
}

// LoadHistory collects the diff map and reads it as a History. Every entry
// was decoded against its own file while collecting.
func (f *DiffMapFile) LoadHistory() (*History, error) {
	m, err := f.CollectDiffMap()
	if err != nil {
		return nil, err
	}
	return NewHistory(m)
}
