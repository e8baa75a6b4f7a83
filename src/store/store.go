// Package store lists and resolves sealed snapshot archives under a snapshot
// root.
package store

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"sitesnap/src/snapshot"
)

var (
	// ErrNotFound is returned when the snapshot root does not exist.
	ErrNotFound = errors.New("snapshots directory not found")
	// ErrInvalidIndex is returned by Resolve for an out-of-range index.
	ErrInvalidIndex = errors.New("invalid snapshot index")
)

// Entry is one sealed snapshot archive.
type Entry struct {
	Index   int       `json:"index"`
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
	// Taken is parsed from the archive name; zero when the name does not
	// carry a valid timestamp.
	Taken time.Time `json:"taken"`
}

// Store reads the snapshot root.
type Store struct {
	Root string
}

func New(root string) *Store {
	return &Store{Root: root}
}

// List returns archives newest first. Only regular files named like
// snapshot archives are considered, so the scratch directory and lock file
// never show up.
func (s *Store) List() ([]Entry, error) {
	dirents, err := os.ReadDir(s.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrNotFound, s.Root)
		}
		return nil, errors.Wrapf(err, "read %s", s.Root)
	}
	entries := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		name := d.Name()
		if !d.Type().IsRegular() || !IsArchiveName(name) {
			continue
		}
		info, err := d.Info()
		if err != nil {
			return nil, errors.Wrapf(err, "stat %s", name)
		}
		entries = append(entries, Entry{
			Name:    name,
			Path:    filepath.Join(s.Root, name),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Taken:   parseTaken(name),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name > entries[j].Name })
	for i := range entries {
		entries[i].Index = i
	}
	return entries, nil
}

// Resolve returns the index-th newest archive.
func (s *Store) Resolve(index int) (Entry, error) {
	entries, err := s.List()
	if err != nil {
		return Entry{}, err
	}
	if index < 0 || index >= len(entries) {
		return Entry{}, errors.Wrapf(ErrInvalidIndex, "%d (have %d snapshots)", index, len(entries))
	}
	return entries[index], nil
}

// IsArchiveName reports whether name looks like a snapshot archive.
func IsArchiveName(name string) bool {
	return strings.HasPrefix(name, snapshot.ArchivePrefix) &&
		strings.HasSuffix(name, snapshot.ArchiveSuffix) &&
		len(name) > len(snapshot.ArchivePrefix)+len(snapshot.ArchiveSuffix)
}

func parseTaken(name string) time.Time {
	ts := strings.TrimSuffix(strings.TrimPrefix(name, snapshot.ArchivePrefix), snapshot.ArchiveSuffix)
	t, err := time.ParseInLocation(snapshot.TimestampLayout, ts, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}
