// Package directory implements a snapshot target for a filesystem subtree.
package directory

import (
	"context"
	"os"
	"path/filepath"

	"github.com/juju/clock"
	"github.com/pkg/errors"

	"sitesnap/src/archiver"
	"sitesnap/src/snapshot"
)

// Options configure a directory target.
type Options struct {
	// Path is the directory whose contents are backed up.
	Path string
	// RemoveOldFiles clears Path before unpacking on restore. Without it,
	// files absent from the snapshot survive next to the restored ones.
	RemoveOldFiles bool
}

// Target archives a directory with an Archiver.
type Target struct {
	snapshot.Base
	opts     Options
	archiver archiver.Archiver
	clock    clock.Clock
}

func New(name string, opts Options, a archiver.Archiver, clk clock.Clock) *Target {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Target{Base: snapshot.NewBase(name), opts: opts, archiver: a, clock: clk}
}

// Path returns the backed up directory.
func (t *Target) Path() string { return t.opts.Path }

// Snapshot archives the full directory contents, uncompressed, into
// root/directory_<name>_backup.<ts>.tar.
func (t *Target) Snapshot(ctx context.Context, root string) error {
	t.SetDumpFile("")
	info, err := os.Stat(t.opts.Path)
	if err != nil {
		return errors.Wrapf(err, "directory %s", t.opts.Path)
	}
	if !info.IsDir() {
		return errors.Errorf("%s is not a directory", t.opts.Path)
	}
	name := snapshot.ArtifactName("directory", t.Name(), t.clock.Now(), "tar")
	out := filepath.Join(root, name)
	if err := t.archiver.Create(ctx, out, t.opts.Path, []string{"."}, archiver.CreateOptions{}); err != nil {
		_ = os.Remove(out)
		return errors.Wrapf(err, "archive %s", t.opts.Path)
	}
	t.SetDumpFile(name)
	return nil
}

// Restore optionally clears the directory, then unpacks the artifact into it.
func (t *Target) Restore(ctx context.Context, unpackDir string) error {
	src, err := t.ArtifactPath(unpackDir)
	if err != nil {
		return err
	}
	if t.opts.RemoveOldFiles {
		if err := clearDir(t.opts.Path); err != nil {
			return errors.Wrapf(err, "clear %s", t.opts.Path)
		}
	}
	if err := os.MkdirAll(t.opts.Path, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", t.opts.Path)
	}
	if err := t.archiver.Extract(ctx, src, t.opts.Path); err != nil {
		return errors.Wrapf(err, "unpack into %s", t.opts.Path)
	}
	return nil
}

// clearDir removes everything below dir but keeps dir itself, which may be a
// mount point or carry ownership the application depends on.
func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

var _ snapshot.Target = (*Target)(nil)
