// Package snapshot orchestrates point-in-time snapshots of an application's
// persistent state and restores them.
//
// A Site drives an ordered list of Targets. Each target dumps itself to an
// artifact file under the snapshot root; the site records which artifact
// belongs to which target in a manifest and seals everything into one
// timestamped archive. Restores unpack that archive into a scratch directory
// and hand every target its own artifact back.
package snapshot

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// TimestampLayout renders snapshot times. Lexicographic order of rendered
// values matches chronological order at minute granularity.
const TimestampLayout = "2006-01-02_15-04"

// Timestamp formats t with TimestampLayout.
func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ArtifactName builds "<kind>_<label>_backup.<timestamp>.<ext>".
func ArtifactName(kind, label string, t time.Time, ext string) string {
	return kind + "_" + label + "_backup." + Timestamp(t) + "." + ext
}

// ErrMissingArtifact is returned by Target.Restore when the target has no
// artifact to restore from, either because the manifest carried no entry for
// it or because the named file is absent from the unpacked snapshot.
var ErrMissingArtifact = errors.New("no artifact to restore from")

// Target is one backup-able unit, such as a database or a directory.
type Target interface {
	// Name identifies the target. It is unique within a configuration and
	// is what the manifest is keyed on.
	Name() string
	// Snapshot writes the target's artifact into root and records its file
	// name. On failure the recorded name is left empty.
	Snapshot(ctx context.Context, root string) error
	// Restore applies the artifact recorded for this target, resolved
	// against unpackDir.
	Restore(ctx context.Context, unpackDir string) error
	// Describe returns the manifest entry for this target.
	Describe() Entry
	// ApplyDescription adopts the artifact name from the entry matching
	// Name. Without a match the recorded name becomes empty.
	ApplyDescription(entries []Entry)
}

// Base carries the state every target shares. Concrete targets embed it.
type Base struct {
	name     string
	dumpFile string
}

// NewBase returns a Base for a target called name.
func NewBase(name string) Base {
	return Base{name: name}
}

func (b *Base) Name() string { return b.name }

// DumpFile is the artifact file name, relative to the snapshot root or the
// scratch directory.
func (b *Base) DumpFile() string { return b.dumpFile }

// SetDumpFile records the artifact produced or about to be consumed.
func (b *Base) SetDumpFile(name string) { b.dumpFile = name }

func (b *Base) Describe() Entry {
	return Entry{Name: b.name, DumpFile: b.dumpFile}
}

func (b *Base) ApplyDescription(entries []Entry) {
	b.dumpFile = ""
	for _, e := range entries {
		if e.Name == b.name {
			b.dumpFile = e.DumpFile
			return
		}
	}
}

// ArtifactPath resolves the recorded artifact against dir, returning
// ErrMissingArtifact when nothing is recorded.
func (b *Base) ArtifactPath(dir string) (string, error) {
	if b.dumpFile == "" {
		return "", errors.Wrapf(ErrMissingArtifact, "target %s", b.name)
	}
	return resolveArtifact(dir, b.dumpFile)
}
