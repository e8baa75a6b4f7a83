package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"sitesnap/src/archiver"
	"sitesnap/src/lock"
)

const (
	// ArchivePrefix and ArchiveSuffix frame every snapshot archive name.
	ArchivePrefix = "snapshot."
	ArchiveSuffix = ".tar.gz"
	// ScratchDir is the restore unpack directory under the snapshot root.
	ScratchDir = "tmp"
)

// ArchiveName returns the archive file name for a snapshot taken at ts.
func ArchiveName(ts string) string {
	return ArchivePrefix + ts + ArchiveSuffix
}

// Options configure a Site.
type Options struct {
	// Root is the snapshot root holding sealed archives and the scratch
	// directory. It is created when missing.
	Root     string
	Archiver archiver.Archiver
	Clock    clock.Clock
	Logger   *zap.SugaredLogger
}

// Site owns the ordered targets of one application and drives snapshot and
// restore across all of them.
type Site struct {
	root     string
	targets  []Target
	archiver archiver.Archiver
	clock    clock.Clock
	log      *zap.SugaredLogger
}

// New returns a Site for targets, in the order given.
func New(opts Options, targets ...Target) (*Site, error) {
	if opts.Root == "" {
		return nil, errors.New("snapshot root must not be empty")
	}
	if opts.Archiver == nil {
		return nil, errors.New("archiver must not be nil")
	}
	seen := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		if t.Name() == "" {
			return nil, errors.New("target name must not be empty")
		}
		if _, dup := seen[t.Name()]; dup {
			return nil, errors.Errorf("duplicate target name %q", t.Name())
		}
		seen[t.Name()] = struct{}{}
	}
	if err := os.MkdirAll(opts.Root, 0o755); err != nil {
		return nil, errors.Wrap(err, "create snapshot root")
	}
	s := &Site{
		root:     opts.Root,
		targets:  targets,
		archiver: opts.Archiver,
		clock:    opts.Clock,
		log:      opts.Logger,
	}
	if s.clock == nil {
		s.clock = clock.WallClock
	}
	if s.log == nil {
		s.log = zap.NewNop().Sugar()
	}
	return s, nil
}

// Root returns the snapshot root.
func (s *Site) Root() string { return s.root }

// Targets returns the configured targets in order.
func (s *Site) Targets() []Target { return s.targets }

// Snapshot snapshots every target, writes the manifest and seals everything
// into a new archive. Individual target failures are logged and reported but
// do not stop the remaining targets. The returned error is non-nil only when
// the snapshot as a whole could not be produced.
func (s *Site) Snapshot(ctx context.Context) (Report, error) {
	var report Report
	l, err := lock.Acquire(s.root)
	if err != nil {
		return report, err
	}
	defer l.Release()

	for _, t := range s.targets {
		log := s.log.With("target", t.Name())
		log.Infow("taking snapshot")
		err := t.Snapshot(ctx, s.root)
		if err != nil {
			log.Errorw("snapshot failed", "error", err)
		} else {
			log.Infow("snapshot finished", "file", t.Describe().DumpFile)
		}
		report.record(t.Name(), t.Describe().DumpFile, err)
	}

	manifest := make(Manifest, 0, len(s.targets))
	files := make([]string, 0, len(s.targets)+1)
	for _, t := range s.targets {
		e := t.Describe()
		manifest = append(manifest, e)
		if e.DumpFile != "" {
			files = append(files, e.DumpFile)
		}
	}
	if err := WriteManifest(s.root, manifest); err != nil {
		return report, err
	}
	files = append(files, ManifestFile)

	report.Archive = ArchiveName(Timestamp(s.clock.Now()))
	archivePath := filepath.Join(s.root, report.Archive)
	err = s.archiver.Create(ctx, archivePath, s.root, files, archiver.CreateOptions{Gzip: true, RemoveFiles: true})
	if err != nil {
		s.log.Errorw("packing snapshot failed; artifacts left in snapshot root", "archive", report.Archive, "error", err)
		return report, errors.Wrapf(err, "pack %s", report.Archive)
	}
	s.log.Infow("snapshot sealed", "archive", report.Archive, "targets", len(s.targets), "failed", len(report.Failed()))
	return report, nil
}

// Restore unpacks archiveName from the snapshot root and restores every
// target from it in order. Targets missing from the manifest are skipped
// with a logged error. The scratch directory is removed on every path.
func (s *Site) Restore(ctx context.Context, archiveName string) (Report, error) {
	report := Report{Archive: archiveName}
	if archiveName == "" || archiveName != filepath.Base(archiveName) || strings.HasPrefix(archiveName, ".") {
		return report, errors.Errorf("invalid snapshot name %q", archiveName)
	}
	archivePath := filepath.Join(s.root, archiveName)
	if _, err := os.Stat(archivePath); err != nil {
		return report, errors.Wrapf(err, "snapshot %s", archiveName)
	}

	l, err := lock.Acquire(s.root)
	if err != nil {
		return report, err
	}
	defer l.Release()

	scratch := filepath.Join(s.root, ScratchDir)
	if err := os.RemoveAll(scratch); err != nil {
		return report, errors.Wrap(err, "clear scratch directory")
	}
	if err := os.Mkdir(scratch, 0o700); err != nil {
		return report, errors.Wrap(err, "create scratch directory")
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			s.log.Warnw("removing scratch directory failed", "path", scratch, "error", err)
		}
	}()

	if err := s.archiver.Extract(ctx, archivePath, scratch); err != nil {
		return report, errors.Wrapf(err, "unpack %s", archiveName)
	}
	manifest, err := ReadManifest(scratch)
	if err != nil {
		return report, err
	}

	for _, t := range s.targets {
		t.ApplyDescription(manifest)
	}
	for _, t := range s.targets {
		log := s.log.With("target", t.Name())
		dumpFile := t.Describe().DumpFile
		log.Infow("restoring", "file", dumpFile)
		err := t.Restore(ctx, scratch)
		switch {
		case err == nil:
			log.Infow("restored")
		case errors.Is(err, ErrMissingArtifact):
			log.Errorw("nothing to restore, skipping", "error", err)
		default:
			log.Errorw("restore failed", "error", err)
		}
		report.record(t.Name(), dumpFile, err)
	}
	return report, nil
}
