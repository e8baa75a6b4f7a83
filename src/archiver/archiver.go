// Package archiver packs and unpacks tar archives, either through the system
// tar binary or with the in-process implementation.
package archiver

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"sitesnap/src/toolrun"
)

// CreateOptions tune Create.
type CreateOptions struct {
	// Gzip compresses the archive stream.
	Gzip bool
	// RemoveFiles deletes every named input once the archive is sealed.
	RemoveFiles bool
}

// Archiver creates and extracts tar archives.
//
// Create packs names, relative to dir, into archive. A name of "." packs the
// whole contents of dir. Extract unpacks archive into dest, which must exist.
// Compression is detected automatically on extract.
type Archiver interface {
	Create(ctx context.Context, archive, dir string, names []string, opts CreateOptions) error
	Extract(ctx context.Context, archive, dest string) error
}

// Kinds accepted by New.
const (
	KindTar     = "tar"
	KindBuiltin = "builtin"
)

// New returns the archiver registered under kind. An empty kind selects the
// tar binary.
func New(kind string, runner toolrun.Runner) (Archiver, error) {
	switch strings.ToLower(kind) {
	case "", KindTar:
		if runner == nil {
			runner = toolrun.Exec{}
		}
		return &Tar{Runner: runner}, nil
	case KindBuiltin:
		return Builtin{}, nil
	default:
		return nil, errors.Errorf("unknown archiver %q (want %s or %s)", kind, KindTar, KindBuiltin)
	}
}
