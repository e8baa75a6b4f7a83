package archiver

import (
	"context"

	"sitesnap/src/toolrun"
)

// Tar drives an external GNU-compatible tar binary.
type Tar struct {
	Runner toolrun.Runner
	// Path overrides the binary name; defaults to "tar".
	Path string
}

func (t *Tar) bin() string {
	if t.Path != "" {
		return t.Path
	}
	return "tar"
}

func (t *Tar) Create(ctx context.Context, archive, dir string, names []string, opts CreateOptions) error {
	args := []string{"-c"}
	if opts.Gzip {
		args = append(args, "-z")
	}
	args = append(args, "-f", archive)
	if opts.RemoveFiles {
		args = append(args, "--remove-files")
	}
	args = append(args, "-C", dir)
	args = append(args, names...)
	return t.Runner.Run(ctx, toolrun.Command{Path: t.bin(), Args: args})
}

func (t *Tar) Extract(ctx context.Context, archive, dest string) error {
	return t.Runner.Run(ctx, toolrun.Command{
		Path: t.bin(),
		Args: []string{"-x", "-f", archive, "-C", dest},
	})
}

var _ Archiver = (*Tar)(nil)
