package archiver

import (
	"archive/tar"
	"bufio"
	"context"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/pgzip"
	"github.com/pkg/errors"

	"sitesnap/src/toolrun"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Builtin implements Archiver without external binaries. Errors are reported
// as toolrun.ErrToolFailed so callers treat both archivers alike.
type Builtin struct{}

func (Builtin) Create(ctx context.Context, archive, dir string, names []string, opts CreateOptions) error {
	if err := create(ctx, archive, dir, names, opts.Gzip); err != nil {
		return errors.Wrapf(toolrun.ErrToolFailed, "create %s: %v", filepath.Base(archive), err)
	}
	if !opts.RemoveFiles {
		return nil
	}
	for _, name := range names {
		if name == "." || name == "" {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, name)); err != nil {
			return errors.Wrapf(toolrun.ErrToolFailed, "remove %s: %v", name, err)
		}
	}
	return nil
}

func create(ctx context.Context, archive, dir string, names []string, gz bool) (err error) {
	partial := archive + ".partial"
	f, err := os.Create(partial)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(partial)
		}
	}()

	var w io.Writer = f
	var zw *pgzip.Writer
	if gz {
		zw = pgzip.NewWriter(f)
		w = zw
	}
	tw := tar.NewWriter(w)
	for _, name := range names {
		if err := addTree(ctx, tw, dir, name); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(partial, archive)
}

func addTree(ctx context.Context, tw *tar.Writer, dir, name string) error {
	root := filepath.Join(dir, name)
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		link := ""
		if info.Mode()&os.ModeSymlink != 0 {
			if link, err = os.Readlink(p); err != nil {
				return err
			}
		} else if !info.Mode().IsRegular() && !info.IsDir() {
			return nil
		}
		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		src, err := os.Open(p)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(tw, src)
		return err
	})
}

func (Builtin) Extract(ctx context.Context, archive, dest string) error {
	if err := extract(ctx, archive, dest); err != nil {
		return errors.Wrapf(toolrun.ErrToolFailed, "extract %s: %v", filepath.Base(archive), err)
	}
	return nil
}

func extract(ctx context.Context, archive, dest string) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if magic, _ := br.Peek(len(gzipMagic)); string(magic) == string(gzipMagic) {
		zr, err := pgzip.NewReader(br)
		if err != nil {
			return err
		}
		defer zr.Close()
		r = zr
	}

	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := extractEntry(tr, hdr, dest); err != nil {
			return err
		}
	}
}

func extractEntry(tr *tar.Reader, hdr *tar.Header, dest string) error {
	name, err := cleanEntryName(hdr.Name)
	if err != nil {
		return err
	}
	if name == "" {
		return nil
	}
	if err := checkParents(dest, name); err != nil {
		return err
	}
	target := filepath.Join(dest, filepath.FromSlash(name))
	mode := os.FileMode(hdr.Mode).Perm()
	// A member replacing an earlier symlink must not write through it.
	if fi, err := os.Lstat(target); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(target); err != nil {
			return err
		}
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, mode|0o700)
	case tar.TypeReg, tar.TypeRegA:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, tr); err != nil {
			_ = out.Close()
			return err
		}
		return out.Close()
	case tar.TypeSymlink:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		_ = os.Remove(target)
		return os.Symlink(hdr.Linkname, target)
	default:
		return nil
	}
}

// checkParents refuses members whose parent directories under dest are
// symlinks, which would let a link extracted earlier redirect writes outside.
func checkParents(dest, name string) error {
	dir := dest
	parts := strings.Split(name, "/")
	for _, part := range parts[:len(parts)-1] {
		dir = filepath.Join(dir, part)
		fi, err := os.Lstat(dir)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if fi.Mode()&os.ModeSymlink != 0 {
			return errors.Errorf("archive member %q is below symlink %q", name, part)
		}
	}
	return nil
}

// cleanEntryName normalises an archive member name and rejects members that
// would land outside the destination directory.
func cleanEntryName(name string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(name, "./"))
	if clean == "." || clean == "/" {
		return "", nil
	}
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errors.Errorf("archive member %q escapes destination", name)
	}
	return clean, nil
}

var _ Archiver = Builtin{}
