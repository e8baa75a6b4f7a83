// Package incus implements a snapshot target for an Incus instance, for
// applications deployed inside a container or VM.
package incus

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/juju/clock"
	"github.com/pkg/errors"

	"sitesnap/src/incusapi"
	"sitesnap/src/snapshot"
	"sitesnap/src/util/progress"
)

// Options select the instance and how it is exported and restored.
type Options struct {
	Project  string
	Instance string
	// Pool receives the instance on restore; empty uses the default pool.
	Pool         string
	Optimized    bool
	InstanceOnly bool
	// Replace stops and deletes an existing instance before importing.
	// Without it, restoring over an existing instance fails.
	Replace bool
	// Progress receives import progress lines when set.
	Progress io.Writer
}

// InstanceTarget exports an instance backup tarball through the Incus API.
type InstanceTarget struct {
	snapshot.Base
	opts   Options
	client func() (incusapi.Client, error)
	clock  clock.Clock
}

// NewInstance returns a target; connect is called lazily, once per operation,
// so configurations that never touch Incus do not need a reachable daemon.
func NewInstance(name string, opts Options, connect func() (incusapi.Client, error), clk clock.Clock) *InstanceTarget {
	if opts.Project == "" {
		opts.Project = "default"
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &InstanceTarget{Base: snapshot.NewBase(name), opts: opts, client: connect, clock: clk}
}

func (t *InstanceTarget) Snapshot(ctx context.Context, root string) error {
	t.SetDumpFile("")
	client, err := t.client()
	if err != nil {
		return errors.Wrap(err, "connect to incus")
	}
	name := snapshot.ArtifactName("incus", t.Name(), t.clock.Now(), "tar.gz")

	tmp, err := os.CreateTemp(root, "."+name+".*")
	if err != nil {
		return errors.Wrap(err, "create export file")
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	exportOpts := incusapi.ExportOptions{InstanceOnly: t.opts.InstanceOnly, Optimized: t.opts.Optimized}
	if err := client.ExportInstance(t.opts.Project, t.opts.Instance, exportOpts, tmp); err != nil {
		return errors.Wrapf(err, "export %s/%s", t.opts.Project, t.opts.Instance)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close export")
	}
	if err := os.Rename(tmp.Name(), filepath.Join(root, name)); err != nil {
		return errors.Wrap(err, "seal export")
	}
	t.SetDumpFile(name)
	return nil
}

func (t *InstanceTarget) Restore(ctx context.Context, unpackDir string) error {
	src, err := t.ArtifactPath(unpackDir)
	if err != nil {
		return err
	}
	client, err := t.client()
	if err != nil {
		return errors.Wrap(err, "connect to incus")
	}
	exists, err := client.InstanceExists(t.opts.Project, t.opts.Instance)
	if err != nil {
		return errors.Wrapf(err, "look up %s/%s", t.opts.Project, t.opts.Instance)
	}
	if exists {
		if !t.opts.Replace {
			return errors.Errorf("instance %s/%s already exists and replace is disabled", t.opts.Project, t.opts.Instance)
		}
		if err := client.StopInstance(t.opts.Project, t.opts.Instance, true); err != nil {
			return errors.Wrapf(err, "stop %s/%s", t.opts.Project, t.opts.Instance)
		}
		if err := client.DeleteInstance(t.opts.Project, t.opts.Instance); err != nil {
			return errors.Wrapf(err, "delete %s/%s", t.opts.Project, t.opts.Instance)
		}
	}

	f, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "open export")
	}
	defer f.Close()
	var body io.Reader = f
	if t.opts.Progress != nil {
		var size int64
		if info, err := f.Stat(); err == nil {
			size = info.Size()
		}
		body = progress.NewReader(f, size, "import "+t.opts.Instance, t.opts.Progress, t.clock)
	}
	if err := client.ImportInstance(t.opts.Project, t.opts.Instance, t.opts.Pool, body); err != nil {
		return errors.Wrapf(err, "import %s/%s", t.opts.Project, t.opts.Instance)
	}
	return nil
}

var _ snapshot.Target = (*InstanceTarget)(nil)
