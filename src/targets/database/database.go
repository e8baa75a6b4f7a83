// Package database implements snapshot targets for relational databases.
//
// Target shells out to the engine's own dump and restore tools. SQLiteTarget
// works on an embedded database file directly.
package database

import (
	"bufio"
	"context"
	"os"
	"path/filepath"

	"github.com/juju/clock"
	"github.com/pkg/errors"

	"sitesnap/src/snapshot"
	"sitesnap/src/toolrun"
)

// Target dumps and restores a database through external tools. Restores are
// destructive: the dump drops and recreates the database before loading.
type Target struct {
	snapshot.Base
	conn    Connection
	dialect Dialect
	runner  toolrun.Runner
	clock   clock.Clock
}

func New(name string, dialect Dialect, conn Connection, runner toolrun.Runner, clk clock.Clock) *Target {
	if runner == nil {
		runner = toolrun.Exec{}
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Target{
		Base:    snapshot.NewBase(name),
		conn:    conn,
		dialect: dialect,
		runner:  runner,
		clock:   clk,
	}
}

// Snapshot writes the recreate preamble followed by the dump tool's output to
// root/database_<engine>_backup.<ts>.sql. When the tool fails no file is left.
func (t *Target) Snapshot(ctx context.Context, root string) error {
	t.SetDumpFile("")
	name := snapshot.ArtifactName("database", t.dialect.Engine(), t.clock.Now(), "sql")

	tmp, err := os.CreateTemp(root, "."+name+".*")
	if err != nil {
		return errors.Wrap(err, "create dump file")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if _, err := w.WriteString(t.dialect.Preamble(t.conn)); err != nil {
		return errors.Wrap(err, "write preamble")
	}
	cmd := t.dialect.DumpCommand(t.conn)
	cmd.Stdout = w
	if err := t.runner.Run(ctx, cmd); err != nil {
		return errors.Wrapf(err, "dump %s", t.conn.Name)
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "write dump")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close dump")
	}
	if err := os.Rename(tmp.Name(), filepath.Join(root, name)); err != nil {
		return errors.Wrap(err, "seal dump")
	}
	committed = true
	t.SetDumpFile(name)
	return nil
}

// Restore feeds the dump to the engine's restore tool.
func (t *Target) Restore(ctx context.Context, unpackDir string) error {
	src, err := t.ArtifactPath(unpackDir)
	if err != nil {
		return err
	}
	f, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "open dump")
	}
	defer f.Close()

	cmd := t.dialect.RestoreCommand(t.conn)
	cmd.Stdin = f
	if err := t.runner.Run(ctx, cmd); err != nil {
		return errors.Wrapf(err, "restore %s", t.conn.Name)
	}
	return nil
}

var _ snapshot.Target = (*Target)(nil)
