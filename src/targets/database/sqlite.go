package database

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/clock"
	"github.com/natefinch/atomic"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"sitesnap/src/snapshot"
)

// SQLiteTarget snapshots an embedded SQLite database file. The snapshot is a
// consistent copy taken with VACUUM INTO, so the application may keep
// running while it is taken.
type SQLiteTarget struct {
	snapshot.Base
	path  string
	clock clock.Clock
}

func NewSQLite(name, path string, clk clock.Clock) *SQLiteTarget {
	if clk == nil {
		clk = clock.WallClock
	}
	return &SQLiteTarget{Base: snapshot.NewBase(name), path: path, clock: clk}
}

func (t *SQLiteTarget) Snapshot(ctx context.Context, root string) error {
	t.SetDumpFile("")
	if _, err := os.Stat(t.path); err != nil {
		return errors.Wrapf(err, "sqlite database %s", t.path)
	}
	name := snapshot.ArtifactName("database", "sqlite", t.clock.Now(), "db")
	out := filepath.Join(root, name)
	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove previous dump")
	}

	db, err := sql.Open("sqlite", t.path)
	if err != nil {
		return errors.Wrapf(err, "open %s", t.path)
	}
	defer db.Close()
	if _, err := db.ExecContext(ctx, "VACUUM INTO "+sqlLiteral(out)); err != nil {
		_ = os.Remove(out)
		return errors.Wrapf(err, "vacuum %s", t.path)
	}
	t.SetDumpFile(name)
	return nil
}

// Restore replaces the live database file with the snapshot copy. Stale
// write-ahead log files are removed so they cannot be replayed on top.
func (t *SQLiteTarget) Restore(ctx context.Context, unpackDir string) error {
	src, err := t.ArtifactPath(unpackDir)
	if err != nil {
		return err
	}
	f, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "open dump")
	}
	defer f.Close()

	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return errors.Wrap(err, "create database directory")
	}
	for _, suffix := range []string{"-wal", "-shm", "-journal"} {
		if err := os.Remove(t.path + suffix); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "remove %s", t.path+suffix)
		}
	}
	if err := atomic.WriteFile(t.path, f); err != nil {
		return errors.Wrapf(err, "replace %s", t.path)
	}
	return nil
}

func sqlLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

var _ snapshot.Target = (*SQLiteTarget)(nil)
