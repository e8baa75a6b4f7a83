package database_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"sitesnap/src/snapshot"
	"sitesnap/src/targets/database"
	"sitesnap/src/toolrun"
)

var now = time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

var conn = database.Connection{Port: 5432, Name: "shop", User: "shop", Password: "s3cret"}

func dumpHandler(payload string) func(toolrun.Command) error {
	return func(cmd toolrun.Command) error {
		_, err := io.WriteString(cmd.Stdout, payload)
		return err
	}
}

func TestPostgres_SnapshotPrependsPreamble(t *testing.T) {
	root := t.TempDir()
	fake := &toolrun.Fake{Handler: dumpHandler("CREATE TABLE orders ();\n")}
	target := database.New("postgres", database.Postgres{}, conn, fake, testclock.NewClock(now))

	require.NoError(t, target.Snapshot(context.Background(), root))
	require.Equal(t, "database_postgres_backup.2024-01-02_10-00.sql", target.DumpFile())

	body, err := os.ReadFile(filepath.Join(root, target.DumpFile()))
	require.NoError(t, err)
	require.Equal(t, `\connect "postgres"
DROP DATABASE IF EXISTS "shop";
CREATE DATABASE "shop" WITH OWNER "shop" ENCODING 'UTF8';
\connect "shop"
CREATE TABLE orders ();
`, string(body))

	cmd := fake.Last()
	require.Equal(t, "pg_dump", cmd.Path)
	require.Equal(t, []string{"--host=127.0.0.1", "--port=5432", "shop"}, cmd.Args)
	require.Equal(t, map[string]string{"PGUSER": "shop", "PGPASSWORD": "s3cret", "PGDATABASE": "shop"}, cmd.Env)
	require.Empty(t, os.Getenv("PGPASSWORD"))
	require.NotContains(t, cmd.String(), "s3cret")
}

func TestPostgres_SnapshotFailureLeavesNoFile(t *testing.T) {
	root := t.TempDir()
	fake := &toolrun.Fake{Handler: func(cmd toolrun.Command) error {
		_, _ = io.WriteString(cmd.Stdout, "partial output")
		return errors.Wrap(toolrun.ErrToolFailed, "pg_dump: exit status 1")
	}}
	target := database.New("postgres", database.Postgres{}, conn, fake, testclock.NewClock(now))
	target.SetDumpFile("stale.sql")

	err := target.Snapshot(context.Background(), root)
	require.True(t, errors.Is(err, toolrun.ErrToolFailed))
	require.Empty(t, target.DumpFile())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestPostgres_RestoreFeedsDump(t *testing.T) {
	dir := t.TempDir()
	const dump = "database_postgres_backup.Y.sql"
	require.NoError(t, os.WriteFile(filepath.Join(dir, dump), []byte("SELECT 1;"), 0o644))

	var fed string
	fake := &toolrun.Fake{Handler: func(cmd toolrun.Command) error {
		b, err := io.ReadAll(cmd.Stdin)
		fed = string(b)
		return err
	}}
	target := database.New("postgres", database.Postgres{}, database.Connection{Host: "db.internal", Name: "shop", User: "shop"}, fake, nil)
	target.ApplyDescription([]snapshot.Entry{{Name: "postgres", DumpFile: dump}})

	require.NoError(t, target.Restore(context.Background(), dir))
	require.Equal(t, "SELECT 1;", fed)
	cmd := fake.Last()
	require.Equal(t, "psql", cmd.Path)
	require.Equal(t, []string{"--host=db.internal", "--quiet", "--dbname=postgres"}, cmd.Args)
	require.Equal(t, "postgres", cmd.Env["PGDATABASE"])
}

func TestRestore_MissingDumpIsNoop(t *testing.T) {
	fake := &toolrun.Fake{}
	target := database.New("postgres", database.Postgres{}, conn, fake, nil)

	err := target.Restore(context.Background(), t.TempDir())
	require.True(t, errors.Is(err, snapshot.ErrMissingArtifact))
	require.Empty(t, fake.Calls)
}

func TestRestore_ToolFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "d.sql"), []byte("x"), 0o644))
	fake := &toolrun.Fake{Handler: func(toolrun.Command) error {
		return errors.Wrap(toolrun.ErrToolFailed, "psql: exit status 3")
	}}
	target := database.New("postgres", database.Postgres{}, conn, fake, nil)
	target.SetDumpFile("d.sql")
	require.True(t, errors.Is(target.Restore(context.Background(), dir), toolrun.ErrToolFailed))
}

func TestMySQL_Commands(t *testing.T) {
	root := t.TempDir()
	fake := &toolrun.Fake{Handler: dumpHandler("CREATE TABLE t (id int);\n")}
	c := database.Connection{Host: "10.0.0.5", Port: 3306, Name: "wp", User: "wp", Password: "pw"}
	target := database.New("mysql", database.MySQL{}, c, fake, testclock.NewClock(now))

	require.NoError(t, target.Snapshot(context.Background(), root))
	require.Equal(t, "database_mysql_backup.2024-01-02_10-00.sql", target.DumpFile())
	body, err := os.ReadFile(filepath.Join(root, target.DumpFile()))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(body), "DROP DATABASE IF EXISTS `wp`;\nCREATE DATABASE `wp` CHARACTER SET utf8mb4;\nUSE `wp`;\n"))

	cmd := fake.Last()
	require.Equal(t, "mysqldump", cmd.Path)
	require.Equal(t, []string{"--host=10.0.0.5", "--port=3306", "--user=wp", "--single-transaction", "--routines", "--events", "--no-tablespaces", "wp"}, cmd.Args)
	require.Equal(t, map[string]string{"MYSQL_PWD": "pw"}, cmd.Env)

	restore := database.MySQL{}.RestoreCommand(c)
	require.Equal(t, "mysql", restore.Path)
	require.Equal(t, []string{"--host=10.0.0.5", "--port=3306", "--user=wp"}, restore.Args)
}

func TestPostgres_PreambleQuoting(t *testing.T) {
	p := database.Postgres{}.Preamble(database.Connection{Name: `we"ird`, Encoding: "LATIN1"})
	require.Contains(t, p, `DROP DATABASE IF EXISTS "we""ird";`)
	require.Contains(t, p, `CREATE DATABASE "we""ird" ENCODING 'LATIN1';`)
}

func TestDialectFor(t *testing.T) {
	d, ok := database.DialectFor("PostgreSQL")
	require.True(t, ok)
	require.Equal(t, "postgres", d.Engine())
	d, ok = database.DialectFor("mariadb")
	require.True(t, ok)
	require.Equal(t, "mysql", d.Engine())
	_, ok = database.DialectFor("oracle")
	require.False(t, ok)
}
