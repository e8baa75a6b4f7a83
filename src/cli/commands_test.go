package cli_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"sitesnap/src/cli"
	"sitesnap/src/store"
)

type fixture struct {
	dir       string
	config    string
	snapshots string
	media     string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:       dir,
		config:    filepath.Join(dir, "sitesnap.yaml"),
		snapshots: filepath.Join(dir, "snapshots"),
		media:     filepath.Join(dir, "media"),
	}
	require.NoError(t, os.MkdirAll(f.media, 0o755))
	doc := fmt.Sprintf(`snapshots_dir: %s
archiver: builtin
log_level: error
targets:
  - name: media
    kind: directory
    path: %s
`, f.snapshots, f.media)
	require.NoError(t, os.WriteFile(f.config, []byte(doc), 0o600))
	return f
}

func (f fixture) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := cli.NewRootCmd(&out, &errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", f.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (f fixture) archive(t *testing.T, name string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(f.snapshots, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.snapshots, name), []byte("x"), 0o644))
}

func TestSaveListRestore_EndToEnd(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.media, "old.txt"), []byte("old"), 0o644))

	out, err := f.run(t, "", "save")
	require.NoError(t, err)
	require.Contains(t, out, "media")
	require.Contains(t, out, "Snapshot written:")

	out, err = f.run(t, "", "list")
	require.NoError(t, err)
	require.Regexp(t, `^0: snapshot\.\d{4}-\d{2}-\d{2}_\d{2}-\d{2}\.tar\.gz\n$`, out)

	require.NoError(t, os.Remove(filepath.Join(f.media, "old.txt")))
	require.NoError(t, os.WriteFile(filepath.Join(f.media, "new.txt"), []byte("new"), 0o644))

	out, err = f.run(t, "n\n", "restore")
	require.NoError(t, err)
	require.Contains(t, out, "Aborted.")
	require.FileExists(t, filepath.Join(f.media, "new.txt"))

	out, err = f.run(t, "", "--yes", "restore", "0")
	require.NoError(t, err)
	require.Contains(t, out, "ok")
	require.FileExists(t, filepath.Join(f.media, "old.txt"))
	require.NoFileExists(t, filepath.Join(f.media, "new.txt"))
	require.NoDirExists(t, filepath.Join(f.snapshots, "tmp"))
}

func TestRestore_ConfirmYes(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.media, "a.txt"), []byte("a"), 0o644))
	_, err := f.run(t, "", "save")
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(f.media, "a.txt")))

	out, err := f.run(t, "y\n", "restore")
	require.NoError(t, err)
	require.Contains(t, out, "[y/N]")
	require.FileExists(t, filepath.Join(f.media, "a.txt"))
}

func TestRestore_DryRunPreview(t *testing.T) {
	f := newFixture(t)
	f.archive(t, "snapshot.2024-03-01_10-00.tar.gz")

	out, err := f.run(t, "", "--dry-run", "restore")
	require.NoError(t, err)
	require.Contains(t, out, "ACTION")
	require.Contains(t, out, "snapshot.2024-03-01_10-00.tar.gz")
	require.NoDirExists(t, filepath.Join(f.snapshots, "tmp"))
}

func TestRestore_BadIndex(t *testing.T) {
	f := newFixture(t)
	f.archive(t, "snapshot.2024-03-01_10-00.tar.gz")

	_, err := f.run(t, "", "restore", "latest")
	require.ErrorContains(t, err, "must be a number")

	_, err = f.run(t, "", "--yes", "restore", "3")
	require.True(t, errors.Is(err, store.ErrInvalidIndex), "got %v", err)
}

func TestRestore_MissingSnapshotsDir(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(t, "", "--yes", "restore")
	require.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)
}

func TestList_Ordering(t *testing.T) {
	f := newFixture(t)
	f.archive(t, "snapshot.2024-03-01_10-00.tar.gz")
	f.archive(t, "snapshot.2024-03-02_09-30.tar.gz")
	f.archive(t, "notes.txt")

	out, err := f.run(t, "", "list")
	require.NoError(t, err)
	require.Equal(t, "0: snapshot.2024-03-02_09-30.tar.gz\n1: snapshot.2024-03-01_10-00.tar.gz\n", out)

	out, err = f.run(t, "", "list", "--long")
	require.NoError(t, err)
	require.Contains(t, out, "SIZE")
	require.Contains(t, out, "1 B")

	out, err = f.run(t, "", "list", "-o", "json")
	require.NoError(t, err)
	require.Contains(t, out, `"name": "snapshot.2024-03-02_09-30.tar.gz"`)

	_, err = f.run(t, "", "list", "-o", "xml")
	require.ErrorContains(t, err, "unsupported --output")
}

func TestSave_DryRun(t *testing.T) {
	f := newFixture(t)
	out, err := f.run(t, "", "--dry-run", "save")
	require.NoError(t, err)
	require.Contains(t, out, "Would snapshot")
	entries, err := store.New(f.snapshots).List()
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestSave_FailedTargetIsReported(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.RemoveAll(f.media))

	out, err := f.run(t, "", "save")
	require.ErrorContains(t, err, "1 of 1 targets")
	require.Contains(t, out, "failed")
	entries, lerr := store.New(f.snapshots).List()
	require.NoError(t, lerr)
	require.Len(t, entries, 1, "archive is still sealed with the manifest")
}

func TestConfigMissing(t *testing.T) {
	var out bytes.Buffer
	cmd := cli.NewRootCmd(&out, &out)
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml"), "list"})
	require.ErrorContains(t, cmd.Execute(), "config file not found")
}
