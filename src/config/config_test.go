package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"sitesnap/src/config"
)

const sample = `
media_root: /srv/shop/media
archiver: builtin
targets:
  - name: postgres
    kind: postgres
    database:
      port: 5432
      name: shop
      user: shop
      password: ${SITESNAP_TEST_PW}
  - name: media
    kind: directory
    path: /srv/shop/media
  - name: media_upload
    kind: directory
    path: /srv/shop/media/upload
    remove_old_files: false
`

func TestLoad_DefaultsAndExpansion(t *testing.T) {
	t.Setenv("SITESNAP_TEST_PW", "s3cret")
	path := filepath.Join(t.TempDir(), "sitesnap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "/srv/shop/snapshots", cfg.SnapshotsDir)
	require.Equal(t, "info", cfg.LogLevel)
	require.Len(t, cfg.Targets, 3)

	db := cfg.Targets[0].Database
	require.Equal(t, "127.0.0.1", db.Host)
	require.Equal(t, "s3cret", db.Password)
	require.True(t, cfg.Targets[1].RemovesOldFiles())
	require.False(t, cfg.Targets[2].RemovesOldFiles())
}

func TestLoad_RelativeSnapshotsDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sitesnap.yaml")
	doc := "snapshots_dir: snaps\ntargets:\n  - {name: media, kind: directory, path: /srv/media}\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "snaps"), cfg.SnapshotsDir)
}

func TestLoad_Missing(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorContains(t, err, "config file not found")
}

func TestParse_Validation(t *testing.T) {
	cases := map[string]string{
		"no root":      "targets:\n  - {kind: directory, path: /x}\n",
		"no targets":   "snapshots_dir: /s\n",
		"duplicate":    "snapshots_dir: /s\ntargets:\n  - {name: a, kind: directory, path: /x}\n  - {name: a, kind: directory, path: /y}\n",
		"unknown kind": "snapshots_dir: /s\ntargets:\n  - {name: a, kind: ftp}\n",
		"no db name":   "snapshots_dir: /s\ntargets:\n  - {name: a, kind: postgres, database: {user: u}}\n",
		"no path":      "snapshots_dir: /s\ntargets:\n  - {name: a, kind: sqlite}\n",
		"no instance":  "snapshots_dir: /s\ntargets:\n  - {name: a, kind: incus}\n",
		"bad archiver": "snapshots_dir: /s\narchiver: zip\ntargets:\n  - {name: a, kind: directory, path: /x}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.Parse([]byte(doc))
			require.True(t, errors.Is(err, config.ErrInvalid), "got %v", err)
		})
	}
}

func TestParse_UnknownField(t *testing.T) {
	_, err := config.Parse([]byte("snapshots_dir: /s\nsnapshot_dir: /typo\n"))
	require.Error(t, err)
}

func TestParse_NameDefaultsToKind(t *testing.T) {
	cfg, err := config.Parse([]byte("snapshots_dir: /s\ntargets:\n  - {kind: Postgres, database: {name: shop}}\n"))
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.Targets[0].Name)
	require.Equal(t, config.KindPostgres, cfg.Targets[0].Kind)
}

func TestResolvePath(t *testing.T) {
	t.Setenv(config.EnvPath, "")
	require.Equal(t, config.DefaultPath, config.ResolvePath(""))
	t.Setenv(config.EnvPath, "/etc/sitesnap.yaml")
	require.Equal(t, "/etc/sitesnap.yaml", config.ResolvePath(""))
	require.Equal(t, "/tmp/x.yaml", config.ResolvePath("/tmp/x.yaml"))
}

func TestParse_MediaTargetsDefaultPaths(t *testing.T) {
	doc := `media_root: /srv/shop/media
targets:
  - {name: media, kind: directory}
  - {name: media_upload, kind: directory}
`
	cfg, err := config.Parse([]byte(doc))
	require.NoError(t, err)
	require.Equal(t, "/srv/shop/media", cfg.Targets[0].Path)
	require.Equal(t, "/srv/shop/media/upload", cfg.Targets[1].Path)

	cfg, err = config.Parse([]byte("upload_root: /data/uploads\n" + doc))
	require.NoError(t, err)
	require.Equal(t, "/data/uploads", cfg.Targets[1].Path)

	// Other directory targets still need an explicit path.
	_, err = config.Parse([]byte("media_root: /srv/m\ntargets:\n  - {name: static, kind: directory}\n"))
	require.True(t, errors.Is(err, config.ErrInvalid), "got %v", err)
}

func TestParse_RejectsSnapshotsInsideDirectoryTarget(t *testing.T) {
	for _, root := range []string{"/srv/media/snapshots", "/srv/media"} {
		doc := "snapshots_dir: " + root + "\ntargets:\n  - {name: media, kind: directory, path: /srv/media}\n"
		_, err := config.Parse([]byte(doc))
		require.True(t, errors.Is(err, config.ErrInvalid), "root %s: got %v", root, err)
		require.ErrorContains(t, err, "lies inside")
	}

	_, err := config.Parse([]byte("snapshots_dir: /srv/media-snapshots\ntargets:\n  - {name: media, kind: directory, path: /srv/media}\n"))
	require.NoError(t, err)
}

func TestLoad_RelativeSnapshotsDirInsideTarget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sitesnap.yaml")
	doc := "snapshots_dir: media/snaps\ntargets:\n  - {name: media, kind: directory, path: " + filepath.Join(dir, "media") + "}\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	_, err := config.Load(path)
	require.True(t, errors.Is(err, config.ErrInvalid), "got %v", err)
}
