package snapshot

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/pkg/errors"
)

// ManifestFile is the name of the manifest inside every snapshot archive.
const ManifestFile = "info.json"

// ErrManifestUnreadable is returned when a restore cannot load the manifest.
var ErrManifestUnreadable = errors.New("snapshot manifest is missing or corrupt")

// Entry is the serialised identity of one target and its artifact.
type Entry struct {
	Name     string `json:"name"`
	DumpFile string `json:"dump_file"`
}

// Manifest lists entries in target configuration order.
type Manifest []Entry

// WriteManifest atomically writes m as indented JSON to dir/info.json.
func WriteManifest(dir string, m Manifest) error {
	if m == nil {
		m = Manifest{}
	}
	body, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return errors.Wrap(err, "encode manifest")
	}
	body = append(body, '\n')
	path := filepath.Join(dir, ManifestFile)
	if err := atomic.WriteFile(path, bytes.NewReader(body)); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// ReadManifest loads dir/info.json.
func ReadManifest(dir string) (Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrManifestUnreadable, "read %s: %v", ManifestFile, err)
	}
	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, errors.Wrapf(ErrManifestUnreadable, "decode %s: %v", ManifestFile, err)
	}
	return m, nil
}

// resolveArtifact joins name to dir, refusing names that are not plain file
// names. Manifests come from archives and are not trusted to stay inside dir.
func resolveArtifact(dir, name string) (string, error) {
	if name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsRune(name, '/') {
		return "", errors.Wrapf(ErrMissingArtifact, "invalid artifact name %q", name)
	}
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", errors.Wrapf(ErrMissingArtifact, "%s: %v", name, err)
	}
	return path, nil
}
