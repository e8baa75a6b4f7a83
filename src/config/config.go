// Package config loads the sitesnap configuration file.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalid marks configuration validation failures.
var ErrInvalid = errors.New("invalid configuration")

// Target kinds.
const (
	KindPostgres  = "postgres"
	KindMySQL     = "mysql"
	KindSQLite    = "sqlite"
	KindDirectory = "directory"
	KindIncus     = "incus"
)

// Directory targets with these names get their path from MediaRoot and
// UploadRoot when none is configured.
const (
	TargetMedia       = "media"
	TargetMediaUpload = "media_upload"
)

// Config is the resolved configuration handed to the orchestrator.
type Config struct {
	// SnapshotsDir holds sealed archives. Defaults to a "snapshots"
	// directory next to MediaRoot.
	SnapshotsDir string `yaml:"snapshots_dir"`
	MediaRoot    string `yaml:"media_root"`
	// UploadRoot is the default path of the media_upload target. Defaults
	// to MediaRoot/upload.
	UploadRoot string `yaml:"upload_root"`
	// Archiver is "tar" (system binary, default) or "builtin".
	Archiver string   `yaml:"archiver"`
	LogLevel string   `yaml:"log_level"`
	Targets  []Target `yaml:"targets"`
}

// Target configures one snapshot target. Only the block matching Kind is
// consulted.
type Target struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`

	Database *Database `yaml:"database,omitempty"`

	// Path is the directory (kind directory) or database file (kind sqlite).
	Path           string `yaml:"path,omitempty"`
	RemoveOldFiles *bool  `yaml:"remove_old_files,omitempty"`

	Incus *Incus `yaml:"incus,omitempty"`
}

// Database holds connection settings for postgres and mysql targets.
type Database struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Encoding string `yaml:"encoding"`
}

// Incus selects an instance for incus targets.
type Incus struct {
	Project      string `yaml:"project"`
	Instance     string `yaml:"instance"`
	Pool         string `yaml:"pool"`
	Optimized    bool   `yaml:"optimized"`
	InstanceOnly bool   `yaml:"instance_only"`
	Replace      *bool  `yaml:"replace"`
}

// RemovesOldFiles reports the directory restore policy, true unless
// disabled explicitly.
func (t Target) RemovesOldFiles() bool {
	return t.RemoveOldFiles == nil || *t.RemoveOldFiles
}

// Load reads, expands and validates the YAML file at path. ${VAR} references
// are substituted from the environment before parsing so secrets can stay out
// of the file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("config file not found: %s", path)
		}
		return nil, errors.Wrap(err, "reading config")
	}
	cfg, err := parse([]byte(os.ExpandEnv(string(raw))), filepath.Dir(path))
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return cfg, nil
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	return parse(data, "")
}

// parse resolves a relative snapshots_dir against baseDir when set.
func parse(data []byte, baseDir string) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if baseDir != "" && cfg.SnapshotsDir != "" && !filepath.IsAbs(cfg.SnapshotsDir) {
		cfg.SnapshotsDir = filepath.Join(baseDir, cfg.SnapshotsDir)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SnapshotsDir == "" && c.MediaRoot != "" {
		c.SnapshotsDir = filepath.Join(filepath.Dir(filepath.Clean(c.MediaRoot)), "snapshots")
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.UploadRoot == "" && c.MediaRoot != "" {
		c.UploadRoot = filepath.Join(c.MediaRoot, "upload")
	}
	for i := range c.Targets {
		t := &c.Targets[i]
		t.Kind = strings.ToLower(strings.TrimSpace(t.Kind))
		if t.Name == "" {
			t.Name = t.Kind
		}
		if t.Kind == KindDirectory && t.Path == "" {
			switch t.Name {
			case TargetMedia:
				t.Path = c.MediaRoot
			case TargetMediaUpload:
				t.Path = c.UploadRoot
			}
		}
		if t.Database != nil && t.Database.Host == "" {
			t.Database.Host = "127.0.0.1"
		}
	}
}

// Validate checks the configuration for problems the orchestrator would only
// discover halfway through a run.
func (c *Config) Validate() error {
	var problems []string
	if c.SnapshotsDir == "" {
		problems = append(problems, "snapshots_dir (or media_root) is required")
	}
	switch strings.ToLower(c.Archiver) {
	case "", "tar", "builtin":
	default:
		problems = append(problems, fmt.Sprintf("archiver %q is not one of tar, builtin", c.Archiver))
	}
	if len(c.Targets) == 0 {
		problems = append(problems, "at least one target is required")
	}
	seen := map[string]bool{}
	for i, t := range c.Targets {
		where := fmt.Sprintf("targets[%d] (%s)", i, t.Name)
		if t.Name == "" {
			problems = append(problems, fmt.Sprintf("targets[%d]: name is required", i))
		} else if seen[t.Name] {
			problems = append(problems, fmt.Sprintf("%s: duplicate name", where))
		}
		seen[t.Name] = true

		switch t.Kind {
		case KindPostgres, KindMySQL:
			if t.Database == nil || t.Database.Name == "" {
				problems = append(problems, where+": database.name is required")
			}
		case KindDirectory, KindSQLite:
			if t.Path == "" {
				problems = append(problems, where+": path is required")
			} else if t.Kind == KindDirectory && c.SnapshotsDir != "" && within(c.SnapshotsDir, t.Path) {
				problems = append(problems, fmt.Sprintf("%s: snapshots_dir %s lies inside %s", where, c.SnapshotsDir, t.Path))
			}
		case KindIncus:
			if t.Incus == nil || t.Incus.Instance == "" {
				problems = append(problems, where+": incus.instance is required")
			}
		default:
			problems = append(problems, fmt.Sprintf("%s: unknown kind %q", where, t.Kind))
		}
	}
	if len(problems) > 0 {
		return errors.Wrap(ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// within reports whether path is dir itself or below it.
func within(path, dir string) bool {
	p, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	d, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(d, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
