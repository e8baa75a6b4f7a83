package cli

import (
	"context"
	"io"

	"github.com/juju/clock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sitesnap/src/archiver"
	"sitesnap/src/config"
	"sitesnap/src/logging"
	"sitesnap/src/snapshot"
	"sitesnap/src/targets"
	"sitesnap/src/toolrun"
)

// app is the logger and orchestrator wired from the config file.
type app struct {
	log  *zap.SugaredLogger
	site *snapshot.Site
}

// loadConfig resolves and loads the config named by the global flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flag, _ := cmd.Root().PersistentFlags().GetString("config")
	return config.Load(config.ResolvePath(flag))
}

// newApp builds the orchestrator for cfg. Logs go to stderr so stdout stays
// parseable.
func newApp(cmd *cobra.Command, cfg *config.Config, stderr io.Writer) (*app, error) {
	level := cfg.LogLevel
	if l, _ := cmd.Root().PersistentFlags().GetString("log-level"); l != "" {
		level = l
	}
	log, err := logging.New(level, stderr)
	if err != nil {
		return nil, err
	}

	runner := toolrun.Exec{}
	arch, err := archiver.New(cfg.Archiver, runner)
	if err != nil {
		return nil, err
	}
	list, err := targets.Build(cfg.Targets, targets.Deps{
		Runner:   runner,
		Archiver: arch,
		Clock:    clock.WallClock,
		Progress: stderr,
	})
	if err != nil {
		return nil, err
	}
	site, err := snapshot.New(snapshot.Options{
		Root:     cfg.SnapshotsDir,
		Archiver: arch,
		Clock:    clock.WallClock,
		Logger:   log,
	}, list...)
	if err != nil {
		return nil, err
	}
	return &app{log: log, site: site}, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
