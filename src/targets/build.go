// Package targets turns configured target blocks into snapshot targets.
package targets

import (
	"io"
	"sync"

	"github.com/juju/clock"
	"github.com/pkg/errors"

	"sitesnap/src/archiver"
	"sitesnap/src/config"
	"sitesnap/src/incusapi"
	"sitesnap/src/snapshot"
	"sitesnap/src/targets/database"
	"sitesnap/src/targets/directory"
	"sitesnap/src/targets/incus"
	"sitesnap/src/toolrun"
)

// Deps are the collaborators shared by every built target.
type Deps struct {
	Runner   toolrun.Runner
	Archiver archiver.Archiver
	Clock    clock.Clock
	// ConnectIncus dials the Incus daemon. Defaults to the local unix socket.
	ConnectIncus func() (incusapi.Client, error)
	// Progress receives transfer progress of long imports; nil disables it.
	Progress io.Writer
}

// Build returns one target per configured block, in configuration order.
func Build(targets []config.Target, deps Deps) ([]snapshot.Target, error) {
	if deps.Runner == nil {
		deps.Runner = toolrun.Exec{}
	}
	if deps.Archiver == nil {
		return nil, errors.New("archiver must not be nil")
	}
	connect := sharedConnect(deps.ConnectIncus)

	out := make([]snapshot.Target, 0, len(targets))
	for _, tc := range targets {
		t, err := build(tc, deps, connect)
		if err != nil {
			return nil, errors.Wrapf(err, "target %s", tc.Name)
		}
		out = append(out, t)
	}
	return out, nil
}

func build(tc config.Target, deps Deps, connect func() (incusapi.Client, error)) (snapshot.Target, error) {
	switch tc.Kind {
	case config.KindPostgres, config.KindMySQL:
		dialect, ok := database.DialectFor(tc.Kind)
		if !ok {
			return nil, errors.Errorf("unsupported engine %q", tc.Kind)
		}
		if tc.Database == nil {
			return nil, errors.Wrap(config.ErrInvalid, "database block is required")
		}
		db := tc.Database
		conn := database.Connection{
			Host:     db.Host,
			Port:     db.Port,
			Name:     db.Name,
			User:     db.User,
			Password: db.Password,
			Encoding: db.Encoding,
		}
		return database.New(tc.Name, dialect, conn, deps.Runner, deps.Clock), nil
	case config.KindSQLite:
		return database.NewSQLite(tc.Name, tc.Path, deps.Clock), nil
	case config.KindDirectory:
		opts := directory.Options{Path: tc.Path, RemoveOldFiles: tc.RemovesOldFiles()}
		return directory.New(tc.Name, opts, deps.Archiver, deps.Clock), nil
	case config.KindIncus:
		if tc.Incus == nil {
			return nil, errors.Wrap(config.ErrInvalid, "incus block is required")
		}
		ic := tc.Incus
		opts := incus.Options{
			Project:      ic.Project,
			Instance:     ic.Instance,
			Pool:         ic.Pool,
			Optimized:    ic.Optimized,
			InstanceOnly: ic.InstanceOnly,
			Replace:      ic.Replace != nil && *ic.Replace,
			Progress:     deps.Progress,
		}
		return incus.NewInstance(tc.Name, opts, connect, deps.Clock), nil
	default:
		return nil, errors.Wrapf(config.ErrInvalid, "unknown kind %q", tc.Kind)
	}
}

// sharedConnect dials at most once no matter how many incus targets share it,
// and checks the daemon answers before handing the client out.
func sharedConnect(dial func() (incusapi.Client, error)) func() (incusapi.Client, error) {
	if dial == nil {
		dial = func() (incusapi.Client, error) { return incusapi.ConnectLocal() }
	}
	var (
		once   sync.Once
		client incusapi.Client
		err    error
	)
	return func() (incusapi.Client, error) {
		once.Do(func() {
			client, err = dial()
			if err != nil {
				return
			}
			if _, err = client.Server(); err != nil {
				client, err = nil, errors.Wrap(err, "incus daemon not responding")
			}
		})
		return client, err
	}
}
