package incusapi

import (
	"fmt"
	"io"
	"net/http"
	"time"

	incuscli "github.com/lxc/incus/client"
	"github.com/lxc/incus/shared/api"
)

// backupExpiry bounds how long a server-side backup survives if we crash
// before deleting it.
const backupExpiry = 24 * time.Hour

// RealClient wraps the official Incus Go client.
type RealClient struct {
	c incuscli.InstanceServer
}

// ConnectLocal connects to the local Incus via the UNIX socket.
func ConnectLocal() (*RealClient, error) {
	c, err := incuscli.ConnectIncusUnix("", nil)
	if err != nil {
		return nil, err
	}
	return &RealClient{c: c}, nil
}

func (r *RealClient) project(name string) incuscli.InstanceServer {
	if name == "" {
		return r.c
	}
	return r.c.UseProject(name)
}

func (r *RealClient) Server() (ServerInfo, error) {
	s, _, err := r.c.GetServer()
	if err != nil {
		return ServerInfo{}, err
	}
	return ServerInfo{ServerVersion: s.Environment.ServerVersion}, nil
}

func (r *RealClient) InstanceExists(project, name string) (bool, error) {
	_, _, err := r.project(project).GetInstance(name)
	if err == nil {
		return true, nil
	}
	if api.StatusErrorCheck(err, http.StatusNotFound) {
		return false, nil
	}
	return false, err
}

func (r *RealClient) StopInstance(project, name string, force bool) error {
	c := r.project(project)
	inst, _, err := c.GetInstance(name)
	if err != nil {
		return err
	}
	if !inst.IsActive() {
		return nil
	}
	op, err := c.UpdateInstanceState(name, api.InstanceStatePut{Action: "stop", Timeout: -1, Force: force}, "")
	if err != nil {
		return err
	}
	return op.Wait()
}

func (r *RealClient) DeleteInstance(project, name string) error {
	op, err := r.project(project).DeleteInstance(name)
	if err != nil {
		return err
	}
	return op.Wait()
}

func (r *RealClient) ExportInstance(project, name string, opts ExportOptions, w io.WriteSeeker) error {
	c := r.project(project)
	backupName := fmt.Sprintf("sitesnap-%d", time.Now().UTC().Unix())
	op, err := c.CreateInstanceBackup(name, api.InstanceBackupsPost{
		Name:             backupName,
		ExpiresAt:        time.Now().Add(backupExpiry),
		InstanceOnly:     opts.InstanceOnly,
		OptimizedStorage: opts.Optimized,
	})
	if err != nil {
		return fmt.Errorf("create backup: %w", err)
	}
	if err := op.Wait(); err != nil {
		return fmt.Errorf("create backup: %w", err)
	}
	defer func() {
		if op, err := c.DeleteInstanceBackup(name, backupName); err == nil {
			_ = op.Wait()
		}
	}()
	if _, err := c.GetInstanceBackupFile(name, backupName, &incuscli.BackupFileRequest{BackupFile: w}); err != nil {
		return fmt.Errorf("download backup: %w", err)
	}
	return nil
}

func (r *RealClient) ImportInstance(project, name, pool string, rd io.Reader) error {
	op, err := r.project(project).CreateInstanceFromBackup(incuscli.InstanceBackupArgs{
		BackupFile: rd,
		PoolName:   pool,
		Name:       name,
	})
	if err != nil {
		return err
	}
	return op.Wait()
}

var _ Client = (*RealClient)(nil)
