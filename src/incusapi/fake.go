package incusapi

import (
	"bytes"
	"io"
)

// FakeClient is an in-memory implementation for unit tests. Instances maps
// "project/name" to the bytes an export produces.
type FakeClient struct {
	ServerVersionStr string
	Instances        map[string][]byte
	Running          map[string]bool

	// ServerErr, when set, is returned by Server to simulate an unreachable daemon.
	ServerErr error
	// Imports records the pool every import targeted, keyed like Instances.
	Imports map[string]string
}

func NewFake() *FakeClient {
	return &FakeClient{
		Instances: map[string][]byte{},
		Running:   map[string]bool{},
		Imports:   map[string]string{},
	}
}

func key(project, name string) string { return project + "/" + name }

func (f *FakeClient) Server() (ServerInfo, error) {
	if f.ServerErr != nil {
		return ServerInfo{}, f.ServerErr
	}
	return ServerInfo{ServerVersion: f.ServerVersionStr}, nil
}

func (f *FakeClient) InstanceExists(project, name string) (bool, error) {
	_, ok := f.Instances[key(project, name)]
	return ok, nil
}

func (f *FakeClient) StopInstance(project, name string, force bool) error {
	if _, ok := f.Instances[key(project, name)]; !ok {
		return &NotFoundError{Resource: "instance", Name: name}
	}
	f.Running[key(project, name)] = false
	return nil
}

func (f *FakeClient) DeleteInstance(project, name string) error {
	k := key(project, name)
	if _, ok := f.Instances[k]; !ok {
		return &NotFoundError{Resource: "instance", Name: name}
	}
	if f.Running[k] {
		return &ConflictError{Resource: "running instance", Name: name}
	}
	delete(f.Instances, k)
	delete(f.Running, k)
	return nil
}

func (f *FakeClient) ExportInstance(project, name string, opts ExportOptions, w io.WriteSeeker) error {
	data, ok := f.Instances[key(project, name)]
	if !ok {
		return &NotFoundError{Resource: "instance", Name: name}
	}
	_, err := io.Copy(w, bytes.NewReader(data))
	return err
}

func (f *FakeClient) ImportInstance(project, name, pool string, r io.Reader) error {
	k := key(project, name)
	if _, ok := f.Instances[k]; ok {
		// mimic Incus conflict
		return &ConflictError{Resource: "instance", Name: name}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.Instances[k] = data
	f.Imports[k] = pool
	return nil
}

type ConflictError struct{ Resource, Name string }
func (e *ConflictError) Error() string { return e.Resource + " conflict: " + e.Name }

type NotFoundError struct{ Resource, Name string }
func (e *NotFoundError) Error() string { return e.Resource + " not found: " + e.Name }

var _ Client = (*FakeClient)(nil)
