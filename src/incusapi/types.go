package incusapi

import "io"

// ServerInfo exposes key server metadata we care about.
type ServerInfo struct {
	ServerVersion string
}

// ExportOptions tune instance exports.
type ExportOptions struct {
	// InstanceOnly skips the instance's snapshots.
	InstanceOnly bool
	// Optimized uses the storage driver's native format. Such exports only
	// import into a pool of the same driver.
	Optimized bool
}

// Client is a narrow interface over the Incus API used by the instance target.
// Keep it small and focused on what we actually need so it stays mockable.
type Client interface {
	Server() (ServerInfo, error)

	InstanceExists(project, name string) (bool, error)
	StopInstance(project, name string, force bool) error
	DeleteInstance(project, name string) error

	// ExportInstance writes a backup tarball of the instance to w.
	ExportInstance(project, name string, opts ExportOptions, w io.WriteSeeker) error
	// ImportInstance creates instance name from a backup tarball. An empty
	// pool lets the server pick the default.
	ImportInstance(project, name, pool string, r io.Reader) error
}
