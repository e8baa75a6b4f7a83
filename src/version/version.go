// Package version holds the build version, overridden with
// -ldflags "-X sitesnap/src/version.Version=...".
package version

var Version = "dev"
