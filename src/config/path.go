package config

import "os"

// EnvPath names the environment variable consulted for the config location.
const EnvPath = "SITESNAP_CONFIG"

// DefaultPath is used when neither a flag nor EnvPath is set.
const DefaultPath = "sitesnap.yaml"

// ResolvePath picks the configuration file: explicit flag, then EnvPath, then
// DefaultPath in the working directory.
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return DefaultPath
}
