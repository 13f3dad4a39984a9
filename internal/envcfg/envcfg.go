// Package envcfg centralizes the environment variables the tool consumes.
package envcfg

import (
	"os"
	"strconv"
	"time"
)

const (
	// RegistryAuthFileVar names the dockerconfigjson file used for registry
	// authentication.
	RegistryAuthFileVar = "REGISTRY_AUTH_JSON"
	// LocalTestVar relaxes the quay.io hostname restriction for development.
	LocalTestVar = "PMT_LOCAL_TEST"
	// MigrationTimeoutVar overrides the per-script timeout in seconds.
	MigrationTimeoutVar = "PMT_MIGRATION_TIMEOUT_SECONDS"
	// RegistryConcurrencyVar bounds parallel bundle inspections.
	RegistryConcurrencyVar = "PMT_REGISTRY_CONCURRENCY"
)

const (
	defaultMigrationTimeout    = 120 * time.Second
	defaultRegistryConcurrency = 8
)

// RegistryAuthFile returns the configured auth file path, empty if unset.
func RegistryAuthFile() string {
	return os.Getenv(RegistryAuthFileVar)
}

// LocalTest reports whether the development mode escape hatch is enabled.
func LocalTest() bool {
	return os.Getenv(LocalTestVar) != ""
}

// MigrationTimeout returns the per-script execution timeout.
func MigrationTimeout() time.Duration {
	if v := os.Getenv(MigrationTimeoutVar); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultMigrationTimeout
}

// RegistryConcurrency returns the bound on parallel registry inspections.
func RegistryConcurrency() int {
	if v := os.Getenv(RegistryConcurrencyVar); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultRegistryConcurrency
}
