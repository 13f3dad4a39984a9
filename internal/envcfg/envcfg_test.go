package envcfg

import (
	"testing"
	"time"
)

func TestMigrationTimeout(t *testing.T) {
	t.Setenv(MigrationTimeoutVar, "")
	if got := MigrationTimeout(); got != 120*time.Second {
		t.Errorf("Default timeout = %s, want 120s", got)
	}

	t.Setenv(MigrationTimeoutVar, "30")
	if got := MigrationTimeout(); got != 30*time.Second {
		t.Errorf("Timeout = %s, want 30s", got)
	}

	t.Setenv(MigrationTimeoutVar, "not-a-number")
	if got := MigrationTimeout(); got != 120*time.Second {
		t.Errorf("Bad value must fall back to the default, got %s", got)
	}
}

func TestRegistryConcurrency(t *testing.T) {
	t.Setenv(RegistryConcurrencyVar, "")
	if got := RegistryConcurrency(); got != 8 {
		t.Errorf("Default concurrency = %d, want 8", got)
	}

	t.Setenv(RegistryConcurrencyVar, "2")
	if got := RegistryConcurrency(); got != 2 {
		t.Errorf("Concurrency = %d, want 2", got)
	}

	t.Setenv(RegistryConcurrencyVar, "0")
	if got := RegistryConcurrency(); got != 8 {
		t.Errorf("Zero must fall back to the default, got %d", got)
	}
}
