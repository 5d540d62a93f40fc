package infra

import (
	"os"
	"testing"
)

func TestMigrate(t *testing.T) {
	url := os.Getenv("TEST_POSTGRES_MIGRATION_URL")
	if url == "" {
		t.Skip("TEST_POSTGRES_MIGRATION_URL not set")
	}
	// running twice is a no-op the second time
	for i := 0; i < 2; i++ {
		if err := Migrate("file://../../migration/sql", url); err != nil {
			t.Fatalf("migrate run %d: %v", i, err)
		}
	}
}

func TestMigrateBadSource(t *testing.T) {
	if err := Migrate("file:///does/not/exist", "postgres://localhost:1/none?sslmode=disable"); err == nil {
		t.Fatalf("expected error")
	}
}
