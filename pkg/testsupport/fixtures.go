// Package testsupport provides fixture loading and store seeding
// helpers shared by the package tests.
package testsupport

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-repository-docstore/docstore"
	"github.com/goliatone/go-repository-docstore/repository"
)

// LoadFixture loads raw test data from a fixture file. The path is
// relative to the test package directory.
func LoadFixture(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}
	return data
}

// LoadFixtureJSON loads JSON test data from a fixture file and
// unmarshals it into dest.
func LoadFixtureJSON(t *testing.T, path string, dest any) {
	t.Helper()

	if err := json.Unmarshal(LoadFixture(t, path), dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// FixturePath constructs a path to a fixture file under testdata.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// Seed inserts records through the repository so they pass validation
// and receive timestamps and identifiers, and returns them with ids set.
func Seed[T repository.Entity](t *testing.T, repo repository.Repository[T], records []T) []T {
	t.Helper()

	inserted, err := repo.InsertMany(context.Background(), records)
	if err != nil {
		t.Fatalf("failed to seed %s: %v", repo.Collection(), err)
	}
	return inserted
}

// NewStore creates a fresh in-memory store for a test.
func NewStore(t *testing.T) *docstore.MemoryStore {
	t.Helper()
	return docstore.NewMemoryStore()
}
