// Package testutil provides fixtures, recorded sessions and a scripted
// backend for tests of the api packages.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/grez-lucas/bankapi/internal/har"
)

// TestMode selects how integration tests reach a backend.
type TestMode string

const (
	TestModeMock   TestMode = "mock"   // Scripted httptest backend
	TestModeReplay TestMode = "replay" // Replay recorded sessions
	TestModeLive   TestMode = "live"   // Hit the real bank (dangerous!)
)

func GetTestMode() TestMode {
	mode := os.Getenv("BANKAPI_TEST_MODE")
	if mode == "" {
		return TestModeMock
	}
	return TestMode(mode)
}

// SkipUnlessMode skips the test if not in the required mode.
func SkipUnlessMode(t *testing.T, required TestMode) {
	t.Helper()

	if GetTestMode() != required {
		t.Skipf("Skipping: requires BANKAPI_TEST_MODE=%s", required)
	}
}

func testdataDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filepath.Dir(filename)), "testdata")
}

// LoadFixture reads testdata/fixtures/<name>.json of the api package.
func LoadFixture(t *testing.T, name string) []byte {
	t.Helper()

	path := filepath.Join(testdataDir(), "fixtures", name+".json")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to load fixture %s: %v", name, err)
	}

	return data
}

// MustLoadHAR loads testdata/recordings/<name>.har.json and fails the
// test if it cannot be loaded.
func MustLoadHAR(t *testing.T, name string) *har.HARLog {
	t.Helper()

	path := filepath.Join(testdataDir(), "recordings", name+".har.json")

	log, err := har.LoadHAR(path)
	if err != nil {
		t.Fatalf("failed to load HAR file %s: %v", path, err)
	}

	return log
}

// RequireEnv returns the named variable or skips the test.
func RequireEnv(t *testing.T, name string) string {
	t.Helper()

	value := os.Getenv(name)
	if value == "" {
		t.Skipf("Skipping: %s is not set", name)
	}
	return value
}
