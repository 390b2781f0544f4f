package testhelper

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
)

// init disables logging for tests unless explicitly enabled
func init() {
	if testing.Testing() && os.Getenv("CHAIRSTAT_TEST_LOG") == "" {
		zerolog.SetGlobalLevel(zerolog.Disabled)
	}
}

// Main runs the tests of a package with logging silenced and exits with
// their status code. Call it from TestMain.
func Main(m *testing.M) {
	if os.Getenv("CHAIRSTAT_TEST_LOG") == "" {
		zerolog.SetGlobalLevel(zerolog.Disabled)
	}

	os.Exit(m.Run())
}
