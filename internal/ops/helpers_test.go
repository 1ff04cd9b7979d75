package ops

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/bane-dysta/Orbital-Viewer/internal/config"
	"github.com/bane-dysta/Orbital-Viewer/internal/db"
)

// h2Cube is a 2x2x2 grid around H2 with the atoms 1.4 bohr apart.
const h2Cube = `H2 density
Generated for testing
    2    0.000000    0.000000    0.000000
    2    0.200000    0.000000    0.000000
    2    0.000000    0.200000    0.000000
    2    0.000000    0.000000    0.200000
    1    1.000000    0.000000    0.000000    0.000000
    1    1.000000    0.000000    0.000000    1.400000
 1.0E-01 2.0E-01 3.0E-01
 4.0E-01 5.0E-01
 6.0E-01 7.0E-01 -8.0E-01
`

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

// testConfig returns a default config rooted at a fresh data directory,
// with ORBVIEW_HOME pointed at a fresh base directory.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("ORBVIEW_HOME", t.TempDir())
	cfg := config.DefaultConfig()
	cfg.DataRoot = t.TempDir()
	return cfg
}

func writeDataFile(t *testing.T, cfg *config.Config, rel, content string) {
	t.Helper()
	p := filepath.Join(cfg.DataRoot, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func stringPtr(s string) *string {
	return &s
}

func boolPtr(b bool) *bool {
	return &b
}
