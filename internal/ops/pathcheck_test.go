package ops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bane-dysta/Orbital-Viewer/internal/config"
	"github.com/bane-dysta/Orbital-Viewer/internal/errors"
)

func TestValidatePath_TraversalRejected(t *testing.T) {
	cfg := config.DefaultConfig()

	tests := []struct {
		name string
		path string
	}{
		{"parent traversal", "../session.json"},
		{"deep traversal", "../../etc/session.json"},
		{"mid-path traversal", "/tmp/../etc/session.json"},
		{"hidden in path", "/tmp/safe/../../../etc/shadow.json"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePath(tc.path, PathCheckWrite, cfg)
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got: %v", err)
			}
		})
	}
}

func TestValidatePath_ExtensionRequired(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true

	for _, path := range []string{"/tmp/session", "/tmp/session.jsonl", "/tmp/session.cube"} {
		t.Run(path, func(t *testing.T) {
			err := ValidatePath(path, PathCheckWrite, cfg)
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got: %v", err)
			}
		})
	}
}

func TestValidatePath_DirectoryRestriction(t *testing.T) {
	t.Setenv("ORBVIEW_HOME", t.TempDir())
	cfg := config.DefaultConfig()

	err := ValidatePath(filepath.Join(t.TempDir(), "session.json"), PathCheckWrite, cfg)
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got: %v", err)
	}
}

func TestValidatePath_ExportsDirAllowed(t *testing.T) {
	base := t.TempDir()
	t.Setenv("ORBVIEW_HOME", base)
	exports := filepath.Join(base, ExportsDirName)
	if err := os.MkdirAll(exports, 0700); err != nil {
		t.Fatal(err)
	}

	if err := ValidatePath(filepath.Join(exports, "out.json"), PathCheckWrite, config.DefaultConfig()); err != nil {
		t.Errorf("expected exports dir to be allowed, got: %v", err)
	}
}

func TestValidatePath_AllowUnsafePaths(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true

	testFile := filepath.Join(tmpDir, "test.json")
	if err := os.WriteFile(testFile, []byte("{}"), 0600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	if err := ValidatePath(testFile, PathCheckRead, cfg); err != nil {
		t.Errorf("expected success with AllowUnsafePaths=true, got: %v", err)
	}
	if err := ValidatePath(filepath.Join(tmpDir, "output.json"), PathCheckWrite, cfg); err != nil {
		t.Errorf("expected success for write with AllowUnsafePaths=true, got: %v", err)
	}
}

func TestValidatePath_AllowedPaths(t *testing.T) {
	t.Setenv("ORBVIEW_HOME", t.TempDir())
	tmpDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{tmpDir, "relative/ignored"}

	testFile := filepath.Join(tmpDir, "test.json")
	if err := os.WriteFile(testFile, []byte("{}"), 0600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	if err := ValidatePath(testFile, PathCheckRead, cfg); err != nil {
		t.Errorf("expected success for path in AllowedPaths, got: %v", err)
	}

	otherFile := filepath.Join(t.TempDir(), "other.json")
	if err := os.WriteFile(otherFile, []byte("{}"), 0600); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	if err := ValidatePath(otherFile, PathCheckRead, cfg); err == nil {
		t.Error("expected error for path outside AllowedPaths, got nil")
	}
}

func TestValidatePath_FileNotFound_ReadMode(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true

	err := ValidatePath(filepath.Join(t.TempDir(), "nonexistent.json"), PathCheckRead, cfg)
	if !errors.Is(err, errors.ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got: %v", err)
	}
}

func TestValidatePath_SymlinkRejected(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{tmpDir}

	targetFile := filepath.Join(t.TempDir(), "secret.json")
	if err := os.WriteFile(targetFile, []byte("{}"), 0600); err != nil {
		t.Fatalf("failed to create target file: %v", err)
	}
	symlink := filepath.Join(tmpDir, "link.json")
	if err := os.Symlink(targetFile, symlink); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	for _, mode := range []PathCheckMode{PathCheckRead, PathCheckWrite} {
		if err := ValidatePath(symlink, mode, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
			t.Errorf("mode %d: expected ErrInvalidRequest, got: %v", mode, err)
		}
	}

	cfg.AllowUnsafePaths = true
	if err := ValidatePath(symlink, PathCheckRead, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("unsafe mode: expected ErrInvalidRequest, got: %v", err)
	}
}

func TestValidatePath_NestedPathRejected(t *testing.T) {
	allowedDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{allowedDir}

	subDir := filepath.Join(allowedDir, "subdir")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}
	nested := filepath.Join(subDir, "test.json")
	if err := os.WriteFile(nested, []byte("{}"), 0600); err != nil {
		t.Fatalf("failed to create target file: %v", err)
	}

	for _, mode := range []PathCheckMode{PathCheckRead, PathCheckWrite} {
		if err := ValidatePath(nested, mode, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
			t.Errorf("mode %d: expected ErrInvalidRequest, got: %v", mode, err)
		}
	}
}

func TestResolveDataPath(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "run1"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "run1", "mo.cube"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	got, err := ResolveDataPath(root, "run1/mo.cube")
	if err != nil {
		t.Fatalf("ResolveDataPath: %v", err)
	}
	if filepath.Base(got) != "mo.cube" || !filepath.IsAbs(got) {
		t.Errorf("resolved = %q", got)
	}

	invalid := []string{"", "../x.cube", "run1/../../x.cube", "/etc/passwd", `run1\mo.cube`}
	for _, rel := range invalid {
		if _, err := ResolveDataPath(root, rel); !errors.Is(err, errors.ErrInvalidRequest) {
			t.Errorf("ResolveDataPath(%q) = %v, want INVALID_REQUEST", rel, err)
		}
	}

	if _, err := ResolveDataPath(root, "missing.cube"); !errors.Is(err, errors.ErrFileNotFound) {
		t.Errorf("missing file: got %v, want FILE_NOT_FOUND", err)
	}
}

func TestResolveDataPath_SymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := filepath.Join(t.TempDir(), "secret.cube")
	if err := os.WriteFile(outside, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "link.cube")); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	if _, err := ResolveDataPath(root, "link.cube"); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected symlink escape to be rejected, got %v", err)
	}
}

func TestContainsTraversal(t *testing.T) {
	tests := []struct {
		path     string
		contains bool
	}{
		{"/home/user/file.txt", false},
		{"../file.txt", true},
		{"/home/../etc/passwd", true},
		{"./file.txt", false},
		{"file..name.txt", false},
		{"/tmp/a/b/../c.json", true},
	}

	for _, tc := range tests {
		if got := containsTraversal(tc.path); got != tc.contains {
			t.Errorf("containsTraversal(%q) = %v, want %v", tc.path, got, tc.contains)
		}
	}
}

func TestSanitizeForFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"benzene HOMO", "benzene HOMO"},
		{"path/to/file", "path-to-file"},
		{"path\\to\\file", "path-to-file"},
		{"foo..bar", "foo-bar"},
		{"../../../etc/passwd", "etc-passwd"},
		{"foo\x00bar", "foobar"},
		{"../../..", "unnamed"},
		{"a---b", "a-b"},
		{"轨道", "轨道"},
	}

	for _, tc := range tests {
		if got := SanitizeForFilename(tc.input); got != tc.expected {
			t.Errorf("SanitizeForFilename(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}
