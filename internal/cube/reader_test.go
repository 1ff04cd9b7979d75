package cube

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

func TestIsCubeFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"mo.cub", true},
		{"MO.CUBE", true},
		{"dir/density.cube.gz", true},
		{"orbital.cub.zst", true},
		{"notes.txt", false},
		{"cube", false},
		{"archive.gz", false},
	}
	for _, tt := range tests {
		if got := IsCubeFile(tt.name); got != tt.want {
			t.Errorf("IsCubeFile(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestReadAllCompressed(t *testing.T) {
	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	if _, err := gw.Write([]byte(h2Cube)); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}

	var zs bytes.Buffer
	zw, err := zstd.NewWriter(&zs)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := zw.Write([]byte(h2Cube)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"h2.cub", []byte(h2Cube)},
		{"h2.cub.gz", gz.Bytes()},
		{"h2.cub.zst", zs.Bytes()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := ReadAll(bytes.NewReader(tt.data), tt.name, 0)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if text != h2Cube {
				t.Errorf("decoded text differs")
			}
		})
	}
}

func TestReadAllLimit(t *testing.T) {
	_, err := ReadAll(strings.NewReader(h2Cube), "h2.cub", 10)
	var tl *TooLargeError
	if !errors.As(err, &tl) {
		t.Fatalf("err = %v, want TooLargeError", err)
	}
	if _, err := ReadAll(strings.NewReader(h2Cube), "h2.cub", int64(len(h2Cube))); err != nil {
		t.Errorf("exact size rejected: %v", err)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h2.cube")
	if err := os.WriteFile(path, []byte(h2Cube), 0o600); err != nil {
		t.Fatal(err)
	}
	text, err := ReadFile(path, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	if !Validate(text) {
		t.Error("read text does not validate")
	}

	var tl *TooLargeError
	if _, err := ReadFile(path, 5); !errors.As(err, &tl) {
		t.Errorf("err = %v, want TooLargeError", err)
	}
	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.cub"), 0); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
}
