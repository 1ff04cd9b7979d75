package cube

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// TooLargeError reports input over the configured size limit.
type TooLargeError struct {
	Name  string
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("%s exceeds %d bytes", e.Name, e.Limit)
}

// IsCubeFile reports whether name carries a cube extension (.cube or .cub),
// optionally followed by .gz or .zst. The match is case-insensitive.
func IsCubeFile(name string) bool {
	base := strings.ToLower(filepath.Base(name))
	base = strings.TrimSuffix(base, ".gz")
	base = strings.TrimSuffix(base, ".zst")
	return strings.HasSuffix(base, ".cube") || strings.HasSuffix(base, ".cub")
}

// ReadFile reads a cube file from disk, decompressing by extension.
func ReadFile(path string, maxBytes int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if maxBytes > 0 {
		if st, err := f.Stat(); err == nil && !isCompressed(path) && st.Size() > maxBytes {
			return "", &TooLargeError{Name: filepath.Base(path), Limit: maxBytes}
		}
	}
	return ReadAll(f, path, maxBytes)
}

// ReadAll reads cube text from r. name selects decompression: ".gz" and ".zst"
// suffixes are decoded, anything else is read as is. maxBytes bounds the
// decompressed size; zero or negative means no limit.
func ReadAll(r io.Reader, name string, maxBytes int64) (string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return "", fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		r = zr
	case ".zst":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return "", fmt.Errorf("zstd: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	if maxBytes > 0 {
		r = io.LimitReader(r, maxBytes+1)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if maxBytes > 0 && int64(len(b)) > maxBytes {
		return "", &TooLargeError{Name: filepath.Base(name), Limit: maxBytes}
	}
	return string(b), nil
}

func isCompressed(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".gz" || ext == ".zst"
}
