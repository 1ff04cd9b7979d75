package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/bane-dysta/Orbital-Viewer/internal/config"
	"github.com/bane-dysta/Orbital-Viewer/internal/errors"
	"github.com/bane-dysta/Orbital-Viewer/internal/session"
)

// ExportInput contains parameters for the ExportSession operation.
type ExportInput struct {
	SessionRef

	// Path is optional; default: <base>/exports/<title>-<timestamp>.json
	Path string
}

// ExportOutput contains the result of the ExportSession operation.
type ExportOutput struct {
	Path       string `json:"path"`
	SessionID  string `json:"session_id"`
	Groups     int    `json:"groups"`
	ExportedAt int64  `json:"exported_at"`
}

// SessionConfig returns a session in the saved configuration file format.
func SessionConfig(ctx context.Context, database *sql.DB, ref SessionRef, now time.Time) (*session.ConfigFile, *session.Session, error) {
	s, err := FetchSession(ctx, database, FetchSessionInput{SessionRef: ref})
	if err != nil {
		return nil, nil, err
	}
	return session.ToConfigFile(s, now), s, nil
}

// ExportSession writes a session configuration file. The file is written to
// a temporary name and renamed into place, so an existing file survives a
// failed export.
func ExportSession(ctx context.Context, database *sql.DB, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	now := time.Now()
	cf, s, err := SessionConfig(ctx, database, input.SessionRef, now)
	if err != nil {
		return nil, err
	}

	exportPath := input.Path
	if exportPath == "" {
		exportPath, err = defaultExportPath(s.Title, now)
		if err != nil {
			return nil, err
		}
	}

	// Default paths are checked too: the title is user input.
	if err := ValidatePath(exportPath, PathCheckWrite, cfg); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if ctx.Err() != nil {
		return nil, errors.NewCancelled("export")
	}
	if err := cf.Encode(file); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}

	// Close before rename (required on Windows).
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination.
	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInternal(fmt.Errorf("export path is a symlink"))
	}

	// On Windows os.Rename fails when the destination exists; keep the old
	// file rather than delete-then-rename.
	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return &ExportOutput{
		Path:       exportPath,
		SessionID:  s.ID,
		Groups:     len(s.Groups),
		ExportedAt: now.Unix(),
	}, nil
}

// defaultExportPath returns <base>/exports/<title>-<timestamp>.json.
func defaultExportPath(title string, now time.Time) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}
	name := SanitizeForFilename(session.Normalize(title))
	filename := fmt.Sprintf("%s-%s.json", name, now.Format("2006-01-02T150405"))
	return filepath.Join(dir, filename), nil
}
