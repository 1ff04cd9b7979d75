package ops

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bane-dysta/Orbital-Viewer/internal/config"
	"github.com/bane-dysta/Orbital-Viewer/internal/db"
	"github.com/bane-dysta/Orbital-Viewer/internal/errors"
	"github.com/bane-dysta/Orbital-Viewer/internal/session"
)

// ImportMode controls title collision behavior during import.
type ImportMode string

const (
	ImportModeError   ImportMode = "error"   // fail on collision
	ImportModeReplace ImportMode = "replace" // delete the existing session first
	ImportModeRename  ImportMode = "rename"  // suffix the title with " (N)"
)

// maxImportBytes bounds a configuration file read from disk.
const maxImportBytes = 8 << 20

// maxRenameAttempts bounds the " (N)" suffix search.
const maxRenameAttempts = 100

// ImportInput contains parameters for the ImportSession operation.
// Exactly one of Path and Config must be set.
type ImportInput struct {
	Path   string
	Config *session.ConfigFile

	// Title overrides the globalTitle of the file
	Title string

	Mode ImportMode // default: error
}

// ImportOutput contains the result of the ImportSession operation.
type ImportOutput struct {
	Session  *session.Session `json:"session"`
	Replaced string           `json:"replaced,omitempty"`
	Renamed  bool             `json:"renamed,omitempty"`
}

// ImportSession creates a session from a configuration file. Missing group
// settings come from defaults.
func ImportSession(ctx context.Context, database *sql.DB, cfg *config.Config, defaults config.ViewerDefaults, input ImportInput) (*ImportOutput, error) {
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	if input.Mode != ImportModeError && input.Mode != ImportModeReplace && input.Mode != ImportModeRename {
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace, rename")
	}

	cf := input.Config
	switch {
	case input.Path != "" && cf != nil:
		return nil, errors.NewInvalidRequest("specify either path or config, not both")
	case input.Path != "":
		var err error
		if cf, err = readConfigFile(input.Path, cfg); err != nil {
			return nil, err
		}
	case cf == nil:
		return nil, errors.NewInvalidRequest("path is required")
	}

	title := firstNonEmpty(input.Title, cf.GlobalTitle)
	if title == "" && input.Path != "" {
		title = strings.TrimSuffix(filepath.Base(input.Path), filepath.Ext(input.Path))
	}
	if title == "" {
		title = "Imported " + time.Now().Format("2006-01-02 15:04:05")
	}
	groups := cf.Groups(defaults)

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	out := &ImportOutput{}
	existing, err := db.GetSessionByTitle(ctx, tx, session.Normalize(title))
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		switch input.Mode {
		case ImportModeError:
			return nil, errors.NewNameAlreadyExists(title)
		case ImportModeReplace:
			if err := db.DeleteSession(ctx, tx, existing.ID); err != nil {
				return nil, err
			}
			out.Replaced = existing.ID
		case ImportModeRename:
			if title, err = freeTitle(ctx, tx, title); err != nil {
				return nil, err
			}
			out.Renamed = true
		}
	}

	s, err := insertSession(ctx, tx, cfg, title, groups)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	out.Session = s
	return out, nil
}

// readConfigFile validates path and decodes the configuration file there.
func readConfigFile(path string, cfg *config.Config) (*session.ConfigFile, error) {
	if err := ValidatePath(path, PathCheckRead, cfg); err != nil {
		return nil, err
	}
	f, err := openNoFollow(path, os.O_RDONLY, 0)
	if err != nil {
		if _, ok := err.(*errors.ViewerError); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer f.Close()

	lr := &io.LimitedReader{R: f, N: maxImportBytes + 1}
	cf, err := session.DecodeConfigFile(lr)
	if lr.N <= 0 {
		return nil, errors.NewFileTooLarge(filepath.Base(path), maxImportBytes)
	}
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	return cf, nil
}

// freeTitle returns title with the smallest " (N)" suffix, N >= 2, that no
// active session uses.
func freeTitle(ctx context.Context, q db.Querier, title string) (string, error) {
	for n := 2; n < maxRenameAttempts+2; n++ {
		candidate := fmt.Sprintf("%s (%d)", title, n)
		exists, err := db.CheckTitleExists(ctx, q, session.Normalize(candidate))
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", errors.NewConflict(fmt.Sprintf("no free title for %q after %d attempts", title, maxRenameAttempts))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
