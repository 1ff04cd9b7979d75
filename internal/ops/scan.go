package ops

import (
	"context"
	"database/sql"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bane-dysta/Orbital-Viewer/internal/config"
	"github.com/bane-dysta/Orbital-Viewer/internal/errors"
	"github.com/bane-dysta/Orbital-Viewer/internal/session"
)

// ScanInput contains parameters for the ScanDirectory operation.
type ScanInput struct {
	// Dir is relative to the data root; empty scans the whole root
	Dir string

	// Title, when set, stores the scanned groups as a new session
	Title string
}

// ScanOutput contains the result of the ScanDirectory operation.
type ScanOutput struct {
	Dir     string           `json:"dir"`
	Groups  []session.Group  `json:"groups"`
	Session *session.Session `json:"session,omitempty"`
}

// ScanDirectory proposes viewer groups for the cube files under a directory
// of the data root. File names in the result are relative to the data root.
func ScanDirectory(ctx context.Context, database *sql.DB, cfg *config.Config, defaults config.ViewerDefaults, input ScanInput) (*ScanOutput, error) {
	dir := strings.Trim(strings.TrimSpace(input.Dir), "/")
	if dir == "." {
		dir = ""
	}

	var root string
	if dir == "" {
		r, err := filepath.Abs(dataRoot(cfg))
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		root = r
	} else {
		r, err := ResolveDataPath(dataRoot(cfg), dir)
		if err != nil {
			return nil, err
		}
		root = r
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, errors.NewInvalidRequest("dir must be a directory under the data root")
	}

	entries, err := session.Scan(root)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if ctx.Err() != nil {
		return nil, errors.NewCancelled("scan")
	}

	groups := make([]session.Group, 0, len(entries))
	for i, e := range entries {
		g := session.NewGroup(e.Title, defaults)
		g.Position = i
		g.FileName1 = joinRel(dir, e.FileName1)
		if e.FileName2 != "" {
			g.FileName2 = joinRel(dir, e.FileName2)
		}
		groups = append(groups, g)
	}

	out := &ScanOutput{Dir: dir, Groups: groups}
	if strings.TrimSpace(input.Title) == "" {
		return out, nil
	}
	if len(groups) == 0 {
		return nil, errors.NewInvalidRequest("no .cub or .cube files found")
	}
	s, err := CreateSession(ctx, database, cfg, CreateSessionInput{Title: input.Title, Groups: groups})
	if err != nil {
		return nil, err
	}
	out.Session = s
	out.Groups = s.Groups
	return out, nil
}

func dataRoot(cfg *config.Config) string {
	if cfg.DataRoot == "" {
		return "."
	}
	return cfg.DataRoot
}

func joinRel(dir, rel string) string {
	if dir == "" {
		return rel
	}
	return path.Join(dir, rel)
}
