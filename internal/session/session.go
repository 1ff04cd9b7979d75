// Package session models viewer sessions: named sets of side-by-side viewer
// groups, their saved configuration file format, and directory scan rules.
package session

import (
	"regexp"
	"strings"

	"github.com/bane-dysta/Orbital-Viewer/internal/config"
)

// Session is a named collection of viewer groups.
type Session struct {
	// ID is a ULID that uniquely identifies this session
	ID string `json:"id"`

	// Title is the session title as entered by the user
	Title string `json:"title"`

	// TitleNorm is the normalized title used for uniqueness (lowercased, trimmed, collapsed spaces)
	TitleNorm string `json:"-"`

	// Groups are ordered by Position
	Groups []Group `json:"groups"`

	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
	DeletedAt *int64 `json:"deleted_at,omitempty"`
}

// Group is one viewer panel: up to two cube files rendered with shared
// iso value and colors.
type Group struct {
	// ID is a ULID; it stays stable when groups are reordered or removed
	ID        string `json:"id"`
	SessionID string `json:"session_id"`

	// Position is the 0-based display order within the session
	Position int `json:"position"`

	Title  string `json:"title"`
	Color1 string `json:"color1"`
	Color2 string `json:"color2"`

	// IsoValue and SurfaceScale are kept as decimal strings, as entered
	IsoValue     string `json:"iso_value"`
	SurfaceScale string `json:"surface_scale"`

	// ShowPositive is carried through saved configurations; it does not
	// change what is drawn
	ShowPositive bool `json:"show_positive"`

	// ShowFile1 and ShowFile2 toggle the surface pair of each file
	ShowFile1 bool `json:"show_file1"`
	ShowFile2 bool `json:"show_file2"`

	// FileName1 and FileName2 are paths relative to the data root
	FileName1 string `json:"file_name1"`
	FileName2 string `json:"file_name2"`

	// Notes is markdown
	Notes string `json:"notes"`

	// ColorMapping colors the file 1 isosurface by the values of file 2
	ColorMapping bool   `json:"color_mapping"`
	MinMapValue  string `json:"min_map_value"`
	MaxMapValue  string `json:"max_map_value"`

	// Generation increments on every mutation and guards concurrent updates
	Generation int64 `json:"generation"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// NewGroup returns a group populated from viewer defaults.
func NewGroup(title string, d config.ViewerDefaults) Group {
	return Group{
		Title:        title,
		Color1:       d.Color1,
		Color2:       d.Color2,
		IsoValue:     d.IsoValue,
		SurfaceScale: d.SurfaceScale,
		ShowPositive: d.ShowPositive,
		ShowFile1:    true,
		ShowFile2:    true,
		MinMapValue:  d.MinMapValue,
		MaxMapValue:  d.MaxMapValue,
	}
}

// Files returns the non-empty file names of g in order.
func (g *Group) Files() []string {
	var files []string
	for _, f := range []string{g.FileName1, g.FileName2} {
		if strings.TrimSpace(f) != "" {
			files = append(files, f)
		}
	}
	return files
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Normalize trims, lowercases, and collapses internal whitespace.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return whitespaceRegex.ReplaceAllString(s, " ")
}
