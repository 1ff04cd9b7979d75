package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/bane-dysta/Orbital-Viewer/internal/config"
	"github.com/bane-dysta/Orbital-Viewer/internal/db"
	"github.com/bane-dysta/Orbital-Viewer/internal/errors"
	"github.com/bane-dysta/Orbital-Viewer/internal/session"
)

// GroupPatch lists group settings to change. Nil fields are left as they are.
type GroupPatch struct {
	Title        *string `json:"title,omitempty"`
	Color1       *string `json:"color1,omitempty"`
	Color2       *string `json:"color2,omitempty"`
	IsoValue     *string `json:"iso_value,omitempty"`
	SurfaceScale *string `json:"surface_scale,omitempty"`
	ShowPositive *bool   `json:"show_positive,omitempty"`
	ShowFile1    *bool   `json:"show_file1,omitempty"`
	ShowFile2    *bool   `json:"show_file2,omitempty"`
	FileName1    *string `json:"file_name1,omitempty"`
	FileName2    *string `json:"file_name2,omitempty"`
	Notes        *string `json:"notes,omitempty"`
	ColorMapping *bool   `json:"color_mapping,omitempty"`
	MinMapValue  *string `json:"min_map_value,omitempty"`
	MaxMapValue  *string `json:"max_map_value,omitempty"`
}

// Empty reports whether p changes nothing.
func (p GroupPatch) Empty() bool {
	return p == GroupPatch{}
}

// Apply copies the set fields of p onto g. Colors are uppercased and
// numeric strings trimmed.
func (p GroupPatch) Apply(g *session.Group) {
	setString := func(dst *string, v *string, fn func(string) string) {
		if v != nil {
			*dst = fn(*v)
		}
	}
	same := func(s string) string { return s }

	setString(&g.Title, p.Title, strings.TrimSpace)
	setString(&g.Color1, p.Color1, normalizeColor)
	setString(&g.Color2, p.Color2, normalizeColor)
	setString(&g.IsoValue, p.IsoValue, strings.TrimSpace)
	setString(&g.SurfaceScale, p.SurfaceScale, strings.TrimSpace)
	setString(&g.FileName1, p.FileName1, strings.TrimSpace)
	setString(&g.FileName2, p.FileName2, strings.TrimSpace)
	setString(&g.Notes, p.Notes, same)
	setString(&g.MinMapValue, p.MinMapValue, strings.TrimSpace)
	setString(&g.MaxMapValue, p.MaxMapValue, strings.TrimSpace)
	for _, b := range []struct {
		dst *bool
		v   *bool
	}{
		{&g.ShowPositive, p.ShowPositive},
		{&g.ShowFile1, p.ShowFile1},
		{&g.ShowFile2, p.ShowFile2},
		{&g.ColorMapping, p.ColorMapping},
	} {
		if b.v != nil {
			*b.dst = *b.v
		}
	}
}

func normalizeColor(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// AddGroupInput contains parameters for the AddGroup operation.
type AddGroupInput struct {
	SessionID string // required

	// Settings override the viewer defaults; an empty title becomes "Group N"
	Settings GroupPatch
}

// AddGroup appends a group to a session, starting from the viewer defaults.
func AddGroup(ctx context.Context, database *sql.DB, cfg *config.Config, defaults config.ViewerDefaults, input AddGroupInput) (*session.Group, error) {
	if strings.TrimSpace(input.SessionID) == "" {
		return nil, errors.NewInvalidRequest("session_id is required")
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := db.GetSession(ctx, tx, input.SessionID, false); err != nil {
		return nil, err
	}
	count, err := db.CountGroups(ctx, tx, input.SessionID)
	if err != nil {
		return nil, err
	}
	if limit := cfg.MaxViewerGroups; limit > 0 && count >= limit {
		return nil, errors.NewGroupLimit(limit)
	}

	g := session.NewGroup("", defaults)
	input.Settings.Apply(&g)
	if g.Title == "" {
		g.Title = fmt.Sprintf("Group %d", count+1)
	}
	if err := lintGroup(&g); err != nil {
		return nil, err
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	now := time.Now().Unix()
	g.ID = id
	g.SessionID = input.SessionID
	g.Position = count
	g.CreatedAt = now
	g.UpdatedAt = now

	if err := db.InsertGroup(ctx, tx, &g); err != nil {
		return nil, err
	}
	if err := db.TouchSession(ctx, tx, input.SessionID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &g, nil
}

// FetchGroup returns one group of an active session.
func FetchGroup(ctx context.Context, database *sql.DB, id string) (*session.Group, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	return db.GetGroup(ctx, database, id)
}

// UpdateGroupInput contains parameters for the UpdateGroup operation.
type UpdateGroupInput struct {
	ID string // required

	// Generation is the generation the caller last saw. Zero skips the check.
	Generation int64

	Patch GroupPatch
}

// UpdateGroup applies a partial update. When Generation is set and the stored
// group has moved on, the update fails with CONFLICT.
func UpdateGroup(ctx context.Context, database *sql.DB, input UpdateGroupInput) (*session.Group, error) {
	if strings.TrimSpace(input.ID) == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	if input.Patch.Empty() {
		return nil, errors.NewInvalidRequest("nothing to update")
	}
	if input.Generation < 0 {
		return nil, errors.NewInvalidRequest("generation must not be negative")
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	g, err := db.GetGroup(ctx, tx, input.ID)
	if err != nil {
		return nil, err
	}
	expected := input.Generation
	if expected == 0 {
		expected = g.Generation
	}

	input.Patch.Apply(g)
	if strings.TrimSpace(g.Title) == "" {
		return nil, errors.NewInvalidRequest("title must not be empty")
	}
	if err := lintGroup(g); err != nil {
		return nil, err
	}

	if err := db.UpdateGroup(ctx, tx, g, expected); err != nil {
		return nil, err
	}
	if err := db.TouchSession(ctx, tx, g.SessionID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return g, nil
}

// SetNotesInput contains parameters for the SetNotes operation.
type SetNotesInput struct {
	ID         string
	Notes      string // markdown; empty clears the notes
	Generation int64
}

// SetNotes replaces the markdown notes of a group.
func SetNotes(ctx context.Context, database *sql.DB, input SetNotesInput) (*session.Group, error) {
	return UpdateGroup(ctx, database, UpdateGroupInput{
		ID:         input.ID,
		Generation: input.Generation,
		Patch:      GroupPatch{Notes: &input.Notes},
	})
}

// RemoveGroupInput contains parameters for the RemoveGroup operation.
type RemoveGroupInput struct {
	ID         string
	Generation int64 // zero skips the check
}

// RemoveGroupOutput contains the result of the RemoveGroup operation.
type RemoveGroupOutput struct {
	Removed   bool   `json:"removed"`
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
}

// RemoveGroup deletes a group and renumbers the remaining groups of its
// session so positions stay contiguous.
func RemoveGroup(ctx context.Context, database *sql.DB, input RemoveGroupInput) (*RemoveGroupOutput, error) {
	if strings.TrimSpace(input.ID) == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	g, err := db.GetGroup(ctx, tx, input.ID)
	if err != nil {
		return nil, err
	}
	if input.Generation != 0 && input.Generation != g.Generation {
		return nil, errors.NewConflict(fmt.Sprintf("group %s changed: generation is %d, expected %d", g.ID, g.Generation, input.Generation))
	}

	if err := db.DeleteGroup(ctx, tx, g.ID); err != nil {
		return nil, err
	}
	if err := db.CompactPositions(ctx, tx, g.SessionID); err != nil {
		return nil, err
	}
	if err := db.TouchSession(ctx, tx, g.SessionID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &RemoveGroupOutput{Removed: true, ID: g.ID, SessionID: g.SessionID}, nil
}

// RenderPlan returns the isosurface requests for one group.
func RenderPlan(ctx context.Context, database *sql.DB, id string) (*session.RenderPlan, error) {
	g, err := FetchGroup(ctx, database, id)
	if err != nil {
		return nil, err
	}
	plan, err := session.BuildRenderPlan(g)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	return plan, nil
}
