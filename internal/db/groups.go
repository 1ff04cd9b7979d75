package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bane-dysta/Orbital-Viewer/internal/errors"
	"github.com/bane-dysta/Orbital-Viewer/internal/session"
)

const groupColumns = `g.id, g.session_id, g.position, g.title, g.color1, g.color2,
	g.iso_value, g.surface_scale, g.show_positive, g.show_file1, g.show_file2,
	g.file_name1, g.file_name2, g.notes, g.color_mapping, g.min_map_value,
	g.max_map_value, g.generation, g.created_at, g.updated_at`

// InsertGroup stores a new group. Generation is set to 1.
func InsertGroup(ctx context.Context, q Querier, g *session.Group) error {
	g.Generation = 1
	_, err := q.ExecContext(ctx, `
		INSERT INTO viewer_groups (
			id, session_id, position, title, color1, color2,
			iso_value, surface_scale, show_positive, show_file1, show_file2,
			file_name1, file_name2, notes, color_mapping, min_map_value,
			max_map_value, generation, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		g.ID, g.SessionID, g.Position, g.Title, g.Color1, g.Color2,
		g.IsoValue, g.SurfaceScale, g.ShowPositive, g.ShowFile1, g.ShowFile2,
		g.FileName1, g.FileName2, g.Notes, g.ColorMapping, g.MinMapValue,
		g.MaxMapValue, g.Generation, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// GetGroup retrieves a group by ULID. Groups of soft-deleted sessions are not found.
func GetGroup(ctx context.Context, q Querier, id string) (*session.Group, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+groupColumns+`
		FROM viewer_groups g JOIN sessions s ON s.id = g.session_id
		WHERE g.id = ? AND s.deleted_at IS NULL
	`, id)
	g, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("group", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return g, nil
}

// ListGroups returns the groups of a session in display order.
func ListGroups(ctx context.Context, q Querier, sessionID string) ([]session.Group, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+groupColumns+`
		FROM viewer_groups g
		WHERE g.session_id = ?
		ORDER BY g.position, g.created_at, g.id
	`, sessionID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	groups := []session.Group{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		groups = append(groups, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return groups, nil
}

// CountGroups returns the number of groups in a session.
func CountGroups(ctx context.Context, q Querier, sessionID string) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM viewer_groups WHERE session_id = ?`, sessionID).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// UpdateGroup writes every mutable field of g if the stored generation equals
// expected. On success g.Generation and g.UpdatedAt are advanced.
// A missing group is NOT_FOUND; a generation mismatch is CONFLICT.
func UpdateGroup(ctx context.Context, q Querier, g *session.Group, expected int64) error {
	now := time.Now().Unix()
	result, err := q.ExecContext(ctx, `
		UPDATE viewer_groups
		SET position = ?, title = ?, color1 = ?, color2 = ?,
			iso_value = ?, surface_scale = ?, show_positive = ?,
			show_file1 = ?, show_file2 = ?,
			file_name1 = ?, file_name2 = ?, notes = ?, color_mapping = ?,
			min_map_value = ?, max_map_value = ?,
			generation = generation + 1, updated_at = ?
		WHERE id = ? AND generation = ?
	`,
		g.Position, g.Title, g.Color1, g.Color2,
		g.IsoValue, g.SurfaceScale, g.ShowPositive,
		g.ShowFile1, g.ShowFile2,
		g.FileName1, g.FileName2, g.Notes, g.ColorMapping,
		g.MinMapValue, g.MaxMapValue,
		now, g.ID, expected,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		var current int64
		err := q.QueryRowContext(ctx, `SELECT generation FROM viewer_groups WHERE id = ?`, g.ID).Scan(&current)
		if err == sql.ErrNoRows {
			return errors.NewNotFound("group", g.ID)
		}
		if err != nil {
			return errors.NewInternal(err)
		}
		return errors.NewConflict(fmt.Sprintf("group %s changed: generation is %d, expected %d", g.ID, current, expected))
	}

	g.Generation = expected + 1
	g.UpdatedAt = now
	return nil
}

// DeleteGroup removes a group.
func DeleteGroup(ctx context.Context, q Querier, id string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM viewer_groups WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireRow(result, "group", id)
}

// CompactPositions renumbers the groups of a session 0..n-1 in display order.
func CompactPositions(ctx context.Context, q Querier, sessionID string) error {
	groups, err := ListGroups(ctx, q, sessionID)
	if err != nil {
		return err
	}
	for i, g := range groups {
		if g.Position == i {
			continue
		}
		if _, err := q.ExecContext(ctx, `UPDATE viewer_groups SET position = ? WHERE id = ?`, i, g.ID); err != nil {
			return errors.NewInternal(err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanGroup scans a single row into a Group struct.
func scanGroup(row scanner) (*session.Group, error) {
	var g session.Group
	err := row.Scan(
		&g.ID, &g.SessionID, &g.Position, &g.Title, &g.Color1, &g.Color2,
		&g.IsoValue, &g.SurfaceScale, &g.ShowPositive, &g.ShowFile1, &g.ShowFile2,
		&g.FileName1, &g.FileName2, &g.Notes, &g.ColorMapping, &g.MinMapValue,
		&g.MaxMapValue, &g.Generation, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}
