package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/bane-dysta/Orbital-Viewer/internal/errors"
	"github.com/bane-dysta/Orbital-Viewer/internal/session"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.ViewerError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

// SessionSummary is a session row with its group count, for listings.
type SessionSummary struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	GroupCount int    `json:"group_count"`
	CreatedAt  int64  `json:"created_at"`
	UpdatedAt  int64  `json:"updated_at"`
	DeletedAt  *int64 `json:"deleted_at,omitempty"`
}

// ListFilter selects and pages sessions.
type ListFilter struct {
	Limit          int
	Offset         int
	IncludeDeleted bool
	OnlyDeleted    bool
}

const sessionColumns = `id, title, title_norm, created_at, updated_at, deleted_at`

// InsertSession stores a new session row. Groups are not written.
func InsertSession(ctx context.Context, q Querier, s *session.Session) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO sessions (id, title, title_norm, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, NULL)
	`, s.ID, s.Title, s.TitleNorm, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetSession retrieves a session by ULID without its groups.
// If includeDeleted is false, soft-deleted sessions are excluded.
func GetSession(ctx context.Context, q Querier, id string, includeDeleted bool) (*session.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}

	s, err := scanSession(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("session", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return s, nil
}

// GetSessionByTitle retrieves the active session with the given normalized title.
func GetSessionByTitle(ctx context.Context, q Querier, titleNorm string) (*session.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE title_norm = ? AND deleted_at IS NULL`

	s, err := scanSession(q.QueryRowContext(ctx, query, titleNorm))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("session", titleNorm)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return s, nil
}

// CheckTitleExists reports whether an active session has the normalized title.
func CheckTitleExists(ctx context.Context, q Querier, titleNorm string) (bool, error) {
	var exists int
	err := q.QueryRowContext(ctx, `
		SELECT 1 FROM sessions
		WHERE title_norm = ? AND deleted_at IS NULL
		LIMIT 1
	`, titleNorm).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// ListSessions returns one page of sessions, most recently updated first,
// and the total number matching the filter.
func ListSessions(ctx context.Context, q Querier, f ListFilter) ([]SessionSummary, int, error) {
	where := "WHERE s.deleted_at IS NULL"
	switch {
	case f.OnlyDeleted:
		where = "WHERE s.deleted_at IS NOT NULL"
	case f.IncludeDeleted:
		where = ""
	}

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions s `+where).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT s.id, s.title, s.created_at, s.updated_at, s.deleted_at,
			(SELECT COUNT(*) FROM viewer_groups g WHERE g.session_id = s.id)
		FROM sessions s
		`+where+`
		ORDER BY s.updated_at DESC, s.id DESC
		LIMIT ? OFFSET ?
	`, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	items := []SessionSummary{}
	for rows.Next() {
		var (
			item      SessionSummary
			deletedAt sql.NullInt64
		)
		if err := rows.Scan(&item.ID, &item.Title, &item.CreatedAt, &item.UpdatedAt, &deletedAt, &item.GroupCount); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		if deletedAt.Valid {
			item.DeletedAt = &deletedAt.Int64
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return items, total, nil
}

// RenameSession changes the title of an active session.
func RenameSession(ctx context.Context, q Querier, id, title, titleNorm string) error {
	result, err := q.ExecContext(ctx, `
		UPDATE sessions SET title = ?, title_norm = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, title, titleNorm, time.Now().Unix(), id)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return requireRow(result, "session", id)
}

// TouchSession bumps updated_at of an active session.
func TouchSession(ctx context.Context, q Querier, id string) error {
	result, err := q.ExecContext(ctx, `
		UPDATE sessions SET updated_at = ? WHERE id = ? AND deleted_at IS NULL
	`, time.Now().Unix(), id)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireRow(result, "session", id)
}

// SoftDeleteSession marks a session as deleted by setting deleted_at.
func SoftDeleteSession(ctx context.Context, q Querier, id string) error {
	result, err := q.ExecContext(ctx, `
		UPDATE sessions SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL
	`, time.Now().Unix(), id)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireRow(result, "session", id)
}

// PurgeSessions permanently removes soft-deleted sessions (and their groups)
// deleted at or before cutoff. A zero cutoff purges every deleted session.
func PurgeSessions(ctx context.Context, q Querier, cutoff int64) (int, error) {
	query := `DELETE FROM sessions WHERE deleted_at IS NOT NULL`
	args := []any{}
	if cutoff > 0 {
		query += ` AND deleted_at <= ?`
		args = append(args, cutoff)
	}

	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// DeleteSession removes a session row and its groups outright.
// Used when an import replaces an existing session.
func DeleteSession(ctx context.Context, q Querier, id string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireRow(result, "session", id)
}

func requireRow(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound(kind, id)
	}
	return nil
}

// scanSession scans a single row into a Session struct.
func scanSession(row *sql.Row) (*session.Session, error) {
	var (
		s         session.Session
		deletedAt sql.NullInt64
	)
	if err := row.Scan(&s.ID, &s.Title, &s.TitleNorm, &s.CreatedAt, &s.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		s.DeletedAt = &deletedAt.Int64
	}
	return &s, nil
}
