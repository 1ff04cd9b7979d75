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

// SessionRef addresses a session by ID or by title, never both.
type SessionRef struct {
	ID    string
	Title string
}

// resolveSession looks up the active session named by ref.
func resolveSession(ctx context.Context, q db.Querier, ref SessionRef, includeDeleted bool) (*session.Session, error) {
	id := strings.TrimSpace(ref.ID)
	title := strings.TrimSpace(ref.Title)
	switch {
	case id != "" && title != "":
		return nil, errors.NewInvalidRequest("specify either id or title, not both")
	case id != "":
		return db.GetSession(ctx, q, id, includeDeleted)
	case title != "":
		return db.GetSessionByTitle(ctx, q, session.Normalize(title))
	default:
		return nil, errors.NewInvalidRequest("must specify either id or title")
	}
}

// CreateSessionInput contains parameters for the CreateSession operation.
type CreateSessionInput struct {
	Title string // required

	// Groups are stored in order; positions and ids are assigned
	Groups []session.Group
}

// CreateSession stores a new session with optional initial groups.
func CreateSession(ctx context.Context, database *sql.DB, cfg *config.Config, input CreateSessionInput) (*session.Session, error) {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	s, err := insertSession(ctx, tx, cfg, input.Title, input.Groups)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return s, nil
}

// insertSession validates and writes a session and its groups within q.
func insertSession(ctx context.Context, q db.Querier, cfg *config.Config, title string, groups []session.Group) (*session.Session, error) {
	title = strings.TrimSpace(title)
	titleNorm := session.Normalize(title)
	if titleNorm == "" {
		return nil, errors.NewInvalidRequest("title is required")
	}
	if limit := cfg.MaxViewerGroups; limit > 0 && len(groups) > limit {
		return nil, errors.NewGroupLimit(limit)
	}
	for i := range groups {
		if err := lintGroup(&groups[i]); err != nil {
			return nil, err
		}
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	now := time.Now().Unix()
	s := &session.Session{
		ID:        id,
		Title:     title,
		TitleNorm: titleNorm,
		CreatedAt: now,
		UpdatedAt: now,
		Groups:    make([]session.Group, 0, len(groups)),
	}
	if err := db.InsertSession(ctx, q, s); err != nil {
		if err == db.ErrUniqueConstraint {
			return nil, errors.NewNameAlreadyExists(title)
		}
		return nil, err
	}

	for i, g := range groups {
		gid, err := generateULID()
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		g.ID = gid
		g.SessionID = s.ID
		g.Position = i
		g.CreatedAt = now
		g.UpdatedAt = now
		if err := db.InsertGroup(ctx, q, &g); err != nil {
			return nil, err
		}
		s.Groups = append(s.Groups, g)
	}
	return s, nil
}

// lintGroup returns INVALID_REQUEST listing every problem in g.
func lintGroup(g *session.Group) error {
	problems := session.LintGroup(g)
	if len(problems) == 0 {
		return nil
	}
	msgs := make([]string, len(problems))
	for i, p := range problems {
		msgs[i] = p.String()
	}
	e := errors.NewInvalidRequest(fmt.Sprintf("invalid group %q: %s", g.Title, strings.Join(msgs, "; ")))
	e.Details = map[string]any{"problems": problems}
	return e
}

// FetchSessionInput contains parameters for the FetchSession operation.
type FetchSessionInput struct {
	SessionRef
	IncludeDeleted bool // only honored when addressing by ID
}

// FetchSession returns a session with its groups in display order.
func FetchSession(ctx context.Context, database *sql.DB, input FetchSessionInput) (*session.Session, error) {
	s, err := resolveSession(ctx, database, input.SessionRef, input.IncludeDeleted)
	if err != nil {
		return nil, err
	}
	groups, err := db.ListGroups(ctx, database, s.ID)
	if err != nil {
		return nil, err
	}
	s.Groups = groups
	return s, nil
}

// ListSessionsInput contains parameters for the ListSessions operation.
type ListSessionsInput struct {
	Limit          int // default: 20, max: 100
	Offset         int
	IncludeDeleted bool
	OnlyDeleted    bool
}

// ListSessionsOutput contains the result of the ListSessions operation.
type ListSessionsOutput struct {
	Items      []db.SessionSummary `json:"items"`
	Pagination Pagination          `json:"pagination"`
	Sort       string              `json:"sort"`
}

// ListSessions returns session summaries, most recently updated first.
func ListSessions(ctx context.Context, database *sql.DB, input ListSessionsInput) (*ListSessionsOutput, error) {
	limit, offset := clampPage(input.Limit, input.Offset)

	items, total, err := db.ListSessions(ctx, database, db.ListFilter{
		Limit:          limit,
		Offset:         offset,
		IncludeDeleted: input.IncludeDeleted,
		OnlyDeleted:    input.OnlyDeleted,
	})
	if err != nil {
		return nil, err
	}

	return &ListSessionsOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "updated_at_desc",
	}, nil
}

// RenameSessionInput contains parameters for the RenameSession operation.
type RenameSessionInput struct {
	ID    string // required
	Title string // required
}

// RenameSession changes a session title. The new title must be unique among
// active sessions.
func RenameSession(ctx context.Context, database *sql.DB, input RenameSessionInput) (*session.Session, error) {
	if strings.TrimSpace(input.ID) == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	title := strings.TrimSpace(input.Title)
	titleNorm := session.Normalize(title)
	if titleNorm == "" {
		return nil, errors.NewInvalidRequest("title is required")
	}

	if err := db.RenameSession(ctx, database, input.ID, title, titleNorm); err != nil {
		if err == db.ErrUniqueConstraint {
			return nil, errors.NewNameAlreadyExists(title)
		}
		return nil, err
	}
	return FetchSession(ctx, database, FetchSessionInput{SessionRef: SessionRef{ID: input.ID}})
}

// DeleteSessionOutput contains the result of the DeleteSession operation.
type DeleteSessionOutput struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// DeleteSession soft-deletes a session. Its groups stay until purge.
func DeleteSession(ctx context.Context, database *sql.DB, ref SessionRef) (*DeleteSessionOutput, error) {
	s, err := resolveSession(ctx, database, ref, false)
	if err != nil {
		return nil, err
	}
	if err := db.SoftDeleteSession(ctx, database, s.ID); err != nil {
		return nil, err
	}
	return &DeleteSessionOutput{Deleted: true, ID: s.ID}, nil
}

// PurgeSessionsInput contains parameters for the PurgeSessions operation.
type PurgeSessionsInput struct {
	OlderThanDays *int // optional, only purge if deleted_at < (now - N days)
}

// PurgeSessionsOutput contains the result of the PurgeSessions operation.
type PurgeSessionsOutput struct {
	Purged  int    `json:"purged"`
	Message string `json:"message"`
}

// PurgeSessions permanently deletes soft-deleted sessions and their groups.
func PurgeSessions(ctx context.Context, database *sql.DB, input PurgeSessionsInput) (*PurgeSessionsOutput, error) {
	var cutoff int64
	if input.OlderThanDays != nil {
		if *input.OlderThanDays < 0 {
			return nil, errors.NewInvalidRequest("older_than_days must not be negative")
		}
		cutoff = time.Now().Add(-time.Duration(*input.OlderThanDays) * 24 * time.Hour).Unix()
	}

	count, err := db.PurgeSessions(ctx, database, cutoff)
	if err != nil {
		return nil, err
	}
	return &PurgeSessionsOutput{
		Purged:  count,
		Message: formatPurgeMessage(count, input.OlderThanDays),
	}, nil
}

func formatPurgeMessage(count int, olderThanDays *int) string {
	if count == 0 {
		return "No deleted sessions to purge"
	}
	word := "session"
	if count > 1 {
		word = "sessions"
	}
	msg := fmt.Sprintf("Permanently deleted %d %s", count, word)
	if olderThanDays != nil {
		msg += fmt.Sprintf(" (deleted more than %d days ago)", *olderThanDays)
	}
	return msg
}
