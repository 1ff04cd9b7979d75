package ops

import (
	"context"
	"testing"

	"github.com/bane-dysta/Orbital-Viewer/internal/config"
	"github.com/bane-dysta/Orbital-Viewer/internal/errors"
	"github.com/bane-dysta/Orbital-Viewer/internal/session"
)

func TestCreateSession_WithGroups(t *testing.T) {
	database := openTestDB(t)
	cfg := config.DefaultConfig()
	ctx := context.Background()

	d := config.BuiltinDefaults()
	g1 := session.NewGroup("HOMO", d)
	g1.FileName1 = "homo.cube"
	g2 := session.NewGroup("LUMO", d)
	g2.FileName1 = "lumo.cube"

	s, err := CreateSession(ctx, database, cfg, CreateSessionInput{
		Title:  "  Benzene   orbitals ",
		Groups: []session.Group{g1, g2},
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if s.ID == "" || s.Title != "Benzene   orbitals" {
		t.Errorf("id/title = %q/%q", s.ID, s.Title)
	}
	if len(s.Groups) != 2 {
		t.Fatalf("groups = %d", len(s.Groups))
	}
	for i, g := range s.Groups {
		if g.Position != i || g.SessionID != s.ID || g.Generation != 1 || g.ID == "" {
			t.Errorf("group %d = %+v", i, g)
		}
	}

	fetched, err := FetchSession(ctx, database, FetchSessionInput{SessionRef: SessionRef{Title: "benzene orbitals"}})
	if err != nil {
		t.Fatalf("FetchSession by title: %v", err)
	}
	if fetched.ID != s.ID || len(fetched.Groups) != 2 || fetched.Groups[1].Title != "LUMO" {
		t.Errorf("fetched = %+v", fetched)
	}
}

func TestCreateSession_Validation(t *testing.T) {
	database := openTestDB(t)
	cfg := config.DefaultConfig()
	cfg.MaxViewerGroups = 2
	ctx := context.Background()
	d := config.BuiltinDefaults()

	if _, err := CreateSession(ctx, database, cfg, CreateSessionInput{Title: "   "}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("blank title: got %v", err)
	}

	three := []session.Group{session.NewGroup("a", d), session.NewGroup("b", d), session.NewGroup("c", d)}
	if _, err := CreateSession(ctx, database, cfg, CreateSessionInput{Title: "many", Groups: three}); !errors.Is(err, errors.ErrGroupLimit) {
		t.Errorf("too many groups: got %v", err)
	}

	bad := session.NewGroup("bad", d)
	bad.Color1 = "blue"
	if _, err := CreateSession(ctx, database, cfg, CreateSessionInput{Title: "bad", Groups: []session.Group{bad}}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("invalid group: got %v", err)
	}

	if _, err := CreateSession(ctx, database, cfg, CreateSessionInput{Title: "Water"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := CreateSession(ctx, database, cfg, CreateSessionInput{Title: "WATER"}); !errors.Is(err, errors.ErrNameAlreadyExists) {
		t.Errorf("duplicate title: got %v", err)
	}
}

func TestFetchSession_Addressing(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	if _, err := FetchSession(ctx, database, FetchSessionInput{}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("empty ref: got %v", err)
	}
	if _, err := FetchSession(ctx, database, FetchSessionInput{SessionRef: SessionRef{ID: "x", Title: "y"}}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("ambiguous ref: got %v", err)
	}
	if _, err := FetchSession(ctx, database, FetchSessionInput{SessionRef: SessionRef{ID: "01NOPE"}}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("unknown id: got %v", err)
	}
}

func TestListSessions_Pagination(t *testing.T) {
	database := openTestDB(t)
	cfg := config.DefaultConfig()
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c"} {
		if _, err := CreateSession(ctx, database, cfg, CreateSessionInput{Title: title}); err != nil {
			t.Fatal(err)
		}
	}

	out, err := ListSessions(ctx, database, ListSessionsInput{Limit: 2})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(out.Items) != 2 || !out.Pagination.HasMore || out.Pagination.Total != 3 {
		t.Errorf("page 1 = %+v", out)
	}

	out, err = ListSessions(ctx, database, ListSessionsInput{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Items) != 1 || out.Pagination.HasMore {
		t.Errorf("page 2 = %+v", out)
	}

	out, err = ListSessions(ctx, database, ListSessionsInput{Limit: 1000, Offset: -5})
	if err != nil {
		t.Fatal(err)
	}
	if out.Pagination.Limit != MaxListLimit || out.Pagination.Offset != 0 {
		t.Errorf("clamped pagination = %+v", out.Pagination)
	}
}

func TestRenameSession(t *testing.T) {
	database := openTestDB(t)
	cfg := config.DefaultConfig()
	ctx := context.Background()

	a, err := CreateSession(ctx, database, cfg, CreateSessionInput{Title: "first"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := CreateSession(ctx, database, cfg, CreateSessionInput{Title: "second"}); err != nil {
		t.Fatal(err)
	}

	renamed, err := RenameSession(ctx, database, RenameSessionInput{ID: a.ID, Title: "renamed"})
	if err != nil {
		t.Fatalf("RenameSession: %v", err)
	}
	if renamed.Title != "renamed" {
		t.Errorf("title = %q", renamed.Title)
	}

	if _, err := RenameSession(ctx, database, RenameSessionInput{ID: a.ID, Title: "Second"}); !errors.Is(err, errors.ErrNameAlreadyExists) {
		t.Errorf("collision: got %v", err)
	}
	if _, err := RenameSession(ctx, database, RenameSessionInput{ID: a.ID}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("blank title: got %v", err)
	}
}

func TestDeleteAndPurgeSessions(t *testing.T) {
	database := openTestDB(t)
	cfg := config.DefaultConfig()
	ctx := context.Background()

	s, err := CreateSession(ctx, database, cfg, CreateSessionInput{Title: "temp"})
	if err != nil {
		t.Fatal(err)
	}

	del, err := DeleteSession(ctx, database, SessionRef{Title: "temp"})
	if err != nil || !del.Deleted || del.ID != s.ID {
		t.Fatalf("DeleteSession = %+v, %v", del, err)
	}
	if _, err := DeleteSession(ctx, database, SessionRef{ID: s.ID}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second delete: got %v", err)
	}

	// The title is free again once the session is deleted.
	if _, err := CreateSession(ctx, database, cfg, CreateSessionInput{Title: "temp"}); err != nil {
		t.Errorf("reuse deleted title: %v", err)
	}

	days := 30
	out, err := PurgeSessions(ctx, database, PurgeSessionsInput{OlderThanDays: &days})
	if err != nil {
		t.Fatal(err)
	}
	if out.Purged != 0 || out.Message != "No deleted sessions to purge" {
		t.Errorf("recent purge = %+v", out)
	}

	out, err = PurgeSessions(ctx, database, PurgeSessionsInput{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Purged != 1 || out.Message != "Permanently deleted 1 session" {
		t.Errorf("purge = %+v", out)
	}
	if _, err := FetchSession(ctx, database, FetchSessionInput{SessionRef: SessionRef{ID: s.ID}, IncludeDeleted: true}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("purged session still found: %v", err)
	}

	negative := -1
	if _, err := PurgeSessions(ctx, database, PurgeSessionsInput{OlderThanDays: &negative}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("negative days: got %v", err)
	}
}
