package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bane-dysta/Orbital-Viewer/internal/config"
	"github.com/bane-dysta/Orbital-Viewer/internal/db"
	"github.com/bane-dysta/Orbital-Viewer/internal/ops"
	"github.com/bane-dysta/Orbital-Viewer/internal/session"
)

// h2Cube is a 2x2x2 grid around H2 with the atoms 1.4 bohr apart.
const h2Cube = `H2 density
Generated for testing
    2    0.000000    0.000000    0.000000
    2    0.200000    0.000000    0.000000
    2    0.000000    0.200000    0.000000
    2    0.000000    0.000000    0.200000
    1    1.000000    0.000000    0.000000    0.000000
    1    1.000000    0.000000    0.000000    1.400000
 1.0E-01 2.0E-01 3.0E-01
 4.0E-01 5.0E-01
 6.0E-01 7.0E-01 -8.0E-01
`

// h2Partial stops three voxel values short of the grid.
var h2Partial = strings.TrimSuffix(h2Cube, " 6.0E-01 7.0E-01 -8.0E-01\n")

type testServer struct {
	h   *Handlers
	mux http.Handler
}

func setupTest(t *testing.T) *testServer {
	t.Helper()
	t.Setenv("ORBVIEW_HOME", t.TempDir())

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.DataRoot = t.TempDir()

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		t.Fatalf("template sub-FS: %v", err)
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		t.Fatalf("static sub-FS: %v", err)
	}

	h := &Handlers{
		db:       database,
		cfg:      cfg,
		defaults: config.BuiltinDefaults(),
		renderer: NewRenderer(templateSub, "test"),
	}
	return &testServer{h: h, mux: securityHeaders(h.routes(staticSub))}
}

func (ts *testServer) do(t *testing.T, method, target string, body io.Reader, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) writeDataFile(t *testing.T, rel, content string) {
	t.Helper()
	p := filepath.Join(ts.h.cfg.DataRoot, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

// seedSession stores a session with one group per file name.
func (ts *testServer) seedSession(t *testing.T, title string, files ...string) *session.Session {
	t.Helper()
	groups := make([]session.Group, 0, len(files))
	for i, f := range files {
		g := session.NewGroup("Orbital "+string(rune('A'+i)), ts.h.defaults)
		g.FileName1 = f
		groups = append(groups, g)
	}
	s, err := ops.CreateSession(context.Background(), ts.h.db, ts.h.cfg, ops.CreateSessionInput{Title: title, Groups: groups})
	if err != nil {
		t.Fatalf("seed session %q: %v", title, err)
	}
	return s
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, rec, &resp)
	return resp.Error.Code
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewReader(b)
}

// --- Pages ---

func TestHandleViewer_Empty(t *testing.T) {
	ts := setupTest(t)

	rec := ts.do(t, "GET", "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `id="orbview-config"`) {
		t.Error("expected bootstrap config block")
	}
	if !strings.Contains(body, "No groups loaded") {
		t.Error("expected empty state message")
	}
	if !strings.Contains(body, `"maxViewerGroups":`) {
		t.Error("expected bootstrap JSON to carry maxViewerGroups")
	}
}

func TestHandleViewer_Session(t *testing.T) {
	ts := setupTest(t)
	s := ts.seedSession(t, "Excited States", "s1/hole.cube", "s1/elec.cube")

	rec := ts.do(t, "GET", "/?session="+s.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Excited States", "Orbital A", "Orbital B", "s1/hole.cube", s.ID} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in viewer page", want)
		}
	}
}

func TestHandleViewer_ConfigFile(t *testing.T) {
	ts := setupTest(t)
	ts.writeDataFile(t, "saved.json", `{
  "version": "1.0",
  "globalTitle": "From File",
  "viewers": [{"id": 0, "title": "HOMO", "fileName1": "homo.cube", "isoValue": 0.05}]
}`)

	rec := ts.do(t, "GET", "/?config=saved.json", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "From File") || !strings.Contains(body, "HOMO") {
		t.Error("expected configuration title and group in page")
	}
}

func TestHandleViewer_ConfigOutsideRoot(t *testing.T) {
	ts := setupTest(t)

	rec := ts.do(t, "GET", "/?config=../outside.json", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<!DOCTYPE html>") {
		t.Error("expected HTML error page for browser request")
	}
}

func TestHandleViewer_SessionAndConfig(t *testing.T) {
	ts := setupTest(t)

	rec := ts.do(t, "GET", "/?session=x&config=y.json", nil, "Accept", "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if code := errorCode(t, rec); code != "INVALID_REQUEST" {
		t.Errorf("code = %q, want INVALID_REQUEST", code)
	}
}

func TestHandleViewer_UnknownSession(t *testing.T) {
	ts := setupTest(t)

	rec := ts.do(t, "GET", "/?session=01HNOTREAL", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleSessionsPage(t *testing.T) {
	ts := setupTest(t)
	ts.seedSession(t, "alpha", "a.cube")
	deleted := ts.seedSession(t, "beta", "b.cube")
	if _, err := ops.DeleteSession(context.Background(), ts.h.db, ops.SessionRef{ID: deleted.ID}); err != nil {
		t.Fatal(err)
	}

	rec := ts.do(t, "GET", "/sessions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "alpha") {
		t.Error("expected active session in list")
	}
	if strings.Contains(body, "beta") {
		t.Error("did not expect deleted session in active list")
	}

	rec = ts.do(t, "GET", "/sessions?deleted=true", nil)
	if !strings.Contains(rec.Body.String(), "beta") {
		t.Error("expected deleted session in deleted list")
	}
}

func TestSecurityHeaders(t *testing.T) {
	ts := setupTest(t)

	rec := ts.do(t, "GET", "/", nil)
	if csp := rec.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "script-src 'self'") {
		t.Errorf("Content-Security-Policy = %q", csp)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected nosniff header")
	}
}

func TestStaticAssets(t *testing.T) {
	ts := setupTest(t)

	for _, p := range []string{"/static/style.css", "/static/viewer.js"} {
		rec := ts.do(t, "GET", p, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", p, rec.Code)
		}
	}
}

// --- Files ---

func TestHandleFile(t *testing.T) {
	ts := setupTest(t)
	ts.writeDataFile(t, "mol/homo.cube", h2Cube)

	rec := ts.do(t, "GET", "/files/mol/homo.cube", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Body.String() != h2Cube {
		t.Error("served body differs from file")
	}
}

func TestHandleFile_Rejected(t *testing.T) {
	ts := setupTest(t)
	ts.writeDataFile(t, "notes.txt", "hello")

	tests := []struct {
		path   string
		status int
	}{
		{"/files/notes.txt", http.StatusUnsupportedMediaType},
		{"/files/missing.cube", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := ts.do(t, "GET", tt.path, nil)
		if rec.Code != tt.status {
			t.Errorf("%s: status = %d, want %d", tt.path, rec.Code, tt.status)
		}
	}
}

// --- Cube API ---

func TestHandleCubeParse_RawBody(t *testing.T) {
	ts := setupTest(t)

	rec := ts.do(t, "POST", "/api/cube/parse?name=h2.cube&voxels=true", strings.NewReader(h2Cube))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var out ops.LoadCubeOutput
	decodeBody(t, rec, &out)
	if out.Name != "h2.cube" || out.AtomCount != 2 {
		t.Errorf("name=%q atoms=%d", out.Name, out.AtomCount)
	}
	if len(out.Bonds) != 1 {
		t.Errorf("bonds = %d, want 1", len(out.Bonds))
	}
	if out.Stats == nil || out.NumVoxels != 8 {
		t.Errorf("expected voxel stats for 8 voxels, got %+v", out.Stats)
	}
	if out.Partial {
		t.Error("did not expect partial voxel data")
	}
}

func TestHandleCubeParse_Multipart(t *testing.T) {
	ts := setupTest(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "upload.cub")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.WriteString(fw, h2Cube)
	_ = mw.Close()

	rec := ts.do(t, "POST", "/api/cube/parse", &buf, "Content-Type", mw.FormDataContentType())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var out ops.LoadCubeOutput
	decodeBody(t, rec, &out)
	if out.Name != "upload.cub" {
		t.Errorf("name = %q, want upload.cub", out.Name)
	}
}

func TestHandleCubeParse_DataFile(t *testing.T) {
	ts := setupTest(t)
	ts.writeDataFile(t, "h2.cube", h2Cube)

	rec := ts.do(t, "POST", "/api/cube/parse?file=h2.cube&tolerance=0.5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var out ops.LoadCubeOutput
	decodeBody(t, rec, &out)
	if len(out.Bonds) != 0 {
		t.Errorf("bonds = %d, want 0 at tolerance 0.5", len(out.Bonds))
	}
	if len(out.Fragments) != 2 {
		t.Errorf("fragments = %d, want 2", len(out.Fragments))
	}
}

func TestHandleCubeParse_Errors(t *testing.T) {
	ts := setupTest(t)

	tests := []struct {
		name   string
		target string
		body   string
		status int
		code   string
	}{
		{"malformed", "/api/cube/parse", "not a cube file", 422, "FORMAT_ERROR"},
		{"empty", "/api/cube/parse", "", 400, "INVALID_REQUEST"},
		{"wrong extension", "/api/cube/parse?name=x.txt", h2Cube, 415, "UNSUPPORTED_FILE"},
		{"bad tolerance", "/api/cube/parse?tolerance=-1", h2Cube, 400, "INVALID_REQUEST"},
		{"strict partial", "/api/cube/parse?strict=true", h2Partial, 422, "PARTIAL_DATA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, "POST", tt.target, strings.NewReader(tt.body))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			if code := errorCode(t, rec); code != tt.code {
				t.Errorf("code = %q, want %q", code, tt.code)
			}
		})
	}
}

func TestHandleCubeParse_TooLarge(t *testing.T) {
	ts := setupTest(t)
	ts.h.cfg.MaxFileSize = 64

	rec := ts.do(t, "POST", "/api/cube/parse", strings.NewReader(h2Cube+strings.Repeat(" 0.0\n", 1<<15)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleCubeValidate(t *testing.T) {
	ts := setupTest(t)

	rec := ts.do(t, "POST", "/api/cube/validate", strings.NewReader(h2Cube))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out ops.ValidateCubeOutput
	decodeBody(t, rec, &out)
	if !out.Valid {
		t.Errorf("expected valid, got %+v", out.Error)
	}

	rec = ts.do(t, "POST", "/api/cube/validate", strings.NewReader("one\ntwo\n"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	out = ops.ValidateCubeOutput{}
	decodeBody(t, rec, &out)
	if out.Valid || out.Error == nil {
		t.Error("expected invalid result with error")
	}
}

func TestHandleCubeHistogram(t *testing.T) {
	ts := setupTest(t)
	ts.writeDataFile(t, "h2.cube", h2Cube)

	rec := ts.do(t, "GET", "/api/cube/histogram?file=h2.cube&bins=4", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("expected PNG signature")
	}
}

func TestHandleDefaults(t *testing.T) {
	ts := setupTest(t)

	rec := ts.do(t, "GET", "/api/defaults", nil)
	var d config.ViewerDefaults
	decodeBody(t, rec, &d)
	if d != config.BuiltinDefaults() {
		t.Errorf("defaults = %+v", d)
	}
}

// --- Session API ---

func TestSessionAPI_Lifecycle(t *testing.T) {
	ts := setupTest(t)

	rec := ts.do(t, "POST", "/api/sessions", jsonBody(t, map[string]any{
		"title":  "Benzene",
		"groups": []map[string]any{{"file_name1": "benzene/homo.cube", "color1": "#00ff00"}},
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var s session.Session
	decodeBody(t, rec, &s)
	if len(s.Groups) != 1 || s.Groups[0].Color1 != "#00FF00" || s.Groups[0].Title != "Group 1" {
		t.Fatalf("unexpected groups: %+v", s.Groups)
	}

	rec = ts.do(t, "PATCH", "/api/sessions/"+s.ID, jsonBody(t, map[string]string{"title": "Benzene pi"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("rename status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, "GET", "/api/sessions/"+s.ID, nil)
	var got session.Session
	decodeBody(t, rec, &got)
	if got.Title != "Benzene pi" {
		t.Errorf("title = %q", got.Title)
	}

	rec = ts.do(t, "GET", "/api/sessions", nil)
	var list ops.ListSessionsOutput
	decodeBody(t, rec, &list)
	if len(list.Items) != 1 || list.Pagination.Total != 1 {
		t.Errorf("list = %+v", list)
	}

	rec = ts.do(t, "DELETE", "/api/sessions/"+s.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = ts.do(t, "GET", "/api/sessions/"+s.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
	rec = ts.do(t, "GET", "/api/sessions/"+s.ID+"?include_deleted=true", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("get deleted status = %d, want 200", rec.Code)
	}
}

func TestHandleCreateSession_Errors(t *testing.T) {
	ts := setupTest(t)
	ts.seedSession(t, "Taken", "a.cube")

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"duplicate title", `{"title":"  taken "}`, 409, "NAME_ALREADY_EXISTS"},
		{"unknown field", `{"title":"x","bogus":1}`, 400, "INVALID_REQUEST"},
		{"bad color", `{"title":"y","groups":[{"color1":"blue"}]}`, 400, "INVALID_REQUEST"},
		{"empty body", ``, 400, "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, "POST", "/api/sessions", strings.NewReader(tt.body))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			if code := errorCode(t, rec); code != tt.code {
				t.Errorf("code = %q, want %q", code, tt.code)
			}
		})
	}
}

func TestHandleSessionConfig(t *testing.T) {
	ts := setupTest(t)
	s := ts.seedSession(t, "My Orbitals", "a.cube", "b.cube")

	rec := ts.do(t, "GET", "/api/sessions/"+s.ID+"/config", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") || !strings.Contains(cd, ".json") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	cf, err := session.DecodeConfigFile(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	if cf.GlobalTitle != "My Orbitals" || len(cf.Viewers) != 2 {
		t.Errorf("config = %+v", cf)
	}
}

func TestHandleImportSession(t *testing.T) {
	ts := setupTest(t)
	body := `{"version":"1.0","globalTitle":"Imported","viewers":[{"id":"0","title":"LUMO","fileName1":"lumo.cube"}]}`

	rec := ts.do(t, "POST", "/api/sessions/import", strings.NewReader(body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var out ops.ImportOutput
	decodeBody(t, rec, &out)
	if out.Session.Title != "Imported" || len(out.Session.Groups) != 1 {
		t.Errorf("session = %+v", out.Session)
	}

	rec = ts.do(t, "POST", "/api/sessions/import", strings.NewReader(body))
	if rec.Code != http.StatusConflict {
		t.Errorf("second import status = %d, want 409", rec.Code)
	}

	rec = ts.do(t, "POST", "/api/sessions/import?mode=rename", strings.NewReader(body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("rename import status = %d", rec.Code)
	}
	out = ops.ImportOutput{}
	decodeBody(t, rec, &out)
	if out.Session.Title != "Imported (2)" || !out.Renamed {
		t.Errorf("renamed import = %q renamed=%v", out.Session.Title, out.Renamed)
	}

	rec = ts.do(t, "POST", "/api/sessions/import", strings.NewReader("{broken"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("broken import status = %d, want 400", rec.Code)
	}
}

func TestHandlePurgeSessions(t *testing.T) {
	ts := setupTest(t)
	s := ts.seedSession(t, "old", "a.cube")
	if _, err := ops.DeleteSession(context.Background(), ts.h.db, ops.SessionRef{ID: s.ID}); err != nil {
		t.Fatal(err)
	}

	rec := ts.do(t, "POST", "/api/sessions/purge", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("purge without confirm status = %d, want 400", rec.Code)
	}

	rec = ts.do(t, "POST", "/api/sessions/purge?confirm=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var out ops.PurgeSessionsOutput
	decodeBody(t, rec, &out)
	if out.Purged != 1 {
		t.Errorf("purged = %d, want 1", out.Purged)
	}
}

// --- Group API ---

func TestGroupAPI_UpdateAndConflict(t *testing.T) {
	ts := setupTest(t)
	s := ts.seedSession(t, "groups", "a.cube")
	g := s.Groups[0]

	rec := ts.do(t, "PATCH", "/api/groups/"+g.ID, jsonBody(t, map[string]any{
		"iso_value":  "0.05",
		"generation": g.Generation,
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body.String())
	}
	var updated session.Group
	decodeBody(t, rec, &updated)
	if updated.IsoValue != "0.05" || updated.Generation != g.Generation+1 {
		t.Errorf("updated = %+v", updated)
	}

	// stale generation
	rec = ts.do(t, "PATCH", "/api/groups/"+g.ID, jsonBody(t, map[string]any{
		"title":      "late",
		"generation": g.Generation,
	}))
	if rec.Code != http.StatusConflict {
		t.Errorf("stale update status = %d, want 409", rec.Code)
	}

	rec = ts.do(t, "PATCH", "/api/groups/"+g.ID, jsonBody(t, map[string]any{"generation": updated.Generation}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty patch status = %d, want 400", rec.Code)
	}
}

func TestGroupAPI_AddAndRemove(t *testing.T) {
	ts := setupTest(t)
	s := ts.seedSession(t, "groups", "a.cube")

	rec := ts.do(t, "POST", "/api/sessions/"+s.ID+"/groups", jsonBody(t, map[string]any{"file_name1": "b.cube"}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d: %s", rec.Code, rec.Body.String())
	}
	var added session.Group
	decodeBody(t, rec, &added)
	if added.Position != 1 || added.FileName1 != "b.cube" {
		t.Errorf("added = %+v", added)
	}

	rec = ts.do(t, "DELETE", "/api/groups/"+s.Groups[0].ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, "GET", "/api/groups/"+added.ID, nil)
	var moved session.Group
	decodeBody(t, rec, &moved)
	if moved.Position != 0 {
		t.Errorf("position after remove = %d, want 0", moved.Position)
	}
}

func TestGroupAPI_Limit(t *testing.T) {
	ts := setupTest(t)
	ts.h.cfg.MaxViewerGroups = 1
	s := ts.seedSession(t, "full", "a.cube")

	rec := ts.do(t, "POST", "/api/sessions/"+s.ID+"/groups", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if code := errorCode(t, rec); code != "GROUP_LIMIT" {
		t.Errorf("code = %q, want GROUP_LIMIT", code)
	}
}

func TestGroupAPI_Notes(t *testing.T) {
	ts := setupTest(t)
	s := ts.seedSession(t, "notes", "a.cube")
	g := s.Groups[0]

	rec := ts.do(t, "PUT", "/api/groups/"+g.ID+"/notes", jsonBody(t, map[string]any{
		"notes":      "**bonding** orbital <script>x</script>",
		"generation": g.Generation,
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, "GET", "/api/groups/"+g.ID+"/notes", nil)
	var notes notesResponse
	decodeBody(t, rec, &notes)
	if !strings.Contains(notes.HTML, "<strong>bonding</strong>") {
		t.Errorf("html = %q", notes.HTML)
	}
	if strings.Contains(notes.HTML, "<script>") {
		t.Error("raw HTML must not pass through notes rendering")
	}
}

func TestGroupAPI_RenderPlan(t *testing.T) {
	ts := setupTest(t)
	s := ts.seedSession(t, "render", "a.cube")

	rec := ts.do(t, "GET", "/api/groups/"+s.Groups[0].ID+"/render", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var plan session.RenderPlan
	decodeBody(t, rec, &plan)
	if len(plan.Surfaces) != 2 {
		t.Fatalf("surfaces = %d, want 2", len(plan.Surfaces))
	}
	if plan.Surfaces[0].IsoVal <= 0 || plan.Surfaces[1].IsoVal >= 0 {
		t.Errorf("expected positive then negative lobe, got %+v", plan.Surfaces)
	}
}

func TestGroupAPI_RenderPlanHiddenFile(t *testing.T) {
	ts := setupTest(t)
	s := ts.seedSession(t, "hidden", "a.cube")
	g := s.Groups[0]

	rec := ts.do(t, "PATCH", "/api/groups/"+g.ID, jsonBody(t, map[string]any{
		"show_file1":    false,
		"show_positive": false,
		"generation":    g.Generation,
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, "GET", "/api/groups/"+g.ID+"/render", nil)
	var plan session.RenderPlan
	decodeBody(t, rec, &plan)
	if len(plan.Surfaces) != 0 {
		t.Errorf("surfaces = %+v, want none for a hidden file", plan.Surfaces)
	}
	if len(plan.Files) != 1 {
		t.Errorf("files = %v, want the hidden file still listed", plan.Files)
	}
}

func TestGroupAPI_NotFound(t *testing.T) {
	ts := setupTest(t)

	for _, p := range []string{"/api/groups/nope", "/api/groups/nope/notes", "/api/groups/nope/render"} {
		rec := ts.do(t, "GET", p, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", p, rec.Code)
		}
	}
}
