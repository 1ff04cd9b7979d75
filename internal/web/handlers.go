package web

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/bane-dysta/Orbital-Viewer/internal/config"
	"github.com/bane-dysta/Orbital-Viewer/internal/cube"
	"github.com/bane-dysta/Orbital-Viewer/internal/errors"
	"github.com/bane-dysta/Orbital-Viewer/internal/ops"
	"github.com/bane-dysta/Orbital-Viewer/internal/session"
)

// maxJSONBody bounds request bodies that are not cube uploads.
const maxJSONBody = 8 << 20

// contentTypes maps served file extensions to their Content-Type.
var contentTypes = map[string]string{
	".cub":  "application/octet-stream",
	".cube": "application/octet-stream",
	".json": "application/json",
	".gz":   "application/gzip",
	".zst":  "application/zstd",
}

// Handlers contains HTTP route handlers for the viewer.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	defaults config.ViewerDefaults
	renderer *Renderer
}

// HandleViewer handles GET /, the viewer page. ?session=<id> loads a stored
// session; ?config=<file.json> loads a configuration file from the data root.
func (h *Handlers) HandleViewer(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	boot := ViewerBootstrap{
		DefaultSettings: h.defaults,
		MaxViewerGroups: h.cfg.MaxViewerGroups,
	}
	var groups []session.Group

	switch {
	case q.Get("session") != "" && q.Get("config") != "":
		h.renderer.renderError(w, r, errors.NewInvalidRequest("specify either session or config, not both"))
		return
	case q.Get("session") != "":
		cf, s, err := ops.SessionConfig(r.Context(), h.db, ops.SessionRef{ID: q.Get("session")}, time.Now())
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		boot.SessionID = s.ID
		boot.ConfigData = cf
		groups = s.Groups
	case q.Get("config") != "":
		name := q.Get("config")
		cf, err := h.loadDataConfig(name)
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		boot.ConfigPath = name
		boot.ConfigData = cf
		groups = cf.Groups(h.defaults)
	}

	title := "Orbital Viewer"
	if boot.ConfigData != nil && boot.ConfigData.GlobalTitle != "" {
		title = boot.ConfigData.GlobalTitle
	}
	h.renderer.renderPage(w, "viewer", ViewerPageData{
		PageData:  PageData{Title: title, Version: h.renderer.version, Nav: "viewer"},
		Bootstrap: boot,
		Groups:    groups,
	})
}

// loadDataConfig decodes a configuration file stored under the data root.
func (h *Handlers) loadDataConfig(name string) (*session.ConfigFile, error) {
	if !strings.EqualFold(path.Ext(name), ".json") {
		return nil, errors.NewUnsupportedFile(name)
	}
	abs, err := ops.ResolveDataPath(h.cfg.DataRoot, name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, errors.NewFileNotFound(name)
	}
	defer f.Close()

	cf, err := session.DecodeConfigFile(io.LimitReader(f, maxJSONBody))
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	return cf, nil
}

// HandleSessionsPage handles GET /sessions, the stored session list.
func (h *Handlers) HandleSessionsPage(w http.ResponseWriter, r *http.Request) {
	input := ops.ListSessionsInput{
		Limit:       parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:      parseIntParam(r, "offset", 0),
		OnlyDeleted: parseBoolParam(r, "deleted"),
	}
	result, err := ops.ListSessions(r.Context(), h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.renderer.renderPage(w, "sessions", SessionsPageData{
		PageData:   PageData{Title: "Sessions", Version: h.renderer.version, Nav: "sessions"},
		Items:      result.Items,
		Pagination: result.Pagination,
		Deleted:    input.OnlyDeleted,
	})
}

// HandleFile handles GET /files/{path...}: raw cube and configuration files
// under the data root.
func (h *Handlers) HandleFile(w http.ResponseWriter, r *http.Request) {
	rel := r.PathValue("path")
	ext := strings.ToLower(path.Ext(rel))
	if ext != ".json" && !cube.IsCubeFile(rel) {
		h.renderer.renderError(w, r, errors.NewUnsupportedFile(rel))
		return
	}
	ctype := contentTypes[ext]
	abs, err := ops.ResolveDataPath(h.cfg.DataRoot, rel)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	f, err := os.Open(abs)
	if err != nil {
		h.renderer.renderError(w, r, errors.NewFileNotFound(rel))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		h.renderer.renderError(w, r, errors.NewFileNotFound(rel))
		return
	}
	w.Header().Set("Content-Type", ctype)
	http.ServeContent(w, r, path.Base(rel), info.ModTime(), f)
}

// HandleDefaults handles GET /api/defaults.
func (h *Handlers) HandleDefaults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.defaults)
}

// HandleCubeValidate handles POST /api/cube/validate.
func (h *Handlers) HandleCubeValidate(w http.ResponseWriter, r *http.Request) {
	input, err := h.cubeInput(w, r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	out, err := ops.ValidateCube(r.Context(), h.cfg, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCubeParse handles POST /api/cube/parse. The body is the cube text or
// a multipart form with a "file" field; ?file= reads from the data root instead. ?voxels=true adds statistics,
// ?strict=true rejects short voxel data, ?tolerance= overrides the bond
// tolerance.
func (h *Handlers) HandleCubeParse(w http.ResponseWriter, r *http.Request) {
	input, err := h.cubeInput(w, r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	input.Voxels = parseBoolParam(r, "voxels")
	input.Strict = parseBoolParam(r, "strict")
	if s := r.URL.Query().Get("tolerance"); s != "" {
		tol, err := strconv.ParseFloat(s, 64)
		if err != nil || tol <= 0 {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("tolerance must be a positive number"))
			return
		}
		input.Tolerance = tol
	}

	out, err := ops.LoadCube(r.Context(), h.cfg, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCubeHistogram handles GET /api/cube/histogram?file=<path>&bins=N.
func (h *Handlers) HandleCubeHistogram(w http.ResponseWriter, r *http.Request) {
	png, err := ops.CubeHistogram(r.Context(), h.cfg, ops.CubeInput{File: r.URL.Query().Get("file")}, parseIntParam(r, "bins", 0))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// cubeInput reads an uploaded cube from the request body, or names a file
// under the data root with ?file=. Compressed uploads are recognized by name.
func (h *Handlers) cubeInput(w http.ResponseWriter, r *http.Request) (ops.CubeInput, error) {
	if file := r.URL.Query().Get("file"); file != "" {
		return ops.CubeInput{File: file}, nil
	}
	limit := h.cfg.MaxFileSize
	if limit <= 0 {
		limit = config.DefaultMaxFileSize
	}
	// Multipart framing adds a little on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, limit+64<<10)

	name := r.URL.Query().Get("name")
	body := io.Reader(r.Body)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		mr, err := r.MultipartReader()
		if err != nil {
			return ops.CubeInput{}, errors.NewInvalidRequest(fmt.Sprintf("invalid multipart body: %v", err))
		}
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return ops.CubeInput{}, errors.NewInvalidRequest(`multipart body has no "file" field`)
			}
			if err != nil {
				return ops.CubeInput{}, bodyError(err, name, limit)
			}
			if part.FormName() == "file" {
				if part.FileName() != "" {
					name = part.FileName()
				}
				body = part
				break
			}
		}
	}

	if name == "" {
		name = "upload.cube"
	}
	if !cube.IsCubeFile(name) {
		return ops.CubeInput{}, errors.NewUnsupportedFile(name)
	}
	text, err := cube.ReadAll(body, name, limit)
	if err != nil {
		return ops.CubeInput{}, bodyError(err, name, limit)
	}
	if text == "" {
		return ops.CubeInput{}, errors.NewInvalidRequest("request body is empty")
	}
	return ops.CubeInput{Text: text, Name: path.Base(name)}, nil
}

func bodyError(err error, name string, limit int64) error {
	var maxErr *http.MaxBytesError
	if stderrors.As(err, &maxErr) {
		return errors.NewFileTooLarge(name, limit)
	}
	var tooLarge *cube.TooLargeError
	if stderrors.As(err, &tooLarge) {
		return errors.FromCube(err)
	}
	return errors.NewInvalidRequest(fmt.Sprintf("cannot read %s: %v", name, err))
}

// HandleListSessions handles GET /api/sessions.
func (h *Handlers) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	result, err := ops.ListSessions(r.Context(), h.db, ops.ListSessionsInput{
		Limit:          parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:         parseIntParam(r, "offset", 0),
		IncludeDeleted: parseBoolParam(r, "include_deleted"),
		OnlyDeleted:    parseBoolParam(r, "only_deleted"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type createSessionRequest struct {
	Title  string           `json:"title"`
	Groups []ops.GroupPatch `json:"groups"`
}

// HandleCreateSession handles POST /api/sessions.
func (h *Handlers) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	groups := make([]session.Group, 0, len(req.Groups))
	for i, p := range req.Groups {
		g := session.NewGroup(fmt.Sprintf("Group %d", i+1), h.defaults)
		p.Apply(&g)
		groups = append(groups, g)
	}

	s, err := ops.CreateSession(r.Context(), h.db, h.cfg, ops.CreateSessionInput{Title: req.Title, Groups: groups})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// HandleImportSession handles POST /api/sessions/import. The body is a
// configuration file; ?mode= and ?title= control collisions and naming.
func (h *Handlers) HandleImportSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	cf, err := session.DecodeConfigFile(r.Body)
	if err != nil {
		h.renderer.renderError(w, r, jsonBodyError(err))
		return
	}

	out, err := ops.ImportSession(r.Context(), h.db, h.cfg, h.defaults, ops.ImportInput{
		Config: cf,
		Title:  r.URL.Query().Get("title"),
		Mode:   ops.ImportMode(r.URL.Query().Get("mode")),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// HandlePurgeSessions handles POST /api/sessions/purge?confirm=true.
func (h *Handlers) HandlePurgeSessions(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest(`confirm parameter must be "true"`))
		return
	}
	var input ops.PurgeSessionsInput
	if days := r.URL.Query().Get("older_than_days"); days != "" {
		d, err := strconv.Atoi(days)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("older_than_days must be an integer"))
			return
		}
		input.OlderThanDays = &d
	}

	out, err := ops.PurgeSessions(r.Context(), h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetSession handles GET /api/sessions/{id}.
func (h *Handlers) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	s, err := ops.FetchSession(r.Context(), h.db, ops.FetchSessionInput{
		SessionRef:     ops.SessionRef{ID: r.PathValue("id")},
		IncludeDeleted: parseBoolParam(r, "include_deleted"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// HandleRenameSession handles PATCH /api/sessions/{id} with {"title": "..."}.
func (h *Handlers) HandleRenameSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	s, err := ops.RenameSession(r.Context(), h.db, ops.RenameSessionInput{ID: r.PathValue("id"), Title: req.Title})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// HandleDeleteSession handles DELETE /api/sessions/{id}.
func (h *Handlers) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	out, err := ops.DeleteSession(r.Context(), h.db, ops.SessionRef{ID: r.PathValue("id")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleSessionConfig handles GET /api/sessions/{id}/config: the session as
// a downloadable configuration file.
func (h *Handlers) HandleSessionConfig(w http.ResponseWriter, r *http.Request) {
	cf, s, err := ops.SessionConfig(r.Context(), h.db, ops.SessionRef{ID: r.PathValue("id")}, time.Now())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	filename := ops.SanitizeForFilename(session.Normalize(s.Title)) + ".json"
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	_ = cf.Encode(w)
}

// HandleAddGroup handles POST /api/sessions/{id}/groups with optional settings.
func (h *Handlers) HandleAddGroup(w http.ResponseWriter, r *http.Request) {
	var patch ops.GroupPatch
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &patch); err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
	}
	g, err := ops.AddGroup(r.Context(), h.db, h.cfg, h.defaults, ops.AddGroupInput{SessionID: r.PathValue("id"), Settings: patch})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// HandleGetGroup handles GET /api/groups/{id}.
func (h *Handlers) HandleGetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := ops.FetchGroup(r.Context(), h.db, r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type updateGroupRequest struct {
	ops.GroupPatch
	Generation int64 `json:"generation"`
}

// HandleUpdateGroup handles PATCH /api/groups/{id}. The body lists the fields
// to change plus the generation the client last saw.
func (h *Handlers) HandleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	var req updateGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	g, err := ops.UpdateGroup(r.Context(), h.db, ops.UpdateGroupInput{
		ID:         r.PathValue("id"),
		Generation: req.Generation,
		Patch:      req.GroupPatch,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// HandleRemoveGroup handles DELETE /api/groups/{id}?generation=N.
func (h *Handlers) HandleRemoveGroup(w http.ResponseWriter, r *http.Request) {
	out, err := ops.RemoveGroup(r.Context(), h.db, ops.RemoveGroupInput{
		ID:         r.PathValue("id"),
		Generation: int64(parseIntParam(r, "generation", 0)),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// notesResponse carries group notes as markdown and rendered HTML.
type notesResponse struct {
	ID         string `json:"id"`
	Notes      string `json:"notes"`
	HTML       string `json:"html"`
	Generation int64  `json:"generation"`
}

// HandleGetNotes handles GET /api/groups/{id}/notes.
func (h *Handlers) HandleGetNotes(w http.ResponseWriter, r *http.Request) {
	g, err := ops.FetchGroup(r.Context(), h.db, r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notesFor(g))
}

// HandleSetNotes handles PUT /api/groups/{id}/notes with {"notes", "generation"}.
func (h *Handlers) HandleSetNotes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes      string `json:"notes"`
		Generation int64  `json:"generation"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	g, err := ops.SetNotes(r.Context(), h.db, ops.SetNotesInput{ID: r.PathValue("id"), Notes: req.Notes, Generation: req.Generation})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notesFor(g))
}

func notesFor(g *session.Group) notesResponse {
	return notesResponse{
		ID:         g.ID,
		Notes:      g.Notes,
		HTML:       string(renderMarkdown(g.Notes)),
		Generation: g.Generation,
	}
}

// HandleRenderPlan handles GET /api/groups/{id}/render.
func (h *Handlers) HandleRenderPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := ops.RenderPlan(r.Context(), h.db, r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// decodeJSON decodes a bounded JSON request body, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return jsonBodyError(err)
	}
	return nil
}

func jsonBodyError(err error) error {
	var maxErr *http.MaxBytesError
	if stderrors.As(err, &maxErr) {
		return errors.NewFileTooLarge("request body", maxErr.Limit)
	}
	if err == io.EOF {
		return errors.NewInvalidRequest("request body is empty")
	}
	return errors.NewInvalidRequest(fmt.Sprintf("invalid JSON body: %v", err))
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}
