package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/bane-dysta/Orbital-Viewer/internal/config"
	"github.com/bane-dysta/Orbital-Viewer/internal/db"
	"github.com/bane-dysta/Orbital-Viewer/internal/errors"
	"github.com/bane-dysta/Orbital-Viewer/internal/ops"
	"github.com/bane-dysta/Orbital-Viewer/internal/session"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "viewer", "sessions"
}

// ViewerBootstrap is embedded in the viewer page as JSON for the browser code.
type ViewerBootstrap struct {
	SessionID       string                `json:"sessionId,omitempty"`
	ConfigPath      string                `json:"configPath,omitempty"`
	ConfigData      *session.ConfigFile   `json:"configData,omitempty"`
	DefaultSettings config.ViewerDefaults `json:"defaultSettings"`
	MaxViewerGroups int                   `json:"maxViewerGroups"`
}

// ViewerPageData is the template data for the viewer page.
type ViewerPageData struct {
	PageData
	Bootstrap ViewerBootstrap
	Groups    []session.Group
}

// SessionsPageData is the template data for the session list page.
type SessionsPageData struct {
	PageData
	Items      []db.SessionSummary
	Pagination ops.Pagination
	Deleted    bool
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string) *Renderer {
	funcMap := template.FuncMap{
		"add":        func(a, b int) int { return a + b },
		"sub":        func(a, b int) int { return a - b },
		"formatTime": formatTime,
		"markdown":   renderMarkdown,
	}

	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"viewer":   "viewer.html",
		"sessions": "sessions.html",
		"error":    "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
	}
}

// renderPage renders a named page template with HTTP 200.
func (r *Renderer) renderPage(w http.ResponseWriter, name string, data any) {
	r.renderPageStatus(w, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given status code.
// Output is buffered so a template failure never sends a partial page.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		log.Printf("template %q not found", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Printf("template execution error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError writes err as an HTML error page, or as JSON when the request
// is an API call or asks for JSON.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	vErr := toViewerError(err)

	if strings.HasPrefix(req.URL.Path, "/api/") || strings.Contains(req.Header.Get("Accept"), "application/json") {
		writeError(w, vErr)
		return
	}

	r.renderPageStatus(w, vErr.Status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", vErr.Status),
			Version: r.version,
		},
		StatusCode: vErr.Status,
		Message:    vErr.Message,
	})
}

// toViewerError converts any error to a ViewerError. Internal error text is
// logged and replaced so it never reaches the client.
func toViewerError(err error) *errors.ViewerError {
	var vErr *errors.ViewerError
	if !stderrors.As(err, &vErr) {
		log.Printf("internal error: %v", err)
		return errors.NewInternal(stderrors.New("internal error"))
	}
	if vErr.Code == errors.ErrInternal {
		log.Printf("internal error: %v", vErr.Message)
		return errors.NewInternal(stderrors.New("internal error"))
	}
	return vErr
}

// writeError writes {"error": {...}} with the error's status.
func writeError(w http.ResponseWriter, vErr *errors.ViewerError) {
	writeJSON(w, vErr.Status, map[string]any{"error": vErr})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderMarkdown converts markdown text to HTML using goldmark. Raw HTML in
// the notes is not passed through.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// formatTime formats a Unix timestamp as "2006-01-02 15:04" UTC.
func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}
