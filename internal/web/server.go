// Package web serves the orbview viewer page, its JSON API, and the cube
// files under the data root.
package web

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bane-dysta/Orbital-Viewer/internal/config"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewServer creates and configures the HTTP server for the viewer.
func NewServer(db *sql.DB, cfg *config.Config, defaults config.ViewerDefaults, version string) *http.Server {
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		log.Fatalf("failed to create template sub-FS: %v", err)
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Fatalf("failed to create static sub-FS: %v", err)
	}

	h := &Handlers{
		db:       db,
		cfg:      cfg,
		defaults: defaults,
		renderer: NewRenderer(templateSub, version),
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port),
		Handler:           securityHeaders(h.routes(staticSub)),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// routes registers every endpoint using Go 1.22+ pattern syntax.
func (h *Handlers) routes(static fs.FS) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.HandleViewer)
	mux.HandleFunc("GET /sessions", h.HandleSessionsPage)
	mux.HandleFunc("GET /files/{path...}", h.HandleFile)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))

	mux.HandleFunc("GET /api/defaults", h.HandleDefaults)

	mux.HandleFunc("POST /api/cube/validate", h.HandleCubeValidate)
	mux.HandleFunc("POST /api/cube/parse", h.HandleCubeParse)
	mux.HandleFunc("GET /api/cube/histogram", h.HandleCubeHistogram)

	mux.HandleFunc("GET /api/sessions", h.HandleListSessions)
	mux.HandleFunc("POST /api/sessions", h.HandleCreateSession)
	mux.HandleFunc("POST /api/sessions/import", h.HandleImportSession)
	mux.HandleFunc("POST /api/sessions/purge", h.HandlePurgeSessions)
	mux.HandleFunc("GET /api/sessions/{id}", h.HandleGetSession)
	mux.HandleFunc("PATCH /api/sessions/{id}", h.HandleRenameSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.HandleDeleteSession)
	mux.HandleFunc("GET /api/sessions/{id}/config", h.HandleSessionConfig)
	mux.HandleFunc("POST /api/sessions/{id}/groups", h.HandleAddGroup)

	mux.HandleFunc("GET /api/groups/{id}", h.HandleGetGroup)
	mux.HandleFunc("PATCH /api/groups/{id}", h.HandleUpdateGroup)
	mux.HandleFunc("DELETE /api/groups/{id}", h.HandleRemoveGroup)
	mux.HandleFunc("GET /api/groups/{id}/notes", h.HandleGetNotes)
	mux.HandleFunc("PUT /api/groups/{id}/notes", h.HandleSetNotes)
	mux.HandleFunc("GET /api/groups/{id}/render", h.HandleRenderPlan)

	return mux
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'; img-src 'self' data: blob:")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Printf("orbview running at http://%s", srv.Addr)

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		log.Printf("WARNING: Server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
