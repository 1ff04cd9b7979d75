package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/bane-dysta/Orbital-Viewer/internal/config"
	"github.com/bane-dysta/Orbital-Viewer/internal/cube"
	"github.com/bane-dysta/Orbital-Viewer/internal/errors"
	"github.com/bane-dysta/Orbital-Viewer/internal/ops"
	"github.com/bane-dysta/Orbital-Viewer/internal/session"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	defaults config.ViewerDefaults
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, defaults config.ViewerDefaults) *Handlers {
	return &Handlers{db: db, cfg: cfg, defaults: defaults}
}

// Request types for each tool

// CubeRequest represents the arguments shared by the cube tools.
type CubeRequest struct {
	File              string  `json:"file,omitempty"`
	Text              string  `json:"text,omitempty"`
	Name              string  `json:"name,omitempty"`
	IncludeVoxelStats bool    `json:"include_voxel_stats,omitempty"`
	Strict            bool    `json:"strict,omitempty"`
	Tolerance         float64 `json:"tolerance,omitempty"`
}

func (r CubeRequest) input() (ops.CubeInput, error) {
	if r.Tolerance < 0 {
		return ops.CubeInput{}, errors.NewInvalidRequest("tolerance must be positive")
	}
	return ops.CubeInput{
		File:      r.File,
		Text:      r.Text,
		Name:      r.Name,
		Voxels:    r.IncludeVoxelStats,
		Strict:    r.Strict,
		Tolerance: r.Tolerance,
	}, nil
}

// SessionCreateRequest represents the arguments for session_create.
type SessionCreateRequest struct {
	Title  string           `json:"title"`
	Groups []ops.GroupPatch `json:"groups,omitempty"`
}

// SessionRefRequest addresses a session by id or title.
type SessionRefRequest struct {
	ID             string `json:"id,omitempty"`
	Title          string `json:"title,omitempty"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
}

// SessionListRequest represents the arguments for session_list.
type SessionListRequest struct {
	Limit          int  `json:"limit,omitempty"`
	Offset         int  `json:"offset,omitempty"`
	IncludeDeleted bool `json:"include_deleted,omitempty"`
	OnlyDeleted    bool `json:"only_deleted,omitempty"`
}

// SessionExportRequest represents the arguments for session_export.
type SessionExportRequest struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
	Path  string `json:"path,omitempty"`
}

// SessionImportRequest represents the arguments for session_import.
type SessionImportRequest struct {
	Path  string `json:"path"`
	Title string `json:"title,omitempty"`
	Mode  string `json:"mode,omitempty"`
}

// SessionScanRequest represents the arguments for session_scan.
type SessionScanRequest struct {
	Dir   string `json:"dir,omitempty"`
	Title string `json:"title,omitempty"`
}

// GroupAddRequest represents the arguments for group_add.
type GroupAddRequest struct {
	SessionID string         `json:"session_id"`
	Settings  ops.GroupPatch `json:"settings,omitempty"`
}

// GroupUpdateRequest represents the arguments for group_update.
type GroupUpdateRequest struct {
	ID         string         `json:"id"`
	Generation int64          `json:"generation,omitempty"`
	Settings   ops.GroupPatch `json:"settings"`
}

// GroupRemoveRequest represents the arguments for group_remove.
type GroupRemoveRequest struct {
	ID         string `json:"id"`
	Generation int64  `json:"generation,omitempty"`
}

// GroupNotesRequest represents the arguments for group_notes.
type GroupNotesRequest struct {
	ID         string  `json:"id"`
	Notes      *string `json:"notes,omitempty"`
	Generation int64   `json:"generation,omitempty"`
}

// GroupRenderRequest represents the arguments for group_render.
type GroupRenderRequest struct {
	ID string `json:"id"`
}

// Output types that narrow ops results

// BondsOutput is the result of cube_bonds.
type BondsOutput struct {
	Name      string      `json:"name"`
	Tolerance float64     `json:"tolerance"`
	Atoms     []ops.DisplayAtom `json:"atoms"`
	Bonds     []cube.Bond       `json:"bonds"`
	Fragments [][]int           `json:"fragments"`
}

// StatsOutput is the result of cube_stats.
type StatsOutput struct {
	Name      string           `json:"name"`
	NumVoxels int              `json:"num_voxels"`
	Stats     *cube.VoxelStats `json:"stats"`
	Partial   bool             `json:"partial,omitempty"`
	Warnings  []string         `json:"warnings,omitempty"`
}

// NotesOutput is the result of group_notes.
type NotesOutput struct {
	ID         string `json:"id"`
	Notes      string `json:"notes"`
	Generation int64  `json:"generation"`
}

// Handler implementations

// HandleCubeValidate handles the cube_validate tool call.
func (h *Handlers) HandleCubeValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeCube(req)
	if err != nil {
		return errorResult(err), nil
	}
	result, err := ops.ValidateCube(ctx, h.cfg, input)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleCubeParse handles the cube_parse tool call.
func (h *Handlers) HandleCubeParse(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeCube(req)
	if err != nil {
		return errorResult(err), nil
	}
	input.Voxels = input.Voxels || input.Strict
	result, err := ops.LoadCube(ctx, h.cfg, input)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleCubeBonds handles the cube_bonds tool call.
func (h *Handlers) HandleCubeBonds(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeCube(req)
	if err != nil {
		return errorResult(err), nil
	}
	input.Voxels, input.Strict = false, false
	result, err := ops.LoadCube(ctx, h.cfg, input)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(BondsOutput{
		Name:      result.Name,
		Tolerance: result.Tolerance,
		Atoms:     result.Atoms,
		Bonds:     result.Bonds,
		Fragments: result.Fragments,
	})
}

// HandleCubeStats handles the cube_stats tool call.
func (h *Handlers) HandleCubeStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeCube(req)
	if err != nil {
		return errorResult(err), nil
	}
	input.Voxels = true
	result, err := ops.LoadCube(ctx, h.cfg, input)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(StatsOutput{
		Name:      result.Name,
		NumVoxels: result.NumVoxels,
		Stats:     result.Stats,
		Partial:   result.Partial,
		Warnings:  result.Warnings,
	})
}

func decodeCube(req mcp.CallToolRequest) (ops.CubeInput, error) {
	r, err := decode[CubeRequest](req)
	if err != nil {
		return ops.CubeInput{}, errors.NewInvalidRequest(err.Error())
	}
	return r.input()
}

// HandleSessionCreate handles the session_create tool call.
func (h *Handlers) HandleSessionCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	groups := make([]session.Group, 0, len(input.Groups))
	for i, p := range input.Groups {
		g := session.NewGroup(fmt.Sprintf("Group %d", i+1), h.defaults)
		p.Apply(&g)
		groups = append(groups, g)
	}

	result, err := ops.CreateSession(ctx, h.db, h.cfg, ops.CreateSessionInput{Title: input.Title, Groups: groups})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSessionFetch handles the session_fetch tool call.
func (h *Handlers) HandleSessionFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionRefRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.FetchSession(ctx, h.db, ops.FetchSessionInput{
		SessionRef:     ops.SessionRef{ID: input.ID, Title: input.Title},
		IncludeDeleted: input.IncludeDeleted,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSessionList handles the session_list tool call.
func (h *Handlers) HandleSessionList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListSessions(ctx, h.db, ops.ListSessionsInput{
		Limit:          input.Limit,
		Offset:         input.Offset,
		IncludeDeleted: input.IncludeDeleted,
		OnlyDeleted:    input.OnlyDeleted,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSessionDelete handles the session_delete tool call.
func (h *Handlers) HandleSessionDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionRefRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.IncludeDeleted {
		return errorResult(errors.NewInvalidRequest("include_deleted is not valid for session_delete")), nil
	}

	result, err := ops.DeleteSession(ctx, h.db, ops.SessionRef{ID: input.ID, Title: input.Title})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSessionExport handles the session_export tool call.
func (h *Handlers) HandleSessionExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ExportSession(ctx, h.db, h.cfg, ops.ExportInput{
		SessionRef: ops.SessionRef{ID: input.ID, Title: input.Title},
		Path:       input.Path,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSessionImport handles the session_import tool call.
func (h *Handlers) HandleSessionImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Path == "" {
		return errorResult(errors.NewInvalidRequest("path is required")), nil
	}

	result, err := ops.ImportSession(ctx, h.db, h.cfg, h.defaults, ops.ImportInput{
		Path:  input.Path,
		Title: input.Title,
		Mode:  ops.ImportMode(input.Mode),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSessionScan handles the session_scan tool call.
func (h *Handlers) HandleSessionScan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionScanRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ScanDirectory(ctx, h.db, h.cfg, h.defaults, ops.ScanInput{Dir: input.Dir, Title: input.Title})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleGroupAdd handles the group_add tool call.
func (h *Handlers) HandleGroupAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GroupAddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.AddGroup(ctx, h.db, h.cfg, h.defaults, ops.AddGroupInput{
		SessionID: input.SessionID,
		Settings:  input.Settings,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleGroupUpdate handles the group_update tool call.
func (h *Handlers) HandleGroupUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GroupUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.UpdateGroup(ctx, h.db, ops.UpdateGroupInput{
		ID:         input.ID,
		Generation: input.Generation,
		Patch:      input.Settings,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleGroupRemove handles the group_remove tool call.
func (h *Handlers) HandleGroupRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GroupRemoveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.RemoveGroup(ctx, h.db, ops.RemoveGroupInput{ID: input.ID, Generation: input.Generation})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleGroupNotes handles the group_notes tool call. Without notes it reads.
func (h *Handlers) HandleGroupNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GroupNotesRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var g *session.Group
	if input.Notes == nil {
		g, err = ops.FetchGroup(ctx, h.db, input.ID)
	} else {
		g, err = ops.SetNotes(ctx, h.db, ops.SetNotesInput{ID: input.ID, Notes: *input.Notes, Generation: input.Generation})
	}
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(NotesOutput{ID: g.ID, Notes: g.Notes, Generation: g.Generation})
}

// HandleGroupRender handles the group_render tool call.
func (h *Handlers) HandleGroupRender(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GroupRenderRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.RenderPlan(ctx, h.db, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are never exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var vErr *errors.ViewerError
	if stderrors.As(err, &vErr) && vErr.Code != errors.ErrInternal {
		msg := vErr.Message
		// keep wrapper context such as "groups[2]: "
		if outer := err.Error(); outer != vErr.Error() {
			msg = strings.TrimSuffix(outer, vErr.Error()) + vErr.Message
		}
		errorObj := map[string]any{
			"code":    vErr.Code,
			"message": msg,
			"status":  vErr.Status,
		}
		if vErr.Details != nil {
			errorObj["details"] = vErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
