// Package mcp exposes orbview operations as MCP tools over stdio.
package mcp

import (
	"database/sql"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bane-dysta/Orbital-Viewer/internal/config"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"cube", "session", "group"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"cube_validate": {
		def:     cubeValidateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCubeValidate },
	},
	"cube_parse": {
		def:     cubeParseToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCubeParse },
	},
	"cube_bonds": {
		def:     cubeBondsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCubeBonds },
	},
	"cube_stats": {
		def:     cubeStatsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCubeStats },
	},
	"session_create": {
		def:     sessionCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionCreate },
	},
	"session_fetch": {
		def:     sessionFetchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionFetch },
	},
	"session_list": {
		def:     sessionListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionList },
	},
	"session_delete": {
		def:     sessionDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionDelete },
	},
	"session_export": {
		def:     sessionExportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionExport },
	},
	"session_import": {
		def:     sessionImportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionImport },
	},
	"session_scan": {
		def:     sessionScanToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionScan },
	},
	"group_add": {
		def:     groupAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupAdd },
	},
	"group_update": {
		def:     groupUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupUpdate },
	},
	"group_remove": {
		def:     groupRemoveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupRemove },
	},
	"group_notes": {
		def:     groupNotesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupNotes },
	},
	"group_render": {
		def:     groupRenderToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGroupRender },
	},
}

// AllToolNames returns every valid tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if !slices.Contains(KnownTypes, name) {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "cube_parse" → "cube").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if slices.Contains(types, GetTypeForTool(name)) {
			tools = append(tools, name)
		}
	}
	slices.Sort(tools)
	return tools
}

// NewServer creates an MCP server with the orbview tools registered.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration.
func NewServer(db *sql.DB, cfg *config.Config, defaults config.ViewerDefaults, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"orbview",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	h := NewHandlers(db, cfg, defaults)

	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(db *sql.DB, cfg *config.Config, defaults config.ViewerDefaults, version string) error {
	s := NewServer(db, cfg, defaults, version)
	return server.ServeStdio(s)
}
