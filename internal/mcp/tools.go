package mcp

import "github.com/mark3labs/mcp-go/mcp"

// groupSettingProps is the JSON schema of the optional group settings.
var groupSettingProps = map[string]any{
	"title":         map[string]any{"type": "string", "description": "Group title"},
	"color1":        map[string]any{"type": "string", "description": "Positive lobe color, #RRGGBB"},
	"color2":        map[string]any{"type": "string", "description": "Negative lobe color, #RRGGBB"},
	"iso_value":     map[string]any{"type": "string", "description": "Isosurface value, e.g. \"0.002\""},
	"surface_scale": map[string]any{"type": "string", "description": "Surface opacity scale, positive"},
	"show_positive": map[string]any{"type": "boolean", "description": "Saved with the configuration; does not change rendering"},
	"show_file1":    map[string]any{"type": "boolean", "description": "Draw the surfaces of file 1"},
	"show_file2":    map[string]any{"type": "boolean", "description": "Draw the surfaces of file 2"},
	"file_name1":    map[string]any{"type": "string", "description": "First cube file, relative to the data root"},
	"file_name2":    map[string]any{"type": "string", "description": "Second cube file, relative to the data root"},
	"notes":         map[string]any{"type": "string", "description": "Markdown notes"},
	"color_mapping": map[string]any{"type": "boolean", "description": "Color the file 1 surface by file 2 values"},
	"min_map_value": map[string]any{"type": "string", "description": "Lower end of the mapping gradient"},
	"max_map_value": map[string]any{"type": "string", "description": "Upper end of the mapping gradient"},
}

// cubeTool builds a read-only tool that takes a cube from a data-root file
// or inline text.
func cubeTool(name, desc string, extra ...mcp.ToolOption) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(desc),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("file",
			mcp.Description("Cube file path relative to the data root (.cube/.cub, optionally .gz or .zst). Mutually exclusive with text."),
		),
		mcp.WithString("text",
			mcp.Description("Inline cube file contents. Mutually exclusive with file."),
		),
		mcp.WithString("name",
			mcp.Description("Label for inline text in results (default: input.cube)"),
		),
	}
	return mcp.NewTool(name, append(opts, extra...)...)
}

func sessionRefOpts() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("id", mcp.Description("Session ID. Mutually exclusive with title.")),
		mcp.WithString("title", mcp.Description("Session title, matched case- and whitespace-insensitively. Mutually exclusive with id.")),
	}
}

var cubeValidateToolDef = cubeTool("cube_validate",
	"Run the structural pre-flight check on a cube file: at least six lines, a numeric atom count on line 3, and enough atom lines. Returns {valid, error}.",
)

var cubeParseToolDef = cubeTool("cube_parse",
	"Parse a Gaussian cube file. Returns header, grid, atoms in angstrom, bonds, fragments, bounding box and center. With include_voxel_stats, also decodes the volumetric data.",
	mcp.WithBoolean("include_voxel_stats", mcp.Description("Decode voxel values and return summary statistics (default: false)")),
	mcp.WithBoolean("strict", mcp.Description("Fail with PARTIAL_DATA when the voxel section is short (implies include_voxel_stats)")),
	mcp.WithNumber("tolerance", mcp.Description("Bond tolerance factor applied to summed covalent radii (default: config bond_tolerance)")),
)

var cubeBondsToolDef = cubeTool("cube_bonds",
	"List the bonds and connected fragments of the molecule in a cube file. A bond joins two atoms closer than (r_i + r_j) * tolerance.",
	mcp.WithNumber("tolerance", mcp.Description("Bond tolerance factor (default: config bond_tolerance)")),
)

var cubeStatsToolDef = cubeTool("cube_stats",
	"Decode the voxel data of a cube file and return count, min, max, mean, standard deviation and sign counts.",
	mcp.WithBoolean("strict", mcp.Description("Fail with PARTIAL_DATA when the voxel section is short")),
)

var sessionCreateToolDef = mcp.NewTool("session_create",
	mcp.WithDescription("Create a stored viewer session. Titles are unique ignoring case and repeated whitespace."),
	mcp.WithString("title", mcp.Required(), mcp.Description("Session title")),
	mcp.WithArray("groups",
		mcp.Description("Viewer groups in display order; unset settings come from the viewer defaults"),
		mcp.Items(map[string]any{"type": "object", "properties": groupSettingProps}),
	),
)

var sessionFetchToolDef = mcp.NewTool("session_fetch",
	append([]mcp.ToolOption{
		mcp.WithDescription("Fetch a session with its groups in display order."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithBoolean("include_deleted", mcp.Description("Also return a soft-deleted session (id addressing only)")),
	}, sessionRefOpts()...)...,
)

var sessionListToolDef = mcp.NewTool("session_list",
	mcp.WithDescription("List stored sessions, most recently updated first."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithNumber("limit", mcp.Description("Max items (default: 20, max: 100)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip")),
	mcp.WithBoolean("include_deleted", mcp.Description("Include soft-deleted sessions")),
	mcp.WithBoolean("only_deleted", mcp.Description("Only soft-deleted sessions")),
)

var sessionDeleteToolDef = mcp.NewTool("session_delete",
	append([]mcp.ToolOption{
		mcp.WithDescription("Soft-delete a session. It stays recoverable until purged."),
		mcp.WithDestructiveHintAnnotation(true),
	}, sessionRefOpts()...)...,
)

var sessionExportToolDef = mcp.NewTool("session_export",
	append([]mcp.ToolOption{
		mcp.WithDescription("Write a session as a viewer configuration JSON file."),
		mcp.WithString("path", mcp.Description("Output .json path (default: <base>/exports/<title>-<timestamp>.json)")),
	}, sessionRefOpts()...)...,
)

var sessionImportToolDef = mcp.NewTool("session_import",
	mcp.WithDescription("Create a session from a viewer configuration JSON file."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Configuration .json path")),
	mcp.WithString("title", mcp.Description("Session title (default: the file's globalTitle)")),
	mcp.WithString("mode",
		mcp.Description("Title collision handling (default: error)"),
		mcp.Enum("error", "replace", "rename"),
	),
)

var sessionScanToolDef = mcp.NewTool("session_scan",
	mcp.WithDescription("Propose viewer groups for the cube files in a data-root directory. Hole/electron pairs share a group. With title, stores the groups as a new session."),
	mcp.WithString("dir", mcp.Description("Directory relative to the data root (default: the root)")),
	mcp.WithString("title", mcp.Description("Store the result as a session with this title")),
)

var groupAddToolDef = mcp.NewTool("group_add",
	mcp.WithDescription("Append a viewer group to a session. Fails with GROUP_LIMIT when the session is full."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	mcp.WithObject("settings",
		mcp.Description("Group settings; unset values come from the viewer defaults"),
		mcp.Properties(groupSettingProps),
	),
)

var groupUpdateToolDef = mcp.NewTool("group_update",
	mcp.WithDescription("Change group settings. Pass the generation last seen to fail with CONFLICT on concurrent edits."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Group ID")),
	mcp.WithNumber("generation", mcp.Description("Expected generation (0 or omitted: no check)")),
	mcp.WithObject("settings",
		mcp.Required(),
		mcp.Description("Settings to change"),
		mcp.Properties(groupSettingProps),
	),
)

var groupRemoveToolDef = mcp.NewTool("group_remove",
	mcp.WithDescription("Remove a group from its session; later groups move up."),
	mcp.WithDestructiveHintAnnotation(true),
	mcp.WithString("id", mcp.Required(), mcp.Description("Group ID")),
	mcp.WithNumber("generation", mcp.Description("Expected generation (0 or omitted: no check)")),
)

var groupNotesToolDef = mcp.NewTool("group_notes",
	mcp.WithDescription("Read the markdown notes of a group, or replace them when notes is given."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Group ID")),
	mcp.WithString("notes", mcp.Description("New markdown notes; omit to read")),
	mcp.WithNumber("generation", mcp.Description("Expected generation when writing")),
)

var groupRenderToolDef = mcp.NewTool("group_render",
	mcp.WithDescription("Translate group settings into isosurface requests: file, isovalue, color, opacity, and the volume color scheme in mapping mode."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("id", mcp.Required(), mcp.Description("Group ID")),
)
