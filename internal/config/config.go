// Package config loads orbview settings from config.json and viewer
// defaults from defaults.toml.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultBondTolerance matches the bond cutoff factor used by the viewer.
	DefaultBondTolerance = 1.3

	// DefaultMaxFileSize is the largest cube file accepted, in bytes.
	DefaultMaxFileSize int64 = 100 * 1024 * 1024

	// DefaultMaxViewerGroups bounds the number of groups in one session.
	DefaultMaxViewerGroups = 12

	DefaultBind = "127.0.0.1"
	DefaultPort = 8080

	// RepoDirName is the per-project config directory found by walking upward.
	RepoDirName = ".orbview"
)

// Config holds application configuration.
type Config struct {
	// BondTolerance scales summed covalent radii when detecting bonds
	BondTolerance float64 `json:"bond_tolerance,omitempty"`

	// MaxFileSize is the maximum accepted cube file size in bytes (after decompression)
	MaxFileSize int64 `json:"max_file_size,omitempty"`

	// MaxViewerGroups is the maximum number of viewer groups per session
	MaxViewerGroups int `json:"max_viewer_groups,omitempty"`

	// DataRoot is the directory cube files are served and read from.
	// Empty means the working directory at startup.
	DataRoot string `json:"data_root,omitempty"`

	// Bind and Port are the web server listen address
	Bind string `json:"bind,omitempty"`
	Port int    `json:"port,omitempty"`

	// AllowedPaths is an allowlist of directories for session import/export.
	// Paths outside <base>/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes disables every tool of a type.
	// Known types: "cube", "session", "group".
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BondTolerance:   DefaultBondTolerance,
		MaxFileSize:     DefaultMaxFileSize,
		MaxViewerGroups: DefaultMaxViewerGroups,
		Bind:            DefaultBind,
		Port:            DefaultPort,
	}
}

// BaseDir returns the orbview home: $ORBVIEW_HOME if set, else ~/.orbview.
func BaseDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv("ORBVIEW_HOME")); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, RepoDirName), nil
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both the global base directory and
// the nearest .orbview/config.json above startDir.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .orbview/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, RepoDirName, "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw returns a zero config (not defaults) when the file doesn't exist.
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		BondTolerance:   pick(overlay.BondTolerance, base.BondTolerance),
		MaxFileSize:     pick(overlay.MaxFileSize, base.MaxFileSize),
		MaxViewerGroups: pick(overlay.MaxViewerGroups, base.MaxViewerGroups),
		DataRoot:        pick(overlay.DataRoot, base.DataRoot),
		Bind:            pick(overlay.Bind, base.Bind),
		Port:            pick(overlay.Port, base.Port),
		DBMaxOpenConns:  pick(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:  pick(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

// pick returns overlay unless it is the zero value.
func pick[T comparable](overlay, base T) T {
	var zero T
	if overlay != zero {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
