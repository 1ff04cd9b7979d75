package main

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/bane-dysta/Orbital-Viewer/internal/config"
	"github.com/bane-dysta/Orbital-Viewer/internal/cube"
	"github.com/bane-dysta/Orbital-Viewer/internal/errors"
	"github.com/bane-dysta/Orbital-Viewer/internal/ops"
	"github.com/bane-dysta/Orbital-Viewer/internal/web"
)

// appEnv carries what the commands need. Fields are read when a command
// runs, so help and version work with an empty env.
type appEnv struct {
	baseDir  string
	db       *sql.DB
	cfg      *config.Config
	defaults config.ViewerDefaults
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *appEnv) *cli.App {
	app := &cli.App{
		Name:    "orbview",
		Usage:   "Gaussian cube file viewer",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "base-dir", EnvVars: []string{"ORBVIEW_HOME"}, Usage: "Directory for config, defaults and the session database (default: ~/.orbview)"},
		},
		Commands: []*cli.Command{
			serveCmd(env),
			validateCmd(env),
			parseCmd(env),
			bondsCmd(env),
			statsCmd(env),
			histogramCmd(env),
			scanCmd(env),
			sessionsCmd(env),
			showCmd(env),
			exportCmd(env),
			importCmd(env),
			deleteCmd(env),
			purgeCmd(env),
			defaultsCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// serveCmd creates the serve command.
func serveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the viewer web server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Listen address (default: config bind)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Listen port (default: config port)"},
			&cli.StringFlag{Name: "data-root", Aliases: []string{"d"}, Usage: "Directory holding cube files (default: config data_root or .)"},
		},
		Action: func(c *cli.Context) error {
			cfg := *env.cfg
			if c.IsSet("bind") {
				cfg.Bind = c.String("bind")
			}
			if c.IsSet("port") {
				cfg.Port = c.Int("port")
			}
			if c.IsSet("data-root") {
				cfg.DataRoot = c.String("data-root")
			}
			if cfg.Port <= 0 || cfg.Port > 65535 {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("invalid port %d", cfg.Port)))
			}
			if info, err := os.Stat(dataRootOrDot(cfg.DataRoot)); err != nil || !info.IsDir() {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("data root %q is not a directory", cfg.DataRoot)))
			}

			srv := web.NewServer(env.db, &cfg, env.defaults, Version)
			return web.Run(srv)
		},
	}
}

// validateCmd creates the validate command.
func validateCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check that cube files are structurally sound",
		ArgsUsage: "<file>... (- reads stdin)",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("at least one cube file is required"))
			}

			results := make([]*ops.ValidateCubeOutput, 0, c.NArg())
			invalid := 0
			for _, path := range c.Args().Slice() {
				input, err := readCubeArg(env.cfg, path)
				var out *ops.ValidateCubeOutput
				if err == nil {
					out, err = ops.ValidateCube(c.Context, env.cfg, input)
				}
				if err != nil {
					var vErr *errors.ViewerError
					if !stderrors.As(err, &vErr) {
						return outputError(err)
					}
					out = &ops.ValidateCubeOutput{Name: path, Error: vErr}
				}
				if !out.Valid {
					invalid++
				}
				results = append(results, out)
			}

			if err := outputJSON(results); err != nil {
				return err
			}
			if invalid > 0 {
				return cli.Exit(fmt.Sprintf("%d of %d file(s) invalid", invalid, len(results)), 1)
			}
			return nil
		},
	}
}

// parseCmd creates the parse command.
func parseCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "Parse a cube file and print its structure as JSON",
		ArgsUsage: "<file> (- reads stdin)",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "voxels", Usage: "Decode voxel data and include statistics"},
			&cli.BoolFlag{Name: "strict", Usage: "Fail when the voxel section is short"},
			&cli.Float64Flag{Name: "tolerance", Usage: "Bond tolerance (default: config bond_tolerance)"},
		},
		Action: func(c *cli.Context) error {
			input, err := cubeInputFromArgs(c, env.cfg)
			if err != nil {
				return outputError(err)
			}
			input.Voxels = c.Bool("voxels") || c.Bool("strict")
			input.Strict = c.Bool("strict")

			output, err := ops.LoadCube(c.Context, env.cfg, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// bondsCmd creates the bonds command.
func bondsCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "bonds",
		Usage:     "List the bonds and fragments of the molecule in a cube file",
		ArgsUsage: "<file> (- reads stdin)",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "tolerance", Aliases: []string{"t"}, Usage: "Bond tolerance (default: config bond_tolerance)"},
		},
		Action: func(c *cli.Context) error {
			input, err := cubeInputFromArgs(c, env.cfg)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.LoadCube(c.Context, env.cfg, input)
			if err != nil {
				return outputError(err)
			}

			type bondLine struct {
				cube.Bond
				Pair string `json:"pair"`
			}
			bonds := make([]bondLine, len(output.Bonds))
			for i, b := range output.Bonds {
				a1, a2 := output.Atoms[b.I], output.Atoms[b.J]
				bonds[i] = bondLine{Bond: b, Pair: fmt.Sprintf("%s%d-%s%d", a1.Symbol, a1.Index, a2.Symbol, a2.Index)}
			}
			return outputJSON(map[string]any{
				"name":      output.Name,
				"tolerance": output.Tolerance,
				"bonds":     bonds,
				"fragments": output.Fragments,
			})
		},
	}
}

// statsCmd creates the stats command.
func statsCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "Summarize the voxel values of a cube file",
		ArgsUsage: "<file> (- reads stdin)",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "strict", Usage: "Fail when the voxel section is short"},
		},
		Action: func(c *cli.Context) error {
			input, err := cubeInputFromArgs(c, env.cfg)
			if err != nil {
				return outputError(err)
			}
			input.Voxels = true
			input.Strict = c.Bool("strict")

			output, err := ops.LoadCube(c.Context, env.cfg, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{
				"name":       output.Name,
				"num_voxels": output.NumVoxels,
				"stats":      output.Stats,
				"partial":    output.Partial,
				"warnings":   output.Warnings,
			})
		},
	}
}

// histogramCmd creates the histogram command.
func histogramCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "histogram",
		Usage:     "Render the voxel value distribution of a cube file as PNG",
		ArgsUsage: "<file> (- reads stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Required: true, Usage: "Output PNG path"},
			&cli.IntFlag{Name: "bins", Aliases: []string{"b"}, Usage: "Number of bins (default: 50)"},
		},
		Action: func(c *cli.Context) error {
			input, err := cubeInputFromArgs(c, env.cfg)
			if err != nil {
				return outputError(err)
			}
			png, err := ops.CubeHistogram(c.Context, env.cfg, input, c.Int("bins"))
			if err != nil {
				return outputError(err)
			}

			out := c.String("out")
			if err := os.WriteFile(out, png, 0644); err != nil {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("cannot write %s: %v", out, err)))
			}
			return outputJSON(map[string]any{"path": out, "bytes": len(png)})
		},
	}
}

// scanCmd creates the scan command.
func scanCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "Propose viewer groups for the cube files in a data-root directory",
		ArgsUsage: "[dir]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Store the groups as a session with this title"},
			&cli.StringFlag{Name: "data-root", Aliases: []string{"d"}, Usage: "Directory holding cube files (default: config data_root or .)"},
		},
		Action: func(c *cli.Context) error {
			cfg := *env.cfg
			if c.IsSet("data-root") {
				cfg.DataRoot = c.String("data-root")
			}
			output, err := ops.ScanDirectory(c.Context, env.db, &cfg, env.defaults, ops.ScanInput{
				Dir:   c.Args().First(),
				Title: c.String("title"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// sessionsCmd creates the sessions command.
func sessionsCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "List stored sessions",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max items (max: 100)"},
			&cli.IntFlag{Name: "offset", Usage: "Items to skip"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted sessions"},
			&cli.BoolFlag{Name: "deleted", Usage: "Only soft-deleted sessions"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ListSessions(c.Context, env.db, ops.ListSessionsInput{
				Limit:          c.Int("limit"),
				Offset:         c.Int("offset"),
				IncludeDeleted: c.Bool("include-deleted"),
				OnlyDeleted:    c.Bool("deleted"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// showCmd creates the show command.
func showCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a session by ID or title",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Session title"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include a soft-deleted session"},
			&cli.BoolFlag{Name: "config", Usage: "Print as a viewer configuration file"},
		},
		Action: func(c *cli.Context) error {
			ref := sessionRef(c)
			if c.Bool("config") {
				cf, _, err := ops.SessionConfig(c.Context, env.db, ref, time.Now())
				if err != nil {
					return outputError(err)
				}
				return cf.Encode(os.Stdout)
			}

			output, err := ops.FetchSession(c.Context, env.db, ops.FetchSessionInput{
				SessionRef:     ref,
				IncludeDeleted: c.Bool("include-deleted"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Write a session as a viewer configuration file",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Session title"},
			&cli.StringFlag{Name: "path", Usage: "Output .json path (default: <base>/exports/<title>-<timestamp>.json)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ExportSession(c.Context, env.db, env.cfg, ops.ExportInput{
				SessionRef: sessionRef(c),
				Path:       c.String("path"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// importCmd creates the import command.
func importCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Create a session from a viewer configuration file",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Session title (default: the file's globalTitle)"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Title collision mode: error|replace|rename"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("path is required"))
			}
			output, err := ops.ImportSession(c.Context, env.db, env.cfg, env.defaults, ops.ImportInput{
				Path:  c.Args().First(),
				Title: c.String("title"),
				Mode:  ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Soft-delete a session",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Session title"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.DeleteSession(c.Context, env.db, sessionRef(c))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Permanently delete soft-deleted sessions",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "older-than", Usage: "Only purge if deleted more than N days ago (e.g., 7d)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.PurgeSessionsInput{}
			if olderThan := c.String("older-than"); olderThan != "" {
				days, err := parseDuration(olderThan)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.OlderThanDays = &days
			}

			output, err := ops.PurgeSessions(c.Context, env.db, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// defaultsCmd creates the defaults command.
func defaultsCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "defaults",
		Usage: "Print the effective viewer defaults as TOML",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "init", Usage: "Write the built-in defaults to <base>/defaults.toml if it does not exist"},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("init") {
				return config.WriteDefaults(os.Stdout, env.defaults)
			}

			path := filepath.Join(env.baseDir, config.DefaultsFile)
			f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
			if err != nil {
				if os.IsExist(err) {
					return outputError(errors.NewInvalidRequest(fmt.Sprintf("%s already exists", path)))
				}
				return outputError(errors.NewInternal(err))
			}
			if err := config.WriteDefaults(f, config.BuiltinDefaults()); err != nil {
				f.Close()
				return outputError(errors.NewInternal(err))
			}
			if err := f.Close(); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return outputJSON(map[string]string{"path": path})
		},
	}
}

// Helper functions

// cubeInputFromArgs reads the single cube file argument of a command and
// applies the --tolerance flag when the command has one.
func cubeInputFromArgs(c *cli.Context, cfg *config.Config) (ops.CubeInput, error) {
	if c.NArg() != 1 {
		return ops.CubeInput{}, errors.NewInvalidRequest("exactly one cube file is required")
	}
	input, err := readCubeArg(cfg, c.Args().First())
	if err != nil {
		return ops.CubeInput{}, err
	}
	if c.IsSet("tolerance") {
		tol := c.Float64("tolerance")
		if tol <= 0 {
			return ops.CubeInput{}, errors.NewInvalidRequest("tolerance must be positive")
		}
		input.Tolerance = tol
	}
	return input, nil
}

// readCubeArg reads a cube from a local path, or from stdin for "-".
// Unlike the web and MCP surfaces, the CLI is not confined to the data root.
func readCubeArg(cfg *config.Config, path string) (ops.CubeInput, error) {
	if path == "-" {
		text, err := cube.ReadAll(os.Stdin, "stdin.cube", cfg.MaxFileSize)
		if err != nil {
			return ops.CubeInput{}, readError(path, err)
		}
		return ops.CubeInput{Text: text, Name: "stdin.cube"}, nil
	}

	if !cube.IsCubeFile(path) {
		return ops.CubeInput{}, errors.NewUnsupportedFile(path)
	}
	text, err := cube.ReadFile(path, cfg.MaxFileSize)
	if err != nil {
		return ops.CubeInput{}, readError(path, err)
	}
	if text == "" {
		return ops.CubeInput{}, errors.NewInvalidRequest(fmt.Sprintf("%s is empty", path))
	}
	return ops.CubeInput{Text: text, Name: filepath.Base(path)}, nil
}

func readError(path string, err error) error {
	var tooLarge *cube.TooLargeError
	switch {
	case stderrors.As(err, &tooLarge):
		return errors.FromCube(err)
	case os.IsNotExist(err):
		return errors.NewFileNotFound(path)
	default:
		return errors.NewInvalidRequest(fmt.Sprintf("cannot read %s: %v", path, err))
	}
}

// sessionRef addresses a session by positional ID or --title.
func sessionRef(c *cli.Context) ops.SessionRef {
	if c.NArg() > 0 {
		return ops.SessionRef{ID: c.Args().First()}
	}
	return ops.SessionRef{Title: c.String("title")}
}

func dataRootOrDot(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var vErr *errors.ViewerError
	if stderrors.As(err, &vErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", vErr.Code, vErr.Message), 1)
	}
	if stderrors.Is(err, context.Canceled) {
		return cli.Exit("[CANCELLED] interrupted", 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}
