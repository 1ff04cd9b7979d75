package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/bane-dysta/Orbital-Viewer/internal/config"
	"github.com/bane-dysta/Orbital-Viewer/internal/db"
	"github.com/bane-dysta/Orbital-Viewer/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"serve": true, "validate": true, "parse": true, "bonds": true,
	"stats": true, "histogram": true, "scan": true,
	"sessions": true, "show": true, "export": true, "import": true,
	"delete": true, "purge": true, "defaults": true,
	"help": true,
}

// commandArg returns the first argument after the global --base-dir flag,
// or "" when there is none.
func commandArg(args []string) string {
	for i := 1; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--base-dir":
			i++
		case strings.HasPrefix(a, "--base-dir="):
		default:
			return a
		}
	}
	return ""
}

// baseDirArg returns the value of a global --base-dir flag, if present.
func baseDirArg(args []string) (string, bool) {
	for i := 1; i < len(args); i++ {
		a := args[i]
		if v, ok := strings.CutPrefix(a, "--base-dir="); ok {
			return v, true
		}
		if a == "--base-dir" && i+1 < len(args) {
			return args[i+1], true
		}
		if !strings.HasPrefix(a, "-") {
			break
		}
	}
	return "", false
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	arg := commandArg(os.Args)
	if arg == "" {
		return false // No args → MCP server
	}
	if cliCommands[arg] {
		return true
	}
	return isHelpOrVersionArg(arg)
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	arg := commandArg(os.Args)
	return isHelpOrVersionArg(arg) || arg == "help"
}

func isHelpOrVersionArg(arg string) bool {
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   ___       _         _
  / _ \ _ __| |____ __(_)_____ __ __
 | (_) | '_ \ '_ \ V /| / -_) V  V /
  \___/|_| |_.__/\_/ |_\___|\_/\_/

  Gaussian cube file viewer

  Usage: orbview <command> [options]
         orbview serve
         orbview --help

  MCP server mode requires piped input.`)
}

// loadEnv opens the database and loads configuration and viewer defaults.
func loadEnv() (*appEnv, error) {
	baseDir, ok := baseDirArg(os.Args)
	if !ok {
		var err error
		if baseDir, err = config.BaseDir(); err != nil {
			return nil, fmt.Errorf("could not determine base directory: %w", err)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("could not determine working directory: %w", err)
	}

	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	for _, name := range mcp.ValidateDisabledTools(cfg.DisabledTools) {
		log.Printf("warning: unknown tool in disabled_tools: %q", name)
	}
	for _, name := range mcp.ValidateDisabledTypes(cfg.DisabledTypes) {
		log.Printf("warning: unknown type in disabled_types: %q", name)
	}

	defaults, err := config.LoadDefaults(baseDir, cwd)
	if err != nil {
		return nil, fmt.Errorf("failed to load viewer defaults: %w", err)
	}

	database, err := db.Init(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	db.ConfigurePool(database, cfg)

	return &appEnv{baseDir: baseDir, db: database, cfg: cfg, defaults: defaults}, nil
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(&appEnv{})
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	env, err := loadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer env.db.Close()

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(env)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if commandArg(os.Args) != "" && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", commandArg(os.Args))
		fmt.Fprintf(os.Stderr, "Run 'orbview --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(env.db, env.cfg, env.defaults, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
