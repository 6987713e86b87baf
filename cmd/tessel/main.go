package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/1broseidon/tessel/internal/config"
	"github.com/1broseidon/tessel/internal/ipc"
	"github.com/1broseidon/tessel/internal/layout"
	"github.com/1broseidon/tessel/internal/tiling"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "layout":
		os.Exit(runLayout(os.Args[2:]))
	case "command":
		os.Exit(runCommand(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: tessel <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the tiling daemon (foreground)")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "  command <name>      Run a tiling command (e.g. swap-main)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  layout list         List layouts and the active one per screen")
	fmt.Fprintln(w, "  layout select       Select a layout on the focused screen")
	fmt.Fprintln(w, "  layout cycle        Step through the configured layouts")
	fmt.Fprintln(w, "  layout preview      Draw a layout for N windows")
	fmt.Fprintln(w, "  layout browse       Browse and preview layouts interactively")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate the configuration")
	fmt.Fprintln(w, "  config print        Print the effective configuration")
	fmt.Fprintln(w, "  config explain      Show where a setting comes from")
	fmt.Fprintln(w, "  config init         Write a configuration interactively")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  mcp serve           Start the MCP server (stdio)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'tessel <command> --help' for command-specific options.")
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: tessel status")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show daemon status via IPC.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "status takes no arguments")
		fs.Usage()
		return 2
	}

	status, err := ipc.NewClient().GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	printStatus(os.Stdout, status)
	return 0
}

func printStatus(w io.Writer, status *ipc.StatusData) {
	fmt.Fprintf(w, "daemon_running: %v\n", status.DaemonRunning)
	fmt.Fprintf(w, "uptime_seconds: %d\n", status.UptimeSeconds)
	fmt.Fprintf(w, "tiling_enabled: %v\n", status.TilingEnabled)
	fmt.Fprintf(w, "desktop:        %d\n", status.Desktop)
	fmt.Fprintf(w, "windows:        %d\n", status.Windows)
	fmt.Fprintf(w, "layouts:        %s\n", strings.Join(status.Layouts, ", "))
	for _, sc := range status.Screens {
		fmt.Fprintf(w, "screen %s: layout=%s windows=%d floating=%d state=%s frame=%s\n",
			sc.ID, sc.Layout, sc.Windows, sc.Floating, sc.State, sc.Frame)
	}
}

func runCommand(args []string) int {
	fs := flag.NewFlagSet("command", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: tessel command <name> [arg]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Run a tiling command on the focused screen. Commands:")
		for _, cmd := range tiling.Commands() {
			fmt.Fprintf(os.Stderr, "  %s\n", cmd)
		}
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		fs.Usage()
		return 2
	}

	cmd, err := tiling.ParseCommand(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if err := ipc.NewClient().Run(cmd, fs.Arg(1)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// loadConfig loads path, or the default location when path is empty, and
// returns the path it used.
func loadConfig(path string) (*config.LoadResult, string, error) {
	if path == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			return nil, "", err
		}
		path = p
	}
	res, err := config.LoadFromPath(path)
	if err != nil {
		return nil, path, err
	}
	return res, path, nil
}

// loadScripts registers every custom layout script. A script that fails
// is reported and skipped; the others stay usable.
func loadScripts(reg *layout.Registry, cfg *config.Config, configPath string) error {
	reg.SetScriptTimeout(cfg.ScriptTimeout())

	names := make([]string, 0, len(cfg.CustomLayouts))
	for name := range cfg.CustomLayouts {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		path, err := config.ScriptPath(configPath, cfg.CustomLayouts[name])
		if err != nil {
			errs = append(errs, fmt.Errorf("custom layout %s: %w", name, err))
			continue
		}
		if err := reg.LoadScript(name, path); err != nil {
			errs = append(errs, fmt.Errorf("custom layout %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func formatSource(src config.Source) string {
	switch src.Kind {
	case config.SourceFile:
		if src.File == "" {
			return "file"
		}
		if src.Line > 0 {
			return fmt.Sprintf("file:%s:%d:%d", src.File, src.Line, src.Column)
		}
		return "file:" + src.File
	case config.SourceDefault:
		return "default"
	default:
		return string(src.Kind)
	}
}
