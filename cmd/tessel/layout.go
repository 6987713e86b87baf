package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/1broseidon/tessel/internal/ipc"
	"github.com/1broseidon/tessel/internal/layout"
	"github.com/1broseidon/tessel/internal/tiling"
	"github.com/1broseidon/tessel/internal/tui"
)

const defaultPreviewScreen = "1920x1080"

func printLayoutUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: tessel layout <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  list                 List layouts and the active one per screen")
	fmt.Fprintln(w, "  select <layout>      Select a layout on the focused screen")
	fmt.Fprintln(w, "  cycle [--backward]   Step through the configured layouts")
	fmt.Fprintln(w, "  preview <layout>     Draw a layout for N windows")
	fmt.Fprintln(w, "  browse               Browse and preview layouts interactively")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'tessel layout <command> --help' for command-specific options.")
}

func runLayout(args []string) int {
	if len(args) == 0 {
		printLayoutUsage(os.Stderr)
		return 2
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printLayoutUsage(os.Stdout)
		return 0
	}

	switch args[0] {
	case "list":
		return runLayoutList(args[1:])
	case "select":
		return runLayoutSelect(args[1:])
	case "cycle":
		return runLayoutCycle(args[1:])
	case "preview":
		return runLayoutPreview(args[1:])
	case "browse":
		return runLayoutBrowse(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown layout command: %s\n\n", args[0])
		printLayoutUsage(os.Stderr)
		return 2
	}
}

func runLayoutList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: tessel layout list [--json] [--offline] [--config PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "List registered layouts. Without a running daemon the configuration is used.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}
	jsonOut := fs.Bool("json", false, "Output as JSON")
	offline := fs.Bool("offline", false, "Do not contact the daemon")
	configPath := fs.String("config", "", "Config file path for offline use")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "layout list takes no arguments")
		fs.Usage()
		return 2
	}

	src, err := layoutSource(*offline, *configPath, defaultPreviewScreen)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	data, err := src.ListLayouts()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *jsonOut {
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println(string(out))
		return 0
	}
	printLayouts(os.Stdout, data)
	return 0
}

func printLayouts(w io.Writer, data *ipc.LayoutsData) {
	fmt.Fprintf(w, "cycle: %s\n", strings.Join(data.Cycle, ", "))
	if len(data.Active) > 0 {
		screens := make([]string, 0, len(data.Active))
		for id := range data.Active {
			screens = append(screens, id)
		}
		sort.Strings(screens)
		fmt.Fprintln(w, "active:")
		for _, id := range screens {
			fmt.Fprintf(w, "  %s: %s\n", id, data.Active[id])
		}
	}
	fmt.Fprintln(w, "layouts:")
	for _, info := range data.Layouts {
		mark := " "
		if info.Configured {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %-16s %s\n", mark, info.Key, info.Name)
	}
}

func runLayoutSelect(args []string) int {
	fs := flag.NewFlagSet("select", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: tessel layout select <layout>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Select a configured layout on the focused screen's current desktop.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	if err := ipc.NewClient().SelectLayout(fs.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runLayoutCycle(args []string) int {
	fs := flag.NewFlagSet("cycle", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: tessel layout cycle [--backward]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Switch the focused screen to the next configured layout.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}
	backward := fs.Bool("backward", false, "Step to the previous layout")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "layout cycle takes no arguments")
		fs.Usage()
		return 2
	}
	step := 1
	if *backward {
		step = -1
	}
	key, err := ipc.NewClient().CycleLayout(step)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("layout: %s\n", key)
	return 0
}

func runLayoutPreview(args []string) int {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: tessel layout preview [options] <layout>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Compute a layout for synthetic windows and draw it. The daemon's focused")
		fmt.Fprintln(os.Stderr, "screen is used when it is running; otherwise --screen and the configuration.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}
	windows := fs.Int("windows", 3, "Number of windows")
	cols := fs.Int("cols", 0, "Diagram width in columns (default: terminal width)")
	screen := fs.String("screen", defaultPreviewScreen, "Screen size WIDTHxHEIGHT for offline previews")
	offline := fs.Bool("offline", false, "Do not contact the daemon")
	configPath := fs.String("config", "", "Config file path for offline use")
	jsonOut := fs.Bool("json", false, "Output frames as JSON")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	src, err := layoutSource(*offline, *configPath, *screen)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	res, err := src.PreviewLayout(fs.Arg(0), *windows)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if *jsonOut {
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println(string(out))
		return 0
	}

	width := *cols
	if width <= 0 {
		w, _ := tui.Size()
		width = min(w-1, 160)
	}
	printPreview(os.Stdout, res, width)
	return 0
}

func printPreview(w io.Writer, res *tiling.PreviewResult, cols int) {
	fmt.Fprintf(w, "%s (%s) on %s\n", res.Name, res.Layout, res.Screen)
	fmt.Fprint(w, tiling.RenderASCII(*res, cols, tiling.DiagramRows(*res, cols)))
	for _, f := range res.Frames {
		fmt.Fprintf(w, "  window %d: %s\n", f.Window, f.Frame)
	}
}

func runLayoutBrowse(args []string) int {
	fs := flag.NewFlagSet("browse", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: tessel layout browse [--offline] [--config PATH] [--screen WxH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Browse layouts with a live preview. Enter selects the layout when the")
		fmt.Fprintln(os.Stderr, "daemon is running.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}
	screen := fs.String("screen", defaultPreviewScreen, "Screen size WIDTHxHEIGHT for offline previews")
	offline := fs.Bool("offline", false, "Do not contact the daemon")
	configPath := fs.String("config", "", "Config file path for offline use")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "layout browse takes no arguments")
		fs.Usage()
		return 2
	}

	src, err := layoutSource(*offline, *configPath, *screen)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := tui.Run(src); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// layoutSource returns the daemon when it answers, else an offline source
// built from the configuration.
func layoutSource(offline bool, configPath, screen string) (tui.Source, error) {
	if !offline {
		client := ipc.NewClient()
		if err := client.Ping(); err == nil {
			return client, nil
		}
	}
	frame, err := parseScreen(screen)
	if err != nil {
		return nil, err
	}
	return offlineSource(configPath, frame)
}

func offlineSource(configPath string, screen layout.Rect) (*tui.OfflineSource, error) {
	res, path, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	reg := newQuietRegistry()
	if err := loadScripts(reg, res.Config, path); err != nil {
		fmt.Fprintln(os.Stderr, "warning:", err)
	}
	return &tui.OfflineSource{
		Registry: reg,
		Options:  res.Config.TilingOptions(),
		Screen:   screen,
	}, nil
}

// newQuietRegistry logs only warnings, for one-shot commands.
func newQuietRegistry() *layout.Registry {
	return layout.NewRegistry(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
}

// parseScreen reads WIDTHxHEIGHT.
func parseScreen(s string) (layout.Rect, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return layout.Rect{}, fmt.Errorf("invalid screen size %q (want WIDTHxHEIGHT)", s)
	}
	w, errW := strconv.Atoi(ws)
	h, errH := strconv.Atoi(hs)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return layout.Rect{}, fmt.Errorf("invalid screen size %q (want WIDTHxHEIGHT)", s)
	}
	return layout.Rect{Width: w, Height: h}, nil
}
