package tui

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/1broseidon/tessel/internal/config"
	"github.com/1broseidon/tessel/internal/layout"
)

// setupValues are the answers the setup form collects.
type setupValues struct {
	Layouts          []string
	Margins          bool
	MarginSize       string
	Padding          string
	NewWindowsToMain bool
}

func valuesFrom(cfg *config.Config) setupValues {
	return setupValues{
		Layouts:          slices.Clone(cfg.Layouts),
		Margins:          cfg.WindowMargins,
		MarginSize:       strconv.Itoa(cfg.WindowMarginSize),
		Padding:          strconv.Itoa(cfg.ScreenPadding.Top),
		NewWindowsToMain: cfg.NewWindowsToMain,
	}
}

// apply writes the answers into cfg. Layouts keep the order they appear in
// the built-in list.
func (v setupValues) apply(cfg *config.Config) error {
	if len(v.Layouts) == 0 {
		return errors.New("select at least one layout")
	}
	margin, err := parsePixels(v.MarginSize)
	if err != nil {
		return fmt.Errorf("margin size: %w", err)
	}
	padding, err := parsePixels(v.Padding)
	if err != nil {
		return fmt.Errorf("screen padding: %w", err)
	}

	var layouts []string
	for _, key := range layout.BuiltinKeys() {
		if slices.Contains(v.Layouts, key) {
			layouts = append(layouts, key)
		}
	}
	for _, key := range v.Layouts {
		if !slices.Contains(layouts, key) {
			layouts = append(layouts, key)
		}
	}

	cfg.Layouts = layouts
	cfg.WindowMargins = v.Margins
	cfg.WindowMarginSize = margin
	cfg.ScreenPadding = config.Margins{Top: padding, Bottom: padding, Left: padding, Right: padding}
	cfg.NewWindowsToMain = v.NewWindowsToMain
	return nil
}

func parsePixels(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("must be >= 0")
	}
	return n, nil
}

func validatePixels(s string) error {
	_, err := parsePixels(s)
	return err
}

// Setup asks for the common settings and applies the answers to cfg.
func Setup(cfg *config.Config) error {
	if !Interactive() {
		return fmt.Errorf("setup requires an interactive terminal (stdin/stdout must be TTYs)")
	}
	v := valuesFrom(cfg)

	keys := layout.BuiltinKeys()
	custom := make([]string, 0, len(cfg.CustomLayouts))
	for name := range cfg.CustomLayouts {
		custom = append(custom, layout.CustomPrefix+name)
	}
	slices.Sort(custom)
	keys = append(keys, custom...)

	options := make([]huh.Option[string], 0, len(keys))
	for _, key := range keys {
		options = append(options, huh.NewOption(key, key).Selected(slices.Contains(v.Layouts, key)))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Key("layouts").
				Title("Layouts").
				Description("Layouts the cycle-layout hotkey steps through").
				Options(options...).
				Value(&v.Layouts),

			huh.NewConfirm().
				Key("new_windows_to_main").
				Title("New windows open in the main pane?").
				Value(&v.NewWindowsToMain),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Key("window_margins").
				Title("Leave a margin between windows?").
				Value(&v.Margins),

			huh.NewInput().
				Key("window_margin_size").
				Title("Margin size").
				Description("Pixels around each tiled window").
				Validate(validatePixels).
				Value(&v.MarginSize),

			huh.NewInput().
				Key("screen_padding").
				Title("Screen padding").
				Description("Pixels kept free on every screen edge").
				Validate(validatePixels).
				Value(&v.Padding),
		),
	).WithShowHelp(true).WithShowErrors(true)

	if err := form.Run(); err != nil {
		return err
	}
	return v.apply(cfg)
}
