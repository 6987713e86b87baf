package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

type SourceKind string

const (
	SourceDefault SourceKind = "default"
	SourceFile    SourceKind = "file"
)

type Source struct {
	Kind   SourceKind
	File   string
	Line   int
	Column int
}

type LoadResult struct {
	Config  *Config
	Sources map[string]Source // YAML-path -> last writer source (file only)
	Files   []string          // all loaded files, in load order
}

// PathEnv overrides the configuration file location.
const PathEnv = "TESSEL_CONFIG"

// DefaultConfigPath is $TESSEL_CONFIG, else tessel/config.yaml under the
// XDG config home.
func DefaultConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(PathEnv)); p != "" {
		return p, nil
	}
	if xdg.ConfigHome == "" {
		return "", errors.New("failed to resolve XDG config home")
	}
	return filepath.Join(xdg.ConfigHome, "tessel", "config.yaml"), nil
}

// Load reads the merged configuration from the standard location and returns an
// effective config ready for use by the daemon.
func Load() (*Config, error) {
	res, err := LoadWithSources()
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// LoadWithSources loads config and returns file-level sources for introspection.
func LoadWithSources() (*LoadResult, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads path and its includes. A missing file yields the
// defaults.
func LoadFromPath(path string) (*LoadResult, error) {
	raw := RawConfig{}
	sources := map[string]Source{}
	var files []string

	if exists, err := pathExists(path); err != nil {
		return nil, err
	} else if exists {
		seen := make(map[string]struct{})
		var stack []string
		merged, mergedSources, mergedFiles, err := loadRawMerged(path, seen, stack)
		if err != nil {
			return nil, err
		}
		raw = merged
		sources = mergedSources
		files = mergedFiles
	}

	cfg := BuildEffectiveConfig(raw)
	if err := cfg.Validate(); err != nil {
		return nil, attachSourceContext(err, sources)
	}

	return &LoadResult{
		Config:  cfg,
		Sources: sources,
		Files:   files,
	}, nil
}

// fileDoc is one parsed configuration file: its strict decode, the position
// of every YAML path it sets and the include references it declares.
type fileDoc struct {
	path     string
	raw      RawConfig
	sources  map[string]Source
	includes []includeRef
}

type includeRef struct {
	value string
	at    Source
}

func readFileDoc(path string) (*fileDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read: %w", path, err)
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%s: failed to parse yaml: %w", path, err)
	}
	doc := &fileDoc{path: path, sources: map[string]Source{}}
	if err := decodeStrictYAML(data, &doc.raw); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	node := &root
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	doc.scan(node, "")
	return doc, nil
}

func (d *fileDoc) at(n *yaml.Node) Source {
	return Source{Kind: SourceFile, File: d.path, Line: n.Line, Column: n.Column}
}

// scan records a Source for every mapping key and sequence item below node
// and collects top-level include values.
func (d *fileDoc) scan(node *yaml.Node, prefix string) {
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i].Value, node.Content[i+1]
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			d.sources[path] = d.at(val)
			if prefix == "" && key == "include" {
				d.addIncludes(val)
			}
			d.scan(val, path)
		}
	case yaml.SequenceNode:
		for i, item := range node.Content {
			d.sources[fmt.Sprintf("%s[%d]", prefix, i)] = d.at(item)
		}
	}
}

func (d *fileDoc) addIncludes(val *yaml.Node) {
	items := []*yaml.Node{val}
	if val.Kind == yaml.SequenceNode {
		items = val.Content
	}
	for _, item := range items {
		if item.Kind != yaml.ScalarNode {
			continue
		}
		d.includes = append(d.includes, includeRef{value: item.Value, at: d.at(item)})
	}
}

// loadRawMerged loads path depth-first: included files merge in declaration
// order and the including file overrides them. Each file loads at most once.
func loadRawMerged(path string, seen map[string]struct{}, stack []string) (RawConfig, map[string]Source, []string, error) {
	canon, err := canonicalPath(path)
	if err != nil {
		return RawConfig{}, nil, nil, err
	}
	if slices.Contains(stack, canon) {
		return RawConfig{}, nil, nil, fmt.Errorf("include cycle detected: %s -> %s", strings.Join(stack, " -> "), canon)
	}
	if _, ok := seen[canon]; ok {
		return RawConfig{}, map[string]Source{}, nil, nil
	}
	seen[canon] = struct{}{}

	doc, err := readFileDoc(canon)
	if err != nil {
		return RawConfig{}, nil, nil, err
	}

	merged := RawConfig{}
	sources := map[string]Source{}
	var files []string
	for _, inc := range doc.includes {
		paths, err := expandInclude(canon, inc.value)
		if err != nil {
			return RawConfig{}, nil, nil, fmt.Errorf("%s:%d:%d: include %q: %w", inc.at.File, inc.at.Line, inc.at.Column, inc.value, err)
		}
		for _, p := range paths {
			raw, incSources, incFiles, err := loadRawMerged(p, seen, append(stack, canon))
			if err != nil {
				return RawConfig{}, nil, nil, err
			}
			merged = merged.merge(raw)
			maps.Copy(sources, incSources)
			files = append(files, incFiles...)
		}
	}

	merged = merged.merge(doc.raw)
	maps.Copy(sources, doc.sources)
	return merged, sources, append(files, canon), nil
}

func decodeStrictYAML(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// canonicalPath is the absolute path with symlinks resolved when possible.
func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real, nil
	}
	return abs, nil
}

// expandInclude resolves an include to files. A directory expands to its
// *.yaml and *.yml files in name order.
func expandInclude(baseFile string, include string) ([]string, error) {
	path, err := resolvePathRelativeToFile(baseFile, include)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(path, pattern))
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if fi, err := os.Stat(m); err == nil && !fi.IsDir() {
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// resolvePathRelativeToFile expands ~ and resolves relative paths against
// the including file's directory.
func resolvePathRelativeToFile(baseFile string, include string) (string, error) {
	if include == "" {
		return "", errors.New("path is empty")
	}
	if include == "~" || strings.HasPrefix(include, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		include = filepath.Join(home, strings.TrimPrefix(include[1:], "/"))
	}
	if filepath.IsAbs(include) {
		return include, nil
	}
	return filepath.Join(filepath.Dir(baseFile), include), nil
}

// ScriptPath resolves a custom layout script path the way includes are
// resolved: ~ expands to the home directory and relative paths are taken
// from the configuration file's directory.
func ScriptPath(configPath, script string) (string, error) {
	return resolvePathRelativeToFile(configPath, script)
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// attachSourceContext points a validation error at the file position that
// set the failing path, or at its nearest recorded parent.
func attachSourceContext(err error, sources map[string]Source) error {
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Path == "" {
		return err
	}
	for path := verr.Path; path != ""; path = parentPath(path) {
		if src, ok := sources[path]; ok {
			verr.Source = src
			break
		}
	}
	return verr
}

func parentPath(path string) string {
	if i := strings.LastIndexByte(path, '['); i > 0 && strings.HasSuffix(path, "]") {
		return path[:i]
	}
	if i := strings.LastIndexByte(path, '.'); i > 0 {
		return path[:i]
	}
	return ""
}
