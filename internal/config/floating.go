package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// FloatApp marks windows of an application class as floating. When Titles
// is set only windows whose title contains one of them float.
type FloatApp struct {
	Class  string   `yaml:"class"`
	Titles []string `yaml:"titles,omitempty"`
}

// FloatAppList supports either:
//
//	float_apps:
//	  - "pavucontrol"
//	  - "Gimp"
//
// or:
//
//	float_apps:
//	  - class: firefox
//	    titles: ["Picture-in-Picture", "Library"]
//	  - Gimp
type FloatAppList []FloatApp

func (l *FloatAppList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		*l = nil
		return nil
	case yaml.SequenceNode:
		out := make([]FloatApp, 0, len(value.Content))
		for _, item := range value.Content {
			switch item.Kind {
			case yaml.ScalarNode:
				if item.Tag != "!!str" {
					return fmt.Errorf("float_apps entries must be strings or mappings")
				}
				class := strings.TrimSpace(item.Value)
				if class == "" {
					return fmt.Errorf("float_apps entries must not be empty")
				}
				out = append(out, FloatApp{Class: class})

			case yaml.MappingNode:
				app, err := decodeFloatAppMapping(item)
				if err != nil {
					return err
				}
				out = append(out, app)

			default:
				return fmt.Errorf("float_apps entries must be strings or mappings")
			}
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("float_apps must be a list")
	}
}

func decodeFloatAppMapping(node *yaml.Node) (FloatApp, error) {
	var app FloatApp
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		val := node.Content[i+1]
		if key.Kind != yaml.ScalarNode || key.Tag != "!!str" {
			return FloatApp{}, fmt.Errorf("float_apps mapping keys must be strings")
		}
		switch key.Value {
		case "class":
			if val.Kind != yaml.ScalarNode || val.Tag != "!!str" {
				return FloatApp{}, fmt.Errorf("float_apps[].class must be a string")
			}
			app.Class = strings.TrimSpace(val.Value)
		case "titles":
			var titles []string
			if err := val.Decode(&titles); err != nil {
				return FloatApp{}, fmt.Errorf("float_apps[].titles must be a list of strings")
			}
			for _, t := range titles {
				if strings.TrimSpace(t) == "" {
					return FloatApp{}, fmt.Errorf("float_apps[].titles entries must not be empty")
				}
			}
			app.Titles = titles
		default:
			return FloatApp{}, fmt.Errorf("unknown float_apps field %q", key.Value)
		}
	}
	if app.Class == "" {
		return FloatApp{}, fmt.Errorf("float_apps[].class is required")
	}
	return app, nil
}

// MarshalYAML writes plain class names unless some entry carries titles.
func (l FloatAppList) MarshalYAML() (any, error) {
	plain := true
	for _, app := range l {
		if len(app.Titles) > 0 {
			plain = false
			break
		}
	}
	if !plain {
		return []FloatApp(l), nil
	}
	out := make([]string, 0, len(l))
	for _, app := range l {
		out = append(out, app.Class)
	}
	return out, nil
}
