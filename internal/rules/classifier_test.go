package rules

import (
	"testing"

	"github.com/1broseidon/tessel/internal/config"
)

func TestClassifierFloats(t *testing.T) {
	c := NewClassifier(config.FloatAppList{
		{Class: "Pavucontrol"},
		{Class: "firefox", Titles: []string{"Picture-in-Picture"}},
		{Class: "org.gnome.*"},
	}, []string{"preferences"})

	cases := []struct {
		name  string
		app   string
		title string
		want  bool
	}{
		{"class case insensitive", "pavucontrol", "Volume Control", true},
		{"titled app other window", "firefox", "Mozilla Firefox", false},
		{"titled app matching window", "firefox", "Picture-in-Picture", true},
		{"glob class", "org.gnome.Calculator", "Calculator", true},
		{"global title", "kitty", "Kitty Preferences", true},
		{"unmatched", "kitty", "zsh", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.Floats(tc.app, tc.title); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestClassifierUpdate(t *testing.T) {
	c := NewClassifier(config.FloatAppList{{Class: "gimp"}}, nil)
	if !c.Floats("Gimp", "") {
		t.Fatalf("expected gimp to float")
	}
	c.Update(nil, nil)
	if c.Floats("Gimp", "") {
		t.Fatalf("expected rules to be replaced")
	}
}
