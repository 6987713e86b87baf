package tiling

import (
	"testing"

	"github.com/1broseidon/tessel/internal/layout"
)

func TestPreview(t *testing.T) {
	reg := layout.NewRegistry(nil)
	screen := layout.Rect{Width: 1000, Height: 800}

	tests := []struct {
		name  string
		req   PreviewRequest
		want  []layout.Rect
		count int
	}{
		{
			name: "tall two windows",
			req:  PreviewRequest{Layout: layout.KeyTall, Windows: 2, Screen: screen},
			want: []layout.Rect{{Width: 500, Height: 800}, {X: 500, Width: 500, Height: 800}},
		},
		{
			name: "tall with ratio",
			req:  PreviewRequest{Layout: layout.KeyTall, Windows: 2, Screen: screen, MainPaneRatio: 0.7},
			want: []layout.Rect{{Width: 700, Height: 800}, {X: 700, Width: 300, Height: 800}},
		},
		{
			name: "fullscreen",
			req:  PreviewRequest{Layout: layout.KeyFullscreen, Windows: 3, Screen: screen},
			want: []layout.Rect{screen, screen, screen},
		},
		{
			name: "no windows",
			req:  PreviewRequest{Layout: layout.KeyBSP, Windows: 0, Screen: screen},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Preview(reg, tt.req)
			if err != nil {
				t.Fatalf("preview: %v", err)
			}
			if len(res.Frames) != len(tt.want) {
				t.Fatalf("expected %d frames, got %d", len(tt.want), len(res.Frames))
			}
			for i, f := range res.Frames {
				if f.Frame != tt.want[i] {
					t.Fatalf("frame %d: expected %v, got %v", i, tt.want[i], f.Frame)
				}
			}
		})
	}
}

func TestPreviewRejectsBadInput(t *testing.T) {
	reg := layout.NewRegistry(nil)
	screen := layout.Rect{Width: 1000, Height: 800}
	bad := []PreviewRequest{
		{Layout: "nope", Windows: 2, Screen: screen},
		{Layout: layout.KeyTall, Windows: -1, Screen: screen},
		{Layout: layout.KeyTall, Windows: 1000, Screen: screen},
		{Layout: layout.KeyTall, Windows: 2},
	}
	for _, req := range bad {
		if _, err := Preview(reg, req); err == nil {
			t.Fatalf("expected error for %+v", req)
		}
	}
}

func TestRenderASCII(t *testing.T) {
	res, err := Preview(layout.NewRegistry(nil), PreviewRequest{
		Layout:  layout.KeyTall,
		Windows: 2,
		Screen:  layout.Rect{Width: 1000, Height: 500},
	})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	got := RenderASCII(res, 21, 5)
	want := "" +
		"+---------+---------+\n" +
		"|1        |2        |\n" +
		"|         |         |\n" +
		"|         |         |\n" +
		"+---------+---------+\n"
	if got != want {
		t.Fatalf("expected\n%s\ngot\n%s", want, got)
	}
}

func TestDiagramRows(t *testing.T) {
	cases := []struct {
		name   string
		screen layout.Rect
		cols   int
		want   int
	}{
		{"widescreen", layout.Rect{Width: 1920, Height: 1080}, 80, 22},
		{"portrait", layout.Rect{Width: 1080, Height: 1920}, 40, 35},
		{"tiny", layout.Rect{Width: 1920, Height: 1080}, 4, 4},
		{"empty screen", layout.Rect{}, 60, 15},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DiagramRows(PreviewResult{Screen: tc.screen}, tc.cols)
			if got != tc.want {
				t.Fatalf("expected %d rows, got %d", tc.want, got)
			}
		})
	}
}
