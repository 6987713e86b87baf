package platform

import "testing"

func TestDisplayFor(t *testing.T) {
	displays := []Display{
		{ID: 0, Bounds: Rect{X: 0, Y: 0, Width: 1920, Height: 1080}},
		{ID: 1, Bounds: Rect{X: 1920, Y: 0, Width: 2560, Height: 1440}},
	}
	cases := []struct {
		name   string
		bounds Rect
		want   int
	}{
		{"left", Rect{X: 100, Y: 100, Width: 400, Height: 300}, 0},
		{"right", Rect{X: 2000, Y: 100, Width: 400, Height: 300}, 1},
		{"straddling uses center", Rect{X: 1800, Y: 0, Width: 400, Height: 300}, 1},
		{"offscreen falls back", Rect{X: -5000, Y: -5000, Width: 10, Height: 10}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, ok := DisplayFor(displays, tc.bounds)
			if !ok {
				t.Fatalf("expected a display")
			}
			if d.ID != tc.want {
				t.Fatalf("expected display %d, got %d", tc.want, d.ID)
			}
		})
	}

	if _, ok := DisplayFor(nil, Rect{}); ok {
		t.Fatalf("expected no display for an empty list")
	}
}
