package node

import "testing"

func TestMoveChangesOneAxisByOne(t *testing.T) {
	dirs := []Direction{DirUp, DirDown, DirLeft, DirRight}
	modes := []Movement{
		{Mode: MovementClamp, Width: 80, Height: 24},
		{Mode: MovementWrap, Width: 80, Height: 24},
		{Mode: MovementUnbounded},
	}
	start := Point{X: 10, Y: 10}
	for _, mv := range modes {
		for _, d := range dirs {
			got := Move(start, d, mv)
			dx := int64(got.X) - int64(start.X)
			dy := int64(got.Y) - int64(start.Y)
			if abs(dx)+abs(dy) != 1 {
				t.Errorf("%s: Move(%v, %s) = %v, want exactly one unit step", mv.Mode, start, d, got)
			}
		}
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestMoveEdges(t *testing.T) {
	tests := []struct {
		name string
		p    Point
		dir  Direction
		mv   Movement
		want Point
	}{
		{"clamp up at origin", Point{0, 0}, DirUp, Movement{Mode: MovementClamp, Width: 10, Height: 10}, Point{0, 0}},
		{"clamp left at origin", Point{0, 5}, DirLeft, Movement{Mode: MovementClamp, Width: 10, Height: 10}, Point{0, 5}},
		{"clamp right at width", Point{9, 5}, DirRight, Movement{Mode: MovementClamp, Width: 10, Height: 10}, Point{9, 5}},
		{"clamp down at height", Point{5, 9}, DirDown, Movement{Mode: MovementClamp, Width: 10, Height: 10}, Point{5, 9}},
		{"clamp right outside shrunk grid", Point{50, 0}, DirRight, Movement{Mode: MovementClamp, Width: 10, Height: 24}, Point{50, 0}},
		{"clamp left outside shrunk grid", Point{50, 0}, DirLeft, Movement{Mode: MovementClamp, Width: 10, Height: 24}, Point{49, 0}},
		{"clamp down outside shrunk grid", Point{3, 30}, DirDown, Movement{Mode: MovementClamp, Width: 10, Height: 24}, Point{3, 30}},
		{"clamp without bounds", Point{500, 500}, DirDown, Movement{Mode: MovementClamp}, Point{500, 501}},
		{"wrap up", Point{3, 0}, DirUp, Movement{Mode: MovementWrap, Width: 10, Height: 8}, Point{3, 7}},
		{"wrap left", Point{0, 3}, DirLeft, Movement{Mode: MovementWrap, Width: 10, Height: 8}, Point{9, 3}},
		{"wrap right", Point{9, 3}, DirRight, Movement{Mode: MovementWrap, Width: 10, Height: 8}, Point{0, 3}},
		{"wrap down", Point{3, 7}, DirDown, Movement{Mode: MovementWrap, Width: 10, Height: 8}, Point{3, 0}},
		{"unbounded up at origin", Point{4, 0}, DirUp, Movement{Mode: MovementUnbounded}, Point{4, 0}},
		{"unbounded ignores width", Point{10, 0}, DirRight, Movement{Mode: MovementUnbounded, Width: 10}, Point{11, 0}},
		{"none", Point{4, 4}, DirNone, Movement{}, Point{4, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Move(tt.p, tt.dir, tt.mv); got != tt.want {
				t.Errorf("Move(%v, %s) = %v, want %v", tt.p, tt.dir, got, tt.want)
			}
		})
	}
}

func TestParseMovementMode(t *testing.T) {
	for in, want := range map[string]MovementMode{
		"clamp":       MovementClamp,
		"":            MovementClamp,
		"WRAP":        MovementWrap,
		" unbounded ": MovementUnbounded,
	} {
		got, err := ParseMovementMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMovementMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseMovementMode("teleport"); err == nil {
		t.Error("ParseMovementMode(teleport) succeeded")
	}
	if err := (Movement{Mode: MovementWrap}).validate(); err == nil {
		t.Error("wrap without bounds validated")
	}
}

func TestColorFor(t *testing.T) {
	want := []PlayerColor{ColorBlue, ColorRed, ColorGreen, ColorYellow, ColorCyan, ColorMagenta, ColorWhite, ColorBlack}
	for id, c := range want {
		if got := ColorFor(Identity(id)); got != c {
			t.Errorf("ColorFor(%d) = %s, want %s", id, got, c)
		}
	}
	if got := ColorFor(1); got.String() != "Red" {
		t.Errorf("ColorFor(1) = %s, want Red", got)
	}
	if got := ColorFor(9); got != ColorRed {
		t.Errorf("ColorFor(9) = %s, want palette wrap to Red", got)
	}
}

func TestNewPlayerSpawnsApart(t *testing.T) {
	mv := Movement{Mode: MovementClamp, Width: 80, Height: 24}
	a, b := NewPlayer(0, 3, mv), NewPlayer(1, 3, mv)
	if a.Coordinates == b.Coordinates {
		t.Errorf("players 0 and 1 spawn on the same point %v", a.Coordinates)
	}
	if b.Color != ColorRed || b.ID != 1 || b.Side != 3 {
		t.Errorf("NewPlayer(1) = %+v", b)
	}
	if far := NewPlayer(100, 3, mv); far.Coordinates.X >= mv.Width {
		t.Errorf("spawn %v outside width %d", far.Coordinates, mv.Width)
	}
}
