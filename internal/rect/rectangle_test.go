package rect

import "testing"

func TestNew_Normalization(t *testing.T) {
	// S2 — odd-size normalization.
	r := New(0, 3, 5, 7, 9)
	want := Rectangle{ID: 0, X: 2, Y: 4, Width: 8, Height: 10}
	if !r.Equal(want) {
		t.Fatalf("New(3,5,7,9) = %+v, want %+v", r, want)
	}
	if !r.ContainsPoint(3, 5) {
		t.Fatalf("normalized rectangle %+v does not contain original origin (3,5)", r)
	}
	if !r.ContainsPoint(9, 13) {
		t.Fatalf("normalized rectangle %+v does not contain original far corner", r)
	}
}

func TestIntersects_HalfOpen(t *testing.T) {
	tests := []struct {
		name string
		a, b Rectangle
		want bool
	}{
		{"overlapping", New(0, 0, 0, 10, 10), New(0, 5, 5, 10, 10), true},
		{"touching edge does not intersect", New(0, 0, 0, 10, 10), New(0, 10, 0, 10, 10), false},
		{"disjoint", New(0, 0, 0, 10, 10), New(0, 100, 100, 10, 10), false},
		{"contained", New(0, 0, 0, 100, 100), New(0, 10, 10, 5, 5), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Intersects(tt.b); got != tt.want {
				t.Errorf("Intersects = %v, want %v", got, tt.want)
			}
			if got := tt.b.Intersects(tt.a); got != tt.want {
				t.Errorf("Intersects (reversed) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOverlap_InheritsOtherID(t *testing.T) {
	a := Rectangle{ID: 1, X: 0, Y: 0, Width: 10, Height: 10}
	b := Rectangle{ID: 2, X: 5, Y: 5, Width: 10, Height: 10}
	got := a.Overlap(b)
	want := Rectangle{ID: 2, X: 5, Y: 5, Width: 5, Height: 5}
	if !got.Equal(want) {
		t.Fatalf("Overlap = %+v, want %+v", got, want)
	}
}

func TestExpand_BoundingUnion(t *testing.T) {
	a := Rectangle{X: 0, Y: 0, Width: 10, Height: 10}
	b := Rectangle{X: 20, Y: 20, Width: 10, Height: 10}
	got := a.Expand(b)
	want := Rectangle{X: 0, Y: 0, Width: 30, Height: 30}
	if !got.Equal(want) {
		t.Fatalf("Expand = %+v, want %+v", got, want)
	}
}

func TestArea(t *testing.T) {
	r := Rectangle{Width: 480, Height: 544}
	if got, want := r.Area(), uint64(480*544); got != want {
		t.Errorf("Area() = %d, want %d", got, want)
	}
}
