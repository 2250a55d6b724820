package dtw

import "testing"

func TestWindowWidth(t *testing.T) {
	p := DefaultWindowPolicy()
	tests := []struct {
		refLen, m, want int
	}{
		{100, 1, 4},
		{100, 3, 9},
		{100, 10, 30},
		{5, 3, 5},
		{2, 1, 2},
		{0, 3, 0},
	}
	for _, tt := range tests {
		if got := p.Width(tt.refLen, tt.m); got != tt.want {
			t.Errorf("Width(%d, %d) = %d, want %d", tt.refLen, tt.m, got, tt.want)
		}
	}
}

func TestWindowBounds(t *testing.T) {
	tests := []struct {
		name             string
		refLen, idx, m   int
		wantStart, wantE int
	}{
		{"centred", 100, 50, 3, 46, 55},
		{"clamped low", 100, -5, 3, 0, 9},
		{"at start", 100, 0, 1, 0, 4},
		{"clamped high", 100, 500, 3, 91, 100},
		{"near end shifts back", 100, 98, 3, 91, 100},
		{"reference shorter than width", 5, 2, 3, 0, 5},
		{"empty reference", 0, 3, 3, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, e := Window(tt.refLen, tt.idx, tt.m)
			if s != tt.wantStart || e != tt.wantE {
				t.Errorf("Window(%d, %d, %d) = [%d, %d), want [%d, %d)",
					tt.refLen, tt.idx, tt.m, s, e, tt.wantStart, tt.wantE)
			}
		})
	}
}

func TestWindowPropertyStaysInBounds(t *testing.T) {
	for m := 1; m <= 5; m++ {
		for refLen := 3 * m; refLen <= 40; refLen++ {
			want := max(4, 3*m)
			if want > refLen {
				want = refLen
			}
			for idx := -2; idx < refLen+2; idx++ {
				s, e := Window(refLen, idx, m)
				if s < 0 || e > refLen || s >= e {
					t.Fatalf("Window(%d, %d, %d) = [%d, %d) out of range", refLen, idx, m, s, e)
				}
				if e-s != want {
					t.Fatalf("Window(%d, %d, %d) width = %d, want %d", refLen, idx, m, e-s, want)
				}
			}
		}
	}
}

func TestWindowPolicyCustom(t *testing.T) {
	p := WindowPolicy{MinWidth: 6, Multiplier: 2}
	if got := p.Width(100, 2); got != 6 {
		t.Errorf("Width = %d, want 6", got)
	}
	if got := p.Width(100, 5); got != 10 {
		t.Errorf("Width = %d, want 10", got)
	}
	// Non-positive fields fall back to defaults.
	if got := (WindowPolicy{}).Width(100, 3); got != 9 {
		t.Errorf("zero policy Width = %d, want 9", got)
	}
}
