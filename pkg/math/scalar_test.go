package math

import "testing"

func TestClamp(t *testing.T) {
	if got := Clamp(5, 0, 3); got != 3 {
		t.Errorf("Clamp(5, 0, 3) = %d, want 3", got)
	}
	if got := Clamp(-1.5, -1, 1); got != -1 {
		t.Errorf("Clamp(-1.5, -1, 1) = %f, want -1", got)
	}
	if got := Clamp(float32(0.25), 0, 1); got != 0.25 {
		t.Errorf("Clamp(0.25, 0, 1) = %f, want 0.25", got)
	}
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		n, align, want int
	}{
		{0, 256, 0},
		{1, 256, 256},
		{256, 256, 256},
		{257, 256, 512},
		{600, 256, 768},
	}
	for _, tt := range tests {
		if got := AlignUp(tt.n, tt.align); got != tt.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tt.n, tt.align, got, tt.want)
		}
	}
}

func TestDivCeil(t *testing.T) {
	if got := DivCeil(600, 256); got != 3 {
		t.Errorf("DivCeil(600, 256) = %d, want 3", got)
	}
	if got := DivCeil(512, 256); got != 2 {
		t.Errorf("DivCeil(512, 256) = %d, want 2", got)
	}
}

func TestLerp(t *testing.T) {
	if got := Lerp(2.0, 4.0, 0.5); got != 3 {
		t.Errorf("Lerp(2, 4, 0.5) = %f, want 3", got)
	}
}
