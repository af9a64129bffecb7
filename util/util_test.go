package util

import "testing"

func TestRoundupRounddown(t *testing.T) {
	if got := Roundup(4097, 4096); got != 8192 {
		t.Errorf("Roundup(4097, 4096) = %d, want 8192", got)
	}
	if got := Roundup(4096, 4096); got != 4096 {
		t.Errorf("Roundup(4096, 4096) = %d, want 4096", got)
	}
	if got := Rounddown(4097, 4096); got != 4096 {
		t.Errorf("Rounddown(4097, 4096) = %d, want 4096", got)
	}
}
