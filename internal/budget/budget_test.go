package budget

import (
	"strings"
	"testing"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a", 1},        // < 4 chars → 1
		{"abcd", 1},     // exactly 4 chars → 1
		{"abcde", 1},    // 5 chars → 1
		{"abcdefgh", 2}, // 8 chars → 2
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		got := Estimate(tc.input)
		if got != tc.want {
			t.Errorf("Estimate(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func Test_TrimSections_AllFit(t *testing.T) {
	t.Parallel()
	sections := []string{
		strings.Repeat("a", 40), // 10 tokens
		strings.Repeat("b", 40),
		strings.Repeat("c", 40),
	}
	got := TrimSections(strings.Repeat("q", 40), sections, 100)
	if got != 3 {
		t.Errorf("TrimSections = %d, want 3", got)
	}
}

func Test_TrimSections_DropsTail(t *testing.T) {
	t.Parallel()
	sections := []string{
		strings.Repeat("a", 400), // 100 tokens
		strings.Repeat("b", 400),
		strings.Repeat("c", 400),
	}
	// Budget: 250 tokens, fixed costs 10 → two sections fit (200), third does not.
	got := TrimSections(strings.Repeat("q", 40), sections, 250)
	if got != 2 {
		t.Errorf("TrimSections = %d, want 2", got)
	}
}

func Test_TrimSections_KeepsAtLeastOne(t *testing.T) {
	t.Parallel()
	sections := []string{strings.Repeat("a", 4000)} // 1000 tokens
	got := TrimSections("question", sections, 100)
	if got != 1 {
		t.Errorf("TrimSections = %d, want 1 (first section always kept)", got)
	}
}

func Test_TrimSections_Empty(t *testing.T) {
	t.Parallel()
	if got := TrimSections("question", nil, 100); got != 0 {
		t.Errorf("TrimSections = %d, want 0", got)
	}
}
