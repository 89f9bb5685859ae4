package shortlink

import (
	"strings"
	"testing"
)

func TestGenerateNoDuplicates(t *testing.T) {
	g := NewSlugGenerator(0)
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		s, err := g.Generate(6)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if _, dup := seen[s]; dup {
			t.Fatalf("duplicate slug %q after %d draws", s, i)
		}
		seen[s] = struct{}{}
	}
}

func TestGenerateLengthAndAlphabet(t *testing.T) {
	tests := []struct {
		configured, requested, want int
	}{
		{0, 0, DefaultSlugLength},
		{8, 0, 8},
		{8, 10, 10},
		{-1, -1, DefaultSlugLength},
	}
	for _, tt := range tests {
		s, err := NewSlugGenerator(tt.configured).Generate(tt.requested)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if len(s) != tt.want {
			t.Errorf("Generate(%d) with length %d = %q, want len %d", tt.requested, tt.configured, s, tt.want)
		}
		for _, r := range s {
			if !strings.ContainsRune(alphabet, r) {
				t.Errorf("slug %q has char %q outside alphabet", s, r)
			}
		}
	}
}

func TestValidateSlug(t *testing.T) {
	tests := []struct {
		slug string
		ok   bool
	}{
		{"abc", true},
		{"ABCdef123", true},
		{strings.Repeat("a", 32), true},
		{strings.Repeat("a", 33), false},
		{"ab", false},
		{"has space", false},
		{"emoji😀", false},
		{"healthz", false},
		{"Metrics", false},
	}
	for _, tt := range tests {
		err := ValidateSlug(tt.slug)
		if (err == nil) != tt.ok {
			t.Errorf("ValidateSlug(%q) = %v, ok want %v", tt.slug, err, tt.ok)
		}
	}
}

func TestValidateURLTooLong(t *testing.T) {
	long := "https://example.com/" + strings.Repeat("a", maxURLLength)
	if err := ValidateURL(long); err != ErrInvalidURL {
		t.Errorf("ValidateURL(long) = %v", err)
	}
}
