package ids

import (
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestNewRequestIDIsSortable(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := NewAt(base)
	b := NewAt(base.Add(time.Millisecond))
	if a >= b {
		t.Fatalf("expected %s < %s", a, b)
	}
	if _, err := ulid.Parse(NewRequestID()); err != nil {
		t.Fatalf("not a ulid: %v", err)
	}
}

func TestSanitizeRequestID(t *testing.T) {
	cases := map[string]string{
		"abc-123":               "abc-123",
		"  req_1.2:3 ":          "req_1.2:3",
		"":                      "",
		"bad id":                "",
		"<script>":              "",
		strings.Repeat("x", 65): "",
	}
	for in, want := range cases {
		if got := SanitizeRequestID(in); got != want {
			t.Fatalf("SanitizeRequestID(%q)=%q, want %q", in, got, want)
		}
	}
}
