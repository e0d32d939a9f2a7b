package utils

import (
	"sort"
	"testing"
	"text/template"
)

func TestFormat(t *testing.T) {
	tpl := template.Must(template.New("test").Parse("Hello {{.nick}}!"))
	if got := Format(tpl, map[string]string{"nick": "alice"}); got != "Hello alice!" {
		t.Errorf("Format() = %q", got)
	}
}

func TestCleanString(t *testing.T) {
	if got := CleanString("  text\r\nwith newlines  ", false); got != "textwith newlines" {
		t.Errorf("CleanString() = %q", got)
	}
	if got := CleanString("a &amp; b", true); got != "a & b" {
		t.Errorf("CleanString() with unescape = %q", got)
	}
}

func TestStandardizeURL(t *testing.T) {
	cases := []struct{ in, want string }{
		{"example.com", "http://example.com/"},
		{"https://example.com/path", "https://example.com/path"},
		{"http://żółć.pl/a", "http://xn--kda4b0koi.pl/a"},
	}
	for _, c := range cases {
		if got := StandardizeURL(c.in); got != c.want {
			t.Errorf("StandardizeURL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRemoveDuplicates(t *testing.T) {
	got := RemoveDuplicates([]string{"a", "b", "a", "c", "b"})
	sort.Strings(got)
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("RemoveDuplicates() = %v", got)
	}
}

func TestRemoveFromSlice(t *testing.T) {
	got := RemoveFromSlice([]string{"a", "b", "a"}, "a")
	if len(got) != 1 || got[0] != "b" {
		t.Errorf("RemoveFromSlice() = %v", got)
	}
}

func TestHashPassword(t *testing.T) {
	if HashPassword("secret") != HashPassword("secret") {
		t.Error("same password should hash the same")
	}
	if HashPassword("secret") == HashPassword("other") {
		t.Error("different passwords should hash differently")
	}
}
