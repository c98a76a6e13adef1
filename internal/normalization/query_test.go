package normalization

import (
	"strings"
	"testing"
)

func TestNormalizeQuery(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases and sorts", "Minecraft Builds", "builds minecraft"},
		{"strips punctuation", "The BEST Minecraft builds!!", "best builds minecraft"},
		{"word order irrelevant", "builds minecraft best", "best builds minecraft"},
		{"collapses whitespace", "  gaming    channels  ", "channels gaming"},
		{"hyphens split tokens", "sci-fi reviews", "fi reviews sci"},
		{"hyphen runs collapse", "sci---fi", "fi sci"},
		{"drops stopwords", "the best of the best", "best best"},
		{"keeps digits", "top 10 creators 2024", "10 2024 creators top"},
		{"unicode stripped", "日本語 vlogs", "vlogs"},
		{"all stopwords", "the a an and", ""},
		{"empty input", "", ""},
		{"only punctuation", "!!! ??? ...", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeQuery(tc.in)
			if got != tc.want {
				t.Fatalf("NormalizeQuery(%q) = %q; want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeQueryIdempotent(t *testing.T) {
	inputs := []string{
		"The BEST Minecraft builds!!",
		"cooking channels for beginners",
		"Top 10 tech reviewers 2024",
	}
	for _, in := range inputs {
		once := NormalizeQuery(in)
		twice := NormalizeQuery(once)
		if once != twice {
			t.Fatalf("normalization not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
}

func TestQueryDigest(t *testing.T) {
	a := QueryDigest("The BEST Minecraft builds!!")
	b := QueryDigest("minecraft builds (BEST)")
	if a != b {
		t.Fatalf("equivalent queries produced different digests: %q vs %q", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("digest length = %d; want 16", len(a))
	}
	for _, r := range a {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Fatalf("digest %q contains non-hex character %q", a, r)
		}
	}

	c := QueryDigest("cooking tutorials")
	if a == c {
		t.Fatalf("distinct queries produced identical digest %q", a)
	}
}

func TestCacheKey(t *testing.T) {
	key := CacheKey("Minecraft builds")
	if !strings.HasPrefix(key, "query:v1:") {
		t.Fatalf("cache key %q missing version prefix", key)
	}
	if key != "query:v1:"+QueryDigest("minecraft BUILDS") {
		t.Fatalf("cache key not derived from normalized digest: %q", key)
	}

	empty := CacheKey("the and of")
	if empty != "query:v1:empty" {
		t.Fatalf("all-stopword query key = %q; want query:v1:empty", empty)
	}
	if CacheKey("") != "query:v1:empty" {
		t.Fatalf("empty query should map to the empty slot")
	}
}
