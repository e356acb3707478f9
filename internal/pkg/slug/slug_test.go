package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMake(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Vibe Coding", "vibe-coding"},
		{"  Hello,   World!  ", "hello-world"},
		{"Already-Slugged", "already-slugged"},
		{"C++ & Go: a comparison", "c-go-a-comparison"},
		{"---", ""},
		{"日本語のみ", ""},
		{"Mixed 日本語 Title", "mixed-title"},
		{"a--b---c", "a-b-c"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, Make(tc.in), "input %q", tc.in)
	}
}

func TestMakeCharset(t *testing.T) {
	for _, in := range []string{"What is Vibe Coding?", "50% faster builds!", "Tabs\tvs Spaces"} {
		got := Make(in)
		assert.NotEmpty(t, got)
		for _, r := range got {
			ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-'
			assert.True(t, ok, "slug %q contains %q", got, r)
		}
	}
}

func TestNormalizeNamespace(t *testing.T) {
	assert.Equal(t, "main", NormalizeNamespace(""))
	assert.Equal(t, "main", NormalizeNamespace("   "))
	assert.Equal(t, "tools", NormalizeNamespace("Tools"))
}
