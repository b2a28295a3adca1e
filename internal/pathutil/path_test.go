package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"a/b/c.txt", "a/b/c.txt"},
		{`a\b\c.txt`, "a/b/c.txt"},
		{"/abs/path", "abs/path"},
		{"//double/lead", "double/lead"},
		{"./dotted", "dotted"},
		{"a/./b", "a/b"},
		{"a//b", "a/b"},
		{"dir/", "dir"},
		{"", "."},
		{".", "."},
		{"/", "."},
		{"../up", "../up"},
		{"a/../../up", "../up"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Normalize(tc.in), "Normalize(%q)", tc.in)
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		target string
		want   string
	}{
		{"dir/link", "real.txt", "dir/real.txt"},
		{"dir/link", "../top.txt", "top.txt"},
		{"dir/link", "../../escape", "../escape"},
		{"link", "real.txt", "real.txt"},
		{"dir/link", "/abs/target", "abs/target"},
		{"a/b/link", "./c", "a/b/c"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Resolve(tc.name, tc.target), "Resolve(%q, %q)", tc.name, tc.target)
	}
}

func TestHasTraversal(t *testing.T) {
	t.Parallel()

	assert.True(t, HasTraversal(".."))
	assert.True(t, HasTraversal("../x"))
	assert.True(t, HasTraversal("../../x"))
	assert.False(t, HasTraversal("a/b"))
	assert.False(t, HasTraversal("..a/b"))
	assert.False(t, HasTraversal("a/../b")) // cleaned away by Normalize first
}

func TestBaseDir(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "c.txt", Base("a/b/c.txt"))
	assert.Equal(t, "b", Base("a/b/"))
	assert.Equal(t, "only", Base("only"))
	assert.Equal(t, ".", Base(""))

	assert.Equal(t, "a/b", Dir("a/b/c.txt"))
	assert.Equal(t, "a", Dir("a/b/"))
	assert.Equal(t, "", Dir("only"))
}
