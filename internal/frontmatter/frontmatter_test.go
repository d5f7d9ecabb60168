package frontmatter_test

import (
	"testing"

	"github.com/mdvault/mdvault/internal/frontmatter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	t.Run("untouched document serializes byte-identical", func(t *testing.T) {
		content := "---\ntitle: Test\nstatus: open\ntags:\n    - a\n    - b\n---\nBody content\n"
		doc, err := frontmatter.Parse(content)
		require.NoError(t, err)

		out, err := doc.Serialize()
		require.NoError(t, err)
		assert.Equal(t, content, out)
	})

	t.Run("no frontmatter returns body unchanged", func(t *testing.T) {
		content := "Just body content"
		doc, err := frontmatter.Parse(content)
		require.NoError(t, err)
		assert.False(t, doc.HasFrontmatter())

		out, err := doc.Serialize()
		require.NoError(t, err)
		assert.Equal(t, content, out)
	})

	t.Run("empty frontmatter block", func(t *testing.T) {
		content := "---\n---\nBody content"
		doc, err := frontmatter.Parse(content)
		require.NoError(t, err)
		assert.True(t, doc.HasFrontmatter())
		assert.Empty(t, doc.Keys())
	})

	t.Run("malformed yaml is an error", func(t *testing.T) {
		content := "---\ninvalid: [unclosed\n---\nBody"
		_, err := frontmatter.Parse(content)
		assert.Error(t, err)
	})

	t.Run("missing closing delimiter is an error", func(t *testing.T) {
		content := "---\ntitle: Test\nBody without closing fence"
		_, err := frontmatter.Parse(content)
		assert.Error(t, err)
	})
}

func TestKeyOrderPreserved(t *testing.T) {
	content := "---\nzeta: 1\nalpha: 2\nmiddle: 3\n---\nBody\n"
	doc, err := frontmatter.Parse(content)
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "middle"}, doc.Keys())

	require.NoError(t, doc.Set("alpha", 5))
	assert.Equal(t, []string{"zeta", "alpha", "middle"}, doc.Keys(), "overwriting an existing key keeps its position")

	require.NoError(t, doc.Set("new", "x"))
	assert.Equal(t, []string{"zeta", "alpha", "middle", "new"}, doc.Keys(), "new keys are appended")
}

func TestSetTypedScalarsNotQuoted(t *testing.T) {
	doc, err := frontmatter.Parse("Body only")
	require.NoError(t, err)

	require.NoError(t, doc.Set("count", 6))
	require.NoError(t, doc.Set("done", true))
	require.NoError(t, doc.Set("title", "My Task"))

	out, err := doc.Serialize()
	require.NoError(t, err)
	assert.Contains(t, out, "count: 6\n")
	assert.Contains(t, out, "done: true\n")
	assert.Contains(t, out, "title: My Task\n")
}

func TestToggleMissingIsFalse(t *testing.T) {
	doc, err := frontmatter.Parse("Body")
	require.NoError(t, err)

	require.NoError(t, doc.Toggle("pinned"))
	v, ok := doc.Get("pinned")
	require.True(t, ok)
	assert.Equal(t, true, v)

	require.NoError(t, doc.Toggle("pinned"))
	v, ok = doc.Get("pinned")
	require.True(t, ok)
	assert.Equal(t, false, v)
}

func TestIncrementMissingIsZero(t *testing.T) {
	doc, err := frontmatter.Parse("---\ntask_counter: 5\n---\nBody")
	require.NoError(t, err)

	next, err := doc.Increment("task_counter", 1)
	require.NoError(t, err)
	assert.Equal(t, 6, next)

	next, err = doc.Increment("fresh_counter", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, next)
}

func TestAppendMissingIsEmptyList(t *testing.T) {
	doc, err := frontmatter.Parse("Body")
	require.NoError(t, err)

	require.NoError(t, doc.Append("tags", "alpha"))
	require.NoError(t, doc.Append("tags", "beta"))

	v, ok := doc.Get("tags")
	require.True(t, ok)
	assert.Equal(t, []interface{}{"alpha", "beta"}, v)
}

func TestSubstitutePlaceholders(t *testing.T) {
	vars := map[string]string{"title": "My Task", "id": "TST-006"}
	out := frontmatter.SubstitutePlaceholders("{{title}} ({{id}}) {{unknown}}", vars)
	assert.Equal(t, "My Task (TST-006) {{unknown}}", out)
}

func TestParseFieldValue(t *testing.T) {
	assert.Equal(t, true, frontmatter.ParseFieldValue("true"))
	assert.Equal(t, false, frontmatter.ParseFieldValue("false"))
	assert.Equal(t, 42, frontmatter.ParseFieldValue("42"))
	assert.Equal(t, []string{"a", "b"}, frontmatter.ParseFieldValue("[a, b]"))
	assert.Equal(t, "plain", frontmatter.ParseFieldValue("plain"))
}
