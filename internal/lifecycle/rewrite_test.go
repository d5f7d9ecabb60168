package lifecycle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdvault/mdvault/internal/frontmatter"
	"github.com/mdvault/mdvault/internal/lifecycle"
)

func TestRewriteLinksInContentRewritesWikilinkByFullPath(t *testing.T) {
	content := "See [[Projects/Alpha]] for details."
	out, n := lifecycle.RewriteLinksInContent(content, "Projects/Alpha.md", "Projects/Beta.md", true, false)
	assert.Equal(t, 1, n)
	assert.Equal(t, "See [[Projects/Beta]] for details.", out)
}

func TestRewriteLinksInContentPreservesAliasAndFragment(t *testing.T) {
	content := "[[Projects/Alpha#Scope|the scope]]"
	out, n := lifecycle.RewriteLinksInContent(content, "Projects/Alpha.md", "Projects/Beta.md", true, false)
	assert.Equal(t, 1, n)
	assert.Equal(t, "[[Projects/Beta#Scope|the scope]]", out)
}

func TestRewriteLinksInContentSkipsCodeBlocks(t *testing.T) {
	content := "```\n[[Projects/Alpha]]\n```\n[[Projects/Alpha]]"
	out, n := lifecycle.RewriteLinksInContent(content, "Projects/Alpha.md", "Projects/Beta.md", true, false)
	assert.Equal(t, 1, n)
	assert.Contains(t, out, "```\n[[Projects/Alpha]]\n```")
	assert.Contains(t, out, "[[Projects/Beta]]")
}

func TestRewriteLinksInContentSkipsAmbiguousBasename(t *testing.T) {
	content := "[[Alpha]]"
	out, n := lifecycle.RewriteLinksInContent(content, "Projects/Alpha.md", "Projects/Beta.md", false, false)
	assert.Equal(t, 0, n)
	assert.Equal(t, "[[Alpha]]", out)
}

func TestRewriteLinksInContentMarkdownLinkIgnoresExternal(t *testing.T) {
	content := "[site](https://example.com/Alpha)"
	out, n := lifecycle.RewriteLinksInContent(content, "Alpha.md", "Beta.md", true, false)
	assert.Equal(t, 0, n)
	assert.Equal(t, content, out)
}

func TestRewriteFrontmatterRefsRewritesStringField(t *testing.T) {
	doc, err := frontmatter.Parse("---\nproject: \"[[Projects/Alpha]]\"\n---\nBody.\n")
	require.NoError(t, err)

	n, err := lifecycle.RewriteFrontmatterRefs(doc, "Projects/Alpha.md", "Projects/Beta.md", true, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	v, ok := doc.Get("project")
	require.True(t, ok)
	assert.Contains(t, v.(string), "Projects/Beta")
}

func TestRewriteFrontmatterRefsRewritesListField(t *testing.T) {
	doc, err := frontmatter.Parse("---\nrelated:\n  - \"[[Projects/Alpha]]\"\n  - \"[[Projects/Gamma]]\"\n---\n")
	require.NoError(t, err)

	n, err := lifecycle.RewriteFrontmatterRefs(doc, "Projects/Alpha.md", "Projects/Beta.md", true, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	v, ok := doc.Get("related")
	require.True(t, ok)
	list, isList := v.([]interface{})
	require.True(t, isList)
	assert.Contains(t, list[0].(string), "Projects/Beta")
	assert.Contains(t, list[1].(string), "Projects/Gamma")
}
