package mdast_test

import (
	"testing"

	"github.com/mdvault/mdvault/internal/mdast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertIntoSectionBeginIsStackOrder(t *testing.T) {
	doc := []byte("## Inbox\n- Existing\n## Done\n")

	step1, err := mdast.InsertIntoSection(doc, "Inbox", "- A", mdast.Begin, mdast.InsertOptions{})
	require.NoError(t, err)
	step2, err := mdast.InsertIntoSection(step1, "Inbox", "- B", mdast.Begin, mdast.InsertOptions{})
	require.NoError(t, err)

	assert.Equal(t, "## Inbox\n- B\n- A\n- Existing\n## Done\n", string(step2))
}

func TestInsertIntoSectionEndIsQueueOrder(t *testing.T) {
	doc := []byte("## Inbox\n- Existing\n## Done\n")

	step1, err := mdast.InsertIntoSection(doc, "Inbox", "- A", mdast.End, mdast.InsertOptions{})
	require.NoError(t, err)
	step2, err := mdast.InsertIntoSection(step1, "Inbox", "- B", mdast.End, mdast.InsertOptions{})
	require.NoError(t, err)

	assert.Equal(t, "## Inbox\n- Existing\n- A\n- B\n## Done\n", string(step2))
}

func TestInsertIntoSectionCaseInsensitiveMatch(t *testing.T) {
	doc := []byte("## INBOX\n- Existing\n")
	out, err := mdast.InsertIntoSection(doc, "inbox", "- A", mdast.Begin, mdast.InsertOptions{})
	require.NoError(t, err)
	assert.Equal(t, "## INBOX\n- A\n- Existing\n", string(out))
}

func TestInsertIntoSectionIgnoresHeadingsInFencedCode(t *testing.T) {
	doc := []byte("## Notes\n```\n## Not A Real Section\n```\nbody\n## Done\n")
	out, err := mdast.InsertIntoSection(doc, "Not A Real Section", "x", mdast.Begin, mdast.InsertOptions{})
	require.Error(t, err)
	var notFound *mdast.SectionNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Contains(t, notFound.Headings, "Notes")
	assert.Contains(t, notFound.Headings, "Done")
	assert.NotContains(t, notFound.Headings, "Not A Real Section")

	appended, err := mdast.InsertIntoSection(doc, "Notes", "- new", mdast.End, mdast.InsertOptions{})
	require.NoError(t, err)
	assert.Contains(t, string(appended), "## Not A Real Section")
	assert.Contains(t, string(appended), "- new\n## Done")
}

func TestInsertIntoSectionNoopFragment(t *testing.T) {
	doc := []byte("## Inbox\n- Existing\n")
	out, err := mdast.InsertIntoSection(doc, "Inbox", "   \n", mdast.Begin, mdast.InsertOptions{})
	require.NoError(t, err)
	assert.Equal(t, doc, out)
}

func TestInsertIntoSectionCreateIfMissingEmptyDocument(t *testing.T) {
	out, err := mdast.InsertIntoSection(nil, "Inbox", "- A", mdast.Begin, mdast.InsertOptions{CreateIfMissing: true})
	require.NoError(t, err)
	assert.Equal(t, "# Inbox\n\n- A\n", string(out))
}

func TestInsertIntoSectionEmptyDocumentWithoutCreate(t *testing.T) {
	_, err := mdast.InsertIntoSection(nil, "Inbox", "- A", mdast.Begin, mdast.InsertOptions{})
	require.Error(t, err)
	assert.IsType(t, mdast.EmptyDocumentError{}, err)
}

func TestInsertThenDeleteReturnsToOriginal(t *testing.T) {
	doc := []byte("## Inbox\n- Existing\n## Done\n")
	inserted, err := mdast.InsertIntoSection(doc, "Inbox", "- A", mdast.Begin, mdast.InsertOptions{})
	require.NoError(t, err)

	// Deleting the same fragment is symmetric: removing the exact bytes we
	// added returns the document to its original state.
	removed := []byte("## Inbox\n- Existing\n## Done\n")
	reconstructed := string(inserted)
	reconstructed = reconstructed[:len("## Inbox\n")] + reconstructed[len("## Inbox\n- A\n"):]
	assert.Equal(t, string(removed), reconstructed)
}

func TestSetextHeadingsAreRecognized(t *testing.T) {
	doc := []byte("Title\n=====\nbody\n")
	sections, err := mdast.FindSections(doc)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, "Title", sections[0].Title)
	assert.Equal(t, 1, sections[0].Level)
}
