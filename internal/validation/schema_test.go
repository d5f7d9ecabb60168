package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdvault/mdvault/internal/frontmatter"
	"github.com/mdvault/mdvault/internal/lifecycle"
	"github.com/mdvault/mdvault/internal/validation"
)

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func taskDef() lifecycle.TypeDefinition {
	return lifecycle.TypeDefinition{
		Kind: "task",
		Schema: []lifecycle.FieldSchema{
			{Name: "status", Kind: lifecycle.FieldString, Required: true, Enum: []string{"open", "done", "cancelled"}},
			{Name: "priority", Kind: lifecycle.FieldInt, Min: floatPtr(1), Max: floatPtr(5)},
			{Name: "title", Kind: lifecycle.FieldString, Required: true, MinLength: intPtr(3)},
			{Name: "tags", Kind: lifecycle.FieldList, MaxItems: intPtr(3)},
			{Name: "due", Kind: lifecycle.FieldDate},
		},
	}
}

func parseDoc(t *testing.T, content string) *frontmatter.Document {
	t.Helper()
	doc, err := frontmatter.Parse(content)
	require.NoError(t, err)
	return doc
}

func TestCheckSchemaFindsMissingRequiredField(t *testing.T) {
	doc := parseDoc(t, "---\ntitle: Fix bug\n---\nbody\n")
	findings := validation.CheckSchema(doc, taskDef())
	require.Len(t, findings, 1)
	assert.Equal(t, "status", findings[0].Field)
}

func TestCheckSchemaEnforcesEnum(t *testing.T) {
	doc := parseDoc(t, "---\ntitle: Fix bug\nstatus: maybe\n---\nbody\n")
	findings := validation.CheckSchema(doc, taskDef())
	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Message, "not one of")
}

func TestCheckSchemaEnforcesMinMaxAndLength(t *testing.T) {
	doc := parseDoc(t, "---\ntitle: Fi\nstatus: open\npriority: 9\n---\nbody\n")
	findings := validation.CheckSchema(doc, taskDef())

	var fields []string
	for _, f := range findings {
		fields = append(fields, f.Field)
	}
	assert.Contains(t, fields, "title")
	assert.Contains(t, fields, "priority")
}

func TestCheckSchemaEnforcesMaxItems(t *testing.T) {
	doc := parseDoc(t, "---\ntitle: Fix bug\nstatus: open\ntags: [a, b, c, d]\n---\nbody\n")
	findings := validation.CheckSchema(doc, taskDef())
	require.Len(t, findings, 1)
	assert.Equal(t, "tags", findings[0].Field)
}

func TestCheckSchemaEnforcesDateFormat(t *testing.T) {
	doc := parseDoc(t, "---\ntitle: Fix bug\nstatus: open\ndue: not-a-date\n---\nbody\n")
	findings := validation.CheckSchema(doc, taskDef())
	require.Len(t, findings, 1)
	assert.Equal(t, "due", findings[0].Field)
}

func TestCheckSchemaPassesOnValidNote(t *testing.T) {
	doc := parseDoc(t, "---\ntitle: Fix bug\nstatus: open\npriority: 3\ndue: 2026-03-10\n---\nbody\n")
	findings := validation.CheckSchema(doc, taskDef())
	assert.Empty(t, findings)
}

func TestCheckSchemaSkipsPresenceCheckForInheritedField(t *testing.T) {
	def := lifecycle.TypeDefinition{
		Schema: []lifecycle.FieldSchema{
			{Name: "project", Kind: lifecycle.FieldString, Required: true, Inherited: true},
		},
	}
	doc := parseDoc(t, "---\ntitle: Fix bug\n---\nbody\n")
	findings := validation.CheckSchema(doc, def)
	assert.Empty(t, findings)
}
