package validation

import (
	"fmt"
	"regexp"
	"time"

	"github.com/mdvault/mdvault/internal/frontmatter"
	"github.com/mdvault/mdvault/internal/lifecycle"
	"github.com/mdvault/mdvault/internal/mderrors"
)

// CheckSchema walks def's declared fields against doc's frontmatter, per
// spec.md §4.7: "for each field, verify presence (if required and not
// inherited), type ..., constraints (enum, regex pattern, min/max for
// numbers, min_length/max_length for strings, min_items/max_items for
// lists, note_type for references)". note_type resolution needs the index
// and lives in references.go; every other constraint is checked here.
func CheckSchema(doc *frontmatter.Document, def lifecycle.TypeDefinition) []Finding {
	var findings []Finding
	for _, field := range def.Schema {
		value, present := doc.Get(field.Name)
		if !present {
			if field.Required && !field.Inherited {
				findings = append(findings, Finding{
					Field:    field.Name,
					Severity: mderrors.SeverityError,
					Message:  fmt.Sprintf("required field %q is missing", field.Name),
				})
			}
			continue
		}
		findings = append(findings, checkValue(field, value)...)
	}
	return findings
}

func checkValue(field lifecycle.FieldSchema, value interface{}) []Finding {
	var findings []Finding
	fail := func(format string, args ...interface{}) {
		findings = append(findings, Finding{
			Field:    field.Name,
			Severity: mderrors.SeverityError,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	switch field.Kind {
	case lifecycle.FieldString, lifecycle.FieldRef:
		s, ok := value.(string)
		if !ok {
			fail("field %q must be a string, got %T", field.Name, value)
			return findings
		}
		checkEnum(field, s, fail)
		if field.Pattern != "" {
			re, err := regexp.Compile(field.Pattern)
			if err != nil {
				fail("field %q: invalid pattern %q: %v", field.Name, field.Pattern, err)
			} else if !re.MatchString(s) {
				fail("field %q value %q does not match pattern %q", field.Name, s, field.Pattern)
			}
		}
		if field.MinLength != nil && len(s) < *field.MinLength {
			fail("field %q is shorter than min_length %d", field.Name, *field.MinLength)
		}
		if field.MaxLength != nil && len(s) > *field.MaxLength {
			fail("field %q is longer than max_length %d", field.Name, *field.MaxLength)
		}

	case lifecycle.FieldInt:
		n, ok := asNumber(value)
		if !ok {
			fail("field %q must be a number, got %T", field.Name, value)
			return findings
		}
		if field.Min != nil && n < *field.Min {
			fail("field %q value %v is below min %v", field.Name, n, *field.Min)
		}
		if field.Max != nil && n > *field.Max {
			fail("field %q value %v is above max %v", field.Name, n, *field.Max)
		}

	case lifecycle.FieldBool:
		if _, ok := value.(bool); !ok {
			fail("field %q must be a boolean, got %T", field.Name, value)
		}

	case lifecycle.FieldList:
		items, ok := asList(value)
		if !ok {
			fail("field %q must be a list, got %T", field.Name, value)
			return findings
		}
		if field.MinItems != nil && len(items) < *field.MinItems {
			fail("field %q has fewer than min_items %d entries", field.Name, *field.MinItems)
		}
		if field.MaxItems != nil && len(items) > *field.MaxItems {
			fail("field %q has more than max_items %d entries", field.Name, *field.MaxItems)
		}

	case lifecycle.FieldDate:
		// yaml.v3 resolves an unquoted YYYY-MM-DD scalar to time.Time on its
		// own (the !!timestamp implicit tag), so a value already parsed that
		// way is valid by construction; only a plain string needs a format
		// check.
		switch v := value.(type) {
		case time.Time:
		case string:
			if _, err := time.Parse("2006-01-02", v); err != nil {
				fail("field %q value %q is not a YYYY-MM-DD date", field.Name, v)
			}
		default:
			fail("field %q must be a date, got %T", field.Name, value)
		}

	case lifecycle.FieldDateTime:
		switch v := value.(type) {
		case time.Time:
		case string:
			if _, err := time.Parse(time.RFC3339, v); err != nil {
				fail("field %q value %q is not an RFC3339 datetime", field.Name, v)
			}
		default:
			fail("field %q must be a datetime, got %T", field.Name, value)
		}
	}

	return findings
}

func checkEnum(field lifecycle.FieldSchema, s string, fail func(string, ...interface{})) {
	if len(field.Enum) == 0 {
		return
	}
	for _, allowed := range field.Enum {
		if s == allowed {
			return
		}
	}
	fail("field %q value %q is not one of %v", field.Name, s, field.Enum)
}

func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

func asList(v interface{}) ([]interface{}, bool) {
	switch l := v.(type) {
	case []interface{}:
		return l, true
	case []string:
		out := make([]interface{}, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}
