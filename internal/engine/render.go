package engine

import (
	"fmt"
	"strings"
)

// renderPlaceholders substitutes every {{key}} occurrence in tmpl with
// vars[key]'s string form, the same mechanism internal/lifecycle's
// datekeyed.go uses for its output-path templates ({{year}}, {{date}},
// {{week}}, {{slug}}), generalized here to an arbitrary variable map rather
// than a fixed handful of date-derived names.
func renderPlaceholders(tmpl string, vars map[string]interface{}) string {
	out := tmpl
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{{"+k+"}}", stringify(v))
	}
	return out
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
