package index

import (
	"path/filepath"
	"regexp"
	"strings"
)

// ExtractedLink is a link-extraction result prior to target resolution.
type ExtractedLink struct {
	TargetPath string
	Kind       LinkKind
	Alias      string
	Anchor     string
	Context    string
}

// wikilinkPattern captures `[[target]]`, `[[target|alias]]`,
// `[[target#anchor]]`, `[[target#anchor|alias]]`, grounded in the teacher's
// pkg/obsidian/wikilinks.go wikilinkRegex, generalized to separately capture
// the anchor and alias groups rather than only the leading target segment.
var wikilinkPattern = regexp.MustCompile(`\[\[([^\]\|#]+)(?:#([^\]\|]+))?(?:\|([^\]]+))?\]\]`)

// markdownLinkPattern captures `[text](href)` where href ends in `.md`,
// optionally followed by a `#anchor`.
var markdownLinkPattern = regexp.MustCompile(`\[([^\]]*)\]\(([^)]+\.md)(#[^)]*)?\)`)

func contextSnippet(line string) string {
	line = strings.TrimSpace(line)
	const maxLen = 120
	if len(line) > maxLen {
		return line[:maxLen]
	}
	return line
}

// ExtractWikilinksAndMarkdownLinks finds both link forms in body, one pass
// per line so each extracted link carries the containing line as context.
func ExtractWikilinksAndMarkdownLinks(body string) []ExtractedLink {
	var out []ExtractedLink
	for _, line := range strings.Split(body, "\n") {
		snippet := contextSnippet(line)

		for _, m := range wikilinkPattern.FindAllStringSubmatch(line, -1) {
			out = append(out, ExtractedLink{
				TargetPath: filepath.ToSlash(strings.TrimSpace(m[1])),
				Kind:       LinkWikilink,
				Anchor:     strings.TrimSpace(m[2]),
				Alias:      strings.TrimSpace(m[3]),
				Context:    snippet,
			})
		}
		for _, m := range markdownLinkPattern.FindAllStringSubmatch(line, -1) {
			out = append(out, ExtractedLink{
				TargetPath: filepath.ToSlash(strings.TrimSpace(m[2])),
				Kind:       LinkMarkdown,
				Anchor:     strings.TrimPrefix(m[3], "#"),
				Alias:      strings.TrimSpace(m[1]),
				Context:    snippet,
			})
		}
	}
	return out
}

// ExtractFrontmatterReferences walks ordered frontmatter fields and treats
// any string scalar or string list element as a candidate reference,
// conservatively — resolution in resolveTarget is what decides whether it
// is actually a note/project reference (spec.md §4.4.2 point 3).
func ExtractFrontmatterReferences(fields map[string]interface{}) []ExtractedLink {
	var out []ExtractedLink
	for key, v := range fields {
		switch val := v.(type) {
		case string:
			if looksLikeReference(val) {
				out = append(out, ExtractedLink{
					TargetPath: val,
					Kind:       LinkFrontmatter,
					Context:    key,
				})
			}
		case []interface{}:
			for _, item := range val {
				if s, ok := item.(string); ok && looksLikeReference(s) {
					out = append(out, ExtractedLink{
						TargetPath: s,
						Kind:       LinkFrontmatter,
						Context:    key,
					})
				}
			}
		case []string:
			for _, s := range val {
				if looksLikeReference(s) {
					out = append(out, ExtractedLink{
						TargetPath: s,
						Kind:       LinkFrontmatter,
						Context:    key,
					})
				}
			}
		}
	}
	return out
}

// looksLikeReference filters out frontmatter scalars that obviously aren't
// references (dates, booleans-as-strings, empty values) before a resolution
// attempt is even made, keeping extraction conservative per spec.md §4.4.2.
func looksLikeReference(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 200 {
		return false
	}
	if strings.ContainsAny(s, "\n\t") {
		return false
	}
	return true
}

func normalizeTargetPath(raw string) string {
	raw = filepath.ToSlash(strings.TrimSpace(raw))
	if raw == "" {
		return raw
	}
	if !strings.HasSuffix(raw, ".md") {
		raw += ".md"
	}
	return raw
}
