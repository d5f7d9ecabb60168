package lifecycle

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mdvault/mdvault/internal/frontmatter"
)

// pathsEqual compares two vault-relative paths, case-insensitively on
// filesystems the index treats as case-insensitive. mdvault targets Linux
// servers as well as developer laptops, so this is a parameter rather than a
// runtime.GOOS switch the way the teacher's pkg/obsidian.pathsEqual does it —
// the caller (rename.go) decides, via Deps, whether the vault root sits on a
// case-insensitive volume.
func pathsEqual(a, b string, caseInsensitive bool) bool {
	if caseInsensitive {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// baseName returns the last path segment, tolerating both separators since a
// reference written on one OS can be read back on another.
func baseName(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// normalizeWithExt lowercases the extension-bearing suffix comparison point
// by ensuring path carries ext, and normalizes slashes, without touching
// case (pathsEqual handles case sensitivity).
func normalizeWithExt(path, ext string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.TrimPrefix(path, "./")
	if filepath.Ext(path) == "" {
		path += ext
	}
	return path
}

func decodeURLPath(path string) string {
	decoded, err := url.PathUnescape(path)
	if err != nil {
		return path
	}
	return decoded
}

// protectedRegion is a span of body text link-rewriting must not touch:
// fenced or inline code, matching Obsidian's own rendering behavior.
type protectedRegion struct {
	placeholder string
	content     string
}

var (
	fencedBacktickPattern = regexp.MustCompile("(?s)```[^`]*```")
	fencedTildePattern    = regexp.MustCompile("(?s)~~~[^~]*~~~")
	inlineCodePattern     = regexp.MustCompile("`[^`]+`")
	wikilinkPattern       = regexp.MustCompile(`(!)?\[\[(.+?)\]\]`)
	mdLinkPattern         = regexp.MustCompile(`(!)?\[([^\]]*)\]\(([^)]+)\)`)
)

func extractProtectedRegions(content string) (string, []protectedRegion) {
	var regions []protectedRegion
	counter := 0
	protect := func(pattern *regexp.Regexp, prefix, in string) string {
		return pattern.ReplaceAllStringFunc(in, func(match string) string {
			placeholder := "\x00" + prefix + string(rune('A'+counter%26)) + string(rune('0'+counter/26)) + "\x00"
			counter++
			regions = append(regions, protectedRegion{placeholder: placeholder, content: match})
			return placeholder
		})
	}
	result := protect(fencedBacktickPattern, "CODEBLOCK", content)
	result = protect(fencedTildePattern, "CODEBLOCK", result)
	result = protect(inlineCodePattern, "INLINE", result)
	return result, regions
}

func restoreProtectedRegions(content string, regions []protectedRegion) string {
	for _, r := range regions {
		content = strings.Replace(content, r.placeholder, r.content, 1)
	}
	return content
}

// RewriteLinksInContent rewrites wikilinks and markdown links in body content
// that target oldPath so they target newPath instead, preserving alias text,
// fragments (headings/block refs), relative-path-vs-basename link style, and
// URL encoding. basenameUnique controls whether a link written as a bare
// filename (no folder) is also rewritten — the caller should pass false when
// another note shares oldPath's basename, since then a bare-filename link is
// ambiguous and must not be touched (spec.md §4.5.5: "ambiguous resolutions
// yield a warning, not a silent rewrite").
//
// Grounded on the teacher's pkg/obsidian.RewriteLinksInContentWithOptions.
func RewriteLinksInContent(content, oldPath, newPath string, basenameUnique, caseInsensitive bool) (string, int) {
	protectedContent, regions := extractProtectedRegions(content)

	oldExt := strings.ToLower(filepath.Ext(oldPath))
	if oldExt == "" {
		oldExt = ".md"
	}
	newExt := strings.ToLower(filepath.Ext(newPath))
	if newExt == "" {
		newExt = oldExt
	}

	oldNorm := normalizeWithExt(oldPath, oldExt)
	oldBase := strings.TrimSuffix(oldNorm, oldExt)
	oldBasename := baseName(oldBase)
	newNorm := normalizeWithExt(newPath, newExt)
	newBasename := baseName(strings.TrimSuffix(newNorm, newExt))

	rewriteCount := 0
	matchTarget := func(rawTarget, ext string) (newBase string, matched bool) {
		hadExt := ext != ""
		if ext == "" {
			ext = oldExt
		}
		targetNorm := normalizeWithExt(rawTarget, ext)
		targetBase := strings.TrimSuffix(targetNorm, ext)

		matchedByBasename := basenameUnique && pathsEqual(targetBase, oldBasename, caseInsensitive) && !pathsEqual(targetBase, oldBase, caseInsensitive)
		matchedByFullPath := pathsEqual(targetNorm, oldNorm, caseInsensitive) || pathsEqual(targetBase, oldBase, caseInsensitive)
		if !matchedByFullPath && !matchedByBasename {
			return "", false
		}
		if matchedByBasename {
			newBase = newBasename
			if hadExt {
				newBase += ext
			}
			return newBase, true
		}
		newBase = newNorm
		if !hadExt {
			newBase = strings.TrimSuffix(newBase, newExt)
		}
		return newBase, true
	}

	protectedContent = wikilinkPattern.ReplaceAllStringFunc(protectedContent, func(match string) string {
		m := wikilinkPattern.FindStringSubmatch(match)
		if len(m) < 3 {
			return match
		}
		isEmbed := m[1] == "!"
		inner := m[2]

		targetPart, aliasPart := inner, ""
		if pipeIdx := strings.Index(inner, "|"); pipeIdx != -1 {
			targetPart, aliasPart = inner[:pipeIdx], inner[pipeIdx+1:]
		}
		fragment, base := "", targetPart
		if hashIdx := strings.Index(base, "#"); hashIdx != -1 {
			fragment, base = base[hashIdx:], base[:hashIdx]
		}

		newBase, ok := matchTarget(base, filepath.Ext(base))
		if !ok {
			return match
		}
		newTarget := newBase + fragment
		if aliasPart != "" {
			newTarget += "|" + aliasPart
		}
		rewriteCount++
		prefix := ""
		if isEmbed {
			prefix = "!"
		}
		return prefix + "[[" + newTarget + "]]"
	})

	protectedContent = mdLinkPattern.ReplaceAllStringFunc(protectedContent, func(match string) string {
		m := mdLinkPattern.FindStringSubmatch(match)
		if len(m) < 4 {
			return match
		}
		isEmbed := m[1] == "!"
		text := m[2]
		href := strings.TrimSpace(m[3])
		if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
			return match
		}

		fragment, base := "", href
		if hashIdx := strings.Index(base, "#"); hashIdx != -1 {
			fragment, base = base[hashIdx:], base[:hashIdx]
		}

		decodedBase := decodeURLPath(base)
		wasEncoded := decodedBase != base

		newBase, ok := matchTarget(decodedBase, filepath.Ext(decodedBase))
		if !ok {
			return match
		}
		if wasEncoded {
			newBase = url.PathEscape(newBase)
		}
		rewriteCount++
		prefix := ""
		if isEmbed {
			prefix = "!"
		}
		return prefix + "[" + text + "](" + newBase + fragment + ")"
	})

	return restoreProtectedRegions(protectedContent, regions), rewriteCount
}

// RewriteFrontmatterRefs applies the same matching rule as
// RewriteLinksInContent to frontmatter field values: string fields whose
// value names a vault-relative path (frontmatter reference fields like
// "project" or "related"), and list fields whose elements do the same. This
// is mdvault's own extension beyond the teacher, which never rewrites
// frontmatter (spec.md §4.5.5 step 2: "references include both Markdown body
// links and frontmatter fields naming another note").
func RewriteFrontmatterRefs(doc *frontmatter.Document, oldPath, newPath string, basenameUnique, caseInsensitive bool) (int, error) {
	rewritten := 0
	for _, key := range doc.Keys() {
		v, ok := doc.Get(key)
		if !ok {
			continue
		}
		switch val := v.(type) {
		case string:
			newVal, n := rewriteFrontmatterValue(val, oldPath, newPath, basenameUnique, caseInsensitive)
			if n > 0 {
				if err := doc.Set(key, newVal); err != nil {
					return rewritten, err
				}
				rewritten += n
			}
		case []interface{}:
			changed := false
			out := make([]interface{}, len(val))
			for i, item := range val {
				s, isStr := item.(string)
				if !isStr {
					out[i] = item
					continue
				}
				newVal, n := rewriteFrontmatterValue(s, oldPath, newPath, basenameUnique, caseInsensitive)
				out[i] = newVal
				if n > 0 {
					changed = true
					rewritten += n
				}
			}
			if changed {
				if err := doc.Set(key, out); err != nil {
					return rewritten, err
				}
			}
		}
	}
	return rewritten, nil
}

// rewriteFrontmatterValue rewrites a single scalar frontmatter value if it
// resolves (as a wikilink target or bare path) to oldPath. Plain prose
// strings never match, since matchTarget requires either the full normalized
// path or the basename to agree.
func rewriteFrontmatterValue(val, oldPath, newPath string, basenameUnique, caseInsensitive bool) (string, int) {
	trimmed := strings.TrimSpace(val)
	inner := trimmed
	if strings.HasPrefix(inner, "[[") && strings.HasSuffix(inner, "]]") {
		inner = inner[2 : len(inner)-2]
	}
	rewrittenInner, n := RewriteLinksInContent("[["+inner+"]]", oldPath, newPath, basenameUnique, caseInsensitive)
	if n == 0 {
		return val, 0
	}
	rewrittenInner = strings.TrimPrefix(rewrittenInner, "[[")
	rewrittenInner = strings.TrimSuffix(rewrittenInner, "]]")
	if trimmed != val {
		return strings.Replace(val, trimmed, rewrittenInner, 1), n
	}
	return rewrittenInner, n
}
