// Package mdast implements deterministic, format-preserving insertion of
// Markdown fragments into named sections (spec.md §4.2). Rather than
// re-rendering a parsed tree — which would reformat whitespace, list
// markers, and tables goldmark doesn't round-trip byte-for-byte — every
// operation here works on byte ranges of the original source. goldmark
// (grounded in stormlightlabs-knowledgelab/backend/service/note.go, the one
// example repo in the pack that parses Markdown with it) is used only to
// identify fenced/indented code block ranges, so heading-like lines inside
// a code fence are correctly ignored, exactly as spec.md requires.
package mdast

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Position selects where a fragment lands within a section.
type Position int

const (
	Begin Position = iota
	End
)

// Section describes one heading-delimited region of a document.
type Section struct {
	Title      string
	Level      int
	HeadingEnd int // byte offset immediately after the heading line's newline
	BodyEnd    int // byte offset where the section ends (next same/higher heading, or EOF)
}

// SectionNotFoundError carries the headings actually present, as diagnostic
// payload per spec.md §4.2.
type SectionNotFoundError struct {
	Requested string
	Headings  []string
}

func (e *SectionNotFoundError) Error() string {
	return fmt.Sprintf("section %q not found (found: %s)", e.Requested, strings.Join(e.Headings, ", "))
}

type EmptyDocumentError struct{}

func (EmptyDocumentError) Error() string { return "document is empty" }

type MalformedHeadingError struct{ Line string }

func (e MalformedHeadingError) Error() string { return fmt.Sprintf("malformed heading: %q", e.Line) }

var atxPattern = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*#*\s*$`)

// codeRanges returns the [start,end) byte ranges of fenced and indented code
// blocks, so the line scanner below can skip heading-like lines inside them.
func codeRanges(source []byte) [][2]int {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var ranges [][2]int
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			if lines.Len() == 0 {
				return ast.WalkSkipChildren, nil
			}
			first := lines.At(0)
			last := lines.At(lines.Len() - 1)
			ranges = append(ranges, [2]int{first.Start, last.Stop})
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return ranges
}

func withinAny(ranges [][2]int, offset int) bool {
	for _, r := range ranges {
		if offset >= r[0] && offset < r[1] {
			return true
		}
	}
	return false
}

// findSections walks source line by line, yielding every ATX or setext
// heading not inside a fenced/indented code block.
func findSections(source []byte) ([]Section, error) {
	if len(source) == 0 {
		return nil, EmptyDocumentError{}
	}

	protected := codeRanges(source)

	type headingHit struct {
		level      int
		title      string
		lineStart  int
		headingEnd int // offset right after the heading's own line(s)
	}

	var hits []headingHit

	lines := splitKeepEnds(source)
	offset := 0
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimRight(line, "\r\n")

		if withinAny(protected, offset) {
			offset += len(line)
			continue
		}

		if m := atxPattern.FindStringSubmatch(trimmed); m != nil {
			hits = append(hits, headingHit{
				level:      len(m[1]),
				title:      strings.TrimSpace(m[2]),
				lineStart:  offset,
				headingEnd: offset + len(line),
			})
			offset += len(line)
			continue
		}

		// Setext: a non-blank line followed by a line of all '=' (level 1)
		// or all '-' (level 2), neither blank.
		if strings.TrimSpace(trimmed) != "" && i+1 < len(lines) {
			next := strings.TrimRight(lines[i+1], "\r\n")
			underline := strings.TrimSpace(next)
			if underline != "" && !withinAny(protected, offset+len(line)) {
				if isAllRune(underline, '=') {
					hits = append(hits, headingHit{
						level:      1,
						title:      strings.TrimSpace(trimmed),
						lineStart:  offset,
						headingEnd: offset + len(line) + len(lines[i+1]),
					})
					offset += len(line) + len(lines[i+1])
					i++
					continue
				}
				if isAllRune(underline, '-') {
					hits = append(hits, headingHit{
						level:      2,
						title:      strings.TrimSpace(trimmed),
						lineStart:  offset,
						headingEnd: offset + len(line) + len(lines[i+1]),
					})
					offset += len(line) + len(lines[i+1])
					i++
					continue
				}
			}
		}

		offset += len(line)
	}

	sections := make([]Section, 0, len(hits))
	for idx, h := range hits {
		end := len(source)
		for j := idx + 1; j < len(hits); j++ {
			if hits[j].level <= h.level {
				end = hits[j].lineStart
				break
			}
		}
		sections = append(sections, Section{
			Title:      h.title,
			Level:      h.level,
			HeadingEnd: h.headingEnd,
			BodyEnd:    end,
		})
	}
	return sections, nil
}

func isAllRune(s string, r rune) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c != r {
			return false
		}
	}
	return true
}

func splitKeepEnds(source []byte) []string {
	var lines []string
	start := 0
	for i := 0; i < len(source); i++ {
		if source[i] == '\n' {
			lines = append(lines, string(source[start:i+1]))
			start = i + 1
		}
	}
	if start < len(source) {
		lines = append(lines, string(source[start:]))
	}
	return lines
}

// FindSections returns every heading-delimited section in source, in
// document order. Exposed for callers that need to report "the list of
// headings discovered" (e.g. SectionNotFoundError).
func FindSections(source []byte) ([]Section, error) {
	return findSections(source)
}

func foldTitle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func findSection(source []byte, name string) (Section, []string, error) {
	sections, err := findSections(source)
	if err != nil {
		return Section{}, nil, err
	}
	want := foldTitle(name)
	headings := make([]string, 0, len(sections))
	for _, s := range sections {
		headings = append(headings, s.Title)
		if foldTitle(s.Title) == want {
			return s, headings, nil
		}
	}
	return Section{}, headings, &SectionNotFoundError{Requested: name, Headings: headings}
}

// InsertOptions controls CreateIfMissing behavior.
type InsertOptions struct {
	CreateIfMissing bool
}

// InsertIntoSection splices fragment into the named section of source at
// position, returning the rewritten document. A blank/whitespace-only
// fragment is a no-op that returns source unchanged.
func InsertIntoSection(source []byte, sectionName string, fragment string, position Position, opts InsertOptions) ([]byte, error) {
	if strings.TrimSpace(fragment) == "" {
		return source, nil
	}
	fragment = strings.TrimRight(fragment, "\n") + "\n"

	if len(source) == 0 {
		if !opts.CreateIfMissing {
			return nil, EmptyDocumentError{}
		}
		return synthesize(sectionName, fragment), nil
	}

	section, headings, err := findSection(source, sectionName)
	if err != nil {
		if _, isNotFound := err.(*SectionNotFoundError); isNotFound && opts.CreateIfMissing {
			out := append(append([]byte{}, source...), '\n')
			out = append(out, synthesize(sectionName, fragment)...)
			return out, nil
		}
		_ = headings
		return nil, err
	}

	switch position {
	case Begin:
		return spliceAt(source, section.HeadingEnd, fragment), nil
	case End:
		// Insert right after the last non-blank line of the section body, so
		// any blank-line separator that already existed before the next
		// heading is preserved rather than destroyed, and repeated End
		// inserts accumulate as a contiguous block (FIFO order).
		insertAt := trimTrailingBlankBoundary(source, section.BodyEnd)
		return spliceAt(source, insertAt, fragment), nil
	}
	return nil, fmt.Errorf("unknown position %v", position)
}

func synthesize(sectionName string, fragment string) []byte {
	return []byte("# " + sectionName + "\n\n" + fragment)
}

func spliceAt(source []byte, at int, fragment string) []byte {
	out := make([]byte, 0, len(source)+len(fragment))
	out = append(out, source[:at]...)
	out = append(out, fragment...)
	out = append(out, source[at:]...)
	return out
}

// trimTrailingBlankBoundary walks backward from `end` over trailing blank
// lines of the preceding section body, so repeated End inserts accumulate
// immediately after the last real content line rather than growing a block
// of blank lines.
func trimTrailingBlankBoundary(source []byte, end int) int {
	i := end
	for i > 0 && source[i-1] == '\n' {
		lineStart := i - 1
		for lineStart > 0 && source[lineStart-1] != '\n' {
			lineStart--
		}
		if strings.TrimSpace(string(source[lineStart:i])) != "" {
			break
		}
		i = lineStart
	}
	return i
}

