// Package datemath evaluates the small date expression language of
// spec.md §4.1: a base ("today", "2025-W03", "monday", ...) optionally
// followed by signed offsets and a strftime-like output format.
//
// Formatting reuses the teacher's token-substitution approach from
// pkg/obsidian/date_format.go (ordered token table + bracket-literal
// escaping), retargeted from Moment.js tokens to strftime directives since
// spec.md asks for "a strftime-like format" rather than Obsidian's.
package datemath

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateExprError carries the raw string that failed to parse, per spec.md §4.1.
type DateExprError struct {
	Raw    string
	Reason string
}

func (e *DateExprError) Error() string {
	return fmt.Sprintf("invalid date expression %q: %s", e.Raw, e.Reason)
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

var isoWeekPattern = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)
var isoDatePattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
var offsetPattern = regexp.MustCompile(`^(\d+)([mhdwMy])$`)

// Eval evaluates expr against now (sampled once per top-level request by the
// caller, not inside Eval, so the evaluator stays pure and deterministic).
func Eval(expr string, now time.Time) (time.Time, error) {
	raw := expr
	parts := strings.Fields(expr)
	if len(parts) == 0 {
		return time.Time{}, &DateExprError{Raw: raw, Reason: "empty expression"}
	}

	// Split off the trailing "| format" clause, if present, by locating the
	// bare "|" token (it cannot appear inside a base/offset token).
	formatIdx := -1
	for i, p := range parts {
		if p == "|" {
			formatIdx = i
			break
		}
	}
	var format string
	hasFormat := false
	if formatIdx >= 0 {
		if formatIdx == len(parts)-1 {
			return time.Time{}, &DateExprError{Raw: raw, Reason: "missing format after '|'"}
		}
		format = strings.Join(parts[formatIdx+1:], " ")
		parts = parts[:formatIdx]
		hasFormat = true
	}

	if len(parts) == 0 {
		return time.Time{}, &DateExprError{Raw: raw, Reason: "empty expression"}
	}

	base, err := evalBase(parts[0], now)
	if err != nil {
		return time.Time{}, &DateExprError{Raw: raw, Reason: err.Error()}
	}

	rest := parts[1:]
	for len(rest) > 0 {
		sign := rest[0]
		if sign != "+" && sign != "-" {
			return time.Time{}, &DateExprError{Raw: raw, Reason: fmt.Sprintf("expected '+' or '-', got %q", sign)}
		}
		if len(rest) < 2 {
			return time.Time{}, &DateExprError{Raw: raw, Reason: "offset missing operand"}
		}
		operand := rest[1]
		base, err = applyOffset(base, sign == "+", operand)
		if err != nil {
			return time.Time{}, &DateExprError{Raw: raw, Reason: err.Error()}
		}
		rest = rest[2:]
	}

	_ = hasFormat
	return base, nil
}

// EvalFormatted evaluates expr and renders it with the trailing "| format"
// clause if present, otherwise with the default "2006-01-02" layout.
func EvalFormatted(expr string, now time.Time) (string, error) {
	parts := strings.SplitN(expr, "|", 2)
	t, err := Eval(expr, now)
	if err != nil {
		return "", err
	}
	if len(parts) == 2 {
		return Strftime(strings.TrimSpace(parts[1]), t), nil
	}
	return t.Format("2006-01-02"), nil
}

func evalBase(token string, now time.Time) (time.Time, error) {
	lower := strings.ToLower(token)
	switch lower {
	case "today":
		return truncateToDay(now), nil
	case "now", "time":
		return now, nil
	case "week", "week_start":
		return mondayOf(now), nil
	case "week_end":
		return mondayOf(now).AddDate(0, 0, 6), nil
	case "year":
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location()), nil
	}
	if wd, ok := weekdayNames[lower]; ok {
		return nextWeekday(truncateToDay(now), wd, true), nil
	}
	if m := isoDatePattern.FindStringSubmatch(token); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location()), nil
	}
	if m := isoWeekPattern.FindStringSubmatch(token); m != nil {
		year, _ := strconv.Atoi(m[1])
		week, _ := strconv.Atoi(m[2])
		return isoWeekStart(year, week, now.Location()), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized base %q", token)
}

func applyOffset(base time.Time, forward bool, operand string) (time.Time, error) {
	if wd, ok := weekdayNames[strings.ToLower(operand)]; ok {
		return nextWeekday(base, wd, forward), nil
	}
	m := offsetPattern.FindStringSubmatch(operand)
	if m == nil {
		return time.Time{}, fmt.Errorf("unrecognized offset %q", operand)
	}
	n, _ := strconv.Atoi(m[1])
	if !forward {
		n = -n
	}
	switch m[2] {
	case "m":
		return base.Add(time.Duration(n) * time.Minute), nil
	case "h":
		return base.Add(time.Duration(n) * time.Hour), nil
	case "d":
		return base.AddDate(0, 0, n), nil
	case "w":
		return base.AddDate(0, 0, 7*n), nil
	case "M":
		return base.AddDate(0, n, 0), nil
	case "y":
		return base.AddDate(n, 0, 0), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized unit in %q", operand)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func mondayOf(t time.Time) time.Time {
	d := truncateToDay(t)
	offset := int(d.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}
	return d.AddDate(0, 0, -offset)
}

// nextWeekday finds the next (forward==true) or previous occurrence of wd
// relative to from. If from already falls on wd, from is returned unchanged
// — "today" counts as its own next/previous occurrence.
func nextWeekday(from time.Time, wd time.Weekday, forward bool) time.Time {
	from = truncateToDay(from)
	if from.Weekday() == wd {
		return from
	}
	diff := int(wd) - int(from.Weekday())
	if forward {
		if diff < 0 {
			diff += 7
		}
		return from.AddDate(0, 0, diff)
	}
	if diff > 0 {
		diff -= 7
	}
	return from.AddDate(0, 0, diff)
}

// isoWeekStart returns the Monday of ISO week `week` of `year`.
func isoWeekStart(year, week int, loc *time.Location) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	isoWd := int(jan4.Weekday())
	if isoWd == 0 {
		isoWd = 7
	}
	week1Monday := jan4.AddDate(0, 0, -(isoWd - 1))
	return week1Monday.AddDate(0, 0, (week-1)*7)
}

var strftimeTokens = []struct {
	token   string
	replace func(time.Time) string
}{
	{"%Y", func(t time.Time) string { return t.Format("2006") }},
	{"%y", func(t time.Time) string { return t.Format("06") }},
	{"%m", func(t time.Time) string { return t.Format("01") }},
	{"%d", func(t time.Time) string { return t.Format("02") }},
	{"%H", func(t time.Time) string { return t.Format("15") }},
	{"%M", func(t time.Time) string { return t.Format("04") }},
	{"%S", func(t time.Time) string { return t.Format("05") }},
	{"%B", func(t time.Time) string { return t.Format("January") }},
	{"%b", func(t time.Time) string { return t.Format("Jan") }},
	{"%A", func(t time.Time) string { return t.Format("Monday") }},
	{"%a", func(t time.Time) string { return t.Format("Mon") }},
	{"%p", func(t time.Time) string { return t.Format("PM") }},
	{"%j", func(t time.Time) string { return fmt.Sprintf("%03d", t.YearDay()) }},
	{"%W", func(t time.Time) string { _, w := t.ISOWeek(); return fmt.Sprintf("%02d", w) }},
	{"%%", func(time.Time) string { return "%" }},
}

// Strftime renders t using a curated subset of strftime directives, in the
// same token-table style as the teacher's convertObsidianFormatToGo.
func Strftime(format string, t time.Time) string {
	var out strings.Builder
	i := 0
	for i < len(format) {
		matched := false
		for _, tok := range strftimeTokens {
			if strings.HasPrefix(format[i:], tok.token) {
				out.WriteString(tok.replace(t))
				i += len(tok.token)
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		out.WriteByte(format[i])
		i++
	}
	return out.String()
}

// IsDateExpr reports whether s parses as a valid date expression, for the
// script runtime's is_date_expr host function.
func IsDateExpr(s string) bool {
	_, err := Eval(s, time.Now())
	return err == nil
}
