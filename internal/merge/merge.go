// Package merge fills {field} placeholders in subject and body templates
// with values from a spreadsheet row.
package merge

import "strings"

// Render substitutes every {field} in tmpl with fields[field]. Fields
// missing from the map render as the empty string. A malformed template
// (unbalanced braces, a brace inside a placeholder, or an empty {}) is
// returned unchanged. Substituted values are never expanded again.
func Render(tmpl string, fields map[string]string) string {
	var b strings.Builder
	b.Grow(len(tmpl))

	ok := scan(tmpl, func(lit string) {
		b.WriteString(lit)
	}, func(name string) {
		b.WriteString(fields[name])
	})
	if !ok {
		return tmpl
	}
	return b.String()
}

// Placeholders returns the distinct field names referenced by tmpl in
// order of first use, or nil when the template is malformed.
func Placeholders(tmpl string) []string {
	seen := make(map[string]bool)
	var names []string
	ok := scan(tmpl, func(string) {}, func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	})
	if !ok {
		return nil
	}
	return names
}

// Valid reports whether tmpl parses as a template.
func Valid(tmpl string) bool {
	return scan(tmpl, func(string) {}, func(string) {})
}

// scan walks tmpl, calling lit for literal runs and field for each
// placeholder name. It reports false on the first syntax error.
func scan(tmpl string, lit func(string), field func(string)) bool {
	rest := tmpl
	for rest != "" {
		open := strings.IndexAny(rest, "{}")
		if open < 0 {
			lit(rest)
			return true
		}
		if rest[open] == '}' {
			return false
		}
		lit(rest[:open])
		rest = rest[open+1:]

		end := strings.IndexAny(rest, "{}")
		if end < 0 || rest[end] == '{' || end == 0 {
			return false
		}
		field(rest[:end])
		rest = rest[end+1:]
	}
	return true
}
