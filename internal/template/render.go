// Package template implements placeholder substitution for message bodies.
package template

import "strings"

// Render replaces {placeholder} tokens in tmpl with values from vars in a
// single left-to-right pass. Substituted values are never rescanned, so a
// value containing placeholder syntax (a contact named "{phone}", say) comes
// out literally. Placeholders with no entry in vars, and unmatched braces,
// are left verbatim; a stray opener before a token ("{{name}") does not
// swallow the token.
func Render(tmpl string, vars map[string]string) string {
	var b strings.Builder
	b.Grow(len(tmpl))

	for len(tmpl) > 0 {
		open := strings.IndexByte(tmpl, '{')
		if open < 0 {
			b.WriteString(tmpl)
			break
		}
		b.WriteString(tmpl[:open])
		tmpl = tmpl[open:]

		rest := tmpl[1:]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			// unmatched brace, emit the rest as-is
			b.WriteString(tmpl)
			break
		}
		if inner := strings.IndexByte(rest, '{'); inner >= 0 && inner < end {
			// stray opener; emit it verbatim and rescan from the inner one
			b.WriteString(tmpl[:inner+1])
			tmpl = tmpl[inner+1:]
			continue
		}
		if v, ok := vars[rest[:end]]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(tmpl[:end+2])
		}
		tmpl = tmpl[end+2:]
	}
	return b.String()
}
