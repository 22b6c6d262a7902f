package config

import (
	"fmt"
	"strings"
)

// ParseMergeList splits one --merge argument into tokens. Entries are
// comma-separated; a backslash escapes a comma; double quotes, single
// quotes and triple single quotes group an entry containing commas or
// leading/trailing spaces.
func ParseMergeList(spec string) ([]string, error) {
	var tokens []string
	var current strings.Builder
	rest := spec
	inQuote := ""
	escaped := false
	flush := func() {
		token := strings.TrimSpace(current.String())
		current.Reset()
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	for len(rest) > 0 {
		if inQuote == "" && strings.TrimSpace(current.String()) == "" {
			trimmed := strings.TrimLeft(rest, " \t")
			switch {
			case strings.HasPrefix(trimmed, "'''"):
				inQuote = "'''"
				rest = trimmed[3:]
				current.Reset()
				continue
			case strings.HasPrefix(trimmed, "'"):
				inQuote = "'"
				rest = trimmed[1:]
				current.Reset()
				continue
			case strings.HasPrefix(trimmed, `"`):
				inQuote = `"`
				rest = trimmed[1:]
				current.Reset()
				continue
			}
		}
		if inQuote != "" {
			if strings.HasPrefix(rest, inQuote) {
				rest = rest[len(inQuote):]
				tokens = append(tokens, current.String())
				current.Reset()
				inQuote = ""
				// Swallow the separator following a closing quote.
				rest = strings.TrimLeft(rest, " \t")
				rest = strings.TrimPrefix(rest, ",")
				continue
			}
			current.WriteByte(rest[0])
			rest = rest[1:]
			continue
		}
		ch := rest[0]
		rest = rest[1:]
		switch {
		case escaped:
			current.WriteByte(ch)
			escaped = false
		case ch == '\\':
			escaped = true
		case ch == ',':
			flush()
		default:
			current.WriteByte(ch)
		}
	}
	if inQuote != "" {
		return nil, fmt.Errorf("unterminated %s quote in merge list %q", inQuote, spec)
	}
	if escaped {
		current.WriteByte('\\')
	}
	flush()
	if len(tokens) == 0 {
		return nil, fmt.Errorf("merge list %q is empty", spec)
	}
	return tokens, nil
}
