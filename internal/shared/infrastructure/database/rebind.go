package database

import (
	"strconv"
	"strings"
)

// Rebind rewrites "?" placeholders into the driver's form. Queries shared by
// both backends are written with "?" and rebound once at construction.
func Rebind(driver Driver, query string) string {
	if driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inString := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inString = !inString
			b.WriteByte(c)
		case c == '?' && !inString:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Placeholders returns n comma-separated placeholders starting at position
// start (1-based), e.g. "?, ?" or "$3, $4".
func Placeholders(driver Driver, start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		if driver == DriverPostgres {
			parts[i] = "$" + strconv.Itoa(start+i)
		} else {
			parts[i] = "?"
		}
	}
	return strings.Join(parts, ", ")
}
