// Package utils carries small helpers with no domain knowledge.
package utils

import "strconv"

// AtoiDefault parses s as a base-10 int and returns def when s is empty or
// not a valid integer. Handlers use it for optional numeric query parameters
// where a malformed value should mean "use the default", not an error.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
