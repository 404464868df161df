package utils

import "strings"

// NormalizeCode strips leading zeros from a gazette section/department code
// so "07" and "7" key the same catalog row. An empty or all-zero code
// normalizes to "0".
func NormalizeCode(code string) string {
	s := strings.TrimLeft(strings.TrimSpace(code), "0")
	if s == "" {
		return "0"
	}
	return s
}
