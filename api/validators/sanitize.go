package validators

import (
	"net/http"
	"strings"
	"unicode/utf8"
)

// QueryText returns the trimmed query value truncated to maxLen runes.
func QueryText(r *http.Request, key string, maxLen int) string {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if maxLen <= 0 || utf8.RuneCountInString(value) <= maxLen {
		return value
	}
	runes := []rune(value)
	return string(runes[:maxLen])
}

// QueryDepartment normalises a department filter ("75", "2a" -> "2A").
// Anything longer than a department code is dropped instead of truncated.
func QueryDepartment(r *http.Request, key string) string {
	value := strings.ToUpper(QueryText(r, key, 0))
	if len(value) > 3 {
		return ""
	}
	return value
}
