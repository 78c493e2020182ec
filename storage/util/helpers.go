package util

import (
	"fmt"
	"strings"
)

// NormalizeBaseURL ensures the base URL ends with a slash.
func NormalizeBaseURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimRight(trimmed, "/")
	return trimmed + "/"
}

// DeriveTableName constructs a table name from the configured prefix.
// A nil prefix selects "pantry"; an explicit empty prefix leaves the table bare.
func DeriveTableName(prefix *string, table string) string {
	p := "pantry"
	if prefix != nil {
		p = strings.TrimSpace(*prefix)
	}

	if p == "" {
		return table
	}

	return fmt.Sprintf("%s_%s", p, table)
}
