package config

import (
	"path"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func ValidateAbsPath(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s != "" && path.IsAbs(s)
}

// ValidateIdentifier accepts SQL-safe identifiers. Empty is allowed so that
// an explicit empty table prefix can be configured.
func ValidateIdentifier(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}

	return identifierPattern.MatchString(s)
}

// ValidatePathPattern rejects key patterns that could escape the bucket root:
// absolute paths, drive letters, parent segments and NUL bytes.
func ValidatePathPattern(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}

	if strings.ContainsRune(s, 0) {
		return false
	}

	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, "\\") {
		return false
	}

	if len(s) >= 2 && s[1] == ':' {
		return false
	}

	for _, segment := range strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == '\\' }) {
		if segment == ".." {
			return false
		}
	}

	return true
}
