package util

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"
)

var (
	reSpaces   = regexp.MustCompile(`\s+`)
	reNonDigit = regexp.MustCompile(`\D+`)
)

func CollapseSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

func DigitsOnly(input string) string {
	return reNonDigit.ReplaceAllString(input, "")
}

func HasDigit(input string) bool {
	for _, r := range input {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// IsNumericToken reports whether token is made only of digits and numeral punctuation, with at least one digit.
func IsNumericToken(token string) bool {
	if token == "" {
		return false
	}
	digit := false
	for _, r := range token {
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case r == '.' || r == ',':
		default:
			return false
		}
	}
	return digit
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func StringPtr(v string) *string { return &v }

func FloatPtr(v float64) *float64 { return &v }

func BoolPtr(v bool) *bool { return &v }

// OptionalString returns nil for blank input.
func OptionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func Deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func SHA256Hex(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
