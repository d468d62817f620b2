package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	slugInvalid  = regexp.MustCompile(`[^\w\s-]`)
	slugCollapse = regexp.MustCompile(`[-\s]+`)
	nonDigits    = regexp.MustCompile(`\D`)
)

// Slugify generates a URL-friendly slug from a facility name, used as a
// fallback source identifier when the upstream record carries none.
func Slugify(name string) string {
	slug := strings.ToLower(name)
	slug = slugInvalid.ReplaceAllString(slug, "")
	slug = slugCollapse.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// FormatPhone normalizes a North American phone number to
// "(NNN) NNN-NNNN". Numbers that do not fit the format are returned
// unchanged.
func FormatPhone(phone string) string {
	if phone == "" {
		return ""
	}
	digits := nonDigits.ReplaceAllString(phone, "")
	switch {
	case len(digits) == 10:
		return fmt.Sprintf("(%s) %s-%s", digits[:3], digits[3:6], digits[6:])
	case len(digits) == 11 && digits[0] == '1':
		return fmt.Sprintf("(%s) %s-%s", digits[1:4], digits[4:7], digits[7:])
	}
	return phone
}
