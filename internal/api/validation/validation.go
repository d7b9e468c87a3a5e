package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// EmailRegex validates email format
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// UUIDRegex validates UUID format
	uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

	skuRegex = regexp.MustCompile(`^[A-Z0-9-]+$`)

	// Letters and spaces, including accented Spanish characters.
	personNameRegex = regexp.MustCompile(`^[a-zA-ZáéíóúÁÉÍÓÚñÑüÜ\s]+$`)
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
	PhoneDigits       = 9
	MaxSKULength      = 80
)

// Errors maps a field name to its message. A nil or empty Errors means the
// input is valid.
type Errors map[string]string

func (e Errors) Add(field, msg string) {
	if _, exists := e[field]; !exists {
		e[field] = msg
	}
}

func (e Errors) Error() string {
	return strings.Join(e.Messages(), "; ")
}

// Messages flattens the errors into a stable, field-ordered list.
func (e Errors) Messages() []string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	out := make([]string, 0, len(e))
	for _, f := range fields {
		out = append(out, fmt.Sprintf("• %s: %s", f, e[f]))
	}
	return out
}

// Err returns nil when there are no errors so callers can use it as an error.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// IsValidEmail checks if the string is a valid email format
func IsValidEmail(email string) bool {
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}

// IsValidUUID checks if the string is a valid UUID format
func IsValidUUID(id string) bool {
	return uuidRegex.MatchString(id)
}

func IsValidUsername(username string) bool {
	return utf8.RuneCountInString(username) >= 3 && usernameRegex.MatchString(username)
}

// IsValidSKU accepts upper-case letters, digits and dashes.
func IsValidSKU(sku string) bool {
	return len(sku) <= MaxSKULength && skuRegex.MatchString(sku)
}

// IsValidPersonName requires 2..100 letters or spaces after trimming.
func IsValidPersonName(name string) bool {
	name = strings.TrimSpace(name)
	return LengthBetween(name, 2, 100) && personNameRegex.MatchString(name)
}

// NormalizePhone strips spaces and dashes and reports whether what is left is
// exactly nine digits.
func NormalizePhone(phone string) (string, bool) {
	phone = strings.NewReplacer(" ", "", "-", "").Replace(phone)
	if len(phone) != PhoneDigits {
		return phone, false
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return phone, false
		}
	}
	return phone, true
}

// IsValidPassword checks password length
func IsValidPassword(password string) (bool, string) {
	if len(password) < MinPasswordLength {
		return false, "Password must be at least 8 characters"
	}
	if len(password) > MaxPasswordLength {
		return false, "Password must be at most 128 characters"
	}
	return true, ""
}

// LengthBetween counts runes, not bytes.
func LengthBetween(s string, min, max int) bool {
	n := utf8.RuneCountInString(s)
	return n >= min && n <= max
}

// InRange reports whether an optional value lies in [min, max]. Nil is valid.
func InRange(v *float64, min, max float64) bool {
	return v == nil || (*v >= min && *v <= max)
}

// CheckBounds validates an optional min/max pair.
func CheckBounds(errs Errors, minField string, min *float64, maxField string, max *float64) {
	if min != nil && *min < 0 {
		errs.Add(minField, "Must not be negative")
	}
	if max != nil && *max < 0 {
		errs.Add(maxField, "Must not be negative")
	}
	if min != nil && max != nil && *min > *max {
		errs.Add(minField, "Minimum must not exceed maximum")
	}
}

// SanitizeString removes potentially dangerous characters for display
func SanitizeString(s string) string {
	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")

	// Remove control characters except newlines and tabs
	var result strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || !unicode.IsControl(r) {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}
