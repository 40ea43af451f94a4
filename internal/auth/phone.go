package auth

import (
	"errors"
	"regexp"
	"strings"
)

var nonDigits = regexp.MustCompile(`\D`)

var (
	errPhoneRequired = errors.New("Phone number is required.")
	errPhoneFormat   = errors.New("invalid phone number format")
)

// normalizePhone strips formatting and the country code, requires ten
// national digits and returns the stored +<cc><number> form.
func normalizePhone(raw, countryCode string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", errPhoneRequired
	}
	cleaned := nonDigits.ReplaceAllString(raw, "")
	if len(cleaned) == 10+len(countryCode) && strings.HasPrefix(cleaned, countryCode) {
		cleaned = cleaned[len(countryCode):]
	}
	if len(cleaned) == 11 && strings.HasPrefix(cleaned, "0") {
		cleaned = cleaned[1:]
	}
	if len(cleaned) != 10 {
		return "", errPhoneFormat
	}
	return "+" + countryCode + cleaned, nil
}
