package utils

import (
	"errors"
	"html"
	"regexp"
	"strings"
	"unicode"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	scriptTags   = regexp.MustCompile(`<script[^>]*>.*?</script>`)
	nonDigits    = regexp.MustCompile(`[^\d+]`)
)

// SanitizeInput cleans free-text user input before it is stored or echoed
// back: trims, HTML-escapes, strips control characters and script tags.
func SanitizeInput(input string) string {
	input = strings.TrimSpace(input)
	input = html.EscapeString(input)
	input = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)
	return scriptTags.ReplaceAllString(input, "")
}

// SanitizeEmail lowercases and validates an email address.
func SanitizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailPattern.MatchString(email) {
		return "", errors.New("invalid email format")
	}
	return email, nil
}

// SanitizePhone strips formatting from a phone number and normalizes local
// 09xx numbers to +639xx. Empty input passes through; phone is optional on
// some requests.
func SanitizePhone(phone string) (string, error) {
	phone = nonDigits.ReplaceAllString(strings.TrimSpace(phone), "")
	if phone == "" {
		return "", nil
	}
	switch {
	case strings.HasPrefix(phone, "+"):
	case strings.HasPrefix(phone, "09"):
		phone = "+63" + phone[1:]
	default:
		phone = "+" + phone
	}
	if len(phone) < 8 || len(phone) > 15 {
		return "", errors.New("invalid phone number length")
	}
	return phone, nil
}
