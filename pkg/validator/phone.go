package validator

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrInvalidLength indicates phone number length is not 10 digits
	ErrInvalidLength = errors.New("phone number must be exactly 10 digits")

	// ErrInvalidPrefix indicates phone number doesn't start with a supported mobile-money prefix
	ErrInvalidPrefix = errors.New("phone number must start with 070, 074, 075, 076, 077, or 078")

	// ErrInvalidFormat indicates phone number contains invalid characters
	ErrInvalidFormat = errors.New("phone number can only contain digits")

	// ErrEmptyPhone indicates phone number is empty
	ErrEmptyPhone = errors.New("phone number cannot be empty")
)

// validPrefixes are the mobile operator prefixes that can receive a
// mobile-money collection request
var validPrefixes = []string{
	"076", // MTN
	"077", // MTN
	"078", // MTN
	"070", // Airtel
	"074", // Airtel
	"075", // Airtel
}

var phoneRegex = regexp.MustCompile(`^\d+$`)

// PhoneValidator handles mobile-money phone number validation
type PhoneValidator struct{}

// NewPhoneValidator creates a new phone validator instance
func NewPhoneValidator() *PhoneValidator {
	return &PhoneValidator{}
}

// Validate validates a subscriber phone number.
// Accepts 0772123456, +256772123456, 077 212 3456 and similar variants.
// Returns the sanitized local form (digits only, leading 0) or an error.
func (v *PhoneValidator) Validate(phone string) (string, error) {
	if phone == "" {
		return "", ErrEmptyPhone
	}

	sanitized := v.Sanitize(phone)

	if !phoneRegex.MatchString(sanitized) {
		return "", ErrInvalidFormat
	}

	if len(sanitized) != 10 {
		return "", ErrInvalidLength
	}

	if !v.IsValidPrefix(sanitized) {
		return "", ErrInvalidPrefix
	}

	return sanitized, nil
}

// Sanitize removes separators and normalizes the country code to local form
func (v *PhoneValidator) Sanitize(phone string) string {
	phone = strings.ReplaceAll(phone, " ", "")
	phone = strings.ReplaceAll(phone, "-", "")
	phone = strings.ReplaceAll(phone, "(", "")
	phone = strings.ReplaceAll(phone, ")", "")
	phone = strings.ReplaceAll(phone, "+", "")
	phone = strings.ReplaceAll(phone, ".", "")

	// Replace country code 256 with local 0
	if strings.HasPrefix(phone, "256") && len(phone) == 12 {
		phone = "0" + phone[3:]
	}

	return phone
}

// IsValidPrefix checks if the number has a supported operator prefix
func (v *PhoneValidator) IsValidPrefix(phone string) bool {
	if len(phone) < 3 {
		return false
	}

	prefix := phone[:3]
	for _, validPrefix := range validPrefixes {
		if prefix == validPrefix {
			return true
		}
	}

	return false
}

// E164 returns the international form +256XXXXXXXXX of a validated number
func (v *PhoneValidator) E164(phone string) (string, error) {
	sanitized, err := v.Validate(phone)
	if err != nil {
		return "", err
	}
	return "+256" + sanitized[1:], nil
}
