package validator

import (
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

func rule(field, message string, check func() bool) Rule {
	return Rule{Check: check, Error: ValidationError{Field: field, Message: message}}
}

// Required validates that a string is not empty after trimming whitespace.
func Required(field, value string) Rule {
	return rule(field, "field is required", func() bool {
		return strings.TrimSpace(value) != ""
	})
}

func MinLen(field, value string, min int) Rule {
	return rule(field, fmt.Sprintf("must be at least %d characters long", min), func() bool {
		return utf8.RuneCountInString(value) >= min
	})
}

func MaxLen(field, value string, max int) Rule {
	return rule(field, fmt.Sprintf("must be at most %d characters long", max), func() bool {
		return utf8.RuneCountInString(value) <= max
	})
}

// Email accepts a bare address (no display name).
func Email(field, value string) Rule {
	return rule(field, "must be a valid email address", func() bool {
		addr, err := mail.ParseAddress(value)
		return err == nil && addr.Address == value && strings.Contains(value, ".")
	})
}

func Range[T Numeric](field string, value, min, max T) Rule {
	return rule(field, fmt.Sprintf("must be between %v and %v", min, max), func() bool {
		return value >= min && value <= max
	})
}

func OneOf[T comparable](field string, value T, options ...T) Rule {
	return rule(field, "must be one of the allowed values", func() bool {
		return slices.Contains(options, value)
	})
}

func UUID(field, value string) Rule {
	return rule(field, "must be a valid UUID", func() bool {
		_, err := uuid.Parse(value)
		return err == nil
	})
}

// CardNumber checks digits-only length 12..19 and the Luhn checksum.
// Spaces and dashes are ignored.
func CardNumber(field, value string) Rule {
	return rule(field, "must be a valid card number", func() bool {
		return LuhnValid(value)
	})
}

// CardExpiry rejects months outside 1..12 and cards that expired before now's month.
func CardExpiry(field string, month, year int, now time.Time) Rule {
	return rule(field, "card is expired or expiry is invalid", func() bool {
		if month < 1 || month > 12 || year < 2000 {
			return false
		}
		y, m, _ := now.Date()
		return year > y || (year == y && month >= int(m))
	})
}

// CVC accepts 3 or 4 digits.
func CVC(field, value string) Rule {
	return rule(field, "must be 3 or 4 digits", func() bool {
		return (len(value) == 3 || len(value) == 4) && digitsOnly(value)
	})
}

// LuhnValid reports whether number passes the Luhn checksum.
func LuhnValid(number string) bool {
	digits := strings.NewReplacer(" ", "", "-", "").Replace(number)
	if len(digits) < 12 || len(digits) > 19 || !digitsOnly(digits) {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
