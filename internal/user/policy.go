package user

import (
	"strings"
	"unicode/utf8"
)

const (
	PasswordMinLen = 10
	PasswordMaxLen = 128
)

// Password rule names reported in PolicyError.Violations.
const (
	RuleMin       = "min"
	RuleMax       = "max"
	RuleUppercase = "uppercase"
	RuleLowercase = "lowercase"
	RuleDigits    = "digits"
	RuleSymbols   = "symbols"
)

// symbolSet is the punctuation accepted by the symbols rule. Character
// classes are ASCII only.
const symbolSet = "`~!@#$%^&*()-_=+[]{};:'\"\\|,.<>/?"

// ValidatePassword returns every rule pw violates, in a fixed order. An
// empty result means the password is acceptable.
func ValidatePassword(pw string) []string {
	var upper, lower, digit, symbol bool
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(symbolSet, r):
			symbol = true
		}
	}

	var out []string
	n := utf8.RuneCountInString(pw)
	if n < PasswordMinLen {
		out = append(out, RuleMin)
	}
	if n > PasswordMaxLen {
		out = append(out, RuleMax)
	}
	if !upper {
		out = append(out, RuleUppercase)
	}
	if !lower {
		out = append(out, RuleLowercase)
	}
	if !digit {
		out = append(out, RuleDigits)
	}
	if !symbol {
		out = append(out, RuleSymbols)
	}
	return out
}

func checkPassword(pw string) error {
	if v := ValidatePassword(pw); len(v) > 0 {
		return &PolicyError{Violations: v}
	}
	return nil
}
