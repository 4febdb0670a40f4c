package user

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name string
		pw   string
		want []string
	}{
		{"strong", "Str0ng!Passw0rd", nil},
		{"short everything", "abc", []string{RuleMin, RuleUppercase, RuleDigits, RuleSymbols}},
		{"no symbol", "Abcdefgh12", []string{RuleSymbols}},
		{"no lower", "ABCDEFGH1!", []string{RuleLowercase}},
		{"too long", "Aa1!" + strings.Repeat("x", 125), []string{RuleMax}},
		{"exact bounds", "Aa1!" + strings.Repeat("x", 6), nil},
		{"non-ascii digit", "Str\u0663ng!Password", []string{RuleDigits}},
		{"emoji is not a symbol", "Str0ngPassw0rd\U0001F600", []string{RuleSymbols}},
		{"non-ascii letters only", "\u00c9\u00e9\u00e9\u00e9\u00e9\u00e9\u00e9\u00e9\u00e91!", []string{RuleUppercase, RuleLowercase}},
		{"space is not a symbol", "Strong Passw0rd", []string{RuleSymbols}},
		{"empty", "", []string{RuleMin, RuleUppercase, RuleLowercase, RuleDigits, RuleSymbols}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidatePassword(tt.pw))
		})
	}
}

func TestPolicyErrorIs(t *testing.T) {
	err := checkPassword("abc")
	assert.ErrorIs(t, err, ErrPasswordPolicy)
	assert.Contains(t, err.Error(), "min")
	assert.NoError(t, checkPassword("Str0ng!Passw0rd"))
}
