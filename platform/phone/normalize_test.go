package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want *string
	}{
		{"empty", "", nil},
		{"no digits", "abc - ()", nil},
		{"short", "12-34", strPtr("1234")},
		{"landline eight digits", "3333-4444", strPtr("33334444")},
		{"mobile with area code", "11988887777", strPtr("988887777")},
		{"formatted international", "+55 11 98888-7777", strPtr("988887777")},
		{"international digits", "5511988887777", strPtr("988887777")},
		{"foreign long number", "+1 (415) 555-0100 99", strPtr("555010099")},
		{"exactly nine", "988887777", strPtr("988887777")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Key(tc.in))
		})
	}
}

func TestKeyConvergesAcrossPrefixes(t *testing.T) {
	a := Key("+55 11 98888-7777")
	b := Key("5511988887777")
	c := Key("11988887777")

	require.NotNil(t, a)
	assert.Equal(t, *a, *b)
	assert.Equal(t, *a, *c)
}

func TestKeyIsIdempotent(t *testing.T) {
	inputs := []string{
		"", "1", "12345678", "+55 (21) 3333-4444", "5511988887777",
		"0055 11 98888 7777", "+44 20 7946 0958", "99999999999999999",
	}

	for _, in := range inputs {
		first := Key(Digits(in))
		if first == nil {
			continue
		}
		second := Key(*first)
		require.NotNil(t, second, in)
		assert.Equal(t, *first, *second, in)
	}
}

func TestKeyPtr(t *testing.T) {
	assert.Nil(t, KeyPtr(nil))
	raw := "(11) 98888-7777"
	assert.Equal(t, strPtr("988887777"), KeyPtr(&raw))
}

func TestInternational(t *testing.T) {
	cases := map[string]string{
		"5511988887777":     "5511988887777",
		"+55 11 98888-7777": "5511988887777",
		"11988887777":       "5511988887777",
		"1133334444":        "551133334444",
		"+44 20 7946 0958":  "442079460958",
		"98888777":          "98888777",
	}

	for in, want := range cases {
		assert.Equal(t, want, International(in), in)
	}
}

func TestFormatE164(t *testing.T) {
	assert.Equal(t, "", FormatE164("  "))
	assert.Equal(t, "+5511988887777", FormatE164("+55 11 98888-7777"))
	assert.Equal(t, "not a phone", FormatE164(" not a phone "))
}

func strPtr(s string) *string { return &s }
