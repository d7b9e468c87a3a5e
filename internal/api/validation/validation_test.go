package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		valid bool
	}{
		{"valid_simple", "user@example.com", true},
		{"valid_subdomain", "user@mail.example.com", true},
		{"valid_plus", "user+tag@example.com", true},
		{"invalid_no_at", "userexample.com", false},
		{"invalid_no_domain", "user@", false},
		{"invalid_double_at", "user@@example.com", false},
		{"invalid_no_tld", "user@example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidEmail(tt.email), "Email: %s", tt.email)
		})
	}
}

func TestIsValidUsername(t *testing.T) {
	tests := []struct {
		username string
		valid    bool
	}{
		{"ana", true},
		{"maria_lopez_99", true},
		{"ab", false},
		{"juan perez", false},
		{"juan-perez", false},
		{"josé", false},
	}

	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidUsername(tt.username))
		})
	}
}

func TestIsValidSKU(t *testing.T) {
	tests := []struct {
		sku   string
		valid bool
	}{
		{"PC-001", true},
		{"ABC123", true},
		{"pc-001", false},
		{"PC 001", false},
		{"", false},
		{strings.Repeat("A", 81), false},
	}

	for _, tt := range tests {
		t.Run(tt.sku, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidSKU(tt.sku))
		})
	}
}

func TestIsValidPersonName(t *testing.T) {
	assert.True(t, IsValidPersonName("María José Núñez"))
	assert.True(t, IsValidPersonName("  Al  "))
	assert.False(t, IsValidPersonName("A"))
	assert.False(t, IsValidPersonName("R2D2"))
	assert.False(t, IsValidPersonName("O'Brien"))
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		valid bool
	}{
		{"912345678", "912345678", true},
		{"912 345 678", "912345678", true},
		{"912-345-678", "912345678", true},
		{"91234567", "91234567", false},
		{"9123456789", "9123456789", false},
		{"91234567a", "91234567a", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizePhone(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.valid, ok)
		})
	}
}

func TestIsValidPassword(t *testing.T) {
	ok, _ := IsValidPassword("longenough")
	assert.True(t, ok)

	ok, msg := IsValidPassword("short")
	assert.False(t, ok)
	assert.Contains(t, msg, "8 characters")
}

func TestLengthBetween(t *testing.T) {
	assert.True(t, LengthBetween("ñandú", 5, 5))
	assert.False(t, LengthBetween("ab", 3, 160))
}

func TestInRange(t *testing.T) {
	v := func(f float64) *float64 { return &f }

	assert.True(t, InRange(nil, 0, 10))
	assert.True(t, InRange(v(0), 0, 10))
	assert.True(t, InRange(v(10), 0, 10))
	assert.False(t, InRange(v(-0.1), 0, 10))
	assert.False(t, InRange(v(10.5), 0, 10))
}

func TestCheckBounds(t *testing.T) {
	v := func(f float64) *float64 { return &f }

	errs := Errors{}
	CheckBounds(errs, "min", v(5), "max", v(1))
	assert.Contains(t, errs, "min")

	errs = Errors{}
	CheckBounds(errs, "min", nil, "max", v(1))
	assert.Empty(t, errs)
}

func TestErrors(t *testing.T) {
	errs := Errors{}
	require.NoError(t, errs.Err())

	errs.Add("name", "Name is required")
	errs.Add("name", "ignored")
	errs.Add("email", "Invalid email")

	err := errs.Err()
	require.Error(t, err)

	var verrs Errors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, []string{"• email: Invalid email", "• name: Name is required"}, verrs.Messages())
	assert.Equal(t, "• email: Invalid email; • name: Name is required", err.Error())
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString(" hel\x00lo\x07 "))
	assert.Equal(t, "a\tb", SanitizeString("a\tb"))
}
