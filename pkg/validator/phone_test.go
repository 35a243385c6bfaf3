package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhoneValidator_Validate(t *testing.T) {
	v := NewPhoneValidator()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"Valid MTN Local", "0772123456", "0772123456", nil},
		{"Valid Airtel Local", "0701234567", "0701234567", nil},
		{"Valid With Country Code", "+256772123456", "0772123456", nil},
		{"Valid With Country Code No Plus", "256772123456", "0772123456", nil},
		{"Valid With Spaces", "077 212 3456", "0772123456", nil},
		{"Valid With Dashes", "077-212-3456", "0772123456", nil},
		{"Empty", "", "", ErrEmptyPhone},
		{"Too Short", "077212345", "", ErrInvalidLength},
		{"Too Long", "07721234567", "", ErrInvalidLength},
		{"Letters", "07721234ab", "", ErrInvalidFormat},
		{"Bad Prefix Landline", "0412123456", "", ErrInvalidPrefix},
		{"Bad Prefix", "0792123456", "", ErrInvalidPrefix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Validate(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, got)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPhoneValidator_IsValidPrefix(t *testing.T) {
	v := NewPhoneValidator()

	assert.True(t, v.IsValidPrefix("0772123456"))
	assert.True(t, v.IsValidPrefix("0741234567"))
	assert.False(t, v.IsValidPrefix("0312123456"))
	assert.False(t, v.IsValidPrefix("07"))
}

func TestPhoneValidator_E164(t *testing.T) {
	v := NewPhoneValidator()

	e164, err := v.E164("0772123456")
	assert.NoError(t, err)
	assert.Equal(t, "+256772123456", e164)

	e164, err = v.E164("+256701234567")
	assert.NoError(t, err)
	assert.Equal(t, "+256701234567", e164)

	_, err = v.E164("0412123456")
	assert.ErrorIs(t, err, ErrInvalidPrefix)
}
