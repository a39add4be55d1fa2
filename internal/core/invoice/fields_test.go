package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrixFieldNames(t *testing.T) {
	m := NewMatrix()
	names := m.FieldNames()

	require.NotEmpty(t, names)
	seen := map[string]bool{}
	for _, n := range names {
		assert.False(t, seen[n], "duplicate field %q", n)
		seen[n] = true
		require.NotNil(t, m.Field(n))
	}
	// Header fields come before charge fields.
	idx := map[string]int{}
	for i, n := range names {
		idx[n] = i
	}
	assert.Less(t, idx["invoice_number"], idx["published_charge"])
	assert.Less(t, idx["tracking_number"], idx["fuel_surcharge"])
}

func TestMatrixSurchargeNames(t *testing.T) {
	m := NewMatrix()
	names := m.SurchargeNames()
	require.NotEmpty(t, names)
	assert.Equal(t, "fuel_surcharge", names[0])
	for _, n := range names {
		f := m.Field(n)
		require.NotNil(t, f)
		assert.Equal(t, TypeCurrencyTriple, f.Type)
		assert.Equal(t, CategorySurcharges, f.Category)
	}
}

func TestHighPriorityFields(t *testing.T) {
	m := NewMatrix()
	high := m.HighPriorityFields()
	assert.Contains(t, high, "tracking_number")
	assert.Contains(t, high, "invoice_number")
	assert.NotContains(t, high, "quantum_view")
}

func TestValidateValue(t *testing.T) {
	m := NewMatrix()
	tests := []struct {
		name    string
		field   string
		value   string
		wantErr bool
	}{
		{"valid tracking", "tracking_number", "1ZA1B2C3D4E5F6G7H8", false},
		{"short tracking", "tracking_number", "1Z123", true},
		{"empty required", "tracking_number", "", true},
		{"empty optional", "zone", "", false},
		{"valid zone", "zone", "12", false},
		{"non numeric zone", "zone", "abc", true},
		{"valid currency with comma", "published_charge", "1,234.56", false},
		{"bad currency", "published_charge", "lots", true},
		{"valid zip", "destination_zip", "30301-1234", false},
		{"bad zip", "destination_zip", "3030", true},
		{"unknown field", "no_such_field", "x", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.ValidateValue(tt.field, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
