package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidPersonName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"simple name", "John Smith", true},
		{"hyphenated", "Mary-Anne Obrien", true},
		{"too short", "J", false},
		{"invoice term", "Total Charge", false},
		{"company", "Acme Llc", false},
		{"lowercase start", "john smith", false},
		{"too many words", "One Two Three Four Five", false},
		{"contains digits", "John4 Smith", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidPersonName(tt.in))
		})
	}
}

func TestCleanPersonName(t *testing.T) {
	assert.Equal(t, "John Smith", CleanPersonName("John Smith 12.50"))
	assert.Equal(t, "Jane Doe", CleanPersonName("Jane Doe 5 lbs"))
	assert.Equal(t, "Bob Jones", CleanPersonName("Bob Jones 10 x 8 x 6 in"))
	assert.Equal(t, "Ann Lee", CleanPersonName("Ann Lee Total $4.99 ,"))
}

func TestIsValidStreetAddress(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"street", "123 MAIN STREET, ATLANTA, GA 30301", true},
		{"abbreviated", "45 OAK AVE", true},
		{"no house number", "MAIN STREET", false},
		{"no street keyword", "123 SOMEWHERE", false},
		{"too short", "1 ST", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidStreetAddress(tt.in))
		})
	}
}

func TestCleanStreetAddress(t *testing.T) {
	got := CleanStreetAddress("123 MAIN ST 25.00 -5.00 20.00 Total Billed")
	assert.Equal(t, "123 MAIN ST", got)
}

func TestCurrencyTriple(t *testing.T) {
	a := CurrencyTriple{Published: 1, Incentive: -0.5, Billed: 0.5}
	b := CurrencyTriple{Published: 2, Incentive: -1, Billed: 1}
	sum := a.Add(b)
	assert.Equal(t, CurrencyTriple{Published: 3, Incentive: -1.5, Billed: 1.5}, sum)
	assert.True(t, CurrencyTriple{}.IsZero())
	assert.False(t, a.IsZero())
}

func TestComputeLineTotal(t *testing.T) {
	sh := &Shipment{BaseCharge: CurrencyTriple{Published: 10, Incentive: -2, Billed: 8}}
	sh.SetSurcharge("fuel_surcharge", CurrencyTriple{Published: 1, Billed: 1})
	sh.SetSurcharge("carbon_neutral", CurrencyTriple{Published: 99, Billed: 99}) // not a total component

	sh.ComputeLineTotal()
	require.True(t, sh.HasLineTotal)
	assert.Equal(t, CurrencyTriple{Published: 11, Incentive: -2, Billed: 9}, sh.LineTotal)
}

func TestComputeLineTotalZeroStaysUnset(t *testing.T) {
	sh := &Shipment{}
	sh.ComputeLineTotal()
	assert.False(t, sh.HasLineTotal)
	assert.True(t, sh.LineTotal.IsZero())
}

func TestGroupLabel(t *testing.T) {
	g := &Group{Header: InvoiceHeader{InvoiceNumber: "INV1"}}
	assert.Equal(t, "INV1", g.Label())
	assert.Equal(t, "pages-7", (&Group{Pages: []int{7, 8}}).Label())
	assert.Equal(t, "unknown", (&Group{}).Label())
}
