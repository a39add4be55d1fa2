package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `Delivery Service Invoice
Page 1 of 3
Invoice Number 0000A1B2C3
Account Number A1B2C3
Control ID X7#4
Invoice Date August 15, 2025
Shipped from: ACME WAREHOUSE, 100 DOCK RD, MEMPHIS, TN 38101

08/15 1ZA1B2C3D4E5F6G7H8 Ground Residential 30301 5 12.5 25.00 -5.00 20.00
Fuel Surcharge 2.00 -0.40 1.60
Residential Surcharge 4.50 -1.00 3.50
1st ref: ORDER-123
Receiver: John Smith 123 MAIN STREET, ATLANTA, GA 30301
08/16 1ZA1B2C3D4E5F6G7H9 Ground Commercial 60601 4 3.0 12.00 -2.00 10.00
`

func TestParseShortDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		year int
		want string
	}{
		{"month day only", "08/15", 2025, "2025-08-15"},
		{"two digit year", "08/15/25", 1999, "2025-08-15"},
		{"four digit year", "12/01/2024", 2025, "2024-12-01"},
		{"invalid month passes through", "13/40", 2025, "13/40"},
		{"not a date passes through", "pending", 2025, "pending"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseShortDate(tt.in, tt.year))
		})
	}
}

func TestParseCurrency(t *testing.T) {
	assert.Equal(t, 1234.56, ParseCurrency("1,234.56"))
	assert.Equal(t, -12.0, ParseCurrency("-12.00"))
	assert.Equal(t, 5.25, ParseCurrency("$5.25"))
	assert.Equal(t, 0.0, ParseCurrency("n/a"))
}

func TestIsEmptyPage(t *testing.T) {
	assert.True(t, IsEmptyPage(""))
	assert.True(t, IsEmptyPage("short"))
	assert.True(t, IsEmptyPage("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	assert.False(t, IsEmptyPage(samplePage))
}

func TestIsInvoicePage(t *testing.T) {
	assert.True(t, IsInvoicePage(samplePage))
	assert.True(t, IsInvoicePage("tracking line 1ZA1B2C3D4E5F6G7H8"))
	assert.False(t, IsInvoicePage("quarterly newsletter, nothing billable"))
}

func TestIsGroupStartPage(t *testing.T) {
	assert.True(t, IsGroupStartPage(samplePage))
	assert.False(t, IsGroupStartPage("Delivery Service Invoice\nPage 2 of 3"))
	assert.False(t, IsGroupStartPage("Page 1 of 3"))
}

func TestIsSummaryPage(t *testing.T) {
	assert.True(t, IsSummaryPage("...Consolidated Billing Summary..."))
	assert.False(t, IsSummaryPage(samplePage))
}

func TestParseHeader(t *testing.T) {
	h := ParseHeader(samplePage)
	assert.Equal(t, "0000A1B2C3", h.InvoiceNumber)
	assert.Equal(t, "A1B2C3", h.AccountNumber)
	assert.Equal(t, "X7#4", h.ControlID)
	assert.Equal(t, "August 15, 2025", h.InvoiceDate)
	assert.Contains(t, h.ShippedFrom, "ACME WAREHOUSE")
	assert.Equal(t, 2025, h.Year())
}

func TestHeaderYearFallback(t *testing.T) {
	h := InvoiceHeader{InvoiceDate: "sometime"}
	assert.NotZero(t, h.Year())
}

func TestSplitShipmentBlocks(t *testing.T) {
	blocks := SplitShipmentBlocks(samplePage)
	require.Len(t, blocks, 2)
	assert.Contains(t, blocks[0], "1ZA1B2C3D4E5F6G7H8")
	assert.Contains(t, blocks[0], "Fuel Surcharge")
	assert.Contains(t, blocks[1], "1ZA1B2C3D4E5F6G7H9")
	assert.NotContains(t, blocks[1], "Fuel Surcharge")

	assert.Nil(t, SplitShipmentBlocks("no shipments here"))
}

func TestParseShipmentBlock(t *testing.T) {
	p := NewParser()
	blocks := SplitShipmentBlocks(samplePage)
	require.Len(t, blocks, 2)

	sh := p.ParseShipmentBlock(blocks[0], 2025)
	require.NotNil(t, sh)

	assert.Equal(t, "1ZA1B2C3D4E5F6G7H8", sh.TrackingNumber)
	assert.Equal(t, "2025-08-15", sh.ShipmentDate)
	assert.Equal(t, "Ground Residential", sh.ServiceType)
	assert.Equal(t, "30301", sh.DestinationZip)
	assert.Equal(t, 5, sh.Zone)
	assert.Equal(t, 12.5, sh.Weight)
	assert.Equal(t, CurrencyTriple{Published: 25, Incentive: -5, Billed: 20}, sh.BaseCharge)

	fuel := sh.Surcharge("fuel_surcharge")
	assert.Equal(t, CurrencyTriple{Published: 2, Incentive: -0.4, Billed: 1.6}, fuel)
	res := sh.Surcharge("residential_surcharge")
	assert.Equal(t, CurrencyTriple{Published: 4.5, Incentive: -1, Billed: 3.5}, res)

	assert.Equal(t, "ORDER-123", sh.FirstReference)
	assert.Equal(t, "John Smith", sh.ReceiverName)
	assert.Contains(t, sh.ReceiverAddress, "123 MAIN STREET")

	require.True(t, sh.HasLineTotal)
	assert.InDelta(t, 31.5, sh.LineTotal.Published, 0.001)
	assert.InDelta(t, -6.4, sh.LineTotal.Incentive, 0.001)
	assert.InDelta(t, 25.1, sh.LineTotal.Billed, 0.001)
}

func TestParseShipmentBlockUnparsableDropped(t *testing.T) {
	p := NewParser()
	assert.Nil(t, p.ParseShipmentBlock("Fuel Surcharge 2.00 -0.40 1.60", 2025))
}

func TestParsePages(t *testing.T) {
	p := NewParser()
	pages := []Page{
		{Number: 1, Text: samplePage},
		{Number: 2, Text: "Consolidated Billing Summary\nnot shipment data"},
		{Number: 3, Text: ""},
	}
	groups, err := p.ParsePages(pages)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	g := groups[0]
	assert.Equal(t, "0000A1B2C3", g.Header.InvoiceNumber)
	assert.Equal(t, []int{1, 3}, g.Pages)
	require.Len(t, g.Shipments, 2)
	assert.Equal(t, 1, g.Shipments[0].PageNumber)
	assert.Equal(t, "0000A1B2C3", g.Shipments[0].InvoiceGroup)
}

func TestParsePagesEmptyInput(t *testing.T) {
	p := NewParser()
	_, err := p.ParsePages(nil)
	assert.Error(t, err)
}

func TestDetectGroupsImplicitFirstGroup(t *testing.T) {
	p := NewParser()
	groups := p.DetectGroups([]Page{{Number: 4, Text: "continuation page with shipments"}})
	require.Len(t, groups, 1)
	assert.Equal(t, []int{4}, groups[0].Pages)
	assert.Equal(t, "pages-4", groups[0].Label())
}
