package extract

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/invoicemill/internal/core/invoice"
)

const firstInvoicePage = `Delivery Service Invoice
Page 1 of 2
Invoice Number 0000A1B2C3
Account Number A1B2C3
Invoice Date August 15, 2025

08/15 1ZA1B2C3D4E5F6G7H8 Ground Residential 30301 5 12.5 25.00 -5.00 20.00
Fuel Surcharge 2.00 -0.40 1.60
Receiver: John Smith 123 MAIN STREET, ATLANTA, GA 30301
`

const secondInvoicePage = `Delivery Service Invoice
Page 1 of 1
Invoice Number 0000D4E5F6
Account Number A1B2C3
Invoice Date August 20, 2025

08/18 1ZA1B2C3D4E5F6G7H9 Ground Commercial 60601 4 3.0 12.00 -2.00 10.00
`

func TestEngineRun(t *testing.T) {
	e := New(DefaultConfig(), nil)

	var mu sync.Mutex
	var updates []int
	pages := []invoice.Page{
		{Number: 1, Text: firstInvoicePage},
		{Number: 2, Text: "Consolidated Billing Summary"},
		{Number: 3, Text: secondInvoicePage},
	}
	res, err := e.Run(context.Background(), pages, func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		updates = append(updates, done)
		assert.Equal(t, 3, total)
	})
	require.NoError(t, err)

	assert.Equal(t, 3, res.PagesTotal)
	assert.Len(t, updates, 3)

	require.Len(t, res.Groups, 2)
	assert.Equal(t, 2, res.Shipments())

	first := res.Groups[0]
	assert.Equal(t, "0000A1B2C3", first.Header.InvoiceNumber)
	require.Len(t, first.Shipments, 1)
	sh := first.Shipments[0]
	assert.Equal(t, "1ZA1B2C3D4E5F6G7H8", sh.TrackingNumber)
	assert.Equal(t, "2025-08-15", sh.ShipmentDate)
	assert.Equal(t, 1, sh.PageNumber)
	assert.Equal(t, "0000A1B2C3", sh.InvoiceGroup)

	second := res.Groups[1]
	assert.Equal(t, "0000D4E5F6", second.Header.InvoiceNumber)
	require.Len(t, second.Shipments, 1)
	assert.Equal(t, 3, second.Shipments[0].PageNumber)
}

func TestEngineRunOrdering(t *testing.T) {
	// Many single-shipment pages under one header; concurrent parsing
	// must not reorder shipments.
	pages := []invoice.Page{{Number: 1, Text: firstInvoicePage}}
	trackings := []string{
		"1ZAAAAAAAAAAAAAAAA", "1ZBBBBBBBBBBBBBBBB", "1ZCCCCCCCCCCCCCCCC",
		"1ZDDDDDDDDDDDDDDDD", "1ZEEEEEEEEEEEEEEEE", "1ZFFFFFFFFFFFFFFFF",
	}
	for i, tn := range trackings {
		pages = append(pages, invoice.Page{
			Number: i + 2,
			Text: "continuation of shipment detail for this invoice section\n" +
				"08/15 " + tn + " Ground Commercial 60601 4 3.0 12.00 -2.00 10.00\n" +
				"Fuel Surcharge 1.00 -0.20 0.80\n",
		})
	}

	e := New(Config{Concurrency: 3}, nil)
	res, err := e.Run(context.Background(), pages, nil)
	require.NoError(t, err)

	require.Len(t, res.Groups, 1)
	shipments := res.Groups[0].Shipments
	require.Len(t, shipments, len(trackings)+1)
	for i, tn := range trackings {
		assert.Equal(t, tn, shipments[i+1].TrackingNumber)
		assert.Equal(t, i+2, shipments[i+1].PageNumber)
	}
}

func TestEngineRunNoPages(t *testing.T) {
	e := New(DefaultConfig(), nil)
	_, err := e.Run(context.Background(), nil, nil)
	assert.Error(t, err)
}
