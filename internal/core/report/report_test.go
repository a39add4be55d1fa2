package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/artpar/invoicemill/internal/core/invoice"
)

func testGroups() []*invoice.Group {
	sh1 := &invoice.Shipment{
		TrackingNumber:  "1ZA1B2C3D4E5F6G7H8",
		ShipmentDate:    "2025-08-15",
		ServiceType:     "Ground Residential",
		DestinationZip:  "30301",
		Zone:            5,
		Weight:          12.5,
		BaseCharge:      invoice.CurrencyTriple{Published: 25, Incentive: -5, Billed: 20},
		ReceiverName:    "John Smith",
		ReceiverAddress: "123 MAIN ST",
		PageNumber:      1,
		InvoiceGroup:    "INV1",
		DirectApplied:   true,
	}
	sh1.SetSurcharge("fuel_surcharge", invoice.CurrencyTriple{Published: 2, Incentive: -0.4, Billed: 1.6})
	sh1.ComputeLineTotal()

	sh2 := &invoice.Shipment{
		TrackingNumber: "1ZA1B2C3D4E5F6G7H9",
		ShipmentDate:   "2025-08-16",
		ServiceType:    "Ground Commercial",
		PageNumber:     2,
		InvoiceGroup:   "INV1",
	}

	return []*invoice.Group{{
		Header: invoice.InvoiceHeader{
			InvoiceNumber: "INV1",
			AccountNumber: "A1B2C3",
			InvoiceDate:   "August 15, 2025",
		},
		Pages:     []int{1, 2},
		Shipments: []*invoice.Shipment{sh1, sh2},
	}}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testGroups()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, csvColumns, rows[0])
	assert.Equal(t, []string{
		"INV1", "A1B2C3", "August 15, 2025", "2025-08-15",
		"1ZA1B2C3D4E5F6G7H8", "John Smith", "123 MAIN ST", "1",
	}, rows[1])
	assert.Equal(t, "1ZA1B2C3D4E5F6G7H9", rows[2][4])
}

func TestWriteCSVNoShipments(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, strings.Join(csvColumns, ",")+"\n", buf.String())
}

func TestColumns(t *testing.T) {
	cols := Columns([]string{"fuel_surcharge"})
	assert.Equal(t, "ROW_TYPE", cols[0])
	assert.Contains(t, cols, "tracking_number")
	assert.Contains(t, cols, "fuel_surcharge")
	assert.Contains(t, cols, "fuel_surcharge_published")
	assert.Contains(t, cols, "fuel_surcharge_incentive")
	assert.Contains(t, cols, "fuel_surcharge_billed")
	assert.Contains(t, cols, "line_total_billed")
	assert.Equal(t, "message_codes", cols[len(cols)-1])
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "$12.50", FormatCurrency(12.5))
	assert.Equal(t, "$-5.00", FormatCurrency(-5))
	assert.Equal(t, "12.5 lbs", FormatWeight(12.5))
	assert.Equal(t,
		"Published: $2.00, Incentive: $-0.40, Billed: $1.60",
		FormatTriple(invoice.CurrencyTriple{Published: 2, Incentive: -0.4, Billed: 1.6}))
}

func TestWriteXLSX(t *testing.T) {
	surcharges := invoice.NewMatrix().SurchargeNames()
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, testGroups(), surcharges))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	// Header, group header, two shipments.
	require.Len(t, rows, 4)

	assert.Equal(t, "ROW_TYPE", rows[0][0])
	assert.Equal(t, "INVOICE_HEADER", rows[1][0])
	assert.Equal(t, "Invoice: INV1", rows[1][1])
	assert.Equal(t, "Shipment 1", rows[2][0])
	assert.Equal(t, "Shipment 2", rows[3][0])

	trackingCol := -1
	for i, col := range rows[0] {
		if col == "tracking_number" {
			trackingCol = i
			break
		}
	}
	require.GreaterOrEqual(t, trackingCol, 0)
	assert.Equal(t, "1ZA1B2C3D4E5F6G7H8", rows[2][trackingCol])
}

func TestComputeStatistics(t *testing.T) {
	groups := testGroups()
	records := []invoice.DirectRecord{{TrackingNumber: "1ZA1B2C3D4E5F6G7H8"}}
	stats := ComputeStatistics(groups, records, 1)

	assert.Equal(t, 2, stats.TotalShipments)
	assert.Equal(t, 1, stats.InvoiceCount)
	assert.Equal(t, 1, stats.ServiceTypes["Ground Residential"])
	assert.Equal(t, 1, stats.ServiceTypes["Ground Commercial"])
	assert.Equal(t, 1, stats.Zones["5"])
	assert.InDelta(t, 27.0, stats.TotalCharges.Published, 0.001)
	assert.InDelta(t, -5.4, stats.TotalCharges.Incentive, 0.001)
	assert.InDelta(t, 21.6, stats.TotalCharges.Billed, 0.001)

	cov := stats.FieldCoverage["tracking_number"]
	assert.Equal(t, 2, cov.Populated)
	assert.InDelta(t, 100.0, cov.Percentage, 0.001)

	assert.InDelta(t, 50.0, stats.ReceiverCoverage, 0.001)
	assert.InDelta(t, 50.0, stats.DirectCoverage, 0.001)
	assert.InDelta(t, 50.0, stats.DirectSuccessRate, 0.001)
	assert.Equal(t, 1, stats.DirectMergedCount)
	assert.Equal(t, 1, stats.DirectRecordCount)
}

func TestComputeStatisticsEmpty(t *testing.T) {
	stats := ComputeStatistics(nil, nil, 0)
	assert.Zero(t, stats.TotalShipments)
	assert.Zero(t, stats.SenderCoverage)
	assert.Zero(t, stats.DirectSuccessRate)
}
