package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDirectExplicit(t *testing.T) {
	text := `08/15 1ZA1B2C3D4E5F6G7H8 Ground
Sender: Acme Shipping 100 DOCK RD MEMPHIS TN 38101
Receiver: John Smith 123 MAIN ST ATLANTA GA 30301
08/16 1ZA1B2C3D4E5F6G7H9 Ground
Receiver: Jane Doe 45 OAK AVE CHICAGO IL 60601`

	records := ExtractDirect(text)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "1ZA1B2C3D4E5F6G7H8", first.TrackingNumber)
	assert.Equal(t, "Acme Shipping", first.SenderName)
	assert.Contains(t, first.SenderAddress, "100 DOCK RD")
	assert.Equal(t, "John Smith", first.ReceiverName)
	assert.Contains(t, first.ReceiverAddress, "123 MAIN ST")

	second := records[1]
	assert.Equal(t, "1ZA1B2C3D4E5F6G7H9", second.TrackingNumber)
	assert.Equal(t, "Jane Doe", second.ReceiverName)
	assert.Contains(t, second.ReceiverAddress, "45 OAK AVE")
}

func TestExtractDirectNoTracking(t *testing.T) {
	assert.Nil(t, ExtractDirect("nothing interesting here"))
}

func TestExtractDirectSkipsEmptyRecords(t *testing.T) {
	records := ExtractDirect("08/15 1ZA1B2C3D4E5F6G7H8 25.00 -5.00 20.00")
	assert.Empty(t, records)
}

func TestMergeDirect(t *testing.T) {
	groups := []*Group{{
		Shipments: []*Shipment{
			{TrackingNumber: "1ZA1B2C3D4E5F6G7H8", ReceiverName: "garbled"},
			{TrackingNumber: "1ZA1B2C3D4E5F6G7H9"},
			{TrackingNumber: "1ZXXXXXXXXXXXXXXXX"},
		},
	}}
	records := []DirectRecord{
		{TrackingNumber: "1ZA1B2C3D4E5F6G7H8", ReceiverName: "John Smith", ReceiverAddress: "123 MAIN ST"},
		{TrackingNumber: "1ZA1B2C3D4E5F6G7H8", ReceiverName: "duplicate ignored"},
		{TrackingNumber: "1ZA1B2C3D4E5F6G7H9", SenderName: "Acme Shipping"},
	}

	merged := MergeDirect(groups, records)
	assert.Equal(t, 2, merged)

	first := groups[0].Shipments[0]
	assert.Equal(t, "John Smith", first.ReceiverName)
	assert.Equal(t, "123 MAIN ST", first.ReceiverAddress)
	assert.True(t, first.DirectApplied)

	second := groups[0].Shipments[1]
	assert.Equal(t, "Acme Shipping", second.SenderName)
	assert.True(t, second.DirectApplied)

	third := groups[0].Shipments[2]
	assert.False(t, third.DirectApplied)
}

func TestMergeDirectDuplicateTracking(t *testing.T) {
	// The same package can appear on multiple invoice lines. One direct
	// record fills every occurrence, and each filled occurrence counts.
	groups := []*Group{{
		Shipments: []*Shipment{
			{TrackingNumber: "1ZA1B2C3D4E5F6G7H8"},
			{TrackingNumber: "1ZA1B2C3D4E5F6G7H8"},
		},
	}}
	records := []DirectRecord{
		{TrackingNumber: "1ZA1B2C3D4E5F6G7H8", ReceiverName: "John Smith"},
	}

	merged := MergeDirect(groups, records)
	assert.Equal(t, 2, merged)
	for _, sh := range groups[0].Shipments {
		assert.Equal(t, "John Smith", sh.ReceiverName)
		assert.True(t, sh.DirectApplied)
	}
}

func TestMergeSuccessRate(t *testing.T) {
	groups := []*Group{{
		Shipments: []*Shipment{
			{TrackingNumber: "1ZA1B2C3D4E5F6G7H8"},
			{TrackingNumber: "1ZA1B2C3D4E5F6G7H9"},
		},
	}}
	records := []DirectRecord{{TrackingNumber: "1ZA1B2C3D4E5F6G7H8"}}
	assert.InDelta(t, 50.0, MergeSuccessRate(groups, records), 0.001)
	assert.Zero(t, MergeSuccessRate(nil, records))
}
