// Package report renders parsed invoice data into the exported
// spreadsheet formats and computes run statistics.
package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/artpar/invoicemill/internal/core/invoice"
)

// csvColumns is the fixed column order of the CSV export. The CSV
// format is the compact per-shipment view.
var csvColumns = []string{
	"invoice_number",
	"account_number",
	"invoice_date",
	"shipment_date",
	"tracking_number",
	"receiver_name",
	"receiver_address",
	"page_number",
}

// WriteCSV writes one row per shipment across all groups.
func WriteCSV(w io.Writer, groups []*invoice.Group) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvColumns); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for _, g := range groups {
		for _, sh := range g.Shipments {
			row := []string{
				g.Header.InvoiceNumber,
				g.Header.AccountNumber,
				g.Header.InvoiceDate,
				sh.ShipmentDate,
				sh.TrackingNumber,
				sh.ReceiverName,
				sh.ReceiverAddress,
				strconv.Itoa(sh.PageNumber),
			}
			if err := cw.Write(row); err != nil {
				return errors.Wrapf(err, "write csv row for %s", sh.TrackingNumber)
			}
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}
