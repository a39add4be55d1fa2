package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/artpar/invoicemill/internal/core/invoice"
)

const sheetName = "Shipments"

// Structural columns precede the shipment fields so grouped rows read
// top to bottom like the printed invoice.
var structuralColumns = []string{
	"ROW_TYPE",
	"INVOICE_GROUP_HEADER",
	"SHIPMENT_INDEX",
	"SHIPMENT_COUNT",
	"TOTAL_SHIPMENTS",
}

var shipmentColumns = []string{
	"invoice_number",
	"tracking_number",
	"account_number",
	"invoice_date",
	"destination_zip",
	"page_number",
	"invoice_group",
	"weight",
	"zone",
	"service_type",
	"published_charge",
	"incentive_credit",
	"billed_charge",
	"shipment_date",
	"pickup_date",
	"sender_name",
	"sender_address",
	"receiver_name",
	"receiver_address",
	"direct_extraction_applied",
}

var trailingColumns = []string{
	"first_reference",
	"second_reference",
	"third_reference",
	"user_id",
	"purchase_order",
	"customer_weight",
	"billable_weight",
	"dimensional_weight",
	"dimensions",
	"number_of_packages",
	"message_codes",
}

// Columns returns the full XLSX column order: structural columns,
// core shipment fields, surcharge quadruples, the line total quadruple,
// then the remaining detail fields.
func Columns(surchargeNames []string) []string {
	cols := append([]string{}, structuralColumns...)
	cols = append(cols, shipmentColumns...)
	for _, name := range surchargeNames {
		cols = append(cols, name, name+"_published", name+"_incentive", name+"_billed")
	}
	cols = append(cols, "line_total", "line_total_published", "line_total_incentive", "line_total_billed")
	cols = append(cols, trailingColumns...)
	return cols
}

// FormatCurrency renders an amount the way the report shows money.
func FormatCurrency(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

// FormatWeight renders a weight with its unit.
func FormatWeight(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + " lbs"
}

// FormatTriple renders a charge triple as one readable cell.
func FormatTriple(t invoice.CurrencyTriple) string {
	return fmt.Sprintf("Published: %s, Incentive: %s, Billed: %s",
		FormatCurrency(t.Published), FormatCurrency(t.Incentive), FormatCurrency(t.Billed))
}

// WriteXLSX renders all groups into a styled workbook. Each invoice
// group gets a header row followed by its shipment rows.
func WriteXLSX(w io.Writer, groups []*invoice.Group, surchargeNames []string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return errors.Wrap(err, "rename sheet")
	}

	cols := Columns(surchargeNames)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"2F5597"}, Pattern: 1},
	})
	if err != nil {
		return errors.Wrap(err, "header style")
	}
	groupStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "1F4788"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"E8F1FF"}, Pattern: 1},
	})
	if err != nil {
		return errors.Wrap(err, "group style")
	}
	altStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"F2F2F2"}, Pattern: 1},
	})
	if err != nil {
		return errors.Wrap(err, "alternate style")
	}
	directStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FFF2CC"}, Pattern: 1},
	})
	if err != nil {
		return errors.Wrap(err, "direct style")
	}

	for i, col := range cols {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return errors.Wrap(err, "header cell name")
		}
		if err := f.SetCellValue(sheetName, cell, col); err != nil {
			return errors.Wrap(err, "set header cell")
		}
	}
	lastCol, err := excelize.CoordinatesToCellName(len(cols), 1)
	if err != nil {
		return errors.Wrap(err, "last header cell")
	}
	if err := f.SetCellStyle(sheetName, "A1", lastCol, headerStyle); err != nil {
		return errors.Wrap(err, "style header row")
	}

	totalShipments := 0
	for _, g := range groups {
		totalShipments += len(g.Shipments)
	}

	rowNum := 2
	for _, g := range groups {
		if err := writeGroupHeaderRow(f, cols, rowNum, g, totalShipments, groupStyle); err != nil {
			return err
		}
		rowNum++
		for i, sh := range g.Shipments {
			values := shipmentRow(g, sh, i+1, len(g.Shipments), totalShipments, surchargeNames)
			if err := writeRow(f, cols, rowNum, values); err != nil {
				return err
			}
			if i%2 == 1 {
				endCell, _ := excelize.CoordinatesToCellName(len(cols), rowNum)
				startCell, _ := excelize.CoordinatesToCellName(1, rowNum)
				if err := f.SetCellStyle(sheetName, startCell, endCell, altStyle); err != nil {
					return errors.Wrap(err, "style alternate row")
				}
			}
			if sh.DirectApplied {
				if err := highlightAddressCells(f, cols, rowNum, directStyle); err != nil {
					return err
				}
			}
			rowNum++
		}
	}

	if err := applyColumnWidths(f, cols); err != nil {
		return err
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		XSplit:      5,
		YSplit:      1,
		TopLeftCell: "F2",
		ActivePane:  "bottomRight",
	}); err != nil {
		return errors.Wrap(err, "freeze panes")
	}

	if _, err := f.WriteTo(w); err != nil {
		return errors.Wrap(err, "write workbook")
	}
	return nil
}

func writeGroupHeaderRow(f *excelize.File, cols []string, rowNum int, g *invoice.Group, totalShipments, style int) error {
	values := map[string]any{
		"ROW_TYPE":             "INVOICE_HEADER",
		"INVOICE_GROUP_HEADER": "Invoice: " + g.Label(),
		"SHIPMENT_COUNT":       len(g.Shipments),
		"TOTAL_SHIPMENTS":      fmt.Sprintf("Total Shipments: %d", totalShipments),
		"invoice_number":       g.Header.InvoiceNumber,
		"account_number":       g.Header.AccountNumber,
		"invoice_date":         g.Header.InvoiceDate,
		"invoice_group":        g.Label(),
	}
	if err := writeRow(f, cols, rowNum, values); err != nil {
		return err
	}
	startCell, _ := excelize.CoordinatesToCellName(1, rowNum)
	endCell, _ := excelize.CoordinatesToCellName(len(cols), rowNum)
	return errors.Wrap(f.SetCellStyle(sheetName, startCell, endCell, style), "style group row")
}

func shipmentRow(g *invoice.Group, sh *invoice.Shipment, index, count, total int, surchargeNames []string) map[string]any {
	values := map[string]any{
		"ROW_TYPE":                  fmt.Sprintf("Shipment %d", index),
		"SHIPMENT_INDEX":            index,
		"SHIPMENT_COUNT":            count,
		"TOTAL_SHIPMENTS":           total,
		"invoice_number":            g.Header.InvoiceNumber,
		"tracking_number":           sh.TrackingNumber,
		"account_number":            g.Header.AccountNumber,
		"invoice_date":              g.Header.InvoiceDate,
		"destination_zip":           sh.DestinationZip,
		"page_number":               sh.PageNumber,
		"invoice_group":             sh.InvoiceGroup,
		"service_type":              sh.ServiceType,
		"shipment_date":             sh.ShipmentDate,
		"pickup_date":               sh.PickupDate,
		"sender_name":               sh.SenderName,
		"sender_address":            sh.SenderAddress,
		"receiver_name":             sh.ReceiverName,
		"receiver_address":          sh.ReceiverAddress,
		"direct_extraction_applied": sh.DirectApplied,
		"first_reference":           sh.FirstReference,
		"second_reference":          sh.SecondReference,
		"third_reference":           sh.ThirdReference,
		"user_id":                   sh.UserID,
		"purchase_order":            sh.PurchaseOrder,
		"dimensions":                sh.Dimensions,
		"message_codes":             sh.MessageCodes,
		"published_charge":          FormatCurrency(sh.BaseCharge.Published),
		"incentive_credit":          FormatCurrency(sh.BaseCharge.Incentive),
		"billed_charge":             FormatCurrency(sh.BaseCharge.Billed),
	}
	if sh.Weight != 0 {
		values["weight"] = FormatWeight(sh.Weight)
	}
	if sh.Zone != 0 {
		values["zone"] = sh.Zone
	}
	if sh.CustomerWeight != 0 {
		values["customer_weight"] = FormatWeight(sh.CustomerWeight)
	}
	if sh.BillableWeight != 0 {
		values["billable_weight"] = FormatWeight(sh.BillableWeight)
	}
	if sh.DimensionalWeight != 0 {
		values["dimensional_weight"] = FormatWeight(sh.DimensionalWeight)
	}
	if sh.NumberOfPackages != 0 {
		values["number_of_packages"] = sh.NumberOfPackages
	}
	for _, name := range surchargeNames {
		t := sh.Surcharge(name)
		if t.IsZero() {
			continue
		}
		values[name] = FormatTriple(t)
		values[name+"_published"] = t.Published
		values[name+"_incentive"] = t.Incentive
		values[name+"_billed"] = t.Billed
	}
	if sh.HasLineTotal {
		values["line_total"] = FormatTriple(sh.LineTotal)
		values["line_total_published"] = sh.LineTotal.Published
		values["line_total_incentive"] = sh.LineTotal.Incentive
		values["line_total_billed"] = sh.LineTotal.Billed
	}
	return values
}

func writeRow(f *excelize.File, cols []string, rowNum int, values map[string]any) error {
	for i, col := range cols {
		v, ok := values[col]
		if !ok {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
		if err != nil {
			return errors.Wrap(err, "cell name")
		}
		if err := f.SetCellValue(sheetName, cell, v); err != nil {
			return errors.Wrapf(err, "set cell %s", cell)
		}
	}
	return nil
}

func highlightAddressCells(f *excelize.File, cols []string, rowNum, style int) error {
	for i, col := range cols {
		switch col {
		case "sender_name", "sender_address", "receiver_name", "receiver_address":
			cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
			if err != nil {
				return errors.Wrap(err, "highlight cell name")
			}
			if err := f.SetCellStyle(sheetName, cell, cell, style); err != nil {
				return errors.Wrap(err, "highlight address cell")
			}
		}
	}
	return nil
}

func applyColumnWidths(f *excelize.File, cols []string) error {
	widths := map[string]float64{
		"ROW_TYPE":             14,
		"INVOICE_GROUP_HEADER": 24,
		"tracking_number":      24,
		"invoice_number":       16,
		"service_type":         22,
		"sender_name":          20,
		"sender_address":       34,
		"receiver_name":        20,
		"receiver_address":     34,
		"line_total":           40,
	}
	for i, col := range cols {
		width := 12.0
		if w, ok := widths[col]; ok {
			width = w
		}
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return errors.Wrap(err, "column name")
		}
		if err := f.SetColWidth(sheetName, name, name, width); err != nil {
			return errors.Wrap(err, "set column width")
		}
	}
	return nil
}
