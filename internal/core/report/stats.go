package report

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/artpar/invoicemill/internal/core/invoice"
)

// FieldCoverage reports how often one field was populated.
type FieldCoverage struct {
	Populated  int     `json:"populated"`
	Percentage float64 `json:"percentage"`
}

// Totals sums a charge column across all shipments.
type Totals struct {
	Published float64 `json:"published"`
	Incentive float64 `json:"incentive"`
	Billed    float64 `json:"billed"`
}

// Statistics summarizes one extraction run.
type Statistics struct {
	TotalShipments     int                      `json:"total_shipments"`
	InvoiceCount       int                      `json:"invoice_count"`
	ServiceTypes       map[string]int           `json:"service_types"`
	Zones              map[string]int           `json:"zones"`
	TotalCharges       Totals                   `json:"total_charges"`
	FieldCoverage      map[string]FieldCoverage `json:"field_coverage"`
	SenderCoverage     float64                  `json:"sender_data_coverage"`
	ReceiverCoverage   float64                  `json:"receiver_data_coverage"`
	DirectCoverage     float64                  `json:"direct_extraction_coverage"`
	DirectMergedCount  int                      `json:"direct_merged_count"`
	DirectRecordCount  int                      `json:"direct_record_count"`
	DirectSuccessRate  float64                  `json:"direct_success_rate"`
}

// coverageFields are the fields tracked in per-field coverage.
var coverageFields = []string{
	"tracking_number",
	"shipment_date",
	"service_type",
	"destination_zip",
	"zone",
	"weight",
	"published_charge",
	"incentive_credit",
	"billed_charge",
	"line_total",
	"first_reference",
	"user_id",
	"sender_name",
	"sender_address",
	"receiver_name",
	"receiver_address",
	"fuel_surcharge",
	"residential_surcharge",
	"delivery_area_surcharge",
	"dimensions",
}

// ComputeStatistics builds run statistics from the parsed groups and
// the direct extraction pass.
func ComputeStatistics(groups []*invoice.Group, records []invoice.DirectRecord, mergedCount int) *Statistics {
	stats := &Statistics{
		ServiceTypes:      map[string]int{},
		Zones:             map[string]int{},
		FieldCoverage:     map[string]FieldCoverage{},
		DirectMergedCount: mergedCount,
		DirectRecordCount: len(records),
		DirectSuccessRate: invoice.MergeSuccessRate(groups, records),
	}

	invoices := map[string]bool{}
	populated := map[string]int{}
	senders, receivers, direct := 0, 0, 0

	for _, g := range groups {
		if g.Header.InvoiceNumber != "" {
			invoices[g.Header.InvoiceNumber] = true
		}
		for _, sh := range g.Shipments {
			stats.TotalShipments++
			if sh.ServiceType != "" {
				stats.ServiceTypes[sh.ServiceType]++
			}
			if sh.Zone != 0 {
				stats.Zones[strconv.Itoa(sh.Zone)]++
			}
			if sh.HasLineTotal {
				stats.TotalCharges.Published += sh.LineTotal.Published
				stats.TotalCharges.Incentive += sh.LineTotal.Incentive
				stats.TotalCharges.Billed += sh.LineTotal.Billed
			}
			if sh.SenderName != "" || sh.SenderAddress != "" {
				senders++
			}
			if sh.ReceiverName != "" || sh.ReceiverAddress != "" {
				receivers++
			}
			if sh.DirectApplied {
				direct++
			}
			for _, field := range coverageFields {
				if fieldPopulated(sh, field) {
					populated[field]++
				}
			}
		}
	}

	stats.InvoiceCount = len(invoices)
	total := stats.TotalShipments
	for _, field := range coverageFields {
		cov := FieldCoverage{Populated: populated[field]}
		if total > 0 {
			cov.Percentage = float64(cov.Populated) / float64(total) * 100
		}
		stats.FieldCoverage[field] = cov
	}
	if total > 0 {
		stats.SenderCoverage = float64(senders) / float64(total) * 100
		stats.ReceiverCoverage = float64(receivers) / float64(total) * 100
		stats.DirectCoverage = float64(direct) / float64(total) * 100
	}
	return stats
}

func fieldPopulated(sh *invoice.Shipment, field string) bool {
	switch field {
	case "tracking_number":
		return sh.TrackingNumber != ""
	case "shipment_date":
		return sh.ShipmentDate != ""
	case "service_type":
		return sh.ServiceType != ""
	case "destination_zip":
		return sh.DestinationZip != ""
	case "zone":
		return sh.Zone != 0
	case "weight":
		return sh.Weight != 0
	case "published_charge":
		return sh.BaseCharge.Published != 0
	case "incentive_credit":
		return sh.BaseCharge.Incentive != 0
	case "billed_charge":
		return sh.BaseCharge.Billed != 0
	case "line_total":
		return sh.HasLineTotal
	case "first_reference":
		return sh.FirstReference != ""
	case "user_id":
		return sh.UserID != ""
	case "sender_name":
		return sh.SenderName != ""
	case "sender_address":
		return sh.SenderAddress != ""
	case "receiver_name":
		return sh.ReceiverName != ""
	case "receiver_address":
		return sh.ReceiverAddress != ""
	case "dimensions":
		return sh.Dimensions != ""
	default:
		return !sh.Surcharge(field).IsZero()
	}
}

// WriteStatisticsJSON writes the statistics as indented JSON.
func WriteStatisticsJSON(w io.Writer, stats *Statistics) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stats); err != nil {
		return errors.Wrap(err, "encoding statistics")
	}
	return nil
}
