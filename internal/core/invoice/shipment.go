package invoice

import (
	"regexp"
	"strconv"
	"strings"
)

// =============================================================================
// Domain Types
// =============================================================================

// CurrencyTriple holds the three amounts UPS reports per charge line.
type CurrencyTriple struct {
	Published float64 `json:"published"`
	Incentive float64 `json:"incentive"`
	Billed    float64 `json:"billed"`
}

// IsZero reports whether the triple carries no amounts at all.
func (t CurrencyTriple) IsZero() bool {
	return t.Published == 0 && t.Incentive == 0 && t.Billed == 0
}

// Add returns the component-wise sum of two triples.
func (t CurrencyTriple) Add(o CurrencyTriple) CurrencyTriple {
	return CurrencyTriple{
		Published: t.Published + o.Published,
		Incentive: t.Incentive + o.Incentive,
		Billed:    t.Billed + o.Billed,
	}
}

// InvoiceHeader carries the fields shared by every shipment in one
// invoice group.
type InvoiceHeader struct {
	InvoiceNumber string `json:"invoice_number"`
	AccountNumber string `json:"account_number"`
	ControlID     string `json:"control_id"`
	InvoiceDate   string `json:"invoice_date"`
	ShippedFrom   string `json:"shipped_from"`
}

// Shipment is one parsed shipment record.
type Shipment struct {
	TrackingNumber string `json:"tracking_number"`
	ShipmentDate   string `json:"shipment_date"`
	PickupDate     string `json:"pickup_date,omitempty"`
	ServiceType    string `json:"service_type,omitempty"`
	DestinationZip string `json:"destination_zip,omitempty"`
	OriginZip      string `json:"origin_zip,omitempty"`
	Zone           int    `json:"zone,omitempty"`

	Weight            float64 `json:"weight,omitempty"`
	CustomerWeight    float64 `json:"customer_weight,omitempty"`
	BillableWeight    float64 `json:"billable_weight,omitempty"`
	DimensionalWeight float64 `json:"dimensional_weight,omitempty"`
	Dimensions        string  `json:"dimensions,omitempty"`

	BaseCharge CurrencyTriple `json:"base_charge"`

	// Surcharges holds published/incentive/billed triples keyed by the
	// surcharge field name from the matrix.
	Surcharges map[string]CurrencyTriple `json:"surcharges,omitempty"`

	LineTotal    CurrencyTriple `json:"line_total"`
	HasLineTotal bool           `json:"has_line_total"`

	FirstReference  string `json:"first_reference,omitempty"`
	SecondReference string `json:"second_reference,omitempty"`
	ThirdReference  string `json:"third_reference,omitempty"`
	UserID          string `json:"user_id,omitempty"`
	PurchaseOrder   string `json:"purchase_order,omitempty"`

	SenderName      string `json:"sender_name,omitempty"`
	SenderAddress   string `json:"sender_address,omitempty"`
	ReceiverName    string `json:"receiver_name,omitempty"`
	ReceiverAddress string `json:"receiver_address,omitempty"`

	MessageCodes     string `json:"message_codes,omitempty"`
	NumberOfPackages int    `json:"number_of_packages,omitempty"`

	PageNumber    int    `json:"page_number"`
	InvoiceGroup  string `json:"invoice_group"`
	DirectApplied bool   `json:"direct_extraction_applied"`
}

// Surcharge returns the named surcharge triple, zero if absent.
func (s *Shipment) Surcharge(name string) CurrencyTriple {
	if s.Surcharges == nil {
		return CurrencyTriple{}
	}
	return s.Surcharges[name]
}

// SetSurcharge records a surcharge triple, allocating the map lazily.
func (s *Shipment) SetSurcharge(name string, t CurrencyTriple) {
	if s.Surcharges == nil {
		s.Surcharges = map[string]CurrencyTriple{}
	}
	s.Surcharges[name] = t
}

// lineTotalComponents are the surcharges that contribute to the summed
// line total, matching what appears on the printed invoice total line.
var lineTotalComponents = []string{
	"fuel_surcharge",
	"residential_surcharge",
	"delivery_area_surcharge",
	"large_package_surcharge",
	"additional_handling",
	"saturday_delivery",
	"signature_required",
	"adult_signature_required",
	"address_correction",
	"over_maximum_limits",
	"peak_surcharge",
	"hazmat_surcharge",
	"dry_ice_surcharge",
	"cod_surcharge",
}

// ComputeLineTotal derives the line total from the base charge plus
// contributing surcharges. The total is only recorded when it carries
// a nonzero amount in at least one column.
func (s *Shipment) ComputeLineTotal() {
	total := s.BaseCharge
	for _, name := range lineTotalComponents {
		total = total.Add(s.Surcharge(name))
	}
	if total.Published > 0 || total.Incentive != 0 || total.Billed > 0 {
		s.LineTotal = total
		s.HasLineTotal = true
	}
}

// Group is one invoice's worth of pages and the shipments found on them.
type Group struct {
	Header    InvoiceHeader `json:"header"`
	Pages     []int         `json:"pages"`
	Shipments []*Shipment   `json:"shipments"`
}

// Label is the group identifier used in report rows.
func (g *Group) Label() string {
	if g.Header.InvoiceNumber != "" {
		return g.Header.InvoiceNumber
	}
	if len(g.Pages) > 0 {
		return "pages-" + strconv.Itoa(g.Pages[0])
	}
	return "unknown"
}

// =============================================================================
// Name and Address Validation
// =============================================================================

// invalidNameTerms are tokens that mark a candidate name as invoice
// furniture rather than a person.
var invalidNameTerms = []string{
	"total", "charge", "published", "incentive", "billed", "surcharge",
	"weight", "dimensions", "customer", "fuel", "residential", "commercial",
	"message", "codes", "adjustment", "billing", "correction", "internet-id",
	"shipping", "api", "outbound", "ground", "air", "express", "next", "day",
	"service", "delivery", "pickup", "zone", "tracking", "invoice", "number",
	"date", "account",
}

var companyIndicators = []string{
	"inc", "corp", "llc", "ltd", "company", "co.", "resort", "hotel", "center",
}

var personNameRe = regexp.MustCompile(`^[A-Z][A-Za-z\s.\-']+$`)

// IsValidPersonName reports whether the candidate looks like a personal
// name rather than invoice text or a company.
func IsValidPersonName(name string) bool {
	name = strings.TrimSpace(name)
	if len(name) < 2 {
		return false
	}
	lower := strings.ToLower(name)
	for _, term := range invalidNameTerms {
		if strings.Contains(lower, term) {
			return false
		}
	}
	for _, ind := range companyIndicators {
		if strings.Contains(lower, ind) {
			return false
		}
	}
	if !personNameRe.MatchString(name) {
		return false
	}
	return len(strings.Fields(name)) <= 4
}

var (
	priceRe      = regexp.MustCompile(`\$?[\d,]+\.\d{2}`)
	weightUnitRe = regexp.MustCompile(`\d+(?:\.\d+)?\s*(?:lbs?|oz)\b`)
	dimensionsRe = regexp.MustCompile(`\d+\s*x\s*\d+\s*x\s*\d+\s*(?:in)?`)
	multiSpaceRe = regexp.MustCompile(`\s+`)
)

var invalidNameTermRe = regexp.MustCompile(`(?i)\b(` + strings.Join(invalidNameTerms, "|") + `)\b`)

// CleanPersonName strips charge amounts, weights, dimensions, and known
// invoice terms from a raw name candidate.
func CleanPersonName(name string) string {
	cleaned := invalidNameTermRe.ReplaceAllString(name, " ")
	cleaned = priceRe.ReplaceAllString(cleaned, " ")
	cleaned = weightUnitRe.ReplaceAllString(cleaned, " ")
	cleaned = dimensionsRe.ReplaceAllString(cleaned, " ")
	cleaned = multiSpaceRe.ReplaceAllString(cleaned, " ")
	return strings.Trim(cleaned, " .,:-")
}

var streetKeywords = []string{
	"STREET", "ST", "AVENUE", "AVE", "DRIVE", "DR", "ROAD", "RD",
	"COURT", "CT", "BOULEVARD", "BLVD", "LANE", "LN", "WAY", "PLACE", "PL",
	"CIRCLE", "CIR", "TRAIL", "TRL", "PARKWAY", "PKWY", "HIGHWAY", "HWY",
}

// IsValidStreetAddress reports whether the candidate looks like a US
// street address: starts with a house number and names a street type.
func IsValidStreetAddress(addr string) bool {
	addr = strings.TrimSpace(addr)
	if len(addr) < 5 {
		return false
	}
	if addr[0] < '0' || addr[0] > '9' {
		return false
	}
	for _, token := range strings.Fields(strings.ToUpper(addr)) {
		token = strings.Trim(token, ".,")
		for _, kw := range streetKeywords {
			if token == kw {
				return true
			}
		}
	}
	return false
}

var addressNoiseRe = regexp.MustCompile(`(?i)\b(?:Total|Published|Incentive|Billed|Customer|Weight|Dimensions)\b.*$`)

// CleanStreetAddress removes trailing charge columns and invoice terms
// from an address candidate.
func CleanStreetAddress(addr string) string {
	cleaned := priceRe.ReplaceAllString(addr, " ")
	cleaned = addressNoiseRe.ReplaceAllString(cleaned, " ")
	cleaned = multiSpaceRe.ReplaceAllString(cleaned, " ")
	return strings.Trim(cleaned, " .,:-")
}
