// Package invoice contains the pure parsing logic for UPS Delivery
// Service Invoice documents. It has no I/O dependencies; callers feed
// page text in and get structured shipments out.
package invoice

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// =============================================================================
// Field Definitions
// =============================================================================

// DataType describes how a field's raw match is interpreted.
type DataType string

const (
	TypeString         DataType = "string"
	TypeFloat          DataType = "float"
	TypeInteger        DataType = "integer"
	TypeDate           DataType = "date"
	TypeCurrency       DataType = "currency"
	TypeCurrencyTriple DataType = "currency_triple"
)

// FieldDefinition describes one extractable invoice field: the patterns
// that locate it in page text, how to interpret the match, and where it
// belongs in report output.
type FieldDefinition struct {
	Name        string
	DisplayName string
	Patterns    []*regexp.Regexp
	Type        DataType
	Category    string
	Required    bool
	Validation  *regexp.Regexp
	Priority    int // 1 = extracted first
}

var (
	trackingRe = regexp.MustCompile(`^1Z[A-Z0-9]{16}$`)
	zipRe      = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
)

func re(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)` + pattern)
}

// surchargeKinds lists every surcharge tracked as a published/incentive/
// billed triple, in report order. The label regex precedes the three
// amounts on the invoice line.
var surchargeKinds = []struct {
	name    string
	display string
	label   string
}{
	{"fuel_surcharge", "Fuel Surcharge", `Fuel\s+Surcharge`},
	{"residential_surcharge", "Residential Surcharge", `Residential\s+Surcharge`},
	{"delivery_area_surcharge", "Delivery Area Surcharge", `Delivery\s+Area\s+Surcharge(?:\s*-\s*(?:Extended|Remote))?`},
	{"large_package_surcharge", "Large Package Surcharge", `Large\s+Package\s+Surcharge`},
	{"additional_handling", "Additional Handling", `Additional\s+Handling`},
	{"saturday_delivery", "Saturday Delivery", `Saturday\s+Delivery`},
	{"saturday_pickup", "Saturday Pickup", `Saturday\s+Pickup`},
	{"signature_required", "Signature Required", `Signature\s+(?:Required|Option)`},
	{"adult_signature_required", "Adult Signature Required", `Adult\s+Signature\s+Required`},
	{"direct_signature_required", "Direct Signature Required", `Direct\s+Signature\s+Required`},
	{"address_correction", "Address Correction", `Address\s+Correction(?:\s+Fee)?`},
	{"over_maximum_limits", "Over Maximum Limits", `Over\s+Maximum\s+Limits`},
	{"peak_surcharge", "Peak Surcharge", `Peak\s+(?:Season\s+)?Surcharge`},
	{"holiday_surcharge", "Holiday Surcharge", `Holiday\s+Surcharge`},
	{"hazmat_surcharge", "Hazmat Surcharge", `(?:Hazmat|Hazardous\s+Materials?)\s*(?:Fee|Surcharge)`},
	{"dry_ice_surcharge", "Dry Ice Surcharge", `Dry\s+Ice\s*(?:Fee|Surcharge)`},
	{"declared_value_charge", "Declared Value Charge", `Declared\s+Value\s*(?:Charge|Fee)`},
	{"cod_surcharge", "COD Surcharge", `(?:COD|Cash\s+on\s+Delivery)\s*(?:Fee|Surcharge)`},
	{"carbon_neutral", "Carbon Neutral", `Carbon\s+Neutral`},
	{"lift_gate_surcharge", "Lift Gate Surcharge", `Lift\s+Gate\s*(?:Fee|Surcharge)`},
	{"inside_pickup", "Inside Pickup", `Inside\s+Pickup`},
	{"inside_delivery", "Inside Delivery", `Inside\s+Delivery`},
	{"call_tag_surcharge", "Call Tag Surcharge", `Call\s+Tag\s*(?:Fee|Surcharge)`},
	{"quantum_view", "Quantum View", `Quantum\s+View\s*(?:Notify|Manage)?`},
	{"ups_premium_care", "UPS Premium Care", `UPS\s+Premium\s+Care`},
	{"missing_pld_fee", "Missing PLD Fee", `Missing\s+PLD\s+Fee`},
}

const tripleAmounts = `\s+([\d,]+\.\d{2})\s*(-?[\d,]+\.\d{2})\s+([\d,]+\.\d{2})`

// Matrix is the full UPS field matrix. The map key is the field name.
type Matrix struct {
	fields        map[string]*FieldDefinition
	categoryOrder []string
}

// NewMatrix builds the field matrix with compiled patterns.
func NewMatrix() *Matrix {
	fields := map[string]*FieldDefinition{}

	add := func(f *FieldDefinition) { fields[f.Name] = f }

	add(&FieldDefinition{
		Name: "invoice_number", DisplayName: "Invoice Number",
		Patterns: []*regexp.Regexp{
			re(`Invoice\s+Number\s+([0-9A-Z]{10,})`),
			re(`Delivery\s+Service\s+Invoice.*?([0-9A-Z]{10,})`),
		},
		Type: TypeString, Category: CategoryInvoiceHeader, Required: true, Priority: 1,
	})
	add(&FieldDefinition{
		Name: "account_number", DisplayName: "Account Number",
		Patterns: []*regexp.Regexp{
			re(`Account\s+Number\s*([A-Z0-9]{4,})`),
			re(`AccountNumber\s*([A-Z0-9]{4,})`),
		},
		Type: TypeString, Category: CategoryInvoiceHeader, Required: true, Priority: 1,
	})
	add(&FieldDefinition{
		Name: "control_id", DisplayName: "Control ID",
		Patterns: []*regexp.Regexp{
			re(`Control\s+ID\s+([A-Z0-9#-]{2,})`),
			re(`Control\s*ID\s*:\s*([A-Z0-9#-]{2,})`),
		},
		Type: TypeString, Category: CategoryInvoiceHeader, Priority: 2,
	})
	add(&FieldDefinition{
		Name: "invoice_date", DisplayName: "Invoice Date",
		Patterns: []*regexp.Regexp{
			re(`Invoice\s+Date\s+((?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},\s+\d{4})`),
			re(`Invoice\s+Date\s+(\d{1,2}/\d{1,2}/\d{4})`),
		},
		Type: TypeDate, Category: CategoryInvoiceHeader, Priority: 1,
	})
	add(&FieldDefinition{
		Name: "shipped_from", DisplayName: "Shipped From",
		Patterns: []*regexp.Regexp{
			re(`Shipped\s+from:\s*([^\n]+)`),
			re(`Ship\s+From:\s*([^\n]+)`),
		},
		Type: TypeString, Category: CategoryInvoiceHeader, Priority: 2,
	})

	add(&FieldDefinition{
		Name: "tracking_number", DisplayName: "Tracking Number",
		Patterns:   []*regexp.Regexp{re(`(1Z[A-Z0-9]{16})`)},
		Type:       TypeString,
		Category:   CategoryShipmentCore,
		Required:   true,
		Validation: trackingRe,
		Priority:   1,
	})
	add(&FieldDefinition{
		Name: "shipment_date", DisplayName: "Shipment Date",
		Patterns: []*regexp.Regexp{
			re(`Ship\s+Date:?\s*(\d{1,2}/\d{1,2}(?:/\d{2,4})?)`),
			re(`(\d{2}/\d{2}(?:/\d{2,4})?)`),
		},
		Type: TypeDate, Category: CategoryShipmentCore, Required: true, Priority: 1,
	})
	add(&FieldDefinition{
		Name: "pickup_date", DisplayName: "Pickup Date",
		Patterns: []*regexp.Regexp{
			re(`Pickup\s+Date:?\s*(\d{1,2}/\d{1,2}(?:/\d{2,4})?)`),
			re(`(\d{2}/\d{2}(?:/\d{2,4})?)`),
		},
		Type: TypeDate, Category: CategoryShipmentCore, Priority: 1,
	})

	add(&FieldDefinition{
		Name: "service_type", DisplayName: "Service Type",
		Patterns: []*regexp.Regexp{
			re(`(UPS\s+Next\s+Day\s+Air\s+Early\s*(?:A\.?M\.?)?)`),
			re(`(UPS\s+Next\s+Day\s+Air\s+Saver)`),
			re(`(Next\s+Day\s+Air\s+Residential)`),
			re(`(UPS\s+Next\s+Day\s+Air)`),
			re(`(Next\s+Day\s+Air)`),
			re(`(UPS\s+2nd\s+Day\s+Air\s+A\.?M\.?)`),
			re(`(2nd\s+Day\s+Air\s+Residential)`),
			re(`(UPS\s+2nd\s+Day\s+Air)`),
			re(`(2nd\s+Day\s+Air)`),
			re(`(UPS\s+3\s+Day\s+Select)`),
			re(`(3\s+Day\s+Select)`),
			re(`(UPS\s+Ground\s+Residential)`),
			re(`(Ground\s+Residential)`),
			re(`(UPS\s+Ground\s+Commercial)`),
			re(`(Ground\s+Commercial)`),
			re(`(UPS\s+Ground)`),
			re(`(Ground)`),
			re(`(UPS\s+Standard)`),
			re(`(UPS\s+Express\s+Plus)`),
			re(`(UPS\s+Express)`),
			re(`(UPS\s+Expedited)`),
			re(`(UPS\s+Saver)`),
		},
		Type: TypeString, Category: CategoryServiceInfo, Priority: 1,
	})

	add(&FieldDefinition{
		Name: "destination_zip", DisplayName: "Destination ZIP",
		Patterns:   []*regexp.Regexp{re(`(\d{5}(?:-\d{4})?)`)},
		Type:       TypeString,
		Category:   CategoryGeographic,
		Validation: zipRe,
		Priority:   1,
	})
	add(&FieldDefinition{
		Name: "origin_zip", DisplayName: "Origin ZIP",
		Patterns: []*regexp.Regexp{
			re(`Origin\s*ZIP:?\s*(\d{5}(?:-\d{4})?)`),
			re(`From\s*ZIP:?\s*(\d{5}(?:-\d{4})?)`),
		},
		Type: TypeString, Category: CategoryGeographic, Priority: 2,
	})
	add(&FieldDefinition{
		Name: "zone", DisplayName: "Zone",
		Patterns: []*regexp.Regexp{
			re(`Zone\s*(\d{1,3})`),
			re(`\b(\d{1,3})\s+\d+(?:\.\d+)?\s+[\d,]+\.\d{2}`),
		},
		Type: TypeInteger, Category: CategoryGeographic, Priority: 1,
	})

	add(&FieldDefinition{
		Name: "weight", DisplayName: "Weight",
		Patterns: []*regexp.Regexp{
			re(`Weight:?\s*(\d+(?:\.\d+)?)`),
			re(`(\d+(?:\.\d+)?)\s*(?:lb|lbs)?\s+[\d,]+\.\d{2}`),
		},
		Type: TypeFloat, Category: CategoryWeightDims, Priority: 1,
	})
	add(&FieldDefinition{
		Name: "customer_weight", DisplayName: "Customer Weight",
		Patterns: []*regexp.Regexp{
			re(`Customer\s+Weight\s+(\d+(?:\.\d+)?)`),
			re(`Cust\s*Wt:?\s*(\d+(?:\.\d+)?)`),
		},
		Type: TypeFloat, Category: CategoryWeightDims, Priority: 2,
	})
	add(&FieldDefinition{
		Name: "billable_weight", DisplayName: "Billable Weight",
		Patterns: []*regexp.Regexp{re(`Billable\s+Weight:?\s*(\d+(?:\.\d+)?)`)},
		Type:     TypeFloat, Category: CategoryWeightDims, Priority: 2,
	})
	add(&FieldDefinition{
		Name: "dimensional_weight", DisplayName: "Dimensional Weight",
		Patterns: []*regexp.Regexp{
			re(`Dimensional\s+Weight:?\s*(\d+(?:\.\d+)?)`),
			re(`Dim\s*Wt:?\s*(\d+(?:\.\d+)?)`),
		},
		Type: TypeFloat, Category: CategoryWeightDims, Priority: 2,
	})
	add(&FieldDefinition{
		Name: "dimensions", DisplayName: "Package Dimensions",
		Patterns: []*regexp.Regexp{
			re(`Customer\s+Entered\s+Dimensions\s*=\s*([^\n]+)`),
			re(`Dimensions\s*=\s*([^\n]+)`),
			re(`(\d+\s*x\s*\d+\s*x\s*\d+\s*in)`),
		},
		Type: TypeString, Category: CategoryWeightDims, Priority: 2,
	})

	add(&FieldDefinition{
		Name: "published_charge", DisplayName: "Published Charge",
		Patterns: []*regexp.Regexp{
			re(`Published:?\s*([\d,]+\.\d{2})`),
			re(`([\d,]+\.\d{2})\s*-?[\d,]+\.\d{2}\s+[\d,]+\.\d{2}`),
		},
		Type: TypeCurrency, Category: CategoryBaseCharges, Priority: 1,
	})
	add(&FieldDefinition{
		Name: "incentive_credit", DisplayName: "Incentive Credit",
		Patterns: []*regexp.Regexp{
			re(`Incentive:?\s*(-?[\d,]+\.\d{2})`),
			re(`[\d,]+\.\d{2}\s*(-[\d,]+\.\d{2})\s+[\d,]+\.\d{2}`),
		},
		Type: TypeCurrency, Category: CategoryBaseCharges, Priority: 1,
	})
	add(&FieldDefinition{
		Name: "billed_charge", DisplayName: "Billed Charge",
		Patterns: []*regexp.Regexp{
			re(`Billed:?\s*([\d,]+\.\d{2})`),
			re(`[\d,]+\.\d{2}\s*-?[\d,]+\.\d{2}\s+([\d,]+\.\d{2})(?:\s|$)`),
		},
		Type: TypeCurrency, Category: CategoryBaseCharges, Priority: 1,
	})
	add(&FieldDefinition{
		Name: "net_charge", DisplayName: "Net Charge",
		Patterns: []*regexp.Regexp{re(`Net\s*(?:Charge)?:?\s*([\d,]+\.\d{2})`)},
		Type:     TypeCurrency, Category: CategoryBaseCharges, Priority: 2,
	})

	for _, sk := range surchargeKinds {
		add(&FieldDefinition{
			Name:        sk.name,
			DisplayName: sk.display,
			Patterns:    []*regexp.Regexp{re(sk.label + tripleAmounts)},
			Type:        TypeCurrencyTriple,
			Category:    CategorySurcharges,
			Priority:    2,
		})
	}

	add(&FieldDefinition{
		Name: "line_total", DisplayName: "Line Total",
		Patterns: []*regexp.Regexp{re(`(?:Line\s+)?Total` + tripleAmounts)},
		Type:     TypeCurrencyTriple, Category: CategoryLineTotals, Priority: 1,
	})

	add(&FieldDefinition{
		Name: "first_reference", DisplayName: "1st Reference",
		Patterns: []*regexp.Regexp{
			re(`1st\s+ref:?\s*([A-Za-z0-9_-]+)`),
			re(`Ref\s*1:?\s*([A-Za-z0-9_-]+)`),
		},
		Type: TypeString, Category: CategoryReferences, Priority: 2,
	})
	add(&FieldDefinition{
		Name: "second_reference", DisplayName: "2nd Reference",
		Patterns: []*regexp.Regexp{
			re(`2nd\s+ref:?\s*([A-Za-z0-9_-]+)`),
			re(`Ref\s*2:?\s*([A-Za-z0-9_-]+)`),
		},
		Type: TypeString, Category: CategoryReferences, Priority: 2,
	})
	add(&FieldDefinition{
		Name: "third_reference", DisplayName: "3rd Reference",
		Patterns: []*regexp.Regexp{
			re(`3rd\s+ref:?\s*([A-Za-z0-9_-]+)`),
			re(`Ref\s*3:?\s*([A-Za-z0-9_-]+)`),
		},
		Type: TypeString, Category: CategoryReferences, Priority: 2,
	})
	add(&FieldDefinition{
		Name: "user_id", DisplayName: "User ID",
		Patterns: []*regexp.Regexp{
			re(`UserID:?\s*([A-Za-z0-9_-]+)`),
			re(`User\s*ID:?\s*([A-Za-z0-9_-]+)`),
		},
		Type: TypeString, Category: CategoryReferences, Priority: 2,
	})
	add(&FieldDefinition{
		Name: "purchase_order", DisplayName: "Purchase Order",
		Patterns: []*regexp.Regexp{re(`\b(?:Purchase\s+Order|PO|P\.O\.)\s*:\s*([A-Za-z0-9_-]+)`)},
		Type:     TypeString, Category: CategoryReferences, Priority: 2,
	})

	add(&FieldDefinition{
		Name: "sender_name", DisplayName: "Sender Name",
		Patterns: []*regexp.Regexp{re(`Sender\s*:\s*([A-Z][A-Za-z\s&.,\-']+?)(?:\s+\d|\n|$)`)},
		Type:     TypeString, Category: CategoryAddressInfo, Priority: 2,
	})
	add(&FieldDefinition{
		Name: "sender_address", DisplayName: "Sender Address",
		Patterns: []*regexp.Regexp{re(`Sender\s*:\s*[A-Z][A-Za-z\s&.,\-']+?\s+([0-9][^\n]*)`)},
		Type:     TypeString, Category: CategoryAddressInfo, Priority: 2,
	})
	add(&FieldDefinition{
		Name: "receiver_name", DisplayName: "Receiver Name",
		Patterns: []*regexp.Regexp{re(`Receiver\s*:\s*([A-Z][A-Za-z\s&.,\-']+?)(?:\s+\d|\n|Message|$)`)},
		Type:     TypeString, Category: CategoryAddressInfo, Priority: 2,
	})
	add(&FieldDefinition{
		Name: "receiver_address", DisplayName: "Receiver Address",
		Patterns: []*regexp.Regexp{re(`Receiver\s*:\s*[A-Z][A-Za-z\s&.,\-']+?\s+([0-9][^\n]*)`)},
		Type:     TypeString, Category: CategoryAddressInfo, Priority: 2,
	})

	add(&FieldDefinition{
		Name: "message_codes", DisplayName: "Message Codes",
		Patterns: []*regexp.Regexp{re(`Message\s+Codes?:?\s*([a-z0-9\s,]+)`)},
		Type:     TypeString, Category: CategoryAdditional, Priority: 2,
	})
	add(&FieldDefinition{
		Name: "number_of_packages", DisplayName: "Number of Packages",
		Patterns: []*regexp.Regexp{
			re(`(\d+)\s*(?:Package|Pkg|Piece)s?`),
			re(`Qty:?\s*(\d+)`),
		},
		Type: TypeInteger, Category: CategoryPackageInfo, Priority: 2,
	})

	return &Matrix{
		fields: fields,
		categoryOrder: []string{
			CategoryInvoiceHeader,
			CategoryShipmentCore,
			CategoryServiceInfo,
			CategoryGeographic,
			CategoryWeightDims,
			CategoryBaseCharges,
			CategorySurcharges,
			CategoryLineTotals,
			CategoryReferences,
			CategoryAddressInfo,
			CategoryPackageInfo,
			CategoryAdditional,
		},
	}
}

// Field categories, in report order.
const (
	CategoryInvoiceHeader = "Invoice Header"
	CategoryShipmentCore  = "Shipment Core"
	CategoryServiceInfo   = "Service Info"
	CategoryGeographic    = "Geographic"
	CategoryWeightDims    = "Weight/Dimensions"
	CategoryBaseCharges   = "Base Charges"
	CategorySurcharges    = "Surcharges"
	CategoryLineTotals    = "Line Totals"
	CategoryReferences    = "References"
	CategoryAddressInfo   = "Address Info"
	CategoryPackageInfo   = "Package Info"
	CategoryAdditional    = "Additional Info"
)

// Field returns the definition for a field name, or nil.
func (m *Matrix) Field(name string) *FieldDefinition {
	return m.fields[name]
}

// FieldNames returns all field names in category order, priority first
// within each category.
func (m *Matrix) FieldNames() []string {
	byCategory := map[string][]*FieldDefinition{}
	for _, f := range m.fields {
		byCategory[f.Category] = append(byCategory[f.Category], f)
	}
	var names []string
	for _, cat := range m.categoryOrder {
		defs := byCategory[cat]
		// Stable order: priority, then name.
		for pri := 1; pri <= 3; pri++ {
			var batch []string
			for _, f := range defs {
				if f.Priority == pri {
					batch = append(batch, f.Name)
				}
			}
			sort.Strings(batch)
			names = append(names, batch...)
		}
	}
	return names
}

// SurchargeNames returns the surcharge field names in report order.
func (m *Matrix) SurchargeNames() []string {
	names := make([]string, 0, len(surchargeKinds))
	for _, sk := range surchargeKinds {
		names = append(names, sk.name)
	}
	return names
}

// HighPriorityFields returns fields with priority 1.
func (m *Matrix) HighPriorityFields() []string {
	var names []string
	for name, f := range m.fields {
		if f.Priority == 1 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ValidateValue checks a raw value against the field's type and
// validation pattern. Empty values are fine unless the field is required.
func (m *Matrix) ValidateValue(name, value string) error {
	f := m.fields[name]
	if f == nil {
		return fmt.Errorf("unknown field %q", name)
	}
	if value == "" {
		if f.Required {
			return fmt.Errorf("required field %q is empty", name)
		}
		return nil
	}

	cleaned := strings.ReplaceAll(value, ",", "")
	switch f.Type {
	case TypeInteger:
		if _, err := strconv.Atoi(cleaned); err != nil {
			return fmt.Errorf("field %q must be an integer", name)
		}
	case TypeFloat, TypeCurrency:
		if _, err := strconv.ParseFloat(cleaned, 64); err != nil {
			return fmt.Errorf("field %q must be numeric", name)
		}
	}

	if f.Validation != nil && !f.Validation.MatchString(value) {
		return fmt.Errorf("field %q has invalid format", name)
	}
	return nil
}
