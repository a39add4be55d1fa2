package invoice

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// Page Classification
// =============================================================================

// Page is one page of extracted document text, 1-based.
type Page struct {
	Number int
	Text   string
}

var (
	invoiceStartRe = regexp.MustCompile(`(?i)Delivery\s+Service\s+Invoice`)
	pageOneRe      = regexp.MustCompile(`(?i)Page\s+1\s+of\s+\d+`)

	summaryMarkers = []string{
		"Consolidated Billing Summary",
		"Consolidated Remittance Summary",
	}

	invoiceIndicators = []string{
		"delivery service invoice",
		"tracking number",
		"account number",
		"1z",
		"published charge",
		"incentive credit",
		"billed charge",
	}
)

// IsEmptyPage reports whether a page has too little text to contain
// shipment data. Pages with under 50 characters, or fewer than three
// lines of meaningful length, are skipped.
func IsEmptyPage(text string) bool {
	if len(strings.TrimSpace(text)) < 50 {
		return true
	}
	meaningful := 0
	for _, line := range strings.Split(text, "\n") {
		if len(strings.TrimSpace(line)) > 10 {
			meaningful++
		}
	}
	return meaningful < 3
}

// IsSummaryPage reports whether a page is a consolidated summary page,
// which never carries per-shipment data.
func IsSummaryPage(text string) bool {
	for _, marker := range summaryMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// IsInvoicePage reports whether a page carries invoice content.
func IsInvoicePage(text string) bool {
	lower := strings.ToLower(text)
	for _, ind := range invoiceIndicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}
	return false
}

// IsGroupStartPage reports whether a page opens a new invoice group.
func IsGroupStartPage(text string) bool {
	return invoiceStartRe.MatchString(text) && pageOneRe.MatchString(text)
}

// =============================================================================
// Invoice Header
// =============================================================================

var (
	headerInvoiceNumRe = regexp.MustCompile(`(?i)Invoice\s+Number\s+([A-Z0-9-]+)`)
	headerAccountRe    = regexp.MustCompile(`(?i)Account\s+Number\s+([A-Z0-9-]+)`)
	headerControlRe    = regexp.MustCompile(`(?i)Control\s+ID\s+([A-Z0-9#-]+)`)
	headerDateRe       = regexp.MustCompile(`(?i)Invoice\s+Date\s+([A-Za-z]+\s+\d{1,2},\s+\d{4})`)
	headerShippedRe    = regexp.MustCompile(`(?i)Shipped\s+from:\s*([^\n]+)`)
)

// ParseHeader pulls the invoice-level fields from a group's first page.
func ParseHeader(text string) InvoiceHeader {
	h := InvoiceHeader{}
	if m := headerInvoiceNumRe.FindStringSubmatch(text); m != nil {
		h.InvoiceNumber = m[1]
	}
	if m := headerAccountRe.FindStringSubmatch(text); m != nil {
		h.AccountNumber = m[1]
	}
	if m := headerControlRe.FindStringSubmatch(text); m != nil {
		h.ControlID = m[1]
	}
	if m := headerDateRe.FindStringSubmatch(text); m != nil {
		h.InvoiceDate = strings.TrimSpace(m[1])
	}
	if m := headerShippedRe.FindStringSubmatch(text); m != nil {
		h.ShippedFrom = strings.TrimSpace(m[1])
	}
	return h
}

// Year returns the calendar year of the invoice date, falling back to
// the current year when the date is missing or unparsable. Shipment
// dates on the invoice only carry month and day.
func (h InvoiceHeader) Year() int {
	for _, layout := range []string{"January 2, 2006", "01/02/2006"} {
		if t, err := time.Parse(layout, h.InvoiceDate); err == nil {
			return t.Year()
		}
	}
	return time.Now().Year()
}

// =============================================================================
// Group Detection
// =============================================================================

// Parser turns page text into invoice groups and shipments.
type Parser struct {
	matrix *Matrix
}

// NewParser builds a parser over the standard field matrix.
func NewParser() *Parser {
	return &Parser{matrix: NewMatrix()}
}

// Matrix exposes the parser's field matrix for reporting.
func (p *Parser) Matrix() *Matrix { return p.matrix }

// DetectGroups walks the pages in order and splits them into invoice
// groups. Summary and empty pages are recorded against the current
// group but never parsed for shipments.
func (p *Parser) DetectGroups(pages []Page) []*Group {
	var groups []*Group
	var current *Group

	for _, page := range pages {
		if IsSummaryPage(page.Text) {
			continue
		}
		if IsGroupStartPage(page.Text) {
			current = &Group{Header: ParseHeader(page.Text)}
			groups = append(groups, current)
		}
		if current == nil {
			// Pages before the first header form an implicit group so
			// shipments on them are not lost.
			current = &Group{Header: ParseHeader(page.Text)}
			groups = append(groups, current)
		}
		current.Pages = append(current.Pages, page.Number)
	}
	return groups
}

// ParsePages runs full extraction: group detection, shipment splitting
// and field parsing. Pages must be in document order.
func (p *Parser) ParsePages(pages []Page) ([]*Group, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages to parse")
	}
	groups := p.DetectGroups(pages)

	byNumber := make(map[int]Page, len(pages))
	for _, page := range pages {
		byNumber[page.Number] = page
	}

	for _, g := range groups {
		year := g.Header.Year()
		for _, num := range g.Pages {
			page := byNumber[num]
			if IsEmptyPage(page.Text) || !IsInvoicePage(page.Text) {
				continue
			}
			for _, block := range SplitShipmentBlocks(page.Text) {
				sh := p.ParseShipmentBlock(block, year)
				if sh == nil {
					continue
				}
				sh.PageNumber = page.Number
				sh.InvoiceGroup = g.Label()
				g.Shipments = append(g.Shipments, sh)
			}
		}
	}
	return groups, nil
}

// =============================================================================
// Shipment Splitting
// =============================================================================

// A shipment block opens with a date followed by a tracking number.
var blockStartRe = regexp.MustCompile(`\d{2}/\d{2}\s+1Z[A-Z0-9]{16}`)

// SplitShipmentBlocks cuts page text into per-shipment blocks. Each
// block runs from one date+tracking line to the next.
func SplitShipmentBlocks(text string) []string {
	starts := blockStartRe.FindAllStringIndex(text, -1)
	if len(starts) == 0 {
		return nil
	}
	blocks := make([]string, 0, len(starts))
	for i, loc := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		blocks = append(blocks, text[loc[0]:end])
	}
	return blocks
}

// =============================================================================
// Shipment Parsing
// =============================================================================

// Main shipment lines come in two shapes: with and without a zone
// column.
var (
	// date tracking service zip zone weight published incentive billed
	mainLineRe = regexp.MustCompile(`(\d{2}/\d{2})\s+(1Z[A-Z0-9]{16})\s+([A-Za-z\s]+?)\s+(\d{5})\s+(\d{1,4})\s+(\d+(?:\.\d+)?)\s+([\d,]+\.\d{2})\s*(-?[\d,]+\.\d{2})\s+([\d,]+\.\d{2})`)
	// date tracking service zip weight published incentive billed
	mainLineNoZoneRe = regexp.MustCompile(`(\d{2}/\d{2})\s+(1Z[A-Z0-9]{16})\s+([A-Za-z\s]+?)\s+(\d{5})\s+(\d+(?:\.\d+)?)\s+([\d,]+\.\d{2})\s*(-?[\d,]+\.\d{2})\s+([\d,]+\.\d{2})`)

	refFirstRe  = regexp.MustCompile(`(?i)1st\s+ref:?\s*([A-Za-z0-9_-]+)`)
	refSecondRe = regexp.MustCompile(`(?i)2nd\s+ref:?\s*([A-Za-z0-9_-]+)`)
	refThirdRe  = regexp.MustCompile(`(?i)3rd\s+ref:?\s*([A-Za-z0-9_-]+)`)
	userIDRe    = regexp.MustCompile(`(?i)User\s*ID:?\s*([A-Za-z0-9_-]+)`)

	trackingScanRe = regexp.MustCompile(`1Z[A-Z0-9]{16}`)
	trailingNumsRe = regexp.MustCompile(`\s+\d[\d\s,.]*$`)
)

// ParseShipmentBlock parses one shipment block. Blocks whose main line
// does not match either shape are dropped; a block without a parseable
// core row carries no usable record.
func (p *Parser) ParseShipmentBlock(block string, invoiceYear int) *Shipment {
	sh := &Shipment{}

	if m := mainLineRe.FindStringSubmatch(block); m != nil {
		sh.ShipmentDate = ParseShortDate(m[1], invoiceYear)
		sh.TrackingNumber = m[2]
		sh.ServiceType = cleanServiceName(m[3])
		sh.DestinationZip = m[4]
		sh.Zone = parseIntDefault(m[5])
		sh.Weight = parseFloatDefault(m[6])
		sh.BaseCharge = CurrencyTriple{
			Published: ParseCurrency(m[7]),
			Incentive: ParseCurrency(m[8]),
			Billed:    ParseCurrency(m[9]),
		}
	} else if m := mainLineNoZoneRe.FindStringSubmatch(block); m != nil {
		sh.ShipmentDate = ParseShortDate(m[1], invoiceYear)
		sh.TrackingNumber = m[2]
		sh.ServiceType = cleanServiceName(m[3])
		sh.DestinationZip = m[4]
		sh.Weight = parseFloatDefault(m[5])
		sh.BaseCharge = CurrencyTriple{
			Published: ParseCurrency(m[6]),
			Incentive: ParseCurrency(m[7]),
			Billed:    ParseCurrency(m[8]),
		}
	} else {
		return nil
	}

	p.parseSurcharges(block, sh)
	parseReferences(block, sh)
	parseReceiver(block, sh)
	p.parseRemaining(block, sh, invoiceYear)
	postProcess(block, sh)
	sh.ComputeLineTotal()

	return sh
}

func (p *Parser) parseSurcharges(block string, sh *Shipment) {
	for _, name := range p.matrix.SurchargeNames() {
		def := p.matrix.Field(name)
		for _, pat := range def.Patterns {
			m := pat.FindStringSubmatch(block)
			if m == nil {
				continue
			}
			t := CurrencyTriple{
				Published: ParseCurrency(m[1]),
				Incentive: ParseCurrency(m[2]),
				Billed:    ParseCurrency(m[3]),
			}
			if !t.IsZero() {
				sh.SetSurcharge(name, t)
			}
			break
		}
	}
}

func parseReferences(block string, sh *Shipment) {
	if m := refFirstRe.FindStringSubmatch(block); m != nil {
		sh.FirstReference = m[1]
	}
	if m := refSecondRe.FindStringSubmatch(block); m != nil {
		sh.SecondReference = m[1]
	}
	if m := refThirdRe.FindStringSubmatch(block); m != nil {
		sh.ThirdReference = m[1]
	}
	if m := userIDRe.FindStringSubmatch(block); m != nil {
		sh.UserID = m[1]
	}
}

// Lines that bleed into a shipment block from adjacent invoice
// sections. Receiver parsing works on the block with these removed.
var contaminationMarkers = []string{
	"Total for Internet-ID:",
	"Total Shipping API",
	"Total Outbound",
	"Adjustments & Other Charges",
	"BILLING ADJUSTMENT",
	"ADDRESS CORRECTION-GOODWILL",
	"Total Adjustments",
	"Invoice Messaging",
	"Code Message",
	"Custom Dimensional Weight Applie",
	"Shipped from:",
	"Control ID",
	"Account Number",
	"Invoice Number",
	"Invoice Date",
}

var (
	receiverMarkerRe = regexp.MustCompile(`(?i)Receiver\s*:\s*([A-Z][A-Za-z\s.\-']{1,40}?)(?:\s+\d|\n|$)`)
	nameBeforeAddrRe = regexp.MustCompile(`([A-Z][A-Za-z\s.\-']{1,40}?)\s+\d+\s+[A-Z0-9]`)
	streetAddrRe     = regexp.MustCompile(`(?i)(\d+\s+[A-Za-z0-9\s.#-]*?\b(?:STREET|ST|AVENUE|AVE|DRIVE|DR|ROAD|RD|COURT|CT|BOULEVARD|BLVD|LANE|LN)\b[^\n]*?,?\s*[A-Z]{2}\s+\d{5}(?:-\d{4})?)`)
)

func stripContamination(block string) string {
	var kept []string
	for _, line := range strings.Split(block, "\n") {
		contaminated := false
		for _, marker := range contaminationMarkers {
			if strings.Contains(line, marker) {
				contaminated = true
				break
			}
		}
		if !contaminated {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func parseReceiver(block string, sh *Shipment) {
	clean := stripContamination(block)

	if m := receiverMarkerRe.FindStringSubmatch(clean); m != nil {
		if name := CleanPersonName(m[1]); IsValidPersonName(name) {
			sh.ReceiverName = name
		}
	}
	if sh.ReceiverName == "" {
		for _, m := range nameBeforeAddrRe.FindAllStringSubmatch(clean, -1) {
			name := CleanPersonName(m[1])
			if IsValidPersonName(name) {
				sh.ReceiverName = name
				break
			}
		}
	}

	if m := streetAddrRe.FindStringSubmatch(clean); m != nil {
		if addr := CleanStreetAddress(m[1]); IsValidStreetAddress(addr) {
			sh.ReceiverAddress = addr
		}
	}
}

// parseRemaining fills fields the structured passes left empty, first
// pattern match wins.
func (p *Parser) parseRemaining(block string, sh *Shipment, invoiceYear int) {
	match := func(name string) string {
		def := p.matrix.Field(name)
		if def == nil {
			return ""
		}
		for _, pat := range def.Patterns {
			if m := pat.FindStringSubmatch(block); m != nil {
				return strings.TrimSpace(m[1])
			}
		}
		return ""
	}

	if sh.ServiceType == "" {
		sh.ServiceType = match("service_type")
	}
	if sh.PickupDate == "" {
		if v := match("pickup_date"); v != "" {
			sh.PickupDate = ParseShortDate(v, invoiceYear)
		}
	}
	if sh.CustomerWeight == 0 {
		sh.CustomerWeight = parseFloatDefault(match("customer_weight"))
	}
	if sh.BillableWeight == 0 {
		sh.BillableWeight = parseFloatDefault(match("billable_weight"))
	}
	if sh.DimensionalWeight == 0 {
		sh.DimensionalWeight = parseFloatDefault(match("dimensional_weight"))
	}
	if sh.Dimensions == "" {
		sh.Dimensions = match("dimensions")
	}
	if sh.PurchaseOrder == "" {
		sh.PurchaseOrder = match("purchase_order")
	}
	if sh.MessageCodes == "" {
		sh.MessageCodes = match("message_codes")
	}
	if sh.NumberOfPackages == 0 {
		sh.NumberOfPackages = parseIntDefault(match("number_of_packages"))
	}
	if sh.SenderName == "" {
		if name := CleanPersonName(match("sender_name")); IsValidPersonName(name) {
			sh.SenderName = name
		}
	}
	if sh.SenderAddress == "" {
		if addr := CleanStreetAddress(match("sender_address")); IsValidStreetAddress(addr) {
			sh.SenderAddress = addr
		}
	}
}

// postProcess revalidates derived fields against the raw block.
func postProcess(block string, sh *Shipment) {
	sh.ServiceType = cleanServiceName(sh.ServiceType)

	if !trackingRe.MatchString(sh.TrackingNumber) {
		if m := trackingScanRe.FindString(block); m != "" {
			sh.TrackingNumber = m
		}
	}
	if sh.DestinationZip != "" && !zipRe.MatchString(sh.DestinationZip) {
		sh.DestinationZip = ""
	}
}

// cleanServiceName strips trailing ZIPs and charge columns that the
// greedy main line match can pull into the service column.
func cleanServiceName(name string) string {
	name = trailingNumsRe.ReplaceAllString(name, "")
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(name, " "))
}

// =============================================================================
// Value Parsing
// =============================================================================

// ParseCurrency converts an amount like "1,234.56" or "-12.00" to a
// float. Unparsable input yields zero.
func ParseCurrency(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	s = strings.TrimPrefix(s, "$")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseFloatDefault(s string) float64 {
	return ParseCurrency(s)
}

func parseIntDefault(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return v
}

var (
	shortDateRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})$`)
	fullDateRe  = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2,4})$`)
)

// ParseShortDate normalizes MM/DD and MM/DD/YY(YY) dates to ISO form.
// MM/DD dates borrow the invoice year. Anything else passes through
// unchanged.
func ParseShortDate(s string, invoiceYear int) string {
	s = strings.TrimSpace(s)
	if m := shortDateRe.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			return fmt.Sprintf("%04d-%02d-%02d", invoiceYear, month, day)
		}
		return s
	}
	if m := fullDateRe.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
		}
	}
	return s
}
