package invoice

import (
	"regexp"
	"strings"
)

// =============================================================================
// Direct Sender/Receiver Extraction
// =============================================================================

// DirectRecord is the slim record produced by the direct extraction
// pass. It targets the sender and receiver lines, which the matrix
// pass often loses to column contamination.
type DirectRecord struct {
	TrackingNumber  string `json:"tracking_number"`
	SenderName      string `json:"sender_name"`
	SenderAddress   string `json:"sender_address"`
	ReceiverName    string `json:"receiver_name"`
	ReceiverAddress string `json:"receiver_address"`
}

var (
	directSenderRe   = regexp.MustCompile(`Sender\s*:\s*([A-Z][A-Za-z\s]{2,40}?)\s+(\d+[^:]*?[A-Z]{2}\s+\d{5}(?:-\d{4})?)`)
	directReceiverRe = regexp.MustCompile(`Receiver\s*:\s*([A-Z][A-Za-z\s]{2,40}?)\s+(\d+[^:]*?[A-Z]{2}\s+\d{5}(?:-\d{4})?)`)

	allCapsNameRe   = regexp.MustCompile(`\b([A-Z]{2,}(?:\s+[A-Z]{2,})*)\b`)
	directAddrRe    = regexp.MustCompile(`(\d+\s+[A-Z0-9][^:]*?[A-Z]{2}\s+\d{5}(?:-\d{4})?)`)
	trailingDigitRe = regexp.MustCompile(`\s+\d.*$`)
	addrSuffixRe    = regexp.MustCompile(`\s+(?:CT|COURT|AVE|AVENUE|ST|STREET|DR|DRIVE|RD|ROAD|BLVD|BOULEVARD|LN|LANE)\b.*$`)
	stateDigitRe    = regexp.MustCompile(`\s+[A-Z]{2}\s+\d.*$`)
)

// nameStoplist filters obvious non-name all-caps tokens in fallback
// candidate scanning.
var nameStoplist = map[string]bool{
	"UPS": true, "GROUND": true, "AIR": true, "EXPRESS": true,
	"TOTAL": true, "PUBLISHED": true, "INCENTIVE": true, "BILLED": true,
	"SENDER": true, "RECEIVER": true, "INVOICE": true, "ACCOUNT": true,
	"NUMBER": true, "ZONE": true, "WEIGHT": true, "PAGE": true,
	"SERVICE": true, "DELIVERY": true, "RESIDENTIAL": true,
	"COMMERCIAL": true, "SURCHARGE": true, "FUEL": true,
}

// ExtractDirect scans a whole page for sender and receiver details,
// one record per tracking number found on the page.
func ExtractDirect(text string) []DirectRecord {
	joined := strings.Join(strings.Fields(text), " ")

	bounds := trackingScanRe.FindAllStringIndex(joined, -1)
	if len(bounds) == 0 {
		return nil
	}

	records := make([]DirectRecord, 0, len(bounds))
	for i, loc := range bounds {
		end := len(joined)
		if i+1 < len(bounds) {
			end = bounds[i+1][0]
		}
		segment := joined[loc[0]:end]

		rec := DirectRecord{TrackingNumber: joined[loc[0]:loc[1]]}
		extractExplicit(segment, &rec)
		if rec.ReceiverName == "" && rec.SenderName == "" {
			extractPositional(segment, &rec)
		}
		finalizeNames(&rec)

		if rec.SenderName != "" || rec.ReceiverName != "" ||
			rec.SenderAddress != "" || rec.ReceiverAddress != "" {
			records = append(records, rec)
		}
	}
	return records
}

// extractExplicit uses the labeled Sender:/Receiver: form.
func extractExplicit(segment string, rec *DirectRecord) {
	if m := directSenderRe.FindStringSubmatch(segment); m != nil {
		rec.SenderName = cleanDirectName(m[1])
		rec.SenderAddress = cleanDirectAddress(m[2])
	}
	if m := directReceiverRe.FindStringSubmatch(segment); m != nil {
		rec.ReceiverName = cleanDirectName(m[1])
		rec.ReceiverAddress = cleanDirectAddress(m[2])
	}
}

// extractPositional falls back to all-caps name candidates placed
// relative to the Sender:/Receiver: markers.
func extractPositional(segment string, rec *DirectRecord) {
	var names []string
	var nameOffsets []int
	for _, loc := range allCapsNameRe.FindAllStringSubmatchIndex(segment, -1) {
		cand := segment[loc[2]:loc[3]]
		if isCandidateName(cand) {
			names = append(names, cand)
			nameOffsets = append(nameOffsets, loc[2])
		}
	}
	var addrs []string
	for _, m := range directAddrRe.FindAllStringSubmatch(segment, -1) {
		addr := cleanDirectAddress(m[1])
		if len(addr) >= 10 {
			addrs = append(addrs, addr)
		}
	}
	if len(names) == 0 && len(addrs) == 0 {
		return
	}

	senderPos := strings.Index(segment, "Sender:")
	receiverPos := strings.Index(segment, "Receiver:")

	pick := func(after int) string {
		for i, off := range nameOffsets {
			if off > after {
				return names[i]
			}
		}
		return ""
	}
	if senderPos >= 0 {
		rec.SenderName = pick(senderPos)
	}
	if receiverPos >= 0 {
		rec.ReceiverName = pick(receiverPos)
	}
	if rec.SenderName == "" && len(names) > 0 {
		rec.SenderName = names[0]
	}
	if rec.ReceiverName == "" && len(names) > 0 {
		rec.ReceiverName = names[len(names)-1]
	}
	if len(addrs) > 0 {
		if rec.SenderAddress == "" {
			rec.SenderAddress = addrs[0]
		}
		if rec.ReceiverAddress == "" {
			rec.ReceiverAddress = addrs[len(addrs)-1]
		}
	}
}

func isCandidateName(cand string) bool {
	if len(cand) < 4 || len(cand) > 40 {
		return false
	}
	if strings.ContainsAny(cand, "0123456789") {
		return false
	}
	for _, word := range strings.Fields(cand) {
		if nameStoplist[word] {
			return false
		}
	}
	return true
}

// finalizeNames strips address tails that bled into name candidates
// and drops names that no longer look like names.
func finalizeNames(rec *DirectRecord) {
	rec.SenderName = finalizeName(rec.SenderName)
	rec.ReceiverName = finalizeName(rec.ReceiverName)
}

func finalizeName(name string) string {
	name = addrSuffixRe.ReplaceAllString(name, "")
	name = stateDigitRe.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)
	if len(name) < 4 || (name[0] >= '0' && name[0] <= '9') {
		return ""
	}
	return name
}

func cleanDirectName(name string) string {
	name = trailingDigitRe.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)
	if len(name) < 4 || (name[0] >= '0' && name[0] <= '9') {
		return ""
	}
	return name
}

var serviceTermRe = regexp.MustCompile(`(?i)\b(?:Ground|Next\s+Day\s+Air|2nd\s+Day\s+Air|3\s+Day\s+Select|Residential|Commercial)\b.*$`)

func cleanDirectAddress(addr string) string {
	addr = serviceTermRe.ReplaceAllString(addr, "")
	addr = multiSpaceRe.ReplaceAllString(addr, " ")
	return strings.TrimSpace(addr)
}

// =============================================================================
// Merge
// =============================================================================

// MergeDirect overlays direct extraction results onto parsed shipments,
// matched by tracking number. Direct values win when non-empty. Returns
// the number of shipments that picked up at least one field.
func MergeDirect(groups []*Group, records []DirectRecord) int {
	byTracking := make(map[string]DirectRecord, len(records))
	for _, rec := range records {
		// First record per tracking number wins.
		if _, ok := byTracking[rec.TrackingNumber]; !ok {
			byTracking[rec.TrackingNumber] = rec
		}
	}

	merged := 0
	for _, g := range groups {
		for _, sh := range g.Shipments {
			rec, ok := byTracking[sh.TrackingNumber]
			if !ok {
				continue
			}
			applied := false
			if rec.SenderName != "" {
				sh.SenderName = rec.SenderName
				applied = true
			}
			if rec.SenderAddress != "" {
				sh.SenderAddress = rec.SenderAddress
				applied = true
			}
			if rec.ReceiverName != "" {
				sh.ReceiverName = rec.ReceiverName
				applied = true
			}
			if rec.ReceiverAddress != "" {
				sh.ReceiverAddress = rec.ReceiverAddress
				applied = true
			}
			if applied {
				sh.DirectApplied = true
				merged++
			}
		}
	}
	return merged
}

// MergeSuccessRate is the share of parsed tracking numbers also seen by
// the direct pass, as a percentage.
func MergeSuccessRate(groups []*Group, records []DirectRecord) float64 {
	direct := map[string]bool{}
	for _, rec := range records {
		direct[rec.TrackingNumber] = true
	}
	total, hit := 0, 0
	for _, g := range groups {
		for _, sh := range g.Shipments {
			total++
			if direct[sh.TrackingNumber] {
				hit++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hit) / float64(total) * 100
}
