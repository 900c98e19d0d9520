// Package licence extracts driving-licence fields from whole-page OCR text.
//
// The card prints numbered labels ("1,2." name, "3." birth date, "4a."
// issue, "4b." expiry, "4d." NIC, "5." licence number, "8." address) that
// survive OCR well enough to anchor line-based rules.
package licence

import (
	"regexp"
	"strings"

	"github.com/MeKo-Tech/crbook/internal/fields"
	"github.com/MeKo-Tech/crbook/internal/ocr"
)

// Field names in output order.
const (
	NameField          = "Name"
	LicenceNumberField = "Licence Number"
	NICNumberField     = "Nic Number"
	AddressField       = "Address"
	DateOfBirthField   = "Date Of Birth"
	DateOfIssueField   = "Date Of Issue"
	DateOfExpiryField  = "Date Of Expiry"
	BloodGroupField    = "Blood Group"
)

var (
	nameLabel    = regexp.MustCompile(`^(1,2\.|1\.2\.|12\.|,2|\.2|1,2,|1\.2,)\s*.+$`)
	digits       = regexp.MustCompile(`\d+`)
	namePunct    = regexp.MustCompile(`[,.]`)
	nameStop     = regexp.MustCompile(`^(8\.|B\.|SL)`)
	licenceNo    = regexp.MustCompile(`5\.\s*(B|8)?\d{5,}`)
	nicNo        = regexp.MustCompile(`4[Cd]\.\d{9,}[A-Za-z]*|\d{9,}[A-Za-z]*`)
	addressLabel = regexp.MustCompile(`^(8|B)\.`)
	birthDate    = regexp.MustCompile(`^(3|5)\.\d{2}\.\d{2}\.\d{4}`)
	issueDate    = regexp.MustCompile(`^4(a|s)\.\d{2}\.\d{2}\.\d{4}`)
	expiryDate   = regexp.MustCompile(`^4(b|6)\.\d{2}\.\d{2}\.\d{4}`)
	bloodLabel   = regexp.MustCompile(`(?i)^Blood`)
)

// Info holds the extracted fields; empty strings are fields not found.
type Info struct {
	Name          string `json:"name,omitempty"`
	LicenceNumber string `json:"licence_number,omitempty"`
	NICNumber     string `json:"nic_number,omitempty"`
	Address       string `json:"address,omitempty"`
	DateOfBirth   string `json:"date_of_birth,omitempty"`
	DateOfIssue   string `json:"date_of_issue,omitempty"`
	DateOfExpiry  string `json:"date_of_expiry,omitempty"`
	BloodGroup    string `json:"blood_group,omitempty"`
}

// Extract parses newline separated OCR text.
func Extract(text string) Info {
	lines := strings.Split(text, "\n")
	info := Info{
		Name:          name(lines),
		LicenceNumber: licenceNumber(text),
		NICNumber:     nicNumber(text),
		Address:       address(lines),
		BloodGroup:    bloodGroup(lines),
	}
	info.DateOfBirth, info.DateOfIssue, info.DateOfExpiry = dates(lines)
	return info
}

// ExtractResult parses the fragments of an OCR result, one per line.
func ExtractResult(r ocr.Result) Info {
	return Extract(strings.Join(r.Texts(), "\n"))
}

// Get returns the value of a named field.
func (i Info) Get(field string) fields.Value {
	var s string
	switch field {
	case NameField:
		s = i.Name
	case LicenceNumberField:
		s = i.LicenceNumber
	case NICNumberField:
		s = i.NICNumber
	case AddressField:
		s = i.Address
	case DateOfBirthField:
		s = i.DateOfBirth
	case DateOfIssueField:
		s = i.DateOfIssue
	case DateOfExpiryField:
		s = i.DateOfExpiry
	case BloodGroupField:
		s = i.BloodGroup
	}
	if s == "" {
		return fields.Absent
	}
	return fields.Text(s)
}

// FieldNames lists the licence fields in output order.
func FieldNames() []string {
	return []string{
		NameField, LicenceNumberField, NICNumberField, AddressField,
		DateOfBirthField, DateOfIssueField, DateOfExpiryField, BloodGroupField,
	}
}

// PageFields returns the licence fields as page extractors.
func PageFields() []fields.PageField {
	names := FieldNames()
	out := make([]fields.PageField, len(names))
	for i, n := range names {
		out[i] = fields.PageField{
			Name: n,
			Extractor: fields.ExtractorFunc(func(r ocr.Result) fields.Value {
				return ExtractResult(r).Get(n)
			}),
		}
	}
	return out
}

// name reads the "1,2." line, drops digits and punctuation and joins the
// following line unless it already belongs to the address or a code.
func name(lines []string) string {
	for i, line := range lines {
		if !nameLabel.MatchString(line) {
			continue
		}
		n := digits.ReplaceAllString(line, "")
		n = strings.TrimSpace(namePunct.ReplaceAllString(n, ""))
		if i+1 < len(lines) {
			next := strings.TrimSpace(lines[i+1])
			if next != "" && !nameStop.MatchString(next) {
				n += " " + next
			}
		}
		return strings.TrimSpace(n)
	}
	return ""
}

func licenceNumber(text string) string {
	m := licenceNo.FindString(text)
	if m == "" {
		return ""
	}
	return strings.TrimSpace(strings.Replace(m, "5.", "", 1))
}

// nicNumber returns the national ID; bare 9-digit numbers get the V suffix
// of old-format IDs.
func nicNumber(text string) string {
	nic := strings.TrimSpace(nicNo.FindString(text))
	if nic == "" {
		return ""
	}
	if strings.HasPrefix(nic, "4d.") || strings.HasPrefix(nic, "4C.") {
		nic = nic[3:]
	}
	if len(nic) == 9 {
		nic += "V"
	}
	return nic
}

// address takes the "8." line and up to two continuation lines that are
// neither codes nor dates.
func address(lines []string) string {
	for i, line := range lines {
		if !addressLabel.MatchString(line) {
			continue
		}
		parts := []string{strings.TrimSpace(line[2:])}
		for j := i + 1; j < min(i+3, len(lines)); j++ {
			next := strings.TrimSpace(lines[j])
			if next == "" || strings.Contains(next, "SL") || birthDate.MatchString(next) {
				continue
			}
			parts = append(parts, next)
		}
		return strings.TrimSpace(strings.Join(parts, " "))
	}
	return ""
}

// dates scans every line; a later line overrides an earlier one.
func dates(lines []string) (birth, issue, expiry string) {
	after := func(line string) string {
		_, rest, _ := strings.Cut(line, ".")
		return strings.TrimSpace(rest)
	}
	for _, line := range lines {
		switch {
		case birthDate.MatchString(line):
			birth = after(line)
		case issueDate.MatchString(line):
			issue = after(line)
		case expiryDate.MatchString(line):
			expiry = after(line)
		}
	}
	return birth, issue, expiry
}

// bloodGroup reads the last token of the "Blood" line, joined with the next
// line when the sign wrapped onto it.
func bloodGroup(lines []string) string {
	for i, line := range lines {
		if !bloodLabel.MatchString(line) {
			continue
		}
		group := strings.TrimSpace(line)
		if i+1 < len(lines) && strings.Contains(lines[i+1], "+") {
			group += " " + strings.TrimSpace(lines[i+1])
		}
		tokens := strings.Fields(group)
		if len(tokens) == 0 {
			return ""
		}
		return tokens[len(tokens)-1]
	}
	return ""
}
