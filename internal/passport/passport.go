package passport

import (
	_ "embed"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/crbook/internal/fields"
	"github.com/MeKo-Tech/crbook/internal/ocr"
)

// Field names in output order.
const (
	NameField           = "Name"
	SurnameField        = "Surname"
	NICNumberField      = "Nic Number"
	PassportNumberField = "Passport Number"
	CountryField        = "Country"
	SexField            = "Sex"
	TypeField           = "Type"
	MRZCodeField        = "MRZ Code"
	DateOfExpiryField   = "Date Of Expiry"
	DateOfIssueField    = "Date Of Issue"
	DateOfBirthField    = "Date Of Birth"
)

// validityYears is the passport validity used to derive the issue date.
const validityYears = 10

//go:embed countries.yaml
var countriesYAML []byte

var loadCountries = sync.OnceValues(func() (map[string]string, error) {
	var m map[string]string
	if err := yaml.Unmarshal(countriesYAML, &m); err != nil {
		return nil, fmt.Errorf("parse country table: %w", err)
	}
	return m, nil
})

// CountryName returns the country for an ICAO code ("LKA" -> "Sri Lanka").
// Filler characters are ignored.
func CountryName(code string) (string, bool) {
	m, err := loadCountries()
	if err != nil {
		slog.Error("Country table unavailable", "error", err)
		return "", false
	}
	name, ok := m[strings.Trim(code, "<")]
	return name, ok
}

// Info holds the passport fields; empty strings are fields not found.
type Info struct {
	Name           string `json:"name,omitempty"`
	Surname        string `json:"surname,omitempty"`
	NICNumber      string `json:"nic_number,omitempty"`
	PassportNumber string `json:"passport_number,omitempty"`
	Country        string `json:"country,omitempty"`
	Sex            string `json:"sex,omitempty"`
	Type           string `json:"type,omitempty"`
	MRZCode        string `json:"mrz_code,omitempty"`
	DateOfExpiry   string `json:"date_of_expiry,omitempty"`
	DateOfIssue    string `json:"date_of_issue,omitempty"`
	DateOfBirth    string `json:"date_of_birth,omitempty"`
}

// FromMRZ converts a parsed zone into display fields. Expiry years are
// taken as 20YY, the issue date is the expiry minus the validity period and
// the birth century is 19 when the personal number is an old-format NIC
// (trailing V), 20 otherwise.
func FromMRZ(m *MRZ) Info {
	if m == nil {
		return Info{}
	}
	info := Info{
		Name:           m.GivenNames,
		Surname:        m.Surname,
		NICNumber:      strings.ReplaceAll(m.PersonalNumber, "<", ""),
		PassportNumber: strings.ReplaceAll(m.Number, "<", ""),
		Type:           strings.Trim(m.DocumentType, "<"),
		MRZCode:        m.Raw,
	}
	info.Country, _ = CountryName(m.Nationality)
	switch m.Sex {
	case "F":
		info.Sex = "Female"
	case "M":
		info.Sex = "Male"
	}

	if yy, mm, dd, ok := splitDate(m.ExpiryDate); ok {
		year := 2000 + yy
		info.DateOfExpiry = fmt.Sprintf("%04d-%s-%s", year, mm, dd)
		info.DateOfIssue = fmt.Sprintf("%04d-%s-%s", year-validityYears, mm, dd)
	}
	if yy, mm, dd, ok := splitDate(m.BirthDate); ok {
		century := 2000
		if strings.Contains(info.NICNumber, "V") {
			century = 1900
		}
		info.DateOfBirth = fmt.Sprintf("%04d-%s-%s", century+yy, mm, dd)
	}
	return info
}

func splitDate(s string) (yy int, mm, dd string, ok bool) {
	if len(s) != 6 {
		return 0, "", "", false
	}
	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return 0, "", "", false
		}
	}
	yy, _ = strconv.Atoi(s[:2])
	return yy, s[2:4], s[4:6], true
}

// Get returns the value of a named field.
func (i Info) Get(field string) fields.Value {
	var s string
	switch field {
	case NameField:
		s = i.Name
	case SurnameField:
		s = i.Surname
	case NICNumberField:
		s = i.NICNumber
	case PassportNumberField:
		s = i.PassportNumber
	case CountryField:
		s = i.Country
	case SexField:
		s = i.Sex
	case TypeField:
		s = i.Type
	case MRZCodeField:
		s = i.MRZCode
	case DateOfExpiryField:
		s = i.DateOfExpiry
	case DateOfIssueField:
		s = i.DateOfIssue
	case DateOfBirthField:
		s = i.DateOfBirth
	}
	if s == "" {
		return fields.Absent
	}
	return fields.Text(s)
}

// FieldNames lists the passport fields in output order.
func FieldNames() []string {
	return []string{
		NameField, SurnameField, NICNumberField, PassportNumberField, CountryField,
		SexField, TypeField, MRZCodeField, DateOfExpiryField, DateOfIssueField, DateOfBirthField,
	}
}

// FindMRZ picks the MRZ lines out of OCR fragments. Candidates are
// normalized lines within two characters of the TD3 or TD1 width that
// contain filler; they are padded or cut to the exact width. Among all
// windows the one with the most matching check digits wins.
func FindMRZ(texts []string) (*MRZ, error) {
	var best *MRZ
	try := func(lines []string) {
		m, err := ParseMRZ(lines)
		if err != nil {
			return
		}
		if best == nil || m.Score() > best.Score() {
			best = m
		}
	}

	td3 := candidates(texts, td3Length)
	for i := 0; i+1 < len(td3); i++ {
		if strings.HasPrefix(td3[i], "P") {
			try(td3[i : i+2])
		}
	}
	td1 := candidates(texts, td1Length)
	for i := 0; i+2 < len(td1); i++ {
		try(td1[i : i+3])
	}

	if best == nil {
		return nil, ErrNoMRZ
	}
	return best, nil
}

func candidates(texts []string, width int) []string {
	var out []string
	for _, t := range texts {
		n := Normalize(t)
		if !strings.Contains(n, "<") || len(n) < width-2 || len(n) > width+2 {
			continue
		}
		if len(n) < width {
			n += strings.Repeat("<", width-len(n))
		}
		out = append(out, n[:width])
	}
	return out
}

// ExtractResult finds and converts the MRZ of an OCR result. A result
// without a readable MRZ yields an empty Info.
func ExtractResult(r ocr.Result) Info {
	m, err := FindMRZ(r.Texts())
	if err != nil {
		slog.Debug("No MRZ in OCR result", "lines", len(r.Texts()))
		return Info{}
	}
	if !m.Valid() {
		slog.Debug("MRZ check digits failed", "checks", m.Checks)
	}
	return FromMRZ(m)
}

// PageFields returns the passport fields as page extractors.
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
