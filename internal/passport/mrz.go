// Package passport reads the machine readable zone (MRZ) of passports and
// ID cards from OCR output.
package passport

import (
	"errors"
	"fmt"
	"strings"
)

// Format is the MRZ layout.
type Format string

const (
	TD1 Format = "TD1" // 3 lines of 30 characters (ID cards)
	TD3 Format = "TD3" // 2 lines of 44 characters (passports)
)

const (
	td1Length = 30
	td3Length = 44
)

var (
	// ErrNoMRZ is returned when no MRZ lines are found.
	ErrNoMRZ = errors.New("no machine readable zone found")
	// ErrMalformedMRZ is returned for lines of the wrong shape.
	ErrMalformedMRZ = errors.New("malformed machine readable zone")
)

// Checks holds the outcome of every check digit.
type Checks struct {
	Number    bool `json:"number"`
	BirthDate bool `json:"birth_date"`
	Expiry    bool `json:"expiry"`
	Personal  bool `json:"personal"`
	Composite bool `json:"composite"`
}

// All reports whether every check digit matched.
func (c Checks) All() bool {
	return c.Number && c.BirthDate && c.Expiry && c.Personal && c.Composite
}

// MRZ is a parsed machine readable zone. Dates are YYMMDD as printed.
type MRZ struct {
	Format         Format `json:"format"`
	DocumentType   string `json:"type"`
	Country        string `json:"country"`
	Surname        string `json:"surname"`
	GivenNames     string `json:"names"`
	Number         string `json:"number"`
	Nationality    string `json:"nationality"`
	BirthDate      string `json:"date_of_birth"`
	Sex            string `json:"sex"`
	ExpiryDate     string `json:"expiration_date"`
	PersonalNumber string `json:"personal_number"`
	Raw            string `json:"raw_text"`
	Checks         Checks `json:"checks"`
}

// Valid reports whether all check digits matched.
func (m *MRZ) Valid() bool { return m != nil && m.Checks.All() }

// Score is the number of matching check digits (0..5).
func (m *MRZ) Score() int {
	n := 0
	for _, ok := range []bool{m.Checks.Number, m.Checks.BirthDate, m.Checks.Expiry, m.Checks.Personal, m.Checks.Composite} {
		if ok {
			n++
		}
	}
	return n
}

// charValue is the ICAO 9303 value of an MRZ character.
func charValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	default:
		return 0
	}
}

// CheckDigit computes the 7-3-1 weighted check digit of s.
func CheckDigit(s string) int {
	weights := [3]int{7, 3, 1}
	sum := 0
	for i := range len(s) {
		sum += charValue(s[i]) * weights[i%3]
	}
	return sum % 10
}

func checks(field string, digit byte) bool {
	if digit == '<' {
		// An unused optional field carries a filler check digit.
		return strings.Trim(field, "<") == ""
	}
	return digit >= '0' && digit <= '9' && CheckDigit(field) == int(digit-'0')
}

// ParseMRZ parses two TD3 lines or three TD1 lines.
func ParseMRZ(lines []string) (*MRZ, error) {
	norm := make([]string, len(lines))
	for i, l := range lines {
		norm[i] = Normalize(l)
	}
	switch {
	case len(norm) == 2 && len(norm[0]) == td3Length && len(norm[1]) == td3Length:
		return parseTD3(norm[0], norm[1]), nil
	case len(norm) == 3 && len(norm[0]) == td1Length && len(norm[1]) == td1Length && len(norm[2]) == td1Length:
		return parseTD1(norm[0], norm[1], norm[2]), nil
	case len(norm) == 0:
		return nil, ErrNoMRZ
	}
	return nil, fmt.Errorf("%w: %d lines of lengths %v", ErrMalformedMRZ, len(norm), lengths(norm))
}

func lengths(lines []string) []int {
	out := make([]int, len(lines))
	for i, l := range lines {
		out[i] = len(l)
	}
	return out
}

func parseTD3(l1, l2 string) *MRZ {
	l2 = fixDigits(l2, td3Digits)
	surname, given := names(l1[5:])
	m := &MRZ{
		Format:         TD3,
		DocumentType:   l1[0:2],
		Country:        l1[2:5],
		Surname:        surname,
		GivenNames:     given,
		Number:         l2[0:9],
		Nationality:    l2[10:13],
		BirthDate:      l2[13:19],
		Sex:            l2[20:21],
		ExpiryDate:     l2[21:27],
		PersonalNumber: l2[28:42],
		Raw:            l1 + "\n" + l2,
	}
	m.Checks = Checks{
		Number:    checks(l2[0:9], l2[9]),
		BirthDate: checks(l2[13:19], l2[19]),
		Expiry:    checks(l2[21:27], l2[27]),
		Personal:  checks(l2[28:42], l2[42]),
		Composite: checks(l2[0:10]+l2[13:20]+l2[21:43], l2[43]),
	}
	return m
}

func parseTD1(l1, l2, l3 string) *MRZ {
	l1 = fixDigits(l1, td1Line1Digits)
	l2 = fixDigits(l2, td1Line2Digits)
	surname, given := names(l3)
	m := &MRZ{
		Format:         TD1,
		DocumentType:   l1[0:2],
		Country:        l1[2:5],
		Surname:        surname,
		GivenNames:     given,
		Number:         l1[5:14],
		Nationality:    l2[15:18],
		BirthDate:      l2[0:6],
		Sex:            l2[7:8],
		ExpiryDate:     l2[8:14],
		PersonalNumber: l1[15:30],
		Raw:            l1 + "\n" + l2 + "\n" + l3,
	}
	m.Checks = Checks{
		Number:    checks(l1[5:14], l1[14]),
		BirthDate: checks(l2[0:6], l2[6]),
		Expiry:    checks(l2[8:14], l2[14]),
		Personal:  true, // TD1 has no separate personal-number check digit
		Composite: checks(l1[5:30]+l2[0:7]+l2[8:15]+l2[18:29], l2[29]),
	}
	return m
}

// names splits "SURNAME<<GIVEN<NAMES<<<" into its parts with '<' as spaces.
func names(field string) (surname, given string) {
	s, g, _ := strings.Cut(field, "<<")
	clean := func(v string) string {
		return strings.Join(strings.FieldsFunc(v, func(r rune) bool { return r == '<' }), " ")
	}
	return clean(s), clean(g)
}

// Positions that hold digits (or filler) only. OCR letter-for-digit
// confusions are repaired there.
var (
	td3Digits      = spans([2]int{9, 10}, [2]int{13, 20}, [2]int{21, 28}, [2]int{42, 44})
	td1Line1Digits = spans([2]int{14, 15})
	td1Line2Digits = spans([2]int{0, 7}, [2]int{8, 15}, [2]int{29, 30})
)

func spans(ranges ...[2]int) map[int]bool {
	out := make(map[int]bool)
	for _, r := range ranges {
		for i := r[0]; i < r[1]; i++ {
			out[i] = true
		}
	}
	return out
}

var digitFixes = map[byte]byte{
	'O': '0', 'Q': '0', 'D': '0', 'U': '0',
	'I': '1', 'L': '1',
	'Z': '2',
	'S': '5',
	'G': '6',
	'B': '8',
}

func fixDigits(line string, positions map[int]bool) string {
	b := []byte(line)
	for i := range b {
		if !positions[i] {
			continue
		}
		if d, ok := digitFixes[b[i]]; ok {
			b[i] = d
		}
	}
	return string(b)
}

// Normalize uppercases an OCR line and maps look-alike filler characters
// to '<' ('«' counts as two). Spaces are dropped.
func Normalize(line string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(line) {
		switch {
		case r == ' ' || r == '\t':
		case r == '«':
			b.WriteString("<<")
		case r == '<' || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		default:
			b.WriteByte('<')
		}
	}
	return b.String()
}
