package fields

import (
	"regexp"
	"strings"
	"unicode"
)

var registrationPrefixes = []string{"WP", "CP", "SP", "NP", "EP", "NW", "NC", "SG", "UW", "80"}

var (
	registrationPattern = regexp.MustCompile(`(?:[a-zA-Z]{2,3}-?\d{4}|[0-9]+-[0-9]+)$`)
	engineNoPattern     = regexp.MustCompile(`^[A-Z0-9-]+$`)
	cylinderPattern     = regexp.MustCompile(`CC|0000|00`)
)

// RegistrationNumber finds a plate number and separates a known province
// prefix from the digits: "WP1234" becomes "WP 1234".
func RegistrationNumber() Extractor {
	return Cascade{
		Matchers: []Matcher{RegexMatcher{Pattern: registrationPattern}},
		Then:     spaceAfterPrefix,
	}
}

func spaceAfterPrefix(text string) string {
	for _, p := range registrationPrefixes {
		if !strings.HasPrefix(text, p) {
			continue
		}
		rest := text[len(p):]
		if strings.HasPrefix(rest, " ") {
			return text
		}
		return p + " " + rest
	}
	return text
}

// charClass describes the allowed alphabet of a fixed-length code.
type charClass int

const (
	alnum charClass = iota
	alnumHyphen
	lettersOnly
)

func (c charClass) allows(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return c != lettersOnly
	case r == '-':
		return c == alnumHyphen
	}
	return false
}

// codeMatcher accepts whole fragments of exactly Length characters from
// Class with at least MinUpper uppercase letters and MinDigits digits.
type codeMatcher struct {
	Length    int
	Class     charClass
	MinUpper  int
	MinDigits int
}

func (m codeMatcher) Match(s string) (string, bool) {
	if len(s) != m.Length {
		return "", false
	}
	upper, digits := 0, 0
	for _, r := range s {
		if !m.Class.allows(r) {
			return "", false
		}
		switch {
		case r >= 'A' && r <= 'Z':
			upper++
		case r >= '0' && r <= '9':
			digits++
		}
	}
	if upper < m.MinUpper || digits < m.MinDigits {
		return "", false
	}
	return s, true
}

// ChassisNumber tries VIN-like shapes from most to least common.
func ChassisNumber() Extractor {
	return Cascade{Matchers: []Matcher{
		codeMatcher{Length: 17, Class: alnum, MinUpper: 2, MinDigits: 2},
		codeMatcher{Length: 16, Class: alnum, MinUpper: 2, MinDigits: 2},
		codeMatcher{Length: 13, Class: alnumHyphen, MinUpper: 2, MinDigits: 2},
		codeMatcher{Length: 14, Class: alnumHyphen, MinUpper: 2, MinDigits: 2},
		codeMatcher{Length: 18, Class: alnumHyphen, MinUpper: 2, MinDigits: 2},
		codeMatcher{Length: 17, Class: lettersOnly},
	}}
}

// EngineNumber accepts uppercase codes with at least four digits.
func EngineNumber() Extractor {
	return Cascade{Matchers: []Matcher{MatcherFunc(func(s string) (string, bool) {
		if !engineNoPattern.MatchString(s) || countDigits(s) < 4 {
			return "", false
		}
		return s, true
	})}}
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

var digitConfusions = strings.NewReplacer("A", "4", "Z", "7", "F", "8")

// CylinderCapacity repairs common digit misreads and normalizes to "N CC"
// or "N.00 CC".
func CylinderCapacity() Extractor {
	return Cascade{
		Matchers: []Matcher{RegexMatcher{Pattern: cylinderPattern}},
		Then:     normalizeCapacity,
	}
}

func normalizeCapacity(text string) string {
	text = digitConfusions.Replace(text)
	if before, _, ok := strings.Cut(text, "."); ok {
		return before + ".00 CC"
	}
	if strings.HasSuffix(text, "0000") {
		return text[:len(text)-4] + ".00 CC"
	}
	text = strings.TrimRight(strings.TrimSuffix(strings.TrimSpace(text), "CC"), " ")
	return text + " CC"
}

// ClassOfVehicle fuzzy-matches the vehicle class vocabulary.
func ClassOfVehicle() Extractor {
	return FuzzyTable{
		Targets:   []string{"MOTOR TRICYCLE", "MOTOR CYCLE", "LAND VEHICLE", "DUALPURPOSE VEHICLE"},
		Threshold: 50,
		Before:    []func(string) string{repairMotorPrefix},
		Canonical: []Canonical{
			{Keyword: "DUAL", Value: "DUAL PURPOSE VEHICLE"},
			{Keyword: "LAND", Value: "LAND VEHICLE"},
			{Keyword: "TRI", Value: "MOTOR TRICYCLE"},
		},
		After: []func(string) string{spaceAfterMotor, repairCycle},
	}
}

// repairMotorPrefix rewrites the first five characters to MOTOR when the
// text starts with MOT or has OR at positions 4 and 5.
func repairMotorPrefix(text string) string {
	r := []rune(text)
	if strings.HasPrefix(text, "MOT") || (len(r) > 4 && string(r[3:5]) == "OR") {
		if len(r) < 5 {
			return "MOTOR"
		}
		return "MOTOR" + string(r[5:])
	}
	return text
}

// spaceAfterMotor separates MOTOR from a following word when the rest of
// the text is a single word.
func spaceAfterMotor(text string) string {
	_, rest, ok := strings.Cut(text, "MOTOR")
	if !ok || rest == "" || strings.Contains(rest, " ") {
		return text
	}
	return strings.Replace(text, "MOTOR", "MOTOR ", 1)
}

// repairCycle turns five-letter words ending in CLE into CYCLE.
func repairCycle(text string) string {
	words := strings.Split(text, " ")
	for i, w := range words {
		if len([]rune(w)) == 5 && strings.HasSuffix(w, "CLE") {
			words[i] = "CYCLE"
		}
	}
	return strings.Join(words, " ")
}

// TaxationClass fuzzy-matches the taxation class vocabulary.
func TaxationClass() Extractor {
	return FuzzyTable{
		Targets: []string{
			"THREE WHEELER CAR", "MOTOR CYCLE", "LAND VEHICLE",
			"DUAL PURPOSE VEHICLE", "LIGHT MOTOR CYCLE", "MOTOR CAR",
		},
		Threshold: 50,
		Prepare:   prepareTaxation,
		Canonical: []Canonical{
			{Keyword: "DUAL", Value: "DUAL PURPOSE VEHICLE"},
			{Keyword: "LAND", Value: "LAND VEHICLE"},
			{Keyword: "THREE", Value: "THREE WHEELER CAR"},
		},
	}
}

// prepareTaxation drops stray single characters and splits MOTOR from a
// glued-on next word.
func prepareTaxation(text string) string {
	words := strings.Fields(text)
	kept := words[:0]
	for _, w := range words {
		if len([]rune(w)) > 1 {
			kept = append(kept, w)
		}
	}
	text = strings.Join(kept, " ")
	if i := strings.Index(text, "MOTOR"); i >= 0 && i+5 < len(text) && text[i+5] != ' ' {
		text = text[:i+5] + " " + text[i+5:]
	}
	return text
}

// StatusWhenRegistered returns BRAND NEW or RECONDITIONED.
func StatusWhenRegistered() Extractor {
	return FuzzyTable{Targets: []string{"BRAND NEW", "RECONDITIONED"}, Threshold: 50, ReturnTarget: true}
}

// FuelType returns DIESEL or PETROL.
func FuelType() Extractor {
	return FuzzyTable{Targets: []string{"DIESEL", "PETROL"}, Threshold: 50, ReturnTarget: true}
}

func isBlank(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}
