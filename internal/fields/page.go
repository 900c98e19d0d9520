package fields

import (
	"regexp"
	"strconv"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/MeKo-Tech/crbook/internal/ocr"
)

// Full-page fields read from the OCR of the whole uncropped photo, the same
// result the document validator computes.

var (
	crNumberPattern   = regexp.MustCompile(`(?i)(?:CR|LOT)\s*(?:No\.?|NUMBER)?\s*:?\s*(?:LOT\s*F\s*M)?\s*(\d{7})`)
	modelPattern      = regexp.MustCompile(`^[A-Z0-9-]+$`)
	transferPattern   = regexp.MustCompile(`(?i)TRANSFERRED\s+DATE\s*:\s*(\d{2}/\d{2}/\d{4})`)
	unladenPattern    = regexp.MustCompile(`UNLADEN[:\s]*(\d+(?:\.\d+)?)\s*KG`)
	grossPattern      = regexp.MustCompile(`GROSS[:\s]*(\d+(?:\.\d+)?)\s*KG`)
	lengthPattern     = regexp.MustCompile(`(?i)LENGTH[:\s]*(\d+(?:\.\d+)?)\s*(?:CM|MM)`)
	widthPattern      = regexp.MustCompile(`(?i)WIDTH[:\s]*(\d+(?:\.\d+)?)\s*(?:CM|MM)`)
	heightPattern     = regexp.MustCompile(`(?i)HEIGHT[:\s]*(\d+(?:\.\d+)?)\s*(?:CM|MM)`)
	addressCuePattern = regexp.MustCompile(`(?i)NO\.?\s*\d+|ROAD|STREET|COLOMBO|LANE`)
)

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{2}/\d{2}/\d{4})`),
	regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`),
	regexp.MustCompile(`(\d{2}-\d{2}-\d{4})`),
}

var manufacturers = []string{"PIAGGIO", "HONDA", "TOYOTA", "SUZUKI", "BAJAJ"}

var ownerHeaders = map[string]bool{"current owner": true, "address": true, "i.d.no": true}

// CRBookNumber captures the seven-digit book number after a CR or LOT label.
func CRBookNumber() Extractor {
	return Cascade{Matchers: []Matcher{RegexMatcher{Pattern: crNumberPattern, Group: 1}}}
}

// OwnerDetails groups fragments into chunks ending with ".", "lanka" or
// "colombo"; the first chunk is the name and the second the address.
func OwnerDetails() Extractor {
	return ExtractorFunc(func(r ocr.Result) Value {
		var chunks []string
		var cur strings.Builder
		flush := func() {
			if s := strings.TrimSpace(cur.String()); s != "" {
				chunks = append(chunks, s)
			}
			cur.Reset()
		}
		for _, text := range r.Texts() {
			text = strings.TrimSpace(text)
			lower := strings.ToLower(text)
			if text == "" || ownerHeaders[lower] {
				continue
			}
			cur.WriteString(" ")
			cur.WriteString(text)
			if strings.HasSuffix(lower, ".") || strings.HasSuffix(lower, "lanka") || strings.HasSuffix(lower, "colombo") {
				flush()
			}
		}
		flush()
		if len(chunks) == 0 {
			return Absent
		}
		o := Owner{Name: chunks[0]}
		if len(chunks) > 1 {
			o.Address = chunks[1]
		}
		return Structured(o)
	})
}

// makeAndModel finds a known manufacturer and the first code-like fragment
// seen after it.
func makeAndModel(r ocr.Result) (maker, model string) {
	for _, text := range r.Texts() {
		text = strings.ToUpper(strings.TrimSpace(text))
		for _, m := range manufacturers {
			if fuzzy.Ratio(m, text) > 80 {
				maker = m
				break
			}
		}
		if maker != "" && text != maker && modelPattern.MatchString(text) {
			return maker, text
		}
	}
	return maker, ""
}

// Make returns the vehicle manufacturer.
func Make() Extractor {
	return ExtractorFunc(func(r ocr.Result) Value {
		if mk, _ := makeAndModel(r); mk != "" {
			return Text(mk)
		}
		return Absent
	})
}

// Model returns the model code following the manufacturer.
func Model() Extractor {
	return ExtractorFunc(func(r ocr.Result) Value {
		if _, md := makeAndModel(r); md != "" {
			return Text(md)
		}
		return Absent
	})
}

// keywordDate returns the last date found on a fragment mentioning keyword.
func keywordDate(keyword string) Extractor {
	return ExtractorFunc(func(r ocr.Result) Value {
		found := ""
		for _, text := range r.Texts() {
			if !strings.Contains(strings.ToUpper(text), keyword) {
				continue
			}
			for _, p := range datePatterns {
				if m := p.FindStringSubmatch(text); m != nil {
					found = m[1]
				}
			}
		}
		if found == "" {
			return Absent
		}
		return Text(found)
	})
}

// RegistrationDate reads the date on a REGISTRATION line.
func RegistrationDate() Extractor { return keywordDate("REGISTRATION") }

// PrintedDate reads the date on a PRINTED line.
func PrintedDate() Extractor { return keywordDate("PRINTED") }

// lastNumber returns the last number captured by p; upper upper-cases
// fragments first.
func lastNumber(p *regexp.Regexp, upper bool) Extractor {
	return ExtractorFunc(func(r ocr.Result) Value {
		v, ok := 0.0, false
		for _, text := range r.Texts() {
			if upper {
				text = strings.ToUpper(text)
			}
			m := p.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			if f, err := strconv.ParseFloat(m[1], 64); err == nil {
				v, ok = f, true
			}
		}
		if !ok {
			return Absent
		}
		return Number(v)
	})
}

// UnladenWeight in kilograms.
func UnladenWeight() Extractor { return lastNumber(unladenPattern, true) }

// GrossWeight in kilograms.
func GrossWeight() Extractor { return lastNumber(grossPattern, true) }

// Length as printed, CM or MM.
func Length() Extractor { return lastNumber(lengthPattern, false) }

// Width as printed, CM or MM.
func Width() Extractor { return lastNumber(widthPattern, false) }

// Height as printed, CM or MM.
func Height() Extractor { return lastNumber(heightPattern, false) }

// PreviousOwners splits the ownership history on TRANSFERRED DATE lines.
// Fragments with an address cue extend the address; otherwise the first
// non-blank fragment of a record is its name. A trailing open record is kept.
func PreviousOwners() Extractor {
	return ExtractorFunc(func(r ocr.Result) Value {
		var owners []PreviousOwner
		var cur PreviousOwner
		for _, text := range r.Texts() {
			if m := transferPattern.FindStringSubmatch(text); m != nil {
				if !cur.empty() {
					cur.TransferDate = m[1]
					owners = append(owners, cur)
					cur = PreviousOwner{}
				}
				continue
			}
			switch {
			case addressCuePattern.MatchString(text):
				if cur.Address == "" {
					cur.Address = text
				} else {
					cur.Address += ", " + text
				}
			case !isBlank(text) && cur.Name == "":
				cur.Name = text
			}
		}
		if !cur.empty() {
			owners = append(owners, cur)
		}
		if len(owners) == 0 {
			return Absent
		}
		return Structured(owners)
	})
}
