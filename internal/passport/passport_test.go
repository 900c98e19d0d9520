package passport

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/crbook/internal/fields"
	"github.com/MeKo-Tech/crbook/internal/ocr"
)

// ICAO 9303 specimen zones.
const (
	td3Line1 = "P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<"
	td3Line2 = "L898902C36UTO7408122F1204159ZE184226B<<<<<10"

	td1Line1 = "I<UTOD231458907<<<<<<<<<<<<<<<"
	td1Line2 = "7408122F1204159UTO<<<<<<<<<<<6"
	td1Line3 = "ERIKSSON<<ANNA<MARIA<<<<<<<<<<"
)

func TestCheckDigit(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"L898902C3", 6},
		{"740812", 2},
		{"120415", 9},
		{"D23145890", 7},
		{"<<<<<<", 0},
		{"", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckDigit(tt.in))
		})
	}
}

func TestParseMRZ_TD3(t *testing.T) {
	m, err := ParseMRZ([]string{td3Line1, td3Line2})
	require.NoError(t, err)

	assert.Equal(t, TD3, m.Format)
	assert.Equal(t, "P<", m.DocumentType)
	assert.Equal(t, "UTO", m.Country)
	assert.Equal(t, "ERIKSSON", m.Surname)
	assert.Equal(t, "ANNA MARIA", m.GivenNames)
	assert.Equal(t, "L898902C3", m.Number)
	assert.Equal(t, "UTO", m.Nationality)
	assert.Equal(t, "740812", m.BirthDate)
	assert.Equal(t, "F", m.Sex)
	assert.Equal(t, "120415", m.ExpiryDate)
	assert.Equal(t, "ZE184226B<<<<<", m.PersonalNumber)
	assert.True(t, m.Valid())
	assert.Equal(t, 5, m.Score())
}

func TestParseMRZ_TD1(t *testing.T) {
	m, err := ParseMRZ([]string{td1Line1, td1Line2, td1Line3})
	require.NoError(t, err)

	assert.Equal(t, TD1, m.Format)
	assert.Equal(t, "D23145890", m.Number)
	assert.Equal(t, "740812", m.BirthDate)
	assert.Equal(t, "120415", m.ExpiryDate)
	assert.Equal(t, "ERIKSSON", m.Surname)
	assert.True(t, m.Valid())
}

func TestParseMRZ_RepairsDigitsAndDetectsCorruption(t *testing.T) {
	// O for 0 in the birth date check position is repaired.
	fixed := "L898902C36UTO74O8122F1204159ZE184226B<<<<<10"
	m, err := ParseMRZ([]string{td3Line1, fixed})
	require.NoError(t, err)
	assert.Equal(t, "740812", m.BirthDate)
	assert.True(t, m.Valid())

	corrupt := "L898902C35UTO7408122F1204159ZE184226B<<<<<10"
	m, err = ParseMRZ([]string{td3Line1, corrupt})
	require.NoError(t, err)
	assert.False(t, m.Checks.Number)
	assert.False(t, m.Valid())
}

func TestParseMRZ_Errors(t *testing.T) {
	_, err := ParseMRZ(nil)
	require.ErrorIs(t, err, ErrNoMRZ)

	_, err = ParseMRZ([]string{"P<UTO", "123"})
	require.ErrorIs(t, err, ErrMalformedMRZ)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "P<UTO<<ANNA", Normalize("p<uto « anna"))
	assert.Equal(t, "AB<12", Normalize("AB-12"))
}

func TestFromMRZ(t *testing.T) {
	m, err := ParseMRZ([]string{td3Line1, td3Line2})
	require.NoError(t, err)

	info := FromMRZ(m)
	assert.Equal(t, Info{
		Name:           "ANNA MARIA",
		Surname:        "ERIKSSON",
		NICNumber:      "ZE184226B",
		PassportNumber: "L898902C3",
		Country:        "Utopia",
		Sex:            "Female",
		Type:           "P",
		MRZCode:        td3Line1 + "\n" + td3Line2,
		DateOfExpiry:   "2012-04-15",
		DateOfIssue:    "2002-04-15",
		DateOfBirth:    "2074-08-12",
	}, info)
	assert.Equal(t, Info{}, FromMRZ(nil))
}

func TestFromMRZ_OldNICMeansLastCentury(t *testing.T) {
	m := &MRZ{BirthDate: "850101", PersonalNumber: "851234567V<<<<", Sex: "M", Nationality: "LKA"}
	info := FromMRZ(m)
	assert.Equal(t, "1985-01-01", info.DateOfBirth)
	assert.Equal(t, "Male", info.Sex)
	assert.Equal(t, "Sri Lanka", info.Country)
	assert.Empty(t, info.DateOfExpiry)
}

func TestCountryName(t *testing.T) {
	name, ok := CountryName("LKA")
	assert.True(t, ok)
	assert.Equal(t, "Sri Lanka", name)

	name, ok = CountryName("D<<")
	assert.True(t, ok)
	assert.Equal(t, "Germany", name)

	_, ok = CountryName("QQQ")
	assert.False(t, ok)
}

func TestFindMRZ_FromNoisyOCR(t *testing.T) {
	texts := []string{
		"PASSPORT",
		"REPUBLIC OF UTOPIA",
		"P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<", // two fillers lost
		"L898902C36UTO7408122F1204159ZE184226B<<<<<10",
	}
	m, err := FindMRZ(texts)
	require.NoError(t, err)
	assert.Equal(t, TD3, m.Format)
	assert.Equal(t, "L898902C3", m.Number)
	assert.True(t, m.Valid())

	_, err = FindMRZ([]string{"PASSPORT", "NO MRZ HERE"})
	require.ErrorIs(t, err, ErrNoMRZ)
}

func TestPageFields(t *testing.T) {
	res := ocr.NewResult("PASSPORT", td3Line1, td3Line2)
	got := map[string]fields.Value{}
	for _, pf := range PageFields() {
		got[pf.Name] = pf.Extractor.Extract(res)
	}
	assert.Len(t, got, len(FieldNames()))
	assert.Equal(t, fields.Text("L898902C3"), got[PassportNumberField])
	assert.Equal(t, fields.Text("Utopia"), got[CountryField])

	empty := ocr.NewResult("PASSPORT")
	for _, pf := range PageFields() {
		assert.Equal(t, fields.Absent, pf.Extractor.Extract(empty), pf.Name)
	}
}

func TestCheckDigit_DetectsSingleSubstitution(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("changing one digit changes the check digit", prop.ForAll(
		func(digits []int, pos int, delta int) bool {
			b := make([]byte, len(digits))
			for i, d := range digits {
				b[i] = byte('0' + d)
			}
			orig := CheckDigit(string(b))
			p := pos % len(b)
			b[p] = byte('0' + (int(b[p]-'0')+delta)%10)
			return CheckDigit(string(b)) != orig
		},
		gen.SliceOfN(9, gen.IntRange(0, 9)),
		gen.IntRange(0, 8),
		gen.IntRange(1, 9),
	))
	properties.TestingRun(t)
}
