package licence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MeKo-Tech/crbook/internal/fields"
	"github.com/MeKo-Tech/crbook/internal/ocr"
)

var sampleCard = strings.Join([]string{
	"DEMOCRATIC SOCIALIST REPUBLIC OF SRI LANKA",
	"DRIVING LICENCE",
	"1,2.PERERA",
	"JOHN SILVA",
	"3.12.05.1985",
	"4a.01.02.2015",
	"4b.01.02.2023",
	"4d.198512345678",
	"5.B1234567",
	"8.NO 12, MAIN STREET",
	"COLOMBO 05",
	"SL",
	"Blood Group",
	"O+",
}, "\n")

func TestExtract_FullCard(t *testing.T) {
	got := Extract(sampleCard)
	assert.Equal(t, Info{
		Name:          "PERERA JOHN SILVA",
		LicenceNumber: "B1234567",
		NICNumber:     "198512345678",
		Address:       "NO 12, MAIN STREET COLOMBO 05",
		DateOfBirth:   "12.05.1985",
		DateOfIssue:   "01.02.2015",
		DateOfExpiry:  "01.02.2023",
		BloodGroup:    "O+",
	}, got)
}

func TestExtract_Name(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  string
	}{
		{"continuation joined", []string{"1.2.SILVA", "KAMAL"}, "SILVA KAMAL"},
		{"address not joined", []string{"12.FERNANDO A", "8.GALLE ROAD"}, "FERNANDO A"},
		{"code line not joined", []string{",2 DE SILVA", "SL 123"}, "DE SILVA"},
		{"last line", []string{"1,2,NIMAL"}, "NIMAL"},
		{"no label", []string{"NAME NIMAL"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(strings.Join(tt.lines, "\n")).Name)
		})
	}
}

func TestExtract_NumbersAndNIC(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantLicence string
		wantNIC     string
	}{
		{"8 prefix", "5. 81234567", "81234567", ""},
		{"old NIC gets V", "4C.851234567", "", "851234567V"},
		{"NIC with letter kept", "ID 851234567V", "", "851234567V"},
		{"short licence ignored", "5.B123", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text)
			assert.Equal(t, tt.wantLicence, got.LicenceNumber)
			assert.Equal(t, tt.wantNIC, got.NICNumber)
		})
	}
}

func TestExtract_AddressSkipsCodesAndDates(t *testing.T) {
	text := strings.Join([]string{"B.45 LAKE LANE", "3.01.01.1990", "KANDY"}, "\n")
	assert.Equal(t, "45 LAKE LANE KANDY", Extract(text).Address)
}

func TestExtract_BloodGroupSameLine(t *testing.T) {
	assert.Equal(t, "AB-", Extract("blood group AB-").BloodGroup)
	assert.Empty(t, Extract("NO BLOOD").BloodGroup)
}

func TestExtract_Empty(t *testing.T) {
	assert.Equal(t, Info{}, Extract(""))
	for _, n := range FieldNames() {
		assert.Equal(t, fields.Absent, Info{}.Get(n), n)
	}
}

func TestPageFields(t *testing.T) {
	res := ocr.NewResult(strings.Split(sampleCard, "\n")...)
	pfs := PageFields()
	assert.Len(t, pfs, 8)
	got := map[string]fields.Value{}
	for _, pf := range pfs {
		got[pf.Name] = pf.Extractor.Extract(res)
	}
	assert.Equal(t, fields.Text("B1234567"), got[LicenceNumberField])
	assert.Equal(t, fields.Text("PERERA JOHN SILVA"), got[NameField])
	assert.Equal(t, fields.Text("O+"), got[BloodGroupField])
	assert.Equal(t, fields.Absent, Info{}.Get("Unknown"))
}
