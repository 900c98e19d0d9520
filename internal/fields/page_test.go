package fields

import (
	"testing"

	"github.com/MeKo-Tech/crbook/internal/ocr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRBookNumber(t *testing.T) {
	runExtractCases(t, CRBookNumber(), []extractCase{
		{"labelled", []string{"CR No: 1234567"}, Text("1234567")},
		{"lower case", []string{"cr no. 7654321"}, Text("7654321")},
		{"lot form", []string{"CR NUMBER LOT F M 1112223"}, Text("1112223")},
		{"six digits", []string{"CR 123456"}, Absent},
	})
}

func TestOwnerDetails(t *testing.T) {
	runExtractCases(t, OwnerDetails(), []extractCase{
		{
			"name and address",
			[]string{"Current Owner", "K. A. PERERA.", "Address", "12 MAIN STREET,", "COLOMBO"},
			Structured(Owner{Name: "K. A. PERERA.", Address: "12 MAIN STREET, COLOMBO"}),
		},
		{"open chunk kept", []string{"JOHN DOE"}, Structured(Owner{Name: "JOHN DOE"})},
		{"headers only", []string{"CURRENT OWNER", "address"}, Absent},
		{"empty", nil, Absent},
	})
}

func TestMakeAndModel(t *testing.T) {
	r := ocr.NewResult("Make", "HONDA", "DIO")
	assert.Equal(t, Text("HONDA"), Make().Extract(r))
	assert.Equal(t, Text("DIO"), Model().Extract(r))

	r = ocr.NewResult("toyota", "axio")
	assert.Equal(t, Text("TOYOTA"), Make().Extract(r))
	assert.Equal(t, Text("AXIO"), Model().Extract(r))

	r = ocr.NewResult("BAJAJ")
	assert.Equal(t, Text("BAJAJ"), Make().Extract(r))
	assert.Equal(t, Absent, Model().Extract(r))

	r = ocr.NewResult("NISSAN", "SUNNY")
	assert.Equal(t, Absent, Make().Extract(r))
	assert.Equal(t, Absent, Model().Extract(r))
}

func TestDates(t *testing.T) {
	r := ocr.NewResult("Date of Registration 12/05/2015", "Printed on 2020-01-02")
	assert.Equal(t, Text("12/05/2015"), RegistrationDate().Extract(r))
	assert.Equal(t, Text("2020-01-02"), PrintedDate().Extract(r))

	r = ocr.NewResult("REGISTRATION 01/01/2010 2011-02-03")
	assert.Equal(t, Text("2011-02-03"), RegistrationDate().Extract(r))
	assert.Equal(t, Absent, PrintedDate().Extract(r))

	r = ocr.NewResult("REGISTRATION 01-02-2003", "REGISTRATION 04/05/2006")
	assert.Equal(t, Text("04/05/2006"), RegistrationDate().Extract(r))
}

func TestWeightsAndDimensions(t *testing.T) {
	r := ocr.NewResult("Unladen: 1200 kg", "GROSS 1850.5KG", "Length: 3600 mm", "width 1500 CM", "HEIGHT:1450MM")
	assert.Equal(t, Number(1200), UnladenWeight().Extract(r))
	assert.Equal(t, Number(1850.5), GrossWeight().Extract(r))
	assert.Equal(t, Number(3600), Length().Extract(r))
	assert.Equal(t, Number(1500), Width().Extract(r))
	assert.Equal(t, Number(1450), Height().Extract(r))

	empty := ocr.NewResult("WEIGHT", "1200")
	assert.Equal(t, Absent, UnladenWeight().Extract(empty))
	assert.Equal(t, Absent, Height().Extract(empty))
}

func TestPreviousOwners(t *testing.T) {
	r := ocr.NewResult(
		"A. B. SILVA",
		"NO. 12",
		"TEMPLE ROAD",
		"Transferred Date: 01/02/2015",
		"C. D. FERNANDO",
		"45 LAKE LANE",
		"TRANSFERRED DATE : 03/04/2018",
		"E. F. PERERA",
	)
	v := PreviousOwners().Extract(r)
	require.True(t, v.Found)
	assert.Equal(t, []PreviousOwner{
		{Name: "A. B. SILVA", Address: "NO. 12, TEMPLE ROAD", TransferDate: "01/02/2015"},
		{Name: "C. D. FERNANDO", Address: "45 LAKE LANE", TransferDate: "03/04/2018"},
		{Name: "E. F. PERERA"},
	}, v.Data)

	lone := ocr.NewResult("Transferred Date: 01/01/2000")
	assert.Equal(t, Absent, PreviousOwners().Extract(lone))
	assert.Equal(t, Absent, PreviousOwners().Extract(nil))
}
