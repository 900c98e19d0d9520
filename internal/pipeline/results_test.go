package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/crbook/internal/doctype"
	"github.com/MeKo-Tech/crbook/internal/fields"
)

func sampleResult() *Result {
	return &Result{
		DocType: doctype.CRBook,
		Status:  StatusOK,
		Fields: []FieldEntry{
			{Name: fields.RegistrationNumberField, Value: fields.Text("WP 1234")},
			{Name: fields.ChassisNumberField, Value: fields.Absent},
			{Name: fields.UnladenWeightField, Value: fields.Number(1200.5)},
		},
		ImageBase64: "aGVsbG8=",
	}
}

func TestToJSON_KeepsFieldOrderAndSentinel(t *testing.T) {
	out, err := ToJSON(sampleResult(), true)
	require.NoError(t, err)

	reg := strings.Index(out, `"Registration Number"`)
	chassis := strings.Index(out, `"Chassis Number"`)
	weight := strings.Index(out, `"Unladen Weight"`)
	assert.True(t, reg < chassis && chassis < weight, "fields keep registry order")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	info := decoded["extracted_info"].(map[string]any)
	assert.Equal(t, "WP 1234", info["Registration Number"])
	assert.Equal(t, NoMatch, info["Chassis Number"])
	assert.InDelta(t, 1200.5, info["Unladen Weight"], 1e-9)
	assert.Equal(t, "aGVsbG8=", decoded["image_data"])
	assert.Equal(t, "ok", decoded["status"])
}

func TestToJSON_RejectedIsNull(t *testing.T) {
	res := sampleResult()
	res.Status = StatusNotExpectedDocument

	out, err := ToJSON(res, false)
	require.NoError(t, err)
	assert.NotContains(t, out, "image_data")

	var decoded struct {
		Status        string         `json:"status"`
		ExtractedInfo map[string]any `json:"extracted_info"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "not_expected_document", decoded.Status)
	require.Len(t, decoded.ExtractedInfo, 3)
	for k, v := range decoded.ExtractedInfo {
		assert.Nil(t, v, k)
	}
}

func TestToJSONBatch(t *testing.T) {
	out, err := ToJSONBatch([]*Result{sampleResult(), sampleResult()}, false)
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Len(t, decoded, 2)

	_, err = ToJSONBatch([]*Result{nil}, false)
	assert.Error(t, err)
}

func TestToText(t *testing.T) {
	out, err := ToText(sampleResult())
	require.NoError(t, err)
	assert.Equal(t, "Registration Number: WP 1234\nChassis Number: "+NoMatch+"\nUnladen Weight: 1200.5", out)

	res := sampleResult()
	res.Status = StatusNotExpectedDocument
	out, err = ToText(res)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Status: not_expected_document\n"))
	assert.Contains(t, out, "Chassis Number: null")

	_, err = ToText(nil)
	assert.Error(t, err)
}

func TestToCSV(t *testing.T) {
	out, err := ToCSV(sampleResult())
	require.NoError(t, err)
	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"field", "value", "found"}, records[0])
	assert.Equal(t, []string{"Registration Number", "WP 1234", "true"}, records[1])
	assert.Equal(t, []string{"Chassis Number", NoMatch, "false"}, records[2])
	assert.Contains(t, out, `"`+NoMatch+`"`, "the sentinel holds a comma and is quoted")

	_, err = ToCSV(nil)
	assert.Error(t, err)
}

func TestToCSVBatch(t *testing.T) {
	rejected := &Result{
		DocType: doctype.Licence,
		Status:  StatusNotExpectedDocument,
		Fields:  []FieldEntry{{Name: "Licence Number", Value: fields.Absent}},
	}
	out, err := ToCSVBatch([]string{"a.jpg", "b.jpg"}, []*Result{sampleResult(), rejected})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "source,doctype,field,value,found", lines[0])
	assert.Equal(t, "a.jpg,crbook,Registration Number,WP 1234,true", lines[1])
	assert.Equal(t, "b.jpg,licence,Licence Number,null,false", lines[4])

	_, err = ToCSVBatch([]string{"a.jpg"}, nil)
	assert.Error(t, err)
}

func TestDisplay(t *testing.T) {
	tests := []struct {
		name     string
		value    fields.Value
		rejected bool
		want     any
	}{
		{"found", fields.Text("X"), false, "X"},
		{"absent", fields.Absent, false, NoMatch},
		{"rejected found", fields.Text("X"), true, nil},
		{"rejected absent", fields.Absent, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Display(tt.value, tt.rejected))
		})
	}
}

func TestPhaseError(t *testing.T) {
	err := &PhaseError{Phase: FrameDetected, Kind: OutlineNotDetected, Err: assert.AnError}
	assert.Contains(t, err.Error(), "outline_not_detected at frame_detected")
	assert.ErrorIs(t, err, assert.AnError)

	withField := &PhaseError{Phase: FieldsExtracted, Kind: OcrEngineFailure, Field: "Fuel Type", Err: assert.AnError}
	assert.Contains(t, withField.Error(), `field "Fuel Type"`)
	assert.Equal(t, Internal, KindOf(assert.AnError))
}
