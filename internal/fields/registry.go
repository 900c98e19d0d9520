package fields

import "github.com/MeKo-Tech/crbook/internal/ocr"

// CR book field names as they appear in every output format.
const (
	RegistrationNumberField   = "Registration Number"
	ChassisNumberField        = "Chassis Number"
	EngineNumberField         = "Engine Number"
	CylinderCapacityField     = "Cylinder Capacity"
	ClassOfVehicleField       = "Class of Vehicle"
	TaxationClassField        = "Taxation Class"
	StatusWhenRegisteredField = "Status When Registered"
	FuelTypeField             = "Fuel Type"

	CRBookNumberField     = "CR Book Number"
	OwnerDetailsField     = "Owner Details"
	MakeField             = "Make"
	ModelField            = "Model"
	RegistrationDateField = "Registration Date"
	PrintedDateField      = "Printed Date"
	UnladenWeightField    = "Unladen Weight"
	GrossWeightField      = "Gross Weight"
	LengthField           = "Length"
	WidthField            = "Width"
	HeightField           = "Height"
	PreviousOwnersField   = "Previous Owners"
)

// Spec locates a field on the cropped document and names its extractor.
// Rect is in percent of the cropped width and height; Tolerance widens it
// by that many percentage points on every side.
type Spec struct {
	Name      string
	Rect      ocr.Rect
	Tolerance float64
	Extractor Extractor
}

// Registry is an ordered list of region fields.
type Registry []Spec

// Names lists the field names in order.
func (r Registry) Names() []string {
	out := make([]string, len(r))
	for i, s := range r {
		out[i] = s.Name
	}
	return out
}

// Lookup returns the Spec with the given name.
func (r Registry) Lookup(name string) (Spec, bool) {
	for _, s := range r {
		if s.Name == name {
			return s, true
		}
	}
	return Spec{}, false
}

// CRBookRegistry returns the region fields of a CR book page.
func CRBookRegistry() Registry {
	return Registry{
		{Name: RegistrationNumberField, Rect: ocr.Rect{X1: 9, Y1: 14, X2: 12, Y2: 10}, Tolerance: 12.5, Extractor: RegistrationNumber()},
		{Name: ChassisNumberField, Rect: ocr.Rect{X1: 55, Y1: 12, X2: 69, Y2: 10}, Tolerance: 11, Extractor: ChassisNumber()},
		{Name: EngineNumberField, Rect: ocr.Rect{X1: 9, Y1: 49, X2: 13, Y2: 45}, Tolerance: 10, Extractor: EngineNumber()},
		{Name: CylinderCapacityField, Rect: ocr.Rect{X1: 56, Y1: 49, X2: 61, Y2: 45}, Tolerance: 6, Extractor: CylinderCapacity()},
		{Name: ClassOfVehicleField, Rect: ocr.Rect{X1: 10, Y1: 52, X2: 16, Y2: 47}, Tolerance: 8, Extractor: ClassOfVehicle()},
		{Name: TaxationClassField, Rect: ocr.Rect{X1: 56, Y1: 52, X2: 64, Y2: 48}, Tolerance: 10, Extractor: TaxationClass()},
		{Name: StatusWhenRegisteredField, Rect: ocr.Rect{X1: 10, Y1: 55, X2: 14, Y2: 50}, Tolerance: 7, Extractor: StatusWhenRegistered()},
		{Name: FuelTypeField, Rect: ocr.Rect{X1: 56, Y1: 55, X2: 58, Y2: 50}, Tolerance: 7, Extractor: FuelType()},
	}
}

// PageField is extracted from the OCR of the whole cropped page.
type PageField struct {
	Name      string
	Extractor Extractor
}

// CRBookPageFields returns the full-page CR book fields in output order.
func CRBookPageFields() []PageField {
	return []PageField{
		{Name: CRBookNumberField, Extractor: CRBookNumber()},
		{Name: OwnerDetailsField, Extractor: OwnerDetails()},
		{Name: MakeField, Extractor: Make()},
		{Name: ModelField, Extractor: Model()},
		{Name: RegistrationDateField, Extractor: RegistrationDate()},
		{Name: PrintedDateField, Extractor: PrintedDate()},
		{Name: UnladenWeightField, Extractor: UnladenWeight()},
		{Name: GrossWeightField, Extractor: GrossWeight()},
		{Name: LengthField, Extractor: Length()},
		{Name: WidthField, Extractor: Width()},
		{Name: HeightField, Extractor: Height()},
		{Name: PreviousOwnersField, Extractor: PreviousOwners()},
	}
}
