package vision

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/crbook/internal/doctype"
)

// promptField is one JSON key requested from the model with its hint.
type promptField struct {
	Key  string
	Hint string
}

var crbookFields = []promptField{
	{"cr_book_number", "CR book number"},
	{"registration_number", "Vehicle registration number"},
	{"chassis_number", "Chassis number of the vehicle"},
	{"engine_number", "Engine number of the vehicle"},
	{"cylinder_capacity", "Cylinder capacity of the vehicle"},
	{"class_of_vehicle", "Class of the vehicle (e.g., Motorcycle, Car)"},
	{"taxation_class", "Taxation class of the vehicle"},
	{"status_when_registered", "Status of the vehicle when registered (e.g., Brand New, Reconditioned)"},
	{"fuel_type", "Fuel type of the vehicle (e.g., Petrol, Diesel)"},
	{"provincial_council", "Provincial council of registration if available, null if not found"},
	{"date_of_registration", "Date of registration in YYYY-MM-DD format if available, null if not found"},
	{"owner_name", "Name and address of the current owner if available, null if not found"},
	{"absolute_owner", "Name and address of the absolute owner if available, null if not found"},
	{"absolute_owner_reference_date", "Reference date for absolute owner if available, null if not found"},
	{"previous_owners", "Number of previous owners if available, null if not found"},
	{"previous_owner_details", "List of strings with previous owner name, address and transfer date"},
	{"make", "Make of the vehicle if available, null if not found"},
	{"model", "Model of the vehicle if available, null if not found"},
	{"color", "Color of the vehicle if available, null if not found"},
	{"year_of_manufacture", "Year of manufacture if available, null if not found"},
	{"country_of_origin", "Country of origin of the vehicle if available, null if not found"},
	{"wheelbase", "Wheelbase of the vehicle if available, null if not found"},
	{"seating_capacity", "Seating capacity of the vehicle if available, null if not found"},
	{"gross_weight", "Gross weight of the vehicle if available, null if not found"},
	{"unladen_weight", "Unladen weight of the vehicle in KG if available (Ex. 100 KG), null if not found"},
	{"type_of_body", "Type of body of the vehicle if available (Ex. OPEN, CLOSED), null if not found"},
	{"overhang", "Overhang details of the vehicle if available, null if not found"},
	{"tire_size_front", "Front tire size if available, null if not found"},
	{"tire_size_rear", "Rear tire size if available, null if not found"},
	{"vehicle_dimensions", "Vehicle dimensions (length = value, width = value, height = value) if available, null if not found"},
	{"printed_date", "Printed date in YYYY-MM-DD format if available, null if not found"},
}

var licenceFields = []promptField{
	{"name", "1,2. full name"},
	{"licence_number", "5. number"},
	{"nic_number", "4d. number, e.g. 123456789V (old format) or 123456789012 (new format)"},
	{"address", "8. complete address"},
	{"date_of_birth", "3. YYYY-MM-DD"},
	{"date_of_issue", "4a. YYYY-MM-DD"},
	{"date_of_expiry", "4b. YYYY-MM-DD"},
	{"blood_group", "group if available, null if not. Example: A+, B-"},
}

var passportFields = []promptField{
	{"surname", "family name/surname"},
	{"name", "other names (excluding surname)"},
	{"passport_number", "passport number"},
	{"nic_number", "national ID number if available, null if not found"},
	{"nationality", "country of nationality"},
	{"sex", "Male or Female if M or F is visible"},
	{"document_type", "type of passport (e.g. PA-Regular, PB-Diplomatic)"},
	{"date_of_birth", "YYYY-MM-DD"},
	{"date_of_issue", "YYYY-MM-DD"},
	{"date_of_expiry", "YYYY-MM-DD"},
	{"mrz_code", "MRZ code line by line if visible, null if not visible"},
}

func promptFields(t doctype.Type) []promptField {
	switch t {
	case doctype.CRBook:
		return crbookFields
	case doctype.Licence:
		return licenceFields
	case doctype.Passport:
		return passportFields
	}
	return nil
}

// Prompt builds the extraction prompt for a document type.
func Prompt(t doctype.Type) (string, error) {
	pf := promptFields(t)
	if pf == nil {
		return "", fmt.Errorf("%w: %q", doctype.ErrUnknown, string(t))
	}
	label := t.Label()

	var b strings.Builder
	fmt.Fprintf(&b, "First, determine if the provided image is a %s. ", label)
	fmt.Fprintf(&b, "If the image is not a %s, return null for all fields in the JSON structure.\n\n", label)
	fmt.Fprintf(&b, "If the image is a %s, analyze it carefully and provide the information in valid JSON format with the following fields:\n{\n", label)
	for i, f := range pf {
		sep := ","
		if i == len(pf)-1 {
			sep = ""
		}
		fmt.Fprintf(&b, "    %q: %q%s\n", f.Key, f.Hint, sep)
	}
	b.WriteString("}\n\n")
	b.WriteString("Important instructions:\n")
	b.WriteString("1. For dates, convert to YYYY-MM-DD format.\n")
	b.WriteString("2. Return exact text as shown, do not correct or modify spellings.\n")
	b.WriteString("3. If a field is not visible or cannot be determined, set it to null.\n\n")
	b.WriteString("Ensure the response is valid JSON format.")
	return b.String(), nil
}
