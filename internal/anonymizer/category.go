package anonymizer

import "fmt"

// Category classifies the kind of PII a recognizer detects. The numeric value
// doubles as the user-visible identifier suffix (".1" through ".7").
type Category int

// Supported categories, in suffix order.
const (
	FullName Category = iota + 1
	DOBAge
	Address
	RefName
	NIN
	Phone
	Email
)

// Categories lists every category in suffix order.
var Categories = []Category{FullName, DOBAge, Address, RefName, NIN, Phone, Email}

// PassOrder is the order in which the driver runs the passes.
// DOB/Age precedes Address because addresses may hold bare numbers, and
// Address precedes RefName so street and city tokens are consumed before
// registered last names are rewritten.
var PassOrder = []Category{FullName, DOBAge, Address, RefName, NIN, Phone, Email}

var categoryNames = map[Category]string{
	FullName: "FULL_NAME",
	DOBAge:   "DOB_AGE",
	Address:  "ADDRESS",
	RefName:  "REF_NAME",
	NIN:      "NIN",
	Phone:    "PHONE",
	Email:    "EMAIL",
}

var categoryHeaders = map[Category]string{
	FullName: "Anonymizing the full names (as x.1):",
	DOBAge:   "Anonymizing the Ages/DoBs (as x.2):",
	Address:  "Anonymizing the Addresses With- or Without Postal Codes (as x.3):",
	RefName:  "Anonymizing the referenced Firstnames/Lastnames (as x.4):",
	NIN:      "Anonymizing National Insurance Numbers (NIN) (as x.5):",
	Phone:    "Anonymizing Phone Numbers (as x.6):",
	Email:    "Anonymizing Email Addresses (as x.7):",
}

// String returns the category tag, e.g. "FULL_NAME".
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// Suffix returns the identifier suffix, e.g. ".1".
func (c Category) Suffix() string {
	return fmt.Sprintf(".%d", int(c))
}

// Header returns the mapping-log section header for the category.
func (c Category) Header() string {
	return categoryHeaders[c]
}

// ParseCategory maps a tag such as "PHONE" back to its Category.
func ParseCategory(name string) (Category, error) {
	for c, n := range categoryNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", name)
}
