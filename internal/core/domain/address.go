package domain

import (
	"fmt"
	"strings"
)

// Address is a South African street address used for shipping and pickup.
type Address struct {
	Street     string `json:"street"`
	Suburb     string `json:"suburb,omitempty"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country,omitempty"`
}

var provinces = []struct {
	name    string
	code    string
	aliases []string
}{
	{"Eastern Cape", "EC", []string{"ec", "e cape"}},
	{"Free State", "FS", []string{"fs", "orange free state"}},
	{"Gauteng", "GP", []string{"gp", "gt", "gauteng province"}},
	{"KwaZulu-Natal", "KZN", []string{"kzn", "kn", "kwazulu natal", "kwazulunatal"}},
	{"Limpopo", "LP", []string{"lp", "lim"}},
	{"Mpumalanga", "MP", []string{"mp"}},
	{"Northern Cape", "NC", []string{"nc", "n cape"}},
	{"North West", "NW", []string{"nw", "north-west"}},
	{"Western Cape", "WC", []string{"wc", "w cape"}},
}

// NormalizeProvince maps a province name or common abbreviation to its full
// name. ok is false for anything that is not one of the nine provinces.
func NormalizeProvince(s string) (name string, ok bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return "", false
	}
	for _, p := range provinces {
		if key == strings.ToLower(p.name) {
			return p.name, true
		}
		for _, a := range p.aliases {
			if key == a {
				return p.name, true
			}
		}
	}
	return "", false
}

// ProvinceCode returns the two or three letter code for a full province name.
func ProvinceCode(name string) string {
	for _, p := range provinces {
		if strings.EqualFold(p.name, name) {
			return p.code
		}
	}
	return ""
}

// Normalized returns a copy with whitespace trimmed and the province in its
// canonical spelling. Unknown provinces are left as given.
func (a Address) Normalized() Address {
	out := Address{
		Street:     strings.TrimSpace(a.Street),
		Suburb:     strings.TrimSpace(a.Suburb),
		City:       strings.TrimSpace(a.City),
		Province:   strings.TrimSpace(a.Province),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
	}
	if p, ok := NormalizeProvince(out.Province); ok {
		out.Province = p
	}
	if out.Country == "" {
		out.Country = "ZA"
	}
	return out
}

// Validate checks required fields, the province and the 4-digit postal code.
func (a Address) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(a.Street) == "" {
		errs = append(errs, FieldError{Field: "street", Message: "is required"})
	}
	if strings.TrimSpace(a.City) == "" {
		errs = append(errs, FieldError{Field: "city", Message: "is required"})
	}
	if strings.TrimSpace(a.Province) == "" {
		errs = append(errs, FieldError{Field: "province", Message: "is required"})
	} else if _, ok := NormalizeProvince(a.Province); !ok {
		errs = append(errs, FieldError{Field: "province", Message: fmt.Sprintf("%q is not a South African province", a.Province)})
	}
	if pc := strings.TrimSpace(a.PostalCode); pc == "" {
		errs = append(errs, FieldError{Field: "postal_code", Message: "is required"})
	} else if !IsPostalCode(pc) {
		errs = append(errs, FieldError{Field: "postal_code", Message: "must be 4 digits"})
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// IsPostalCode reports whether s is a 4-digit South African postal code.
func IsPostalCode(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FieldError is one invalid input field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return e.Field + " " + e.Message
}

// ValidationErrors collects every invalid field of one input.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// Prefix qualifies every field name, e.g. "shipping_address.city".
func (v ValidationErrors) Prefix(p string) ValidationErrors {
	out := make(ValidationErrors, len(v))
	for i, e := range v {
		out[i] = FieldError{Field: p + "." + e.Field, Message: e.Message}
	}
	return out
}
