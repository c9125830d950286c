package dto

import (
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"rebooked-marketplace/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var referenceRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]{1,100}$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
		v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
		_ = v.RegisterValidation("province", validateProvince)
		_ = v.RegisterValidation("postal_code", validatePostalCode)
		_ = v.RegisterValidation("safe_id", validateSafeID)
	}
}

// jsonFieldName reports fields by their JSON name in validation errors.
func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// decimalValue lets numeric tags like gt=0 apply to decimal amounts.
func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

func validateProvince(fl validator.FieldLevel) bool {
	_, ok := domain.NormalizeProvince(fl.Field().String())
	return ok
}

func validatePostalCode(fl validator.FieldLevel) bool {
	return domain.IsPostalCode(strings.TrimSpace(fl.Field().String()))
}

// validateSafeID allows alphanumeric, underscore, dash, and dot.
func validateSafeID(fl validator.FieldLevel) bool {
	return referenceRe.MatchString(fl.Field().String())
}

// IsSafeID reports whether s is usable as a payment reference.
func IsSafeID(s string) bool {
	return referenceRe.MatchString(s)
}

// SanitizeStruct trims whitespace and drops control characters from every
// exported string field (including *string) of a struct pointer. Nested
// structs are sanitized too.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Struct:
			sanitizeFields(f)
		case reflect.Slice:
			for j := 0; j < f.Len(); j++ {
				if e := f.Index(j); e.Kind() == reflect.Struct {
					sanitizeFields(e)
				}
			}
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			switch elem := f.Elem(); elem.Kind() {
			case reflect.String:
				elem.SetString(sanitize(elem.String()))
			case reflect.Struct:
				sanitizeFields(elem)
			}
		}
	}
}

func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
