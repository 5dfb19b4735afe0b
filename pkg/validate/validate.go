// Package validate checks struct fields against rules declared in a
// `validate` tag.
//
// Rules are comma separated; in= takes the rest of the list:
//
//	required            not zero, not blank, not nil
//	nullable            skip the remaining rules when the field is empty
//	email               looks like an email address
//	url                 absolute http or https URL
//	min=N / max=N       numbers compare by value, strings by rune count
//	gt=N / gte=N / lte=N
//	in=a,b,c            value is one of the listed items
//
//	type registerInput struct {
//	    Name  string `json:"name"  validate:"required,max=255"`
//	    Email string `json:"email" validate:"required,email"`
//	}
//
// Values with a String method that prints a number (decimal.Decimal for
// instance) work with the numeric rules.
package validate

import (
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/freshbulk/storefront/pkg/apperr"
)

var emailRE = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Struct returns field name to message for every failing field. Only the
// first failing rule per field is reported.
func Struct(v any) map[string]string {
	errs := make(map[string]string)
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return errs
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return errs
	}

	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		tag := field.Tag.Get("validate")
		if tag == "" || !field.IsExported() {
			continue
		}

		name := fieldName(field)
		value := rv.Field(i)
		rules := splitRules(tag)

		if contains(rules, "nullable") && isEmpty(value) {
			continue
		}
		for _, rule := range rules {
			if msg := check(rule, name, value); msg != "" {
				errs[name] = msg
				break
			}
		}
	}
	return errs
}

// Check is Struct as an error: nil when v is valid, otherwise an
// *apperr.Error of kind validation carrying the field messages.
func Check(v any) error {
	if errs := Struct(v); HasErrors(errs) {
		return apperr.Invalid(errs)
	}
	return nil
}

func HasErrors(errs map[string]string) bool { return len(errs) > 0 }

func check(rule, field string, v reflect.Value) string {
	key, param, _ := strings.Cut(rule, "=")

	if key == "required" {
		if isEmpty(v) {
			return fmt.Sprintf("The %s field is required.", field)
		}
		return ""
	}

	// Remaining rules look at the pointed-to value.
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	raw := fmt.Sprintf("%v", v.Interface())

	switch key {
	case "email":
		if !emailRE.MatchString(raw) {
			return fmt.Sprintf("The %s must be a valid email address.", field)
		}
	case "url":
		u, err := url.ParseRequestURI(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Sprintf("The %s must be a valid URL.", field)
		}
	case "min":
		n := parseFloat(param)
		if isNumeric(v) {
			if toFloat(v) < n {
				return fmt.Sprintf("The %s must be at least %s.", field, param)
			}
		} else if float64(len([]rune(raw))) < n {
			return fmt.Sprintf("The %s must be at least %s characters.", field, param)
		}
	case "max":
		n := parseFloat(param)
		if isNumeric(v) {
			if toFloat(v) > n {
				return fmt.Sprintf("The %s must not be greater than %s.", field, param)
			}
		} else if float64(len([]rune(raw))) > n {
			return fmt.Sprintf("The %s must not exceed %s characters.", field, param)
		}
	case "gt":
		if f, ok := number(v); !ok || f <= parseFloat(param) {
			return fmt.Sprintf("The %s must be greater than %s.", field, param)
		}
	case "gte":
		if f, ok := number(v); !ok || f < parseFloat(param) {
			return fmt.Sprintf("The %s must be greater than or equal to %s.", field, param)
		}
	case "lte":
		if f, ok := number(v); !ok || f > parseFloat(param) {
			return fmt.Sprintf("The %s must be less than or equal to %s.", field, param)
		}
	case "in":
		for _, allowed := range strings.Split(param, ",") {
			if raw == strings.TrimSpace(allowed) {
				return ""
			}
		}
		return fmt.Sprintf("The selected %s is invalid.", field)
	}
	return ""
}

func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Slice, reflect.Map, reflect.Array:
		return v.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	case reflect.Bool:
		return false
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	}
	return v.IsZero()
}

func isNumeric(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func toFloat(v reflect.Value) float64 {
	f, _ := number(v)
	return f
}

// number reads v as a float, falling back to parsing its printed form.
func number(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	f, err := strconv.ParseFloat(fmt.Sprintf("%v", v.Interface()), 64)
	return f, err == nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

func fieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return strings.ToLower(f.Name)
	}
	return name
}

// splitRules keeps everything after "in=" together since its values are
// themselves comma separated.
func splitRules(tag string) []string {
	var rules []string
	for tag != "" {
		if strings.HasPrefix(tag, "in=") {
			rules = append(rules, tag)
			break
		}
		rule, rest, _ := strings.Cut(tag, ",")
		rules = append(rules, strings.TrimSpace(rule))
		tag = rest
	}
	return rules
}

func contains(rules []string, target string) bool {
	for _, r := range rules {
		if r == target {
			return true
		}
	}
	return false
}
