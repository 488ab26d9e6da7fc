package calc

import (
	"fmt"
	"math"
	"reflect"
	"strings"
)

// requireFinite rejects params holding NaN or an infinity in any float field,
// including floats nested in slices. Weakly typed decoding turns strings such
// as "NaN" and "Inf" into those values.
func requireFinite(params interface{}) error {
	if path, ok := nonFinite(reflect.ValueOf(params), ""); ok {
		return invalid(path, "must be a finite number")
	}
	return nil
}

// requireFiniteResult rejects a result whose floats overflowed, reporting it
// against field.
func requireFiniteResult(result interface{}, field, message string) error {
	if _, ok := nonFinite(reflect.ValueOf(result), ""); ok {
		return invalid(field, message)
	}
	return nil
}

// nonFinite returns the path of the first NaN or infinite float under v.
// Struct fields are named by their mapstructure tag.
func nonFinite(v reflect.Value, path string) (string, bool) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return path, true
		}
	case reflect.Ptr, reflect.Interface:
		if !v.IsNil() {
			return nonFinite(v.Elem(), path)
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if p, ok := nonFinite(v.Index(i), fmt.Sprintf("%s[%d]", path, i)); ok {
				return p, true
			}
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			if p, ok := nonFinite(v.Field(i), joinPath(path, fieldName(field))); ok {
				return p, true
			}
		}
	}
	return "", false
}

func fieldName(field reflect.StructField) string {
	if tag := field.Tag.Get("mapstructure"); tag != "" {
		return strings.Split(tag, ",")[0]
	}
	if tag := field.Tag.Get("json"); tag != "" && tag != "-" {
		return strings.Split(tag, ",")[0]
	}
	return field.Name
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}
