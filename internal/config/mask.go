package config

import (
	"reflect"
	"strings"
)

// masked returns a copy of v in which every field tagged `mask:"true"` is hidden. Strings are
// replaced by asterisks of the same length, other values by their zero value. Nested structs and
// pointers are copied and masked as well.
func masked[T any](v T) T {
	return maskValue(reflect.ValueOf(v)).Interface().(T)
}

func maskValue(val reflect.Value) reflect.Value {
	if !val.IsValid() {
		return val
	}
	switch val.Kind() { //nolint:exhaustive // other kinds are copied unchanged
	case reflect.Pointer:
		if val.IsNil() {
			return val
		}
		ptr := reflect.New(val.Elem().Type())
		ptr.Elem().Set(maskValue(val.Elem()))
		return ptr
	case reflect.Struct:
		out := reflect.New(val.Type()).Elem()
		for i := range val.NumField() {
			field := val.Type().Field(i)
			if !out.Field(i).CanSet() {
				continue
			}
			if field.Tag.Get("mask") == "true" {
				out.Field(i).Set(hide(val.Field(i)))
			} else {
				out.Field(i).Set(maskValue(val.Field(i)))
			}
		}
		return out
	case reflect.Interface:
		if val.IsNil() {
			return val
		}
		return maskValue(val.Elem())
	default:
		return val
	}
}

// hide masks the value of a tagged field.
func hide(val reflect.Value) reflect.Value {
	switch val.Kind() { //nolint:exhaustive // scalars are zeroed
	case reflect.String:
		return reflect.ValueOf(strings.Repeat("*", val.Len())).Convert(val.Type())
	case reflect.Struct, reflect.Pointer, reflect.Interface:
		return maskValue(val)
	default:
		return reflect.Zero(val.Type())
	}
}
