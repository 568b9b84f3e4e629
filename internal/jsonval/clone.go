package jsonval

import "github.com/mitchellh/copystructure"

// Clone returns a deep copy of v that shares no mutable substructure with it.
// time.Time values are copied by value.
//
// Clone panics if v holds values copystructure cannot copy; JSON-like values
// never do.
func Clone(v any) any {
	if v == nil {
		return nil
	}
	return copystructure.Must(copystructure.Copy(v))
}

// CloneObject is Clone for objects.
func CloneObject(o Object) Object {
	if o == nil {
		return nil
	}
	return Clone(o).(map[string]any)
}
