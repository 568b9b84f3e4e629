package jsonval

import (
	"encoding/json"
	"math/big"
	"reflect"
	"strconv"
	"time"
)

// Equal performs a structural equality check between a and b.
//
// Numbers compare by exact value regardless of Go type, so int64 and
// json.Number identities beyond 2^53 stay distinct. Arrays compare element-wise
// and in order. Objects compare by key set and recursively by value; a key
// holding nil is not equal to a missing key. nil equals only nil (nil maps and
// slices count as nil).
func Equal(a, b any) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}

	if _, ok := number(a); ok {
		_, ok := number(b)
		return ok && equalNumber(a, b)
	}

	switch av := a.(type) {
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case map[string]any:
		bv, ok := b.(map[string]any)
		return ok && equalObject(av, bv)
	}

	if aa, ok := AsArray(a); ok {
		ba, ok := AsArray(b)
		return ok && equalArray(aa, ba)
	}
	if _, ok := AsArray(b); ok {
		return false
	}

	return reflect.DeepEqual(a, b)
}

func equalObject(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || !Equal(va, vb) {
			return false
		}
	}
	return true
}

func equalArray(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalNumber(a, b any) bool {
	if fa, ok := a.(float64); ok {
		if fb, ok := b.(float64); ok {
			return fa == fb
		}
	}
	ra, okA := exact(a)
	rb, okB := exact(b)
	if !okA || !okB {
		na, _ := number(a)
		nb, _ := number(b)
		return na == nb
	}
	return ra.Cmp(rb) == 0
}

// exact returns v as an exact rational. Non-finite floats are not representable.
func exact(v any) (*big.Rat, bool) {
	switch n := v.(type) {
	case float64:
		r := new(big.Rat).SetFloat64(n)
		return r, r != nil
	case float32:
		r := new(big.Rat).SetFloat64(float64(n))
		return r, r != nil
	case int:
		return new(big.Rat).SetInt64(int64(n)), true
	case int8:
		return new(big.Rat).SetInt64(int64(n)), true
	case int16:
		return new(big.Rat).SetInt64(int64(n)), true
	case int32:
		return new(big.Rat).SetInt64(int64(n)), true
	case int64:
		return new(big.Rat).SetInt64(n), true
	case uint:
		return new(big.Rat).SetUint64(uint64(n)), true
	case uint8:
		return new(big.Rat).SetUint64(uint64(n)), true
	case uint16:
		return new(big.Rat).SetUint64(uint64(n)), true
	case uint32:
		return new(big.Rat).SetUint64(uint64(n)), true
	case uint64:
		return new(big.Rat).SetUint64(n), true
	case json.Number:
		return new(big.Rat).SetString(string(n))
	}
	return nil, false
}

// number reports v as float64 when v is any Go numeric kind or json.Number.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// Number reports v as float64 when v is numeric.
func Number(v any) (float64, bool) { return number(v) }

// NumberLabel renders a numeric v in its shortest exact decimal form, so equal
// numbers of any Go type share a label and distinct integers never do.
func NumberLabel(v any) (string, bool) {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	r, ok := exact(v)
	if !ok {
		f, isNum := number(v)
		if !isNum {
			return "", false
		}
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	if r.IsInt() {
		return r.Num().String(), true
	}
	f, _ := r.Float64()
	return strconv.FormatFloat(f, 'f', -1, 64), true
}
