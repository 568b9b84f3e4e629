package merge

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"github.com/and161185/event-keeper/internal/errs"
	"github.com/and161185/event-keeper/internal/jsonval"
	"github.com/and161185/event-keeper/internal/model"
	"github.com/and161185/event-keeper/internal/reconcile"
)

// Validate checks the shape of a flat save request. Unknown keys are
// ignored; every problem with a recognized key is reported.
func Validate(req jsonval.Object) error {
	var err error

	if v, ok := req[model.KeyPublicID]; ok && !jsonval.IsNull(v) {
		if _, isStr := v.(string); !isStr {
			err = multierr.Append(err, fmt.Errorf("%s: want string", model.KeyPublicID))
		}
	}
	if v, ok := req[model.KeyConflictToken]; ok && !jsonval.IsNull(v) {
		if _, isStr := v.(string); !isStr {
			err = multierr.Append(err, fmt.Errorf("%s: want string", model.KeyConflictToken))
		}
	}
	if v, ok := req[model.KeyPartialUpdate]; ok && !jsonval.IsNull(v) {
		if _, isBool := v.(bool); !isBool {
			err = multierr.Append(err, fmt.Errorf("%s: want bool", model.KeyPartialUpdate))
		}
	}
	err = multierr.Append(err, validateStatus(req))
	err = multierr.Append(err, validateFields(req))

	if v, ok := req[model.KeyRSVPSettings]; ok {
		err = multierr.Append(err, validateRSVP(v))
	}
	for _, c := range model.Collections {
		v, ok := req[c.Name]
		if !ok {
			continue
		}
		if kerr := checkKind(c.Name, v, model.KindObjectList); kerr != nil {
			err = multierr.Append(err, kerr)
			continue
		}
		items, _ := jsonval.AsArray(v)
		for _, id := range reconcile.Duplicates(items, c.IdentityField) {
			err = multierr.Append(err, fmt.Errorf("%s: duplicate %s %s", c.Name, c.IdentityField, id.Label()))
		}
	}

	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidRequest, err)
	}
	return nil
}

// validateChanges checks the sections of a change set that carry field values.
func validateChanges(mainEvent, rsvp jsonval.Object) error {
	err := validateFields(mainEvent)
	if rsvp != nil {
		err = multierr.Append(err, validateRSVP(rsvp))
	}
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidRequest, err)
	}
	return nil
}

func validateStatus(req jsonval.Object) error {
	v, ok := req[model.KeyStatus]
	if !ok || jsonval.IsNull(v) {
		return nil
	}
	s, isStr := v.(string)
	if !isStr {
		return fmt.Errorf("%s: want string", model.KeyStatus)
	}
	if _, known := model.ParseStatus(s); !known {
		return fmt.Errorf("%s: unknown value %q", model.KeyStatus, s)
	}
	return nil
}

func validateFields(req jsonval.Object) error {
	var err error
	for _, group := range [][]model.Field{model.TopLevelFields, model.DetailsFields} {
		for _, f := range group {
			v, ok := req[f.RequestKey]
			if !ok {
				continue
			}
			err = multierr.Append(err, checkKind(f.RequestKey, v, f.Kind))
		}
	}
	if v, ok := req["title"]; ok {
		if s, _ := v.(string); strings.TrimSpace(s) == "" {
			err = multierr.Append(err, fmt.Errorf("title: required"))
		}
	}
	return err
}

func validateRSVP(v any) error {
	if jsonval.IsNull(v) {
		return nil
	}
	obj, ok := jsonval.AsObject(v)
	if !ok {
		return fmt.Errorf("%s: want object or null", model.KeyRSVPSettings)
	}
	var err error
	for _, f := range model.RSVPFields {
		fv, ok := obj[f.RequestKey]
		if !ok {
			continue
		}
		err = multierr.Append(err, checkKind(model.KeyRSVPSettings+"."+f.RequestKey, fv, f.Kind))
	}
	return err
}

func checkKind(path string, v any, kind model.Kind) error {
	if jsonval.IsNull(v) {
		return nil
	}
	bad := fmt.Errorf("%s: want %s", path, kind)
	switch kind {
	case model.KindString:
		if _, ok := v.(string); !ok {
			return bad
		}
	case model.KindBool:
		if _, ok := v.(bool); !ok {
			return bad
		}
	case model.KindNumber:
		if _, ok := jsonval.Number(v); !ok {
			return bad
		}
	case model.KindInteger:
		if _, err := toInteger(v); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	case model.KindObjectList:
		items, ok := jsonval.AsArray(v)
		if !ok {
			return bad
		}
		for i, it := range items {
			if o, ok := jsonval.AsObject(it); !ok || o == nil {
				return fmt.Errorf("%s[%d]: want object", path, i)
			}
		}
	}
	return nil
}

// toInteger reads a number or a numeric string. Zero, the empty string and
// null yield nil (no value); fractions are truncated.
func toInteger(v any) (any, error) {
	if jsonval.IsNull(v) {
		return nil, nil
	}
	var f float64
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, nil
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("want integer, got %q", t)
		}
		f = n
	default:
		n, ok := jsonval.Number(v)
		if !ok {
			return nil, fmt.Errorf("want integer")
		}
		f = n
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64/2 {
		return nil, fmt.Errorf("want integer, got %v", v)
	}
	i := int64(math.Trunc(f))
	if i == 0 {
		return nil, nil
	}
	return i, nil
}
