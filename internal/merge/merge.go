// Package merge rebuilds a stored event from a save request without touching
// fields the request does not mention.
//
// A key that is absent leaves the stored value alone. A key that is present
// overwrites it, and an explicit null clears it. Sub-document fields merge one
// by one; list-valued fields and collections are replaced only when their key
// is present.
package merge

import (
	"fmt"
	"strings"

	"github.com/and161185/event-keeper/internal/errs"
	"github.com/and161185/event-keeper/internal/jsonval"
	"github.com/and161185/event-keeper/internal/model"
)

// Apply merges a flat save request into stored and returns the new event.
// A nil stored event takes the creation path: recognized fields the request
// does not supply get their defaults. stored is never modified.
func Apply(stored *model.Event, req jsonval.Object) (*model.Event, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	if stored == nil {
		return create(req)
	}

	out := stored.Clone()
	if s, ok := statusOf(req); ok {
		out.Status = s
	}
	overlayFields(out, req)

	if v, ok := req[model.KeyRSVPSettings]; ok {
		rsvp, _ := jsonval.AsObject(v)
		out.RSVP = mergeRSVP(out.RSVP, rsvp, jsonval.IsNull(v))
	}

	for _, c := range model.Collections {
		v, ok := req[c.Name]
		if !ok {
			continue
		}
		items, _ := jsonval.AsArray(v)
		replaced, err := assignIdentities(c, cloneArray(items), highWater(c, stored.Collections[c.Name]))
		if err != nil {
			return nil, err
		}
		if out.Collections == nil {
			out.Collections = map[string]jsonval.Array{}
		}
		out.Collections[c.Name] = replaced
	}
	return out, nil
}

func create(req jsonval.Object) (*model.Event, error) {
	title, _ := req["title"].(string)
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title: required", errs.ErrInvalidRequest)
	}

	ev := &model.Event{
		Status:      model.StatusDraft,
		Fields:      jsonval.Object{},
		Details:     jsonval.Object{},
		Collections: map[string]jsonval.Array{},
	}
	ev.PublicID, _ = req[model.KeyPublicID].(string)
	if s, ok := statusOf(req); ok {
		ev.Status = s
	}

	for _, f := range model.TopLevelFields {
		ev.Fields[f.StoredKey] = valueOrDefault(f, req)
	}
	for _, f := range model.DetailsFields {
		if _, ok := req[f.RequestKey]; !ok && f.OmitByDefault {
			continue
		}
		ev.Details[f.StoredKey] = valueOrDefault(f, req)
	}

	if v, ok := req[model.KeyRSVPSettings]; ok && !jsonval.IsNull(v) {
		rsvp, _ := jsonval.AsObject(v)
		ev.RSVP = mergeRSVP(nil, rsvp, false)
	}

	for _, c := range model.Collections {
		items, _ := jsonval.AsArray(req[c.Name])
		assigned, err := assignIdentities(c, cloneArray(items), 0)
		if err != nil {
			return nil, err
		}
		ev.Collections[c.Name] = assigned
	}
	return ev, nil
}

// valueOrDefault reads f from req when present (null included) and falls back
// to the field default. Empty strings read as null.
func valueOrDefault(f model.Field, req jsonval.Object) any {
	v, ok := req[f.RequestKey]
	if !ok || jsonval.IsNull(v) || v == "" {
		return f.Default
	}
	return convert(f, v)
}

// overlayFields writes every recognized field present in src onto ev.
func overlayFields(ev *model.Event, src jsonval.Object) {
	for _, f := range model.TopLevelFields {
		v, ok := src[f.RequestKey]
		if !ok {
			continue
		}
		if ev.Fields == nil {
			ev.Fields = jsonval.Object{}
		}
		ev.Fields[f.StoredKey] = convert(f, v)
	}

	overlay := jsonval.Object{}
	for _, f := range model.DetailsFields {
		v, ok := src[f.RequestKey]
		if !ok {
			continue
		}
		overlay[f.StoredKey] = convert(f, v)
	}
	if len(overlay) == 0 {
		return
	}
	if ev.Details == nil {
		ev.Details = jsonval.Object{}
	}
	for k, v := range overlay {
		ev.Details[k] = v
	}
}

// mergeRSVP merges the present keys of upd into base. clear drops the
// sub-document.
func mergeRSVP(base, upd jsonval.Object, clear bool) jsonval.Object {
	if clear {
		return nil
	}
	out := jsonval.CloneObject(base)
	if out == nil {
		out = jsonval.Object{}
	}
	for k, v := range upd {
		out[k] = jsonval.Clone(v)
	}
	return out
}

func convert(f model.Field, v any) any {
	if jsonval.IsNull(v) {
		return nil
	}
	if f.Kind == model.KindInteger {
		i, err := toInteger(v)
		if err != nil {
			return nil
		}
		return i
	}
	return jsonval.Clone(v)
}

func statusOf(req jsonval.Object) (model.Status, bool) {
	s, ok := req[model.KeyStatus].(string)
	if !ok {
		return "", false
	}
	return model.ParseStatus(s)
}

func cloneArray(a jsonval.Array) jsonval.Array {
	out := make(jsonval.Array, 0, len(a))
	for _, v := range a {
		out = append(out, jsonval.Clone(v))
	}
	return out
}
