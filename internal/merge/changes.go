package merge

import (
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/event-keeper/internal/changeset"
	"github.com/and161185/event-keeper/internal/errs"
	"github.com/and161185/event-keeper/internal/jsonval"
	"github.com/and161185/event-keeper/internal/model"
	"github.com/and161185/event-keeper/internal/reconcile"
)

// ApplyChanges applies an incremental change set to stored and returns the
// new event. Collections apply removals, then modifications, then additions.
//
// A modification of an element the stored collection no longer holds, or an
// addition whose identity is already taken, is a divergence and yields
// errs.ErrVersionConflict. stored is never modified.
func ApplyChanges(stored *model.Event, cs *changeset.ChangeSet) (*model.Event, error) {
	if stored == nil {
		return nil, errs.ErrNotFound
	}
	out := stored.Clone()
	if cs.Empty() {
		return out, nil
	}
	if err := validateChanges(cs.MainEvent, cs.RSVPSettings); err != nil {
		return nil, err
	}

	overlayFields(out, cs.MainEvent)

	switch {
	case cs.ClearRSVPSettings:
		out.RSVP = nil
	case len(cs.RSVPSettings) > 0:
		out.RSVP = mergeRSVP(out.RSVP, cs.RSVPSettings, false)
	}

	for _, c := range model.Collections {
		res, ok := cs.Collections[c.Name]
		if !ok || res.Empty() {
			continue
		}
		items, err := applyResult(c, out.Collections[c.Name], res)
		if err != nil {
			return nil, err
		}
		if out.Collections == nil {
			out.Collections = map[string]jsonval.Array{}
		}
		out.Collections[c.Name] = items
	}
	return out, nil
}

func applyResult(c model.Collection, items jsonval.Array, res reconcile.Result) (jsonval.Array, error) {
	removed := make(map[string]struct{}, len(res.Removed))
	for _, id := range res.Removed {
		removed[reconcile.Persisted(id).Key()] = struct{}{}
	}
	kept := make(jsonval.Array, 0, len(items))
	for _, it := range items {
		if _, gone := removed[reconcile.IdentityOf(it, c.IdentityField).Key()]; gone {
			continue
		}
		kept = append(kept, it)
	}

	for label, raw := range res.Modified {
		elem, _ := jsonval.AsObject(raw)
		idx := indexByLabel(kept, c.IdentityField, label)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s[%s] no longer exists", errs.ErrVersionConflict, c.Name, label)
		}
		next := jsonval.CloneObject(elem)
		if next == nil {
			next = jsonval.Object{}
		}
		cur, _ := jsonval.AsObject(kept[idx])
		next[c.IdentityField] = cur[c.IdentityField]
		kept[idx] = next
	}

	taken := make(map[string]struct{}, len(kept))
	for _, it := range kept {
		id := reconcile.IdentityOf(it, c.IdentityField)
		if !id.IsPending() {
			taken[id.Key()] = struct{}{}
		}
	}
	for _, raw := range res.Added {
		id := reconcile.IdentityOf(raw, c.IdentityField)
		if id.IsPending() {
			continue
		}
		if _, dup := taken[id.Key()]; dup {
			return nil, fmt.Errorf("%w: %s[%s] already exists", errs.ErrVersionConflict, c.Name, id.Label())
		}
		taken[id.Key()] = struct{}{}
	}

	added, err := assignIdentities(c, append(kept, cloneArray(res.Added)...), highWater(c, items))
	if err != nil {
		return nil, err
	}
	return added, nil
}

func indexByLabel(items jsonval.Array, field, label string) int {
	for i, it := range items {
		id := reconcile.IdentityOf(it, field)
		if !id.IsPending() && id.Label() == label {
			return i
		}
	}
	return -1
}

// highWater returns the largest numeric persisted identity in items.
func highWater(c model.Collection, items jsonval.Array) float64 {
	var maxID float64
	for _, it := range items {
		id := reconcile.IdentityOf(it, c.IdentityField)
		if id.IsPending() {
			continue
		}
		if n, ok := jsonval.Number(id.Value()); ok && n > maxID {
			maxID = n
		}
	}
	return maxID
}

// assignIdentities gives every element with a pending identity a persisted
// one: the next free integer for numeric ids, a random UUID for public ids.
// Numeric ids start above both floor and every id in items, so an id freed
// by a removal is never handed out again. Non-object elements are dropped.
func assignIdentities(c model.Collection, items jsonval.Array, floor float64) (jsonval.Array, error) {
	maxID := highWater(c, items)
	if floor > maxID {
		maxID = floor
	}

	out := make(jsonval.Array, 0, len(items))
	for _, it := range items {
		obj, ok := jsonval.AsObject(it)
		if !ok || obj == nil {
			continue
		}
		if reconcile.IdentityOf(obj, c.IdentityField).IsPending() {
			if c.IdentityField == model.KeyPublicID {
				u, err := uuid.NewV4()
				if err != nil {
					return nil, fmt.Errorf("generate %s identity: %w", c.Name, err)
				}
				obj[c.IdentityField] = u.String()
			} else {
				maxID++
				obj[c.IdentityField] = maxID
			}
		}
		out = append(out, obj)
	}
	return out, nil
}
