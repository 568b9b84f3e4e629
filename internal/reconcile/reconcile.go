package reconcile

import "github.com/and161185/event-keeper/internal/jsonval"

// Result is the classification of one collection.
type Result struct {
	Added    jsonval.Array  `json:"added"`
	Modified jsonval.Object `json:"modified"`
	Removed  jsonval.Array  `json:"removed"`
}

func newResult() Result {
	return Result{Added: jsonval.Array{}, Modified: jsonval.Object{}, Removed: jsonval.Array{}}
}

// Empty reports whether the result carries no change.
func (r Result) Empty() bool {
	return len(r.Added) == 0 && len(r.Modified) == 0 && len(r.Removed) == 0
}

// Collections classifies every element of current against original.
//
// Elements with a pending identity are always added. Elements whose identity
// is unknown to original are added, known ones that differ are modified
// (keyed by identity label), and original elements missing from current are
// removed (by raw identity value). Order follows input iteration.
//
// A nil original or current yields an empty result: a missing collection is
// read as "no change", not "everything removed".
func Collections(original, current jsonval.Array, identityField string) Result {
	res := newResult()
	if original == nil || current == nil {
		return res
	}

	index := make(map[string]any, len(original))
	for _, el := range original {
		id := IdentityOf(el, identityField)
		if id.IsPending() {
			continue
		}
		index[id.Key()] = el
	}

	seen := make(map[string]struct{}, len(current))
	for _, el := range current {
		id := IdentityOf(el, identityField)
		if id.IsPending() {
			res.Added = append(res.Added, el)
			continue
		}
		seen[id.Key()] = struct{}{}

		prev, ok := index[id.Key()]
		switch {
		case !ok:
			res.Added = append(res.Added, el)
		case !jsonval.Equal(prev, el):
			res.Modified[id.Label()] = el
		}
	}

	for _, el := range original {
		id := IdentityOf(el, identityField)
		if id.IsPending() {
			continue
		}
		if _, ok := seen[id.Key()]; !ok {
			res.Removed = append(res.Removed, id.Value())
		}
	}
	return res
}
