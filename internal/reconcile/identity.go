// Package reconcile classifies elements of identity-keyed collections as
// added, modified or removed between two snapshots.
package reconcile

import (
	"fmt"
	"strconv"

	"github.com/and161185/event-keeper/internal/jsonval"
)

// Identity identifies a collection element across snapshots. It is either
// persisted (a value the store assigned) or pending (a local placeholder for an
// element the store has not seen yet). Pending identities never match anything.
type Identity struct {
	pending bool
	label   string
	kind    byte
	value   any
}

// Persisted returns the identity of a stored element.
func Persisted(v any) Identity {
	if l, ok := jsonval.NumberLabel(v); ok {
		return Identity{label: l, kind: 'n', value: v}
	}
	if s, ok := v.(string); ok {
		return Identity{label: s, kind: 's', value: v}
	}
	return Identity{label: fmt.Sprint(v), kind: '?', value: v}
}

// Pending returns a placeholder identity carrying a local token.
func Pending(token string) Identity {
	return Identity{pending: true, label: token, value: nil}
}

// IdentityOf reads the identity of elem from field. Elements that are not
// objects, lack the field, or carry null, "", false, zero or a negative
// number are pending.
func IdentityOf(elem any, field string) Identity {
	obj, ok := jsonval.AsObject(elem)
	if !ok || obj == nil {
		return Pending("")
	}
	raw, ok := obj[field]
	if !ok || raw == nil {
		return Pending("")
	}
	if n, ok := jsonval.Number(raw); ok {
		if n <= 0 {
			return Pending(strconv.FormatFloat(n, 'f', -1, 64))
		}
		return Persisted(raw)
	}
	if s, ok := raw.(string); ok {
		if s == "" {
			return Pending("")
		}
		return Persisted(s)
	}
	return Pending(fmt.Sprint(raw))
}

// IsPending reports whether the identity is a local placeholder.
func (id Identity) IsPending() bool { return id.pending }

// Value returns the raw identity value (nil for pending identities).
func (id Identity) Value() any { return id.value }

// Label is the identity rendered as a JSON object key ("7", "guest-1").
func (id Identity) Label() string { return id.label }

// Key is a type-qualified label: numeric 1 and string "1" have different keys.
func (id Identity) Key() string {
	if id.pending {
		return "~" + id.label
	}
	return string(id.kind) + ":" + id.label
}

// Matches reports whether two persisted identities refer to the same element.
func (id Identity) Matches(other Identity) bool {
	return !id.pending && !other.pending && id.Key() == other.Key()
}

func (id Identity) String() string {
	if id.pending {
		return "pending(" + id.label + ")"
	}
	return id.label
}

// Duplicates returns the persisted identities that occur more than once in
// items, in order of their second occurrence.
func Duplicates(items []any, field string) []Identity {
	seen := make(map[string]struct{}, len(items))
	var dups []Identity
	for _, el := range items {
		id := IdentityOf(el, field)
		if id.IsPending() {
			continue
		}
		if _, ok := seen[id.Key()]; ok {
			dups = append(dups, id)
			continue
		}
		seen[id.Key()] = struct{}{}
	}
	return dups
}
