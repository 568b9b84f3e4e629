package changeset

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/and161185/event-keeper/internal/errs"
	"github.com/and161185/event-keeper/internal/jsonval"
	"github.com/and161185/event-keeper/internal/model"
	"github.com/and161185/event-keeper/internal/reconcile"
)

// Parse validates the wire form of a change set and decodes it. Every shape
// problem is reported; the returned error wraps errs.ErrInvalidRequest.
func Parse(obj jsonval.Object) (*ChangeSet, error) {
	cs := &ChangeSet{Collections: map[string]reconcile.Result{}}
	var err error

	for key, raw := range obj {
		switch key {
		case model.KeyMainEvent:
			if jsonval.IsNull(raw) {
				continue
			}
			m, ok := jsonval.AsObject(raw)
			if !ok {
				err = multierr.Append(err, fmt.Errorf("%s: want object", key))
				continue
			}
			cs.MainEvent = m
		case model.KeyRSVPSettings:
			if jsonval.IsNull(raw) {
				cs.ClearRSVPSettings = true
				continue
			}
			m, ok := jsonval.AsObject(raw)
			if !ok {
				err = multierr.Append(err, fmt.Errorf("%s: want object or null", key))
				continue
			}
			cs.RSVPSettings = m
		default:
			if _, known := model.CollectionByName(key); !known {
				err = multierr.Append(err, fmt.Errorf("%s: unknown section", key))
				continue
			}
			r, perr := parseResult(key, raw)
			if perr != nil {
				err = multierr.Append(err, perr)
				continue
			}
			if !r.Empty() {
				cs.Collections[key] = r
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidRequest, err)
	}
	return cs, nil
}

func parseResult(name string, raw any) (reconcile.Result, error) {
	var res reconcile.Result
	obj, ok := jsonval.AsObject(raw)
	if !ok || obj == nil {
		return res, fmt.Errorf("%s: want {added, modified, removed}", name)
	}

	var err error
	if v, ok := obj["added"]; ok && !jsonval.IsNull(v) {
		items, ok := jsonval.AsArray(v)
		if !ok {
			err = multierr.Append(err, fmt.Errorf("%s.added: want array", name))
		}
		for i, it := range items {
			if _, ok := jsonval.AsObject(it); !ok || jsonval.IsNull(it) {
				err = multierr.Append(err, fmt.Errorf("%s.added[%d]: want object", name, i))
			}
		}
		if c, known := model.CollectionByName(name); known {
			for _, id := range reconcile.Duplicates(items, c.IdentityField) {
				err = multierr.Append(err, fmt.Errorf("%s.added: duplicate %s %s", name, c.IdentityField, id.Label()))
			}
		}
		res.Added = items
	}
	if v, ok := obj["modified"]; ok && !jsonval.IsNull(v) {
		m, ok := jsonval.AsObject(v)
		if !ok {
			err = multierr.Append(err, fmt.Errorf("%s.modified: want object", name))
		}
		for id, it := range m {
			if _, ok := jsonval.AsObject(it); !ok || jsonval.IsNull(it) {
				err = multierr.Append(err, fmt.Errorf("%s.modified[%s]: want object", name, id))
			}
		}
		res.Modified = m
	}
	if v, ok := obj["removed"]; ok && !jsonval.IsNull(v) {
		ids, ok := jsonval.AsArray(v)
		if !ok {
			err = multierr.Append(err, fmt.Errorf("%s.removed: want array", name))
		}
		for i, id := range ids {
			if _, isNum := jsonval.Number(id); !isNum {
				if _, isStr := id.(string); !isStr {
					err = multierr.Append(err, fmt.Errorf("%s.removed[%d]: want identity", name, i))
				}
			}
		}
		res.Removed = ids
	}
	return res, err
}

// ParseEnvelope validates and decodes {changes, metadata}. Missing metadata
// is allowed; a malformed timestamp is a shape error.
func ParseEnvelope(obj jsonval.Object) (*Envelope, error) {
	raw, ok := obj["changes"]
	if !ok || jsonval.IsNull(raw) {
		return nil, fmt.Errorf("%w: changes: required", errs.ErrInvalidRequest)
	}
	changesObj, ok := jsonval.AsObject(raw)
	if !ok {
		return nil, fmt.Errorf("%w: changes: want object", errs.ErrInvalidRequest)
	}
	cs, err := Parse(changesObj)
	if err != nil {
		return nil, err
	}

	env := &Envelope{Changes: cs}
	mdRaw, ok := obj["metadata"]
	if !ok || jsonval.IsNull(mdRaw) {
		return env, nil
	}
	md, ok := jsonval.AsObject(mdRaw)
	if !ok {
		return nil, fmt.Errorf("%w: metadata: want object", errs.ErrInvalidRequest)
	}

	var merr error
	if v, ok := md["conflictToken"]; ok && !jsonval.IsNull(v) {
		s, ok := v.(string)
		if !ok {
			merr = multierr.Append(merr, fmt.Errorf("metadata.conflictToken: want string"))
		}
		env.Metadata.ConflictToken = s
	}
	if env.Metadata.LastSaved, err = parseTime(md, "lastSaved"); err != nil {
		merr = multierr.Append(merr, err)
	}
	if env.Metadata.Timestamp, err = parseTime(md, "timestamp"); err != nil {
		merr = multierr.Append(merr, err)
	}
	if merr != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidRequest, merr)
	}
	return env, nil
}

func parseTime(md jsonval.Object, key string) (time.Time, error) {
	v, ok := md[key]
	if !ok || jsonval.IsNull(v) {
		return time.Time{}, nil
	}
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("metadata.%s: want RFC 3339 string", key)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("metadata.%s: %w", key, err)
	}
	return t, nil
}
