package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/and161185/event-keeper/internal/changeset"
	"github.com/and161185/event-keeper/internal/model"
	"github.com/and161185/event-keeper/internal/tracker"
)

var (
	added    = color.New(color.FgGreen).SprintFunc()
	modified = color.New(color.FgYellow).SprintFunc()
	removed  = color.New(color.FgRed).SprintFunc()
	section  = color.New(color.Bold).SprintFunc()
)

func compact(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// renderChanges prints a change set as a colored listing.
func renderChanges(w io.Writer, cs *changeset.ChangeSet) {
	if cs.Empty() {
		fmt.Fprintln(w, "no unsaved changes")
		return
	}
	if len(cs.MainEvent) > 0 {
		fmt.Fprintln(w, section("mainEvent"))
		for _, k := range sortedKeys(cs.MainEvent) {
			if v := cs.MainEvent[k]; v == nil {
				fmt.Fprintf(w, "  %s %s\n", removed("-"), k)
			} else {
				fmt.Fprintf(w, "  %s %s: %s\n", modified("~"), k, compact(v))
			}
		}
	}
	switch {
	case cs.ClearRSVPSettings:
		fmt.Fprintln(w, section(model.KeyRSVPSettings))
		fmt.Fprintf(w, "  %s (removed)\n", removed("-"))
	case len(cs.RSVPSettings) > 0:
		fmt.Fprintln(w, section(model.KeyRSVPSettings))
		for _, k := range sortedKeys(cs.RSVPSettings) {
			fmt.Fprintf(w, "  %s %s: %s\n", modified("~"), k, compact(cs.RSVPSettings[k]))
		}
	}
	for _, c := range model.Collections {
		r, ok := cs.Collections[c.Name]
		if !ok || r.Empty() {
			continue
		}
		fmt.Fprintln(w, section(c.Name))
		for _, el := range r.Added {
			fmt.Fprintf(w, "  %s %s\n", added("+"), compact(el))
		}
		ids := make([]string, 0, len(r.Modified))
		for id := range r.Modified {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(w, "  %s %s: %s\n", modified("~"), id, compact(r.Modified[id]))
		}
		for _, id := range r.Removed {
			fmt.Fprintf(w, "  %s %v\n", removed("-"), id)
		}
	}
}

func renderSize(w io.Writer, rep tracker.SizeReport) {
	if !rep.HasChanges {
		return
	}
	fmt.Fprintf(w, "payload: %d B incremental vs %d B full (%d%% smaller)\n",
		rep.IncrementalSize, rep.FullSize, rep.Reduction)
}
