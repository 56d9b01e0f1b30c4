// Package vote turns a user's free-form option selection into the minimal
// sequence of calls against a toggle-only voting API.
package vote

import "slices"

// Delta is the difference between the selection the server holds and the
// selection the user wants.
type Delta struct {
	Added   []string
	Removed []string
}

// Toggles returns Added ∪ Removed. Each id needs exactly one toggle call.
func (d Delta) Toggles() []string {
	out := make([]string, 0, len(d.Added)+len(d.Removed))
	out = append(out, d.Added...)
	return append(out, d.Removed...)
}

func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// Reconcile computes current \ original and original \ current.
// Duplicate ids in either input are ignored; outputs are sorted.
func Reconcile(original, current []string) Delta {
	orig := toSet(original)
	cur := toSet(current)
	return Delta{
		Added:   difference(cur, orig),
		Removed: difference(orig, cur),
	}
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func difference(a, b map[string]struct{}) []string {
	var out []string
	for id := range a {
		if _, ok := b[id]; !ok {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
