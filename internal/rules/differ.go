package rules

import (
	"fmt"
	"sort"
)

// ChangedBinding is a pair of Bindings that share a (host, pathPrefix) pair
// but point at different backends.
type ChangedBinding struct {
	Old Binding `json:"old"`
	New Binding `json:"new"`
}

// OrderingWarning reports a request that the two RuleSets resolve to
// different effective Bindings because of prefix overlap and Binding order,
// even though the diff of the Binding sets may be empty. This is the most
// common silent migration bug (e.g. /app shadowing /app2).
type OrderingWarning struct {
	Host       string `json:"host"`
	Path       string `json:"path"`
	OldBackend string `json:"oldBackend"`
	NewBackend string `json:"newBackend"`
	Reason     string `json:"reason"`
}

// DiffResult is the structured difference between two RuleSets.
type DiffResult struct {
	// Added contains Bindings present only in the new RuleSet.
	Added []Binding `json:"added,omitempty"`
	// Removed contains Bindings present only in the old RuleSet.
	Removed []Binding `json:"removed,omitempty"`
	// Changed contains Bindings whose (host, pathPrefix) pair exists in both
	// RuleSets but whose backends differ.
	Changed []ChangedBinding `json:"changed,omitempty"`
	// Warnings contains ordering-sensitivity warnings. Warnings do not affect
	// equivalence; divergence they predict is caught by traffic probes.
	Warnings []OrderingWarning `json:"warnings,omitempty"`
}

// Equivalent reports whether the two RuleSets bind the same requests to the
// same backends, ignoring Warnings.
func (d DiffResult) Equivalent() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Diff compares two RuleSets keyed by (host, pathPrefix).
// The order of Bindings within each RuleSet does not affect the
// added/removed/changed results, but order-sensitive resolution divergence
// between the RuleSets is reported through Warnings.
func Diff(oldSet, newSet *RuleSet) DiffResult {
	var result DiffResult

	for _, b := range oldSet.bindings {
		newB, exists := newSet.Lookup(b.Host, b.PathPrefix)
		switch {
		case !exists:
			result.Removed = append(result.Removed, b)
		case newB.BackendName != b.BackendName || newB.BackendPort != b.BackendPort:
			result.Changed = append(result.Changed, ChangedBinding{Old: b, New: newB})
		}
	}

	for _, b := range newSet.bindings {
		if _, exists := oldSet.Lookup(b.Host, b.PathPrefix); !exists {
			result.Added = append(result.Added, b)
		}
	}

	sortBindings(result.Added)
	sortBindings(result.Removed)
	sort.Slice(result.Changed, func(i, j int) bool {
		if result.Changed[i].Old.Host != result.Changed[j].Old.Host {
			return result.Changed[i].Old.Host < result.Changed[j].Old.Host
		}
		return result.Changed[i].Old.PathPrefix < result.Changed[j].Old.PathPrefix
	})

	result.Warnings = orderingWarnings(oldSet, newSet)

	return result
}

// orderingWarnings resolves every (host, pathPrefix) pair from the union of
// both RuleSets against each RuleSet and flags pairs that resolve to
// different backends. Shadowed Bindings -- ones that can never win because an
// earlier Binding's prefix covers theirs -- are flagged as well, since they
// resolve differently from what their own RuleSet declares.
func orderingWarnings(oldSet, newSet *RuleSet) []OrderingWarning {
	var warnings []OrderingWarning

	for _, key := range unionKeys(oldSet, newSet) {
		oldB, oldOK := oldSet.Resolve(key.Host, key.PathPrefix)
		newB, newOK := newSet.Resolve(key.Host, key.PathPrefix)

		if oldOK && newOK && oldB.Key() != newB.Key() &&
			(oldB.BackendName != newB.BackendName || oldB.BackendPort != newB.BackendPort) {
			warnings = append(warnings, OrderingWarning{
				Host:       key.Host,
				Path:       key.PathPrefix,
				OldBackend: fmt.Sprintf("%s:%d", oldB.BackendName, oldB.BackendPort),
				NewBackend: fmt.Sprintf("%s:%d", newB.BackendName, newB.BackendPort),
				Reason: fmt.Sprintf(
					"request resolves through prefix %q in the %s rules but prefix %q in the %s rules",
					oldB.PathPrefix, oldSet.origin, newB.PathPrefix, newSet.origin,
				),
			})
		}
	}

	warnings = append(warnings, shadowWarnings(oldSet)...)
	warnings = append(warnings, shadowWarnings(newSet)...)

	sort.Slice(warnings, func(i, j int) bool {
		if warnings[i].Host != warnings[j].Host {
			return warnings[i].Host < warnings[j].Host
		}
		if warnings[i].Path != warnings[j].Path {
			return warnings[i].Path < warnings[j].Path
		}
		return warnings[i].Reason < warnings[j].Reason
	})

	return warnings
}

// shadowWarnings flags Bindings that lose first-match resolution to an
// earlier Binding with an overlapping prefix and a different backend.
func shadowWarnings(rs *RuleSet) []OrderingWarning {
	var warnings []OrderingWarning

	for _, b := range rs.bindings {
		winner, found := rs.Resolve(b.Host, b.PathPrefix)
		if !found || winner.Key() == b.Key() {
			continue
		}
		if winner.BackendName == b.BackendName && winner.BackendPort == b.BackendPort {
			continue
		}
		warnings = append(warnings, OrderingWarning{
			Host:       b.Host,
			Path:       b.PathPrefix,
			OldBackend: fmt.Sprintf("%s:%d", b.BackendName, b.BackendPort),
			NewBackend: fmt.Sprintf("%s:%d", winner.BackendName, winner.BackendPort),
			Reason: fmt.Sprintf(
				"%s binding for prefix %q is shadowed by earlier prefix %q",
				rs.origin, b.PathPrefix, winner.PathPrefix,
			),
		})
	}

	return warnings
}

// unionKeys returns the union of the BindingKeys of both RuleSets, sorted.
func unionKeys(sets ...*RuleSet) []BindingKey {
	seen := make(map[BindingKey]struct{})
	var keys []BindingKey

	for _, rs := range sets {
		for _, b := range rs.bindings {
			if _, exists := seen[b.Key()]; exists {
				continue
			}
			seen[b.Key()] = struct{}{}
			keys = append(keys, b.Key())
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Host != keys[j].Host {
			return keys[i].Host < keys[j].Host
		}
		return keys[i].PathPrefix < keys[j].PathPrefix
	})

	return keys
}
