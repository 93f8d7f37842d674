package probe

import (
	"sort"

	"github.com/nginxinc/gateway-cutover/internal/rules"
)

// CasesFromRuleSets derives the sampled request cases for a verification
// pass: one case per (host, pathPrefix) pair from the union of the Bindings
// of all given RuleSets, sorted for deterministic reports.
func CasesFromRuleSets(ruleSets ...*rules.RuleSet) []Case {
	seen := make(map[Case]struct{})
	var cases []Case

	for _, rs := range ruleSets {
		if rs == nil {
			continue
		}
		for _, b := range rs.Bindings() {
			c := Case{Host: b.Host, Path: b.PathPrefix}
			if _, exists := seen[c]; exists {
				continue
			}
			seen[c] = struct{}{}
			cases = append(cases, c)
		}
	}

	sort.Slice(cases, func(i, j int) bool {
		if cases[i].Host != cases[j].Host {
			return cases[i].Host < cases[j].Host
		}
		return cases[i].Path < cases[j].Path
	})

	return cases
}
