package rules

import (
	"testing"

	. "github.com/onsi/gomega"

	"github.com/nginxinc/gateway-cutover/internal/helpers"
)

func newTestRuleSet(t *testing.T, origin Origin, bindings ...Binding) *RuleSet {
	t.Helper()

	rs := NewRuleSet(origin)
	for _, b := range bindings {
		if err := rs.Add(b); err != nil {
			t.Fatal(err)
		}
	}
	return rs
}

func TestDiff(t *testing.T) {
	t.Parallel()

	appBinding := Binding{Host: "example.com", PathPrefix: "/app", BackendName: "web-service", BackendPort: 80}
	apiBinding := Binding{Host: "example.com", PathPrefix: "/api", BackendName: "api-service", BackendPort: 8080}

	tests := []struct {
		name     string
		oldSet   *RuleSet
		newSet   *RuleSet
		expected DiffResult
	}{
		{
			name:     "identical rulesets are equivalent",
			oldSet:   newTestRuleSet(t, OriginLegacy, appBinding, apiBinding),
			newSet:   newTestRuleSet(t, OriginGateway, appBinding, apiBinding),
			expected: DiffResult{},
		},
		{
			name:     "identical rulesets in different order are equivalent",
			oldSet:   newTestRuleSet(t, OriginLegacy, apiBinding, appBinding),
			newSet:   newTestRuleSet(t, OriginGateway, appBinding, apiBinding),
			expected: DiffResult{},
		},
		{
			name:   "added binding",
			oldSet: newTestRuleSet(t, OriginLegacy, appBinding),
			newSet: newTestRuleSet(t, OriginGateway, appBinding, apiBinding),
			expected: DiffResult{
				Added: []Binding{apiBinding},
			},
		},
		{
			name:   "removed binding",
			oldSet: newTestRuleSet(t, OriginLegacy, appBinding, apiBinding),
			newSet: newTestRuleSet(t, OriginGateway, appBinding),
			expected: DiffResult{
				Removed: []Binding{apiBinding},
			},
		},
		{
			name:   "changed backend port",
			oldSet: newTestRuleSet(t, OriginLegacy, appBinding, apiBinding),
			newSet: newTestRuleSet(
				t,
				OriginGateway,
				appBinding,
				Binding{Host: "example.com", PathPrefix: "/api", BackendName: "api-service", BackendPort: 9090},
			),
			expected: DiffResult{
				Changed: []ChangedBinding{
					{
						Old: apiBinding,
						New: Binding{Host: "example.com", PathPrefix: "/api", BackendName: "api-service", BackendPort: 9090},
					},
				},
			},
		},
		{
			name:   "changed backend name",
			oldSet: newTestRuleSet(t, OriginLegacy, appBinding),
			newSet: newTestRuleSet(
				t,
				OriginGateway,
				Binding{Host: "example.com", PathPrefix: "/app", BackendName: "web-service-v2", BackendPort: 80},
			),
			expected: DiffResult{
				Changed: []ChangedBinding{
					{
						Old: appBinding,
						New: Binding{Host: "example.com", PathPrefix: "/app", BackendName: "web-service-v2", BackendPort: 80},
					},
				},
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			result := Diff(test.oldSet, test.newSet)
			g.Expect(helpers.Diff(test.expected, result)).To(BeEmpty())
			g.Expect(result.Equivalent()).To(Equal(
				len(test.expected.Added) == 0 && len(test.expected.Removed) == 0 && len(test.expected.Changed) == 0,
			))
		})
	}
}

func TestDiffWithSelfIsAlwaysEquivalent(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	rs := newTestRuleSet(t, OriginLegacy,
		Binding{Host: "example.com", PathPrefix: "/app", BackendName: "web-service", BackendPort: 80},
		Binding{Host: "example.com", PathPrefix: "/api", BackendName: "api-service", BackendPort: 8080},
		Binding{PathPrefix: "/", BackendName: "default-backend", BackendPort: 80},
	)

	result := Diff(rs, rs)
	g.Expect(result.Equivalent()).To(BeTrue())
	g.Expect(result.Added).To(BeEmpty())
	g.Expect(result.Removed).To(BeEmpty())
	g.Expect(result.Changed).To(BeEmpty())
}

func TestDiffOrderingWarnings(t *testing.T) {
	t.Parallel()

	t.Run("shadowed binding in new ruleset", func(t *testing.T) {
		t.Parallel()
		g := NewWithT(t)

		oldSet := newTestRuleSet(t, OriginLegacy,
			Binding{Host: "example.com", PathPrefix: "/app", BackendName: "web-service", BackendPort: 80},
		)
		// /app2 is added after /app; with first-match prefix resolution the
		// /app binding captures /app2 requests.
		newSet := newTestRuleSet(t, OriginGateway,
			Binding{Host: "example.com", PathPrefix: "/app", BackendName: "web-service", BackendPort: 80},
			Binding{Host: "example.com", PathPrefix: "/app2", BackendName: "app2-service", BackendPort: 80},
		)

		result := Diff(oldSet, newSet)
		g.Expect(result.Warnings).To(HaveLen(1))
		g.Expect(result.Warnings[0].Path).To(Equal("/app2"))
		g.Expect(result.Warnings[0].OldBackend).To(Equal("app2-service:80"))
		g.Expect(result.Warnings[0].NewBackend).To(Equal("web-service:80"))
		g.Expect(result.Warnings[0].Reason).To(ContainSubstring("shadowed"))
	})

	t.Run("identical sets with divergent resolution order", func(t *testing.T) {
		t.Parallel()
		g := NewWithT(t)

		appBinding := Binding{Host: "example.com", PathPrefix: "/app", BackendName: "web-service", BackendPort: 80}
		app2Binding := Binding{Host: "example.com", PathPrefix: "/app2", BackendName: "app2-service", BackendPort: 80}

		oldSet := newTestRuleSet(t, OriginLegacy, app2Binding, appBinding)
		newSet := newTestRuleSet(t, OriginGateway, appBinding, app2Binding)

		result := Diff(oldSet, newSet)

		// The Binding sets are identical, so the diff is equivalent...
		g.Expect(result.Equivalent()).To(BeTrue())

		// ...but /app2 requests resolve to app2-service through the legacy
		// rules and to web-service through the gateway rules.
		g.Expect(result.Warnings).ToNot(BeEmpty())

		var divergence []OrderingWarning
		for _, w := range result.Warnings {
			if w.Path == "/app2" && w.OldBackend != w.NewBackend {
				divergence = append(divergence, w)
			}
		}
		g.Expect(divergence).ToNot(BeEmpty())
	})

	t.Run("no warnings when prefixes do not overlap", func(t *testing.T) {
		t.Parallel()
		g := NewWithT(t)

		oldSet := newTestRuleSet(t, OriginLegacy,
			Binding{Host: "example.com", PathPrefix: "/app", BackendName: "web-service", BackendPort: 80},
			Binding{Host: "example.com", PathPrefix: "/api", BackendName: "api-service", BackendPort: 8080},
		)
		newSet := newTestRuleSet(t, OriginGateway,
			Binding{Host: "example.com", PathPrefix: "/api", BackendName: "api-service", BackendPort: 8080},
			Binding{Host: "example.com", PathPrefix: "/app", BackendName: "web-service", BackendPort: 80},
		)

		result := Diff(oldSet, newSet)
		g.Expect(result.Equivalent()).To(BeTrue())
		g.Expect(result.Warnings).To(BeEmpty())
	})
}
