// Package rules holds the normalized representation of host/path/backend
// routing bindings and the diffing logic used to compare the legacy and
// gateway routing origins during a migration.
package rules

import (
	"fmt"
	"sort"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Origin identifies which routing origin a RuleSet was built from.
type Origin string

const (
	// OriginLegacy is the origin of RuleSets built from Ingress resources.
	OriginLegacy Origin = "legacy"
	// OriginGateway is the origin of RuleSets built from HTTPRoute resources.
	OriginGateway Origin = "gateway"
)

// BindingKey identifies a Binding by its request match, ignoring the backend.
type BindingKey struct {
	Host       string
	PathPrefix string
}

func (k BindingKey) String() string {
	return k.Host + k.PathPrefix
}

// Binding maps a host and path prefix to a backend service port.
// An empty Host matches any host.
type Binding struct {
	Host        string `json:"host"`
	PathPrefix  string `json:"pathPrefix"`
	BackendName string `json:"backendName"`
	BackendPort int32  `json:"backendPort"`
}

// Key returns the BindingKey of the Binding.
func (b Binding) Key() BindingKey {
	return BindingKey{Host: b.Host, PathPrefix: b.PathPrefix}
}

func (b Binding) String() string {
	return fmt.Sprintf("%s%s->%s:%d", b.Host, b.PathPrefix, b.BackendName, b.BackendPort)
}

// Validate validates the Binding.
func (b Binding) Validate() error {
	var allErrs field.ErrorList

	if b.PathPrefix == "" {
		allErrs = append(allErrs, field.Required(field.NewPath("pathPrefix"), "must not be empty"))
	} else if !strings.HasPrefix(b.PathPrefix, "/") {
		allErrs = append(allErrs, field.Invalid(field.NewPath("pathPrefix"), b.PathPrefix, "must start with /"))
	}

	if b.BackendName == "" {
		allErrs = append(allErrs, field.Required(field.NewPath("backendName"), "must not be empty"))
	}

	if b.BackendPort < 1 || b.BackendPort > 65535 {
		allErrs = append(allErrs, field.Invalid(field.NewPath("backendPort"), b.BackendPort, "must be in the range [1, 65535]"))
	}

	return allErrs.ToAggregate()
}

// RuleSet is an ordered sequence of Bindings from a single origin.
// The order determines resolution: the first Binding whose host and path
// prefix match a request wins, mirroring prefix-routing semantics.
// A secondary index by BindingKey provides O(1) exact lookups.
type RuleSet struct {
	index    map[BindingKey]int
	origin   Origin
	bindings []Binding
}

// NewRuleSet creates an empty RuleSet for the given origin.
func NewRuleSet(origin Origin) *RuleSet {
	return &RuleSet{
		origin: origin,
		index:  make(map[BindingKey]int),
	}
}

// Origin returns the origin of the RuleSet.
func (rs *RuleSet) Origin() Origin {
	return rs.origin
}

// Len returns the number of Bindings in the RuleSet.
func (rs *RuleSet) Len() int {
	return len(rs.bindings)
}

// Add appends a Binding to the RuleSet.
// It returns an error if the Binding is invalid or if a Binding with the same
// (host, pathPrefix) pair already exists.
func (rs *RuleSet) Add(b Binding) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("invalid binding %s: %w", b, err)
	}

	if _, exists := rs.index[b.Key()]; exists {
		return fmt.Errorf("duplicate binding for host %q path %q", b.Host, b.PathPrefix)
	}

	rs.index[b.Key()] = len(rs.bindings)
	rs.bindings = append(rs.bindings, b)

	return nil
}

// Bindings returns a copy of the Bindings in insertion order.
func (rs *RuleSet) Bindings() []Binding {
	bindings := make([]Binding, len(rs.bindings))
	copy(bindings, rs.bindings)
	return bindings
}

// Lookup returns the Binding with the exact (host, pathPrefix) pair.
func (rs *RuleSet) Lookup(host, pathPrefix string) (Binding, bool) {
	idx, exists := rs.index[BindingKey{Host: host, PathPrefix: pathPrefix}]
	if !exists {
		return Binding{}, false
	}
	return rs.bindings[idx], true
}

// Resolve returns the effective Binding for a request with the given host and
// path. Bindings are tried in insertion order; the first one whose host
// matches and whose pathPrefix is a prefix of the path wins.
func (rs *RuleSet) Resolve(host, path string) (Binding, bool) {
	for _, b := range rs.bindings {
		if b.Host != "" && b.Host != host {
			continue
		}
		if strings.HasPrefix(path, b.PathPrefix) {
			return b, true
		}
	}
	return Binding{}, false
}

// sortBindings sorts Bindings by host, then path prefix, for deterministic
// report output. It does not affect resolution order.
func sortBindings(bindings []Binding) {
	sort.Slice(bindings, func(i, j int) bool {
		if bindings[i].Host != bindings[j].Host {
			return bindings[i].Host < bindings[j].Host
		}
		return bindings[i].PathPrefix < bindings[j].PathPrefix
	})
}
