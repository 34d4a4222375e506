package ignore

import (
	"checkup/internal/diag"
)

// Set is the resolved, order-preserving collection of ignore rules gathered
// from a root config and everything it includes.
//
// Quota decrements mutate the rules in place, so a Set must be scoped to a
// single filter pass: call Clone on the resolved set once per check and filter
// with the clone, never with the shared original.
type Set struct {
	Rules []*Rule
}

// Append adds rules to the end of the set, preserving declaration order.
func (s *Set) Append(rules ...*Rule) {
	s.Rules = append(s.Rules, rules...)
}

// Len returns the number of rules, invalid markers included.
func (s *Set) Len() int { return len(s.Rules) }

// Clone returns a copy whose quotas are independent of the receiver's.
func (s *Set) Clone() *Set {
	c := &Set{Rules: make([]*Rule, len(s.Rules))}
	for i, r := range s.Rules {
		c.Rules[i] = r.clone()
	}
	return c
}

// Filter drops every diagnostic matched by a rule in the set and returns the
// survivors in their original order. Rules are scanned in declaration order
// and the first match wins; a match decrements the rule's quota if it has one.
// A rule with an exhausted quota is skipped, not counted as a match. Invalid
// rules never match.
func (s *Set) Filter(diags []diag.Diagnostic, filePath string) []diag.Diagnostic {
	if len(s.Rules) == 0 {
		return diags
	}

	applicable := make([]*Rule, 0, len(s.Rules))
	for _, r := range s.Rules {
		if r.Invalid() {
			continue
		}
		if r.AppliesTo(filePath) {
			applicable = append(applicable, r)
		}
	}
	if len(applicable) == 0 {
		return diags
	}

	kept := make([]diag.Diagnostic, 0, len(diags))
	for _, d := range diags {
		if !suppress(applicable, d.Message) {
			kept = append(kept, d)
		}
	}
	return kept
}

// suppress scans rules in order and consumes the first match.
func suppress(rules []*Rule, message string) bool {
	for _, r := range rules {
		if r.Count != nil && *r.Count == 0 {
			continue
		}
		if !r.Message.Match(message) {
			continue
		}
		if r.Count != nil {
			*r.Count--
		}
		return true
	}
	return false
}
