package types

import "fmt"

// PolicyScope identifies which corpus a policy document belongs to.
// School documents are the organization's own rules (reglamento interno,
// protocolos de convivencia). Legal documents are the regulatory corpus
// (normativa, circulares de la superintendencia).
type PolicyScope string

const (
	PolicyScopeSchool PolicyScope = "school"
	PolicyScopeLegal  PolicyScope = "legal"
)

// AllPolicyScopes returns all valid policy scopes
func AllPolicyScopes() []PolicyScope {
	return []PolicyScope{PolicyScopeSchool, PolicyScopeLegal}
}

// IsValid checks if the policy scope is valid
func (s PolicyScope) IsValid() bool {
	switch s {
	case PolicyScopeSchool, PolicyScopeLegal:
		return true
	default:
		return false
	}
}

// String returns the string representation of the policy scope
func (s PolicyScope) String() string {
	return string(s)
}

// ParsePolicyScope parses a string into a PolicyScope
func ParsePolicyScope(s string) (PolicyScope, error) {
	scope := PolicyScope(s)
	if !scope.IsValid() {
		return "", fmt.Errorf("invalid policy scope: %s", s)
	}
	return scope, nil
}
