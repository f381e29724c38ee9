// Package identity provides identity claim value types and pure functions.
// Claims are extracted from bearer credentials issued by the external auth provider.
package identity

import "strings"

// Claims represents the identity resolved from a bearer credential.
// All three fields must be present before any entitlement decision is made;
// a partial claim set is an authentication failure, not a business state.
type Claims struct {
	SubjectID string // stable user identifier ("sub")
	Issuer    string // token issuer ("iss")
	Email     string // lowercased, used only as a billing-provider lookup key
}

// Complete reports whether all required claims are present.
// This is a PURE function.
func (c Claims) Complete() bool {
	return c.SubjectID != "" && c.Issuer != "" && c.Email != ""
}

// Normalize returns a copy with the email lowercased and trimmed.
// This is a PURE function.
func Normalize(c Claims) Claims {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	return c
}
