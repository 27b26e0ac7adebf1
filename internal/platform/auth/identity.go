// Package auth verifies the bearer tokens presented on WebSocket upgrades and
// turns them into typed identities.
package auth

import "context"

// AccountKind distinguishes the principals that may open a connection.
type AccountKind string

const (
	KindHolder      AccountKind = "holder"
	KindBeneficiary AccountKind = "beneficiary"
	KindAgent       AccountKind = "agent"
)

// Identity is the authenticated principal behind a connection.
type Identity struct {
	ID            string      `json:"id"`
	Kind          AccountKind `json:"kind"`
	IsAgent       bool        `json:"is_agent"`
	AgentActive   bool        `json:"agent_active"`
	IsBeneficiary bool        `json:"is_beneficiary"`
}

// ActiveAgent reports whether the identity is a support agent currently on duty.
func (i Identity) ActiveAgent() bool {
	return i.IsAgent && i.AgentActive
}

// Verifier validates an opaque token and yields the identity it was issued to.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, token string) (Identity, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (Identity, error) {
	return f(ctx, token)
}
