// Package auth resolves caller credentials to a Principal and checks the
// permissions each ledger operation requires.
package auth

import (
	"context"

	"github.com/richardliu001/wallet-ledger/internal/apperr"
)

// Permission is a capability tag granted to a credential.
type Permission string

const (
	PermDeposit  Permission = "deposit"
	PermTransfer Permission = "transfer"
	PermRead     Permission = "read"
)

// AllPermissions is what a session owner holds.
var AllPermissions = []Permission{PermDeposit, PermTransfer, PermRead}

var (
	ErrMissingCredential = apperr.New(apperr.Unauthenticated, "API key or bearer token is missing")
	ErrInvalidCredential = apperr.New(apperr.Unauthenticated, "invalid or revoked key")
	ErrExpiredCredential = apperr.New(apperr.Unauthenticated, "expired key")
	ErrForbidden         = apperr.New(apperr.Forbidden, "missing permission")
)

// Method tells how a principal authenticated.
type Method string

const (
	MethodAPIKey  Method = "api_key"
	MethodSession Method = "session"
)

// Principal is the authenticated caller. WalletID is zero when the user has
// no wallet yet; engines resolve the wallet themselves.
type Principal struct {
	UserID      uint64
	WalletID    uint64
	Email       string
	Permissions []Permission
	Method      Method
}

// Has reports whether p was granted perm.
func (p Principal) Has(perm Permission) bool {
	for _, granted := range p.Permissions {
		if granted == perm {
			return true
		}
	}
	return false
}

// Credential is what a request presented. At most one field is expected.
type Credential struct {
	APIKey      string
	BearerToken string
}

type Authenticator interface {
	Authenticate(ctx context.Context, cred Credential) (Principal, error)
}

type Authorizer interface {
	Authorize(p Principal, perm Permission) error
}

// Gate is the full access contract.
type Gate interface {
	Authenticator
	Authorizer
}

// ParsePermissions validates raw permission tags.
func ParsePermissions(raw []string) ([]Permission, error) {
	out := make([]Permission, 0, len(raw))
	seen := make(map[Permission]bool, len(raw))
	for _, r := range raw {
		p := Permission(r)
		switch p {
		case PermDeposit, PermTransfer, PermRead:
		default:
			return nil, apperr.New(apperr.Validation, "unknown permission "+r)
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out, nil
}
