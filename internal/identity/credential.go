package identity

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoCredential is returned when a record has no bound cookie to act with.
	ErrNoCredential = errors.New("no credential bound")
	// ErrCredentialNotFound is returned by a CredentialSource when an owner id
	// does not resolve. Records drop such ids silently.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrUnknownHealthStatus is returned for health reports outside 0..3.
	ErrUnknownHealthStatus = errors.New("unknown credential health status")
)

// Credential is one bound session cookie.
type Credential interface {
	// OwnerID is the ltuid of the cookie's miHoYo account.
	OwnerID() string
	// Token is the session cookie; empty once the cookie is unusable.
	Token() string
	IsMain() bool
	// Uids lists the UIDs the cookie reports for game, in discovery order.
	Uids(game Game) []string
	RefreshProfile(ctx context.Context) error
	InvalidateProfile(ctx context.Context) error
}

// CredentialSource resolves owner ids into credentials and checks their health.
type CredentialSource interface {
	// Create returns ErrCredentialNotFound when ownerID is unknown.
	Create(ctx context.Context, ownerID string) (Credential, error)
	CheckHealth(ctx context.Context, token string) (HealthReport, error)
}

// BindingEnumerator lists every user key with the owner ids bound to it.
type BindingEnumerator interface {
	EnumerateBindings(ctx context.Context) (map[string][]string, error)
}

// HealthStatus is the capability class a cookie still has.
type HealthStatus int

const (
	// StatusHealthy: every query works.
	StatusHealthy HealthStatus = 0
	// StatusPartial: some data categories (e.g. talents) are unavailable.
	StatusPartial HealthStatus = 1
	// StatusDataLost: account data is unreadable but the session is alive.
	StatusDataLost HealthStatus = 2
	// StatusRevoked: the session is dead.
	StatusRevoked HealthStatus = 3
)

func (s HealthStatus) Valid() bool {
	return s >= StatusHealthy && s <= StatusRevoked
}

func (s HealthStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusPartial:
		return "partial"
	case StatusDataLost:
		return "data_lost"
	case StatusRevoked:
		return "revoked"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// HealthReport is the result of one credential health check.
type HealthReport struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}
