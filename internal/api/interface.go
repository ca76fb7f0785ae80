// Package api is a client for the bank's mobile REST backend. It owns the
// authentication lifecycle, the cookie session and the request pipeline;
// bank specific login challenges plug in through AuthFlow.
package api

import "context"

// AuthFlow performs the login challenge of one bank app variant. Login is
// called with the Auth in the Authenticating state and may issue requests,
// set the authorization key or enable persistence.
type AuthFlow interface {
	Name() string
	Login(ctx context.Context, auth *Auth) error
}

// SessionStore persists serialized session state between process
// invocations. Load returns ErrSessionNotFound for unknown ids; Delete of
// an unknown id is not an error.
type SessionStore interface {
	Load(ctx context.Context, id string) ([]byte, error)
	Save(ctx context.Context, id string, data []byte) error
	Delete(ctx context.Context, id string) error
}
