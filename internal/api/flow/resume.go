// Package flow holds AuthFlow implementations that ship with the client.
// Bank specific challenges (password, BankID) live with their callers.
package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/grez-lucas/bankapi/internal/api"
)

const defaultProfilePath = "profile/"

var ErrMissingKey = errors.New("no authorization key to resume")

// Resume continues a session whose authorization key was issued earlier,
// for example by a login on another device. It verifies the key with a
// profile call.
type Resume struct {
	Key string

	// ProfilePath is the endpoint used to verify the session.
	ProfilePath string
}

func (r *Resume) Name() string {
	return "resume"
}

func (r *Resume) Login(ctx context.Context, auth *api.Auth) error {
	if r.Key == "" {
		return ErrMissingKey
	}
	auth.SetAuthorizationKey(r.Key)

	path := r.ProfilePath
	if path == "" {
		path = defaultProfilePath
	}

	if _, err := auth.Get(ctx, path, nil); err != nil {
		return fmt.Errorf("verify session: %w", err)
	}

	return nil
}
