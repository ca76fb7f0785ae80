package api

import (
	"context"
	"encoding/json"
	"fmt"
)

// SessionRecord is the persisted part of a session. The HTTP client and
// the cookie jar object are not part of it; they are rebuilt on next use.
type SessionRecord struct {
	AppID            string      `json:"appID"`
	UserAgent        string      `json:"userAgent"`
	AuthorizationKey string      `json:"authorizationKey"`
	ProfileType      ProfileType `json:"profileType"`
	Debug            bool        `json:"debug"`
	Persistent       bool        `json:"persistent"`
}

func (r SessionRecord) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

func ParseSessionRecord(data []byte) (SessionRecord, error) {
	var r SessionRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return SessionRecord{}, fmt.Errorf("parse session record: %w", err)
	}
	if r.AppID == "" || r.UserAgent == "" {
		return SessionRecord{}, fmt.Errorf("%w: stored session lacks app identity", ErrInvalidAppData)
	}
	return r, nil
}

// EnablePersistence makes the session survive the process: the session
// record and the cookie jar are written to the configured store.
func (a *Auth) EnablePersistence() error {
	if a.store == nil {
		return fmt.Errorf("%w: no session store configured", ErrSessionUnavailable)
	}

	a.persistent = true
	if a.jar != nil {
		a.jar.store = a.store
	}

	return nil
}

// Persistent reports whether the session is saved to a store.
func (a *Auth) Persistent() bool {
	return a.persistent
}

// Record returns the persisted view of the session.
func (a *Auth) Record() SessionRecord {
	return SessionRecord{
		AppID:            a.identity.AppID,
		UserAgent:        a.identity.UserAgent,
		AuthorizationKey: a.authorization,
		ProfileType:      a.identity.ProfileType,
		Debug:            a.debug,
		Persistent:       a.persistent,
	}
}

// SaveSession writes the session record to the store.
func (a *Auth) SaveSession(ctx context.Context) error {
	if a.store == nil {
		return fmt.Errorf("%w: no session store configured", ErrSessionUnavailable)
	}

	data, err := a.Record().Marshal()
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}

	if err := a.store.Save(ctx, AuthSessionKey, data); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	if a.jar != nil {
		if err := a.jar.Save(ctx); err != nil {
			return err
		}
	}

	return nil
}

// Restore rebuilds an authenticated session saved by SaveSession. The
// client and cookie jar are created on the first request; a persistent
// session gets its stored cookies back at that point. A debug option in
// opts takes precedence over the stored debug flag.
func Restore(ctx context.Context, store SessionStore, opts ...Option) (*Auth, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: no session store configured", ErrSessionUnavailable)
	}

	data, err := store.Load(ctx, AuthSessionKey)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	record, err := ParseSessionRecord(data)
	if err != nil {
		return nil, err
	}

	identity, err := newAppIdentity(AppData{AppID: record.AppID, UserAgent: record.UserAgent})
	if err != nil {
		return nil, err
	}
	if record.ProfileType != "" {
		identity.ProfileType = record.ProfileType
	}

	a := New()
	a.identity = identity
	a.SetAuthorizationKey(record.AuthorizationKey)
	a.debug = record.Debug
	a.persistent = record.Persistent
	a.state = StateAuthenticated

	// Options override the stored flags.
	for _, opt := range opts {
		opt(a)
	}
	a.store = store

	a.logger.Debug("Session restored", "app_id", record.AppID, "persistent", record.Persistent)

	return a, nil
}
