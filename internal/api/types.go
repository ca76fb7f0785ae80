package api

import (
	"fmt"
	"strings"
)

// Fixed keys of the persisted session in a SessionStore.
const (
	AuthSessionKey      = "bankapi_auth"
	CookieJarSessionKey = "bankapi_cookiejar"
)

type ProfileType string

const (
	ProfileIndividual ProfileType = "privateProfile"
	ProfileCorporate  ProfileType = "corporateProfiles"
)

// AppData identifies the bank app the client impersonates.
type AppData struct {
	AppID     string
	UserAgent string
}

// AppIdentity is validated AppData plus the derived profile type.
type AppIdentity struct {
	AppID       string
	UserAgent   string
	ProfileType ProfileType
}

func newAppIdentity(data AppData) (AppIdentity, error) {
	if data.AppID == "" || data.UserAgent == "" {
		return AppIdentity{}, fmt.Errorf("%w: appID and user agent are required", ErrInvalidAppData)
	}

	profile := ProfileIndividual
	if strings.Contains(data.UserAgent, "Corporate") {
		profile = ProfileCorporate
	}

	return AppIdentity{
		AppID:       data.AppID,
		UserAgent:   data.UserAgent,
		ProfileType: profile,
	}, nil
}

type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
