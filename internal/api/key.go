package api

import (
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
)

// GenerateAuthorizationKey returns base64("<appID>:<UUIDv4 upper case>"),
// the key the backend expects in the Authorization header.
func GenerateAuthorizationKey(appID string) string {
	raw := appID + ":" + strings.ToUpper(uuid.NewString())
	return base64.StdEncoding.EncodeToString([]byte(raw))
}
