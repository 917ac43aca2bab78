package service

import (
	"strings"

	"github.com/google/uuid"

	"github.com/yardline/marketclient/internal/domain"
)

// offlineNamespace seeds the name-based UUIDs of offline identities so the
// same identifier always maps to the same identity.
var offlineNamespace = uuid.MustParse("6f1c2a0e-3b7d-5e49-9a61-2d8f0c4b7e15")

// OfflineIdentity mints the deterministic local identity used when the
// backend cannot be reached. Token and user id share the offline- prefix so
// the session is never mistaken for a backend-issued one.
func OfflineIdentity(identifier, username string, role domain.Role) (string, domain.User) {
	key := strings.ToLower(strings.TrimSpace(identifier))
	id := domain.OfflineTokenPrefix + uuid.NewSHA1(offlineNamespace, []byte(key)).String()

	if username == "" {
		username = key
		if at := strings.IndexByte(key, '@'); at > 0 {
			username = key[:at]
		}
	}

	user := domain.User{ID: id, Username: username, Role: role}
	if strings.Contains(key, "@") {
		user.Email = key
	}
	return id, user
}
