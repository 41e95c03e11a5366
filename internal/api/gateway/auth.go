package gateway

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/murmurchat/realtime/internal/errors"
)

// The gateway does not issue tokens; sessions are minted by the auth
// service and this only verifies the signature and extracts the bound
// identity.
type sessionClaims struct {
	DisplayName string `json:"name"`
	jwt.RegisteredClaims
}

func identityFromRequest(r *http.Request, secret string) (string, string, error) {
	token := ""

	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		token = strings.TrimPrefix(h, "Bearer ")
	} else {
		// Browser WebSocket clients cannot set headers.
		token = r.URL.Query().Get("access_token")
	}

	if token == "" {
		return "", "", errors.ErrNotAuthorized().SetDetail("Missing Token")
	}

	claims := &sessionClaims{}

	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.ErrNotAuthorized().SetDetail("Unexpected Signing Method")
		}

		return []byte(secret), nil
	})
	if err != nil {
		return "", "", errors.ErrNotAuthorized().SetDetail("Invalid Token").WithError(err)
	}

	if claims.Subject == "" {
		return "", "", errors.ErrNotAuthorized().SetDetail("Token Has No Subject")
	}

	name := claims.DisplayName
	if name == "" {
		name = claims.Subject
	}

	return claims.Subject, name, nil
}
