package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AuthConfig verifies access tokens issued by the external auth provider.
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

func (c AuthConfig) authenticate(token string) (*AuthUser, error) {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return nil, errors.New("jwt secret not configured")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if c.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(c.JWTIssuer))
	}
	claims := &jwtClaims{}
	parsed, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(c.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("subject claim required")
	}
	return &AuthUser{
		UserID: claims.Subject,
		Email:  strings.ToLower(strings.TrimSpace(claims.Email)),
	}, nil
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}
		u, err := s.auth.authenticate(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials")
			return
		}
		next.ServeHTTP(w, r.WithContext(withAuthUser(r.Context(), u)))
	})
}

// extractToken reads the bearer header, or the access_token query parameter
// for EventSource clients that cannot set headers.
func extractToken(r *http.Request) string {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if parts := strings.Fields(authz); len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	if strings.HasSuffix(r.URL.Path, "/stream") {
		return strings.TrimSpace(r.URL.Query().Get("access_token"))
	}
	return ""
}
