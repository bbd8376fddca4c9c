package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/keygate/keygate/internal/models"
)

type Claims struct {
	Email     string `json:"email"`
	FullName  string `json:"name"`
	AvatarURL string `json:"picture"`
	jwt.RegisteredClaims
}

// UserResolver maps a verified email to a local user row.
type UserResolver interface {
	EnsureUser(ctx context.Context, email, fullName, avatarURL string) (*models.User, error)
}

// SessionMiddleware verifies the HS256 session token issued by the identity
// provider and attaches the resolved user to the request context. It guards
// the dashboard CRUD surface; the quota-protected endpoints use API keys
// instead and never pass through here.
type SessionMiddleware struct {
	secret []byte
	users  UserResolver
}

func NewSessionMiddleware(secret string, users UserResolver) *SessionMiddleware {
	return &SessionMiddleware{secret: []byte(secret), users: users}
}

func (m *SessionMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractBearerToken(r)
		if tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.secret, nil
		})
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(time.Now()) {
			writeError(w, http.StatusUnauthorized, "token expired")
			return
		}

		if claims.Email == "" {
			writeError(w, http.StatusUnauthorized, "token has no email claim")
			return
		}

		user, err := m.users.EnsureUser(r.Context(), claims.Email, claims.FullName, claims.AvatarURL)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "user not found")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

type ctxKey string

const userKey ctxKey = "user"

func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func UserFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
