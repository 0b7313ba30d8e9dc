package backend

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

type authCtxKey string

const subjectKey authCtxKey = "subject"

// Auth guards the admin API with HS256 tokens. An empty Secret disables it.
type Auth struct {
	Secret string
}

// GenerateJWT issues a token for subject valid for ttl.
func (a Auth) GenerateJWT(subject string, ttl time.Duration) (string, error) {
	if a.Secret == "" {
		return "", errors.New("ADMIN_JWT_SECRET not configured")
	}
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(a.Secret))
}

// parseToken validates and returns the subject.
func (a Auth) parseToken(tokenStr string) (string, error) {
	t, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(a.Secret), nil
	})
	if err != nil {
		return "", err
	}
	if !t.Valid {
		return "", errors.New("invalid token")
	}
	sub, err := t.Claims.GetSubject()
	if err != nil {
		return "", errors.Wrap(err, "invalid claims")
	}
	return sub, nil
}

// SubjectFromRequest reads a token from the Authorization header, the
// access_token cookie, or ?token=, in that order.
func (a Auth) SubjectFromRequest(r *http.Request) (string, error) {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return a.parseToken(strings.TrimPrefix(auth, "Bearer "))
	}
	if c, err := r.Cookie("access_token"); err == nil && c.Value != "" {
		return a.parseToken(c.Value)
	}
	// browsers cannot set headers on websocket upgrades
	if q := r.URL.Query().Get("token"); q != "" {
		return a.parseToken(q)
	}
	return "", errors.New("missing or invalid token")
}

// RequireAuth wraps a handler and enforces a valid token; it injects the
// token subject into the request context.
func (a Auth) RequireAuth(next http.Handler) http.Handler {
	if a.Secret == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, err := a.SubjectFromRequest(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), subjectKey, sub)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SubjectFromCtx returns the authenticated subject (or empty string).
func SubjectFromCtx(ctx context.Context) string {
	if s, ok := ctx.Value(subjectKey).(string); ok {
		return s
	}
	return ""
}
