package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// TokenSource returns the current bearer token. The second return value is
// false when nobody is signed in.
type TokenSource interface {
	Token() (string, bool)
}

// StaticToken is a TokenSource with a fixed token, e.g., one read from config
type StaticToken struct {
	token string
	now   func() time.Time
}

// NewStaticToken returns a TokenSource for token. An empty token means nobody
// is signed in.
func NewStaticToken(token string) *StaticToken {
	return &StaticToken{
		token: strings.TrimSpace(token),
		now:   time.Now,
	}
}

// Token returns the token unless it is empty or is a JWT whose expiry has
// passed. Tokens that aren't JWTs are passed along as-is.
func (s *StaticToken) Token() (string, bool) {
	if s.token == "" {
		return "", false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.token, claims); err != nil {
		return s.token, true
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return s.token, true
	}
	if !s.now().Before(exp.Time) {
		log.Debug().Time("expiredAt", exp.Time).Msg("ignoring an expired bearer token")
		return "", false
	}
	return s.token, true
}
