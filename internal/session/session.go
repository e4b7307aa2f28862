package session

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tazhate/studentreminder/internal/domain"
)

// Provider returns the signed-in user's session, if there is a usable one.
type Provider interface {
	Session() (domain.Session, bool)
}

// Expired reports whether token is a JWT whose exp claim is at or before now.
// The signature is not checked; the backend does that. Tokens that are not
// JWTs never expire here.
func Expired(token string, now time.Time) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(token), claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !claims.ExpiresAt.After(now)
}

func usable(s domain.Session, now time.Time) bool {
	return s.Active() && !Expired(s.Token, now)
}

// Static is a session fixed at startup, e.g. from configuration.
type Static struct {
	sess domain.Session
	now  func() time.Time
}

func NewStatic(token, phone string) *Static {
	return &Static{
		sess: domain.Session{Token: strings.TrimSpace(token), Phone: strings.TrimSpace(phone)},
		now:  time.Now,
	}
}

func (s *Static) Session() (domain.Session, bool) {
	if !usable(s.sess, s.now()) {
		return domain.Session{}, false
	}
	return s.sess, true
}
