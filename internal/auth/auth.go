// Package auth resolves bearer tokens into users.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/victornm/orgquiz/internal/domain"
	"github.com/victornm/orgquiz/internal/errors"
	"github.com/victornm/orgquiz/internal/store"
)

const defaultTTL = time.Hour

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Config struct {
	Users  store.Users
	Secret string
	Issuer string
	// TTL of issued tokens, one hour by default.
	TTL time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

type Authenticator struct {
	users  store.Users
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthenticator(c Config) *Authenticator {
	a := &Authenticator{
		users:  c.Users,
		secret: []byte(c.Secret),
		issuer: c.Issuer,
		ttl:    c.TTL,
		now:    c.Now,
	}
	if a.ttl <= 0 {
		a.ttl = defaultTTL
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Issue signs an access token for u.
func (a *Authenticator) Issue(u *domain.User) (string, error) {
	now := a.now().UTC()
	claims := Claims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Authenticate resolves an Authorization header value, with or without the
// Bearer scheme, into the user it was issued for. Any failure is reported as
// InvalidCredentials.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (*domain.User, error) {
	raw := strings.TrimSpace(header)
	if scheme, rest, ok := strings.Cut(raw, " "); ok && strings.EqualFold(scheme, "bearer") {
		raw = strings.TrimSpace(rest)
	}
	if raw == "" {
		return nil, errors.InvalidCredentials("Missing access token.")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("Could not validate credentials."),
			errors.WithCause(err),
		)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, errors.InvalidCredentials("Could not validate credentials.")
	}

	u, err := a.users.GetUserByID(ctx, id)
	if errors.Is(err, errors.CodeNotFound) {
		return nil, errors.InvalidCredentials("Could not validate credentials.")
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}
