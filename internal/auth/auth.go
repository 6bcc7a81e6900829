// Package auth validates bearer tokens presented on the websocket
// upgrade and resolves them to principals. It never rejects a
// connection itself; that decision belongs to the gateway.
package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/nclime/roomcast/internal/core"
	"github.com/nclime/roomcast/internal/domain"
)

type tokenClaims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"user_id"`
}

// Service verifies HS256 access tokens and fetches the subject's user
// record through the directory.
type Service struct {
	secret []byte
	issuer string
	users  core.UserDirectory
}

func New(secret, issuer string, users core.UserDirectory) *Service {
	return &Service{secret: []byte(secret), issuer: issuer, users: users}
}

// Authenticate resolves a credential to a Principal. Every failure mode
// (absent token, bad signature, expiry, unknown subject) is reported as
// core.ErrAuthentication; the caller maps that to an anonymous
// principal.
func (s *Service) Authenticate(ctx context.Context, credential string) (domain.Principal, error) {
	if credential == "" {
		return domain.Anonymous(), fmt.Errorf("%w: no credential", core.ErrAuthentication)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var claims tokenClaims
	if _, err := jwt.ParseWithClaims(credential, &claims, s.keyFunc, opts...); err != nil {
		return domain.Anonymous(), fmt.Errorf("%w: %v", core.ErrAuthentication, err)
	}
	if claims.UserID == 0 {
		return domain.Anonymous(), fmt.Errorf("%w: token carries no user_id", core.ErrAuthentication)
	}

	user, err := s.users.User(ctx, domain.UserID(claims.UserID))
	if err != nil {
		return domain.Anonymous(), fmt.Errorf("%w: resolve user %d: %v", core.ErrAuthentication, claims.UserID, err)
	}

	log.Debug().Str("module", "auth").Int64("user_id", int64(user.ID)).Msg("token validated")
	return domain.Principal{
		ID:            user.ID,
		Email:         user.Email,
		Name:          user.Name,
		Authenticated: true,
	}, nil
}

func (s *Service) keyFunc(*jwt.Token) (any, error) {
	return s.secret, nil
}
