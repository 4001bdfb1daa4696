// Package auth verifies bearer tokens and resolves the acting user for HTTP handlers.
package auth

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/config"
	"github.com/Additional-Code/procura/internal/entity"
	userrepo "github.com/Additional-Code/procura/internal/repository/user"
	"github.com/Additional-Code/procura/pkg/errorbank"
)

// Module provides the Authenticator to Fx.
var Module = fx.Provide(NewAuthenticator)

const actorKey = "procura.actor"

// Directory resolves users by id.
type Directory interface {
	GetByID(ctx context.Context, id int64) (*entity.User, error)
}

// Authenticator checks HS256 tokens whose subject is a user id.
type Authenticator struct {
	secret []byte
	cfg    config.Auth
	users  Directory
	logger *zap.Logger
}

// NewAuthenticator builds an Authenticator from the auth settings.
func NewAuthenticator(cfg config.Config, users *userrepo.Repository, logger *zap.Logger) *Authenticator {
	return newAuthenticator(cfg.Auth, users, logger)
}

func newAuthenticator(cfg config.Auth, users Directory, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.JWTSecret) == 0 {
		logger.Warn("AUTH_JWT_SECRET is empty; every authenticated request will be rejected")
	}
	return &Authenticator{secret: []byte(cfg.JWTSecret), cfg: cfg, users: users, logger: logger}
}

// Sign issues a token for userID. It exists for the CLI and tests; production tokens come
// from the identity provider sharing the secret.
func (a *Authenticator) Sign(userID int64, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = strconv.FormatInt(userID, 10)
	if claims.Issuer == "" {
		claims.Issuer = a.cfg.Issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Middleware rejects requests without a valid token for an existing active user.
func (a *Authenticator) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := a.authenticate(c.Request().Context(), c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return err
			}
			c.Set(actorKey, user)
			return next(c)
		}
	}
}

func (a *Authenticator) authenticate(ctx context.Context, header string) (*entity.User, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" || len(a.secret) == 0 {
		return nil, errorbank.Unauthorized("missing bearer token")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.cfg.Leeway),
		jwt.WithExpirationRequired(),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	var claims jwt.RegisteredClaims
	if _, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...); err != nil {
		return nil, errorbank.Unauthorized("invalid token", errorbank.WithCause(err))
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, errorbank.Unauthorized("invalid token subject")
	}
	user, err := a.users.GetByID(ctx, id)
	if errors.Is(err, userrepo.ErrNotFound) {
		return nil, errorbank.Unauthorized("unknown user")
	}
	if err != nil {
		return nil, errorbank.StorageUnavailable("failed to resolve user", errorbank.WithCause(err))
	}
	if !user.Active {
		return nil, errorbank.Forbidden("user is inactive")
	}
	return user, nil
}

// Actor returns the user stored by Middleware, or nil outside authenticated routes.
func Actor(c echo.Context) *entity.User {
	user, _ := c.Get(actorKey).(*entity.User)
	return user
}
