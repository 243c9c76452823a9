package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/pashuvlogs/home-app/internal/domain"
)

const (
	actorKey  = "actor"
	userIDKey = "user_id"
)

// Authenticator verifies HS256 bearer tokens and resolves their subject in
// the user directory. The role always comes from the directory, never from
// the token.
type Authenticator struct {
	secret []byte
	issuer string
	users  domain.UserDirectory
	logger *logrus.Logger
	now    func() time.Time
}

// NewAuthenticator creates an authenticator for cfg.
func NewAuthenticator(cfg domain.AuthConfig, users domain.UserDirectory, logger *logrus.Logger) *Authenticator {
	return &Authenticator{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
		users:  users,
		logger: logger,
		now:    time.Now,
	}
}

// IssueToken signs a token for userID valid for ttl.
func (a *Authenticator) IssueToken(userID string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// authenticated actor in the gin context.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			Abort(c, http.StatusUnauthorized, domain.CodeAuthenticate, "Missing bearer token")
			return
		}

		userID, err := a.verify(strings.TrimSpace(raw))
		if err != nil {
			a.logger.WithFields(logrus.Fields{
				"correlation_id": c.GetString(CorrelationIDKey),
				"error":          err,
			}).Warn("Rejected bearer token")
			Abort(c, http.StatusUnauthorized, domain.CodeAuthenticate, "Invalid bearer token")
			return
		}

		user, err := a.users.GetUser(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				Abort(c, http.StatusUnauthorized, domain.CodeAuthenticate, "Unknown user")
				return
			}
			a.logger.WithError(err).Error("Failed to resolve authenticated user")
			Abort(c, http.StatusInternalServerError, domain.CodeInternal, "Internal server error")
			return
		}

		c.Set(actorKey, domain.ActorFromUser(user))
		c.Set(userIDKey, user.ID)
		c.Next()
	}
}

func (a *Authenticator) verify(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// ActorFrom returns the authenticated actor of the request.
func ActorFrom(c *gin.Context) (domain.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return domain.Actor{}, false
	}
	actor, ok := v.(domain.Actor)
	return actor, ok
}
