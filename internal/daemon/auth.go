package daemon

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"

	"vidpipe/internal/config"
)

const tokenIssuer = "vidpipe"

var errUnauthorized = errors.New("unauthorized")

type authenticator struct {
	token  string
	secret []byte
}

func newAuthenticator(cfg *config.Config) *authenticator {
	return &authenticator{
		token:  strings.TrimSpace(cfg.API.Token),
		secret: []byte(strings.TrimSpace(cfg.API.JWTSecret)),
	}
}

func (a *authenticator) enabled() bool {
	return a.token != "" || len(a.secret) > 0
}

// verify accepts either the static token or an HS256 JWT signed with the
// configured secret.
func (a *authenticator) verify(credential string) error {
	if credential == "" {
		return errUnauthorized
	}
	if a.token != "" && subtle.ConstantTimeCompare([]byte(credential), []byte(a.token)) == 1 {
		return nil
	}
	if len(a.secret) == 0 {
		return errUnauthorized
	}
	_, err := jwt.ParseWithClaims(credential, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", errUnauthorized, err)
	}
	return nil
}

// middleware requires "Authorization: Bearer <credential>" when a token or
// JWT secret is configured. Otherwise all requests pass through.
func (a *authenticator) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.enabled() {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		credential, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			abortWithError(c, http.StatusUnauthorized, errUnauthorized)
			return
		}
		if err := a.verify(strings.TrimSpace(credential)); err != nil {
			abortWithError(c, http.StatusUnauthorized, errUnauthorized)
			return
		}
		c.Next()
	}
}

// IssueToken mints an HS256 bearer token accepted by the API for ttl.
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(strings.TrimSpace(secret)))
}
