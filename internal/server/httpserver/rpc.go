package httpserver

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/and161185/phishtrack/internal/errs"
)

// MethodRPC is the HTTP method of operator calls.
const MethodRPC = "RPC"

const userKey = "phishtrack.user"

// rpcAuth admits loopback callers presenting Basic credentials accepted by
// the authenticator or a bearer token issued by /login.
func (s *Server) rpcAuth(c *gin.Context) {
	setKind(c, "rpc")
	if ip := net.ParseIP(c.ClientIP()); ip == nil || !ip.IsLoopback() {
		s.log.Warn("rpc from non-loopback address", zap.String("client_ip", c.ClientIP()))
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	if user, pass, ok := c.Request.BasicAuth(); ok {
		if s.deps.Auth == nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		valid, err := s.deps.Auth.Authenticate(c.Request.Context(), user, pass)
		if err != nil {
			_ = c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		if !valid {
			s.log.Warn("rpc authentication failed", zap.String("user", user))
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set(userKey, user)
		return
	}
	if c.FullPath() == "/login" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	tok, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	user, err := parseToken(s.opts.JWTKey, tok)
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	c.Set(userKey, user)
}

func (s *Server) handleLogin(c *gin.Context) {
	user := c.GetString(userKey)
	tok, exp, err := issueToken(s.opts.JWTKey, user, s.opts.TokenTTL)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tok, "expires_at": exp.UTC().Format(time.RFC3339)})
}

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, true)
}

func (s *Server) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": s.opts.Version})
}

func issueToken(key []byte, user string, ttl time.Duration) (string, time.Time, error) {
	if len(key) == 0 {
		return "", time.Time{}, errors.New("jwt key not configured")
	}
	now := time.Now()
	exp := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   user,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	return signed, exp, err
}

// parseToken verifies an HS256 token and returns its subject.
func parseToken(key []byte, tok string) (string, error) {
	if len(key) == 0 {
		return "", errs.ErrUnauthorized
	}
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return key, nil
	}, jwt.WithLeeway(30*time.Second))
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", errs.ErrUnauthorized
	}
	return claims.Subject, nil
}

func bearerToken(h string) (string, bool) {
	h = strings.TrimSpace(h)
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	t := strings.TrimSpace(h[7:])
	return t, t != ""
}
