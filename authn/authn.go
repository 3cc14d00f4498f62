// Package authn is the auth gate for every /api/* endpoint except
// login: a static API key checked with a constant-time compare, or a JWT
// bearer token that resolves to a live AdminSession. There is exactly one
// admin principal, not a user/role graph.
package authn

import (
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/shortenlabs/shortener/cmn"
	cerrors "github.com/shortenlabs/shortener/cmn/errors"
)

// Config is the single admin principal plus the shared secrets.
type Config struct {
	APIKey           string
	AdminUsername    string
	AdminPasswordHash string // bcrypt hash
	JWTSecret        string
	SessionTTL       time.Duration // default 1h
}

// Gate decides whether a request is authenticated and issues/
// revokes AdminSessions. Sessions live in-process; a restart invalidates
// every outstanding token, which is acceptable for a single-admin service
// with no HA requirement in scope.
type Gate struct {
	cfg Config
	log *zap.SugaredLogger

	mu       sync.RWMutex
	sessions map[string]cmn.AdminSession // token -> session
}

func New(cfg Config, logger *zap.SugaredLogger) *Gate {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	return &Gate{cfg: cfg, log: logger, sessions: make(map[string]cmn.AdminSession)}
}

type claims struct {
	jwt.RegisteredClaims
}

// Login validates username/password with constant-time comparisons and
// issues a new bearer session on success. Failure is a single
// generic Unauthorized — the gate never distinguishes "no such user" from
// "wrong password".
func (g *Gate) Login(username, password string) (cmn.AdminSession, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(g.cfg.AdminUsername)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(g.cfg.AdminPasswordHash), []byte(password)) == nil
	if !userOK || !passOK {
		return cmn.AdminSession{}, cerrors.Unauthorized()
	}

	now := time.Now().UTC()
	expires := now.Add(g.cfg.SessionTTL)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   g.cfg.AdminUsername,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := tok.SignedString([]byte(g.cfg.JWTSecret))
	if err != nil {
		return cmn.AdminSession{}, fmt.Errorf("sign session token: %w", err)
	}

	session := cmn.AdminSession{Token: signed, Subject: g.cfg.AdminUsername, IssuedAt: now, ExpiresAt: expires}
	g.mu.Lock()
	g.sessions[signed] = session
	g.mu.Unlock()
	return session, nil
}

// Logout revokes token. Revoking an unknown or already-revoked token is
// not an error — logout is idempotent.
func (g *Gate) Logout(token string) {
	g.mu.Lock()
	delete(g.sessions, token)
	g.mu.Unlock()
}

// Authenticate reports whether the request is authorized under either
// accepted scheme: a matching X-API-KEY header, or a bearer token
// resolving to a live session.
func (g *Gate) Authenticate(apiKeyHeader, bearerToken string) bool {
	if g.cfg.APIKey != "" && apiKeyHeader != "" &&
		subtle.ConstantTimeCompare([]byte(apiKeyHeader), []byte(g.cfg.APIKey)) == 1 {
		return true
	}
	if bearerToken == "" {
		return false
	}
	return g.validSession(bearerToken)
}

func (g *Gate) validSession(token string) bool {
	g.mu.RLock()
	session, ok := g.sessions[token]
	g.mu.RUnlock()
	if !ok {
		return false
	}
	if session.Expired(time.Now().UTC()) {
		g.mu.Lock()
		delete(g.sessions, token)
		g.mu.Unlock()
		return false
	}

	// Defense in depth: re-verify the JWT signature itself, not just
	// presence in the session map, so a leaked/forged map entry alone
	// can't authenticate.
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(g.cfg.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		if g.log != nil {
			g.log.Warnw("session token failed signature re-verification", "error", err)
		}
		return false
	}
	return true
}

// AuthMethod reports which scheme authenticated the current request,
// echoed by GET /api/users/current: "api_key" or "bearer".
// Called after Authenticate has already confirmed the request is valid.
func (g *Gate) AuthMethod(apiKeyHeader, bearerToken string) string {
	if g.cfg.APIKey != "" && apiKeyHeader != "" &&
		subtle.ConstantTimeCompare([]byte(apiKeyHeader), []byte(g.cfg.APIKey)) == 1 {
		return "api_key"
	}
	return "bearer"
}

// HashPassword is a thin bcrypt wrapper for config validation / the admin
// bootstrap path, kept alongside the gate that consumes its output.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	return string(hash), err
}
