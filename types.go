package identity

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// TokenPair is the credential set returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Identity holds the attributes of an authenticated principal
type Identity interface {
	ID() string
	Username() string
	Email() string
	Roles() []string
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*TokenPair, error)
	Register(ctx context.Context, msg RegisterAccountMessage) error
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
}

// TokenService issues and validates the session tokens used by Authenticator
// and the request middleware.
type TokenService interface {
	IssueAccessToken(subject string) (string, error)
	IssueRefreshToken(subject string) (string, error)
	Validate(raw string) (*SessionClaims, error)
	VerifyAndExtractSubject(raw string) (string, error)
	RefreshAccessToken(refreshRaw string) (string, error)
}

// AccountResolver turns a verified token subject into an identity. It is the
// hook the request middleware uses to re-check tokens against live accounts.
type AccountResolver interface {
	FindForAuthentication(ctx context.Context, email string) (*Account, error)
}

// AccountProvider is the lifecycle surface the Authenticator orchestrates.
type AccountProvider interface {
	AccountResolver
	VerifyCredentials(ctx context.Context, email, password string) (*Account, error)
	Register(ctx context.Context, msg RegisterAccountMessage) (*Account, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	PasswordMatches(password, hash string) bool
}

// Config holds process wide auth options, read once at startup
type Config interface {
	GetSigningKey() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetIssuer() string
	GetAudience() []string
	GetContextKey() string
	GetTokenLookup() string
	GetAuthScheme() string
	GetDefaultRoleName() string
}

// SimpleConfig is a plain struct Config implementation for wiring and tests.
type SimpleConfig struct {
	SigningKey      string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Issuer          string
	Audience        []string
	ContextKey      string
	TokenLookup     string
	AuthScheme      string
	DefaultRoleName string
}

func (c SimpleConfig) GetSigningKey() string { return c.SigningKey }

func (c SimpleConfig) GetAccessTokenTTL() time.Duration {
	if c.AccessTokenTTL == 0 {
		return 15 * time.Minute
	}
	return c.AccessTokenTTL
}

func (c SimpleConfig) GetRefreshTokenTTL() time.Duration {
	if c.RefreshTokenTTL == 0 {
		return 7 * 24 * time.Hour
	}
	return c.RefreshTokenTTL
}

func (c SimpleConfig) GetIssuer() string     { return c.Issuer }
func (c SimpleConfig) GetAudience() []string { return c.Audience }

func (c SimpleConfig) GetContextKey() string {
	if c.ContextKey == "" {
		return "identity"
	}
	return c.ContextKey
}

func (c SimpleConfig) GetTokenLookup() string {
	if c.TokenLookup == "" {
		return "header:Authorization"
	}
	return c.TokenLookup
}

func (c SimpleConfig) GetAuthScheme() string {
	if c.AuthScheme == "" {
		return "Bearer"
	}
	return c.AuthScheme
}

func (c SimpleConfig) GetDefaultRoleName() string {
	if c.DefaultRoleName == "" {
		return DefaultRoleName
	}
	return c.DefaultRoleName
}

var _ Config = SimpleConfig{}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] IDENTITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] IDENTITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] IDENTITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
