// Package identityware resolves a bearer token into an authenticated identity
// attached to the request context. The resolver runs once per request and
// soft-fails: missing, malformed, expired, or unresolvable tokens degrade the
// request to anonymous instead of terminating the chain, so the final 401 is
// produced by downstream authorization, not here.
package identityware

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-router"

	identity "github.com/goliatone/go-identity"
)

var (
	defaultTokenLookup = "header:" + router.HeaderAuthorization

	// ErrTokenMissingOrMalformed is returned by extractors when no usable
	// bearer credential is present.
	ErrTokenMissingOrMalformed = errors.New("missing or malformed bearer token")
)

// TokenValidator validates a raw token and returns its session claims.
// identity.TokenService satisfies it.
type TokenValidator interface {
	Validate(raw string) (*identity.SessionClaims, error)
}

// AccountResolver resolves a verified subject to a live account.
type AccountResolver = identity.AccountResolver

// SigningKey holds a key plus its expected algorithm for externally issued
// tokens validated without a TokenValidator.
type SigningKey struct {
	JWTAlg string
	Key    any
}

type Config struct {
	// Filter skips the resolver entirely when it returns true. Use it for
	// unauthenticated routes not covered by SkipPaths.
	Filter func(router.Context) bool

	// SkipPaths lists path prefixes that never carry an identity, the
	// authentication endpoints themselves (login/register/refresh).
	SkipPaths []string

	// SuccessHandler runs after an identity was attached. Defaults to Next.
	SuccessHandler router.HandlerFunc

	// TokenValidator is the service-issued token path. Required unless a
	// KeyFunc, SigningKeys, or JWKSetURLs are configured.
	TokenValidator TokenValidator

	// Accounts resolves token subjects to accounts. Required.
	Accounts AccountResolver

	ContextKey  string
	TokenLookup string
	AuthScheme  string

	// External validation options for tokens issued elsewhere (JWKS or
	// out-of-band shared keys). Used only when TokenValidator is nil.
	KeyFunc     jwt.Keyfunc
	SigningKeys map[string]SigningKey
	JWKSetURLs  []string

	Logger identity.Logger
}

// New builds the per-request identity resolver middleware.
func New(config ...Config) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		cfg := GetDefaultConfig(config...)
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return next(ctx)
			}

			if cfg.skipPath(ctx.Path()) {
				return next(ctx)
			}

			// at most one resolution per request
			if ctx.Locals(cfg.ContextKey) != nil {
				return next(ctx)
			}

			raw, err := ExtractRawTokenFromContext(ctx, cfg.getExtractors())
			if err != nil || raw == "" {
				return next(ctx)
			}

			claims, err := cfg.validate(raw)
			if err != nil {
				cfg.Logger.Debug("identity resolution soft-failed: %v", err)
				return next(ctx)
			}

			if claims.Use() != identity.TokenUseAccess {
				cfg.Logger.Debug("identity resolution rejected token use %q", claims.Use())
				return next(ctx)
			}

			account, err := cfg.Accounts.FindForAuthentication(ctx.Context(), claims.Subject())
			if err != nil {
				cfg.Logger.Debug("identity resolution could not resolve subject: %v", err)
				return next(ctx)
			}

			// token subject must match the stored username
			if !strings.EqualFold(account.Username(), claims.Subject()) {
				cfg.Logger.Debug("identity resolution rejected subject mismatch for %q", claims.Subject())
				return next(ctx)
			}

			id := identity.NewIdentityFromAccount(account)
			ctx.Locals(cfg.ContextKey, id)
			ctx.SetContext(identity.WithIdentityContext(ctx.Context(), id))

			if cfg.SuccessHandler != nil {
				return cfg.SuccessHandler(ctx)
			}

			return next(ctx)
		}
	}
}

// GetDefaultConfig normalizes the config and panics on unusable wiring, which
// is a programmer error, not a runtime condition.
func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Accounts == nil {
		panic("IDENTITY: resolver configuration: Accounts is required.")
	}

	if cfg.TokenValidator == nil && cfg.KeyFunc == nil && len(cfg.SigningKeys) == 0 && len(cfg.JWKSetURLs) == 0 {
		panic("IDENTITY: resolver configuration: one of TokenValidator, KeyFunc, SigningKeys, or JWKSetURLs is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "identity"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}

	if cfg.TokenValidator == nil && cfg.KeyFunc == nil {
		var givenKeys map[string]keyfunc.GivenKey
		if cfg.SigningKeys != nil {
			givenKeys = make(map[string]keyfunc.GivenKey, len(cfg.SigningKeys))
			for kid, key := range cfg.SigningKeys {
				givenKeys[kid] = keyfunc.NewGivenCustom(key.Key, keyfunc.GivenKeyOptions{
					Algorithm: key.JWTAlg,
				})
			}
		}
		if len(cfg.JWKSetURLs) > 0 {
			var err error
			cfg.KeyFunc, err = multiKeyfunc(givenKeys, cfg.JWKSetURLs)
			if err != nil {
				panic("Failed to create keyfunc from JWK Set URL: " + err.Error())
			}
		} else {
			cfg.KeyFunc = keyfunc.NewGiven(givenKeys).Keyfunc
		}
	}

	return cfg
}

func (cfg *Config) validate(raw string) (*identity.SessionClaims, error) {
	if cfg.TokenValidator != nil {
		return cfg.TokenValidator.Validate(raw)
	}

	token, err := jwt.ParseWithClaims(raw, &identity.SessionClaims{}, cfg.KeyFunc)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*identity.SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenMissingOrMalformed
	}

	return claims, nil
}

func (cfg *Config) skipPath(path string) bool {
	for _, prefix := range cfg.SkipPaths {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func multiKeyfunc(givenKeys map[string]keyfunc.GivenKey, jwkSetURLs []string) (jwt.Keyfunc, error) {
	opts := keyfuncOptions(givenKeys)
	m := make(map[string]keyfunc.Options, len(jwkSetURLs))
	for _, url := range jwkSetURLs {
		m[url] = opts
	}
	mopts := keyfunc.MultipleOptions{
		KeySelector: keyfunc.KeySelectorFirst,
	}
	multi, err := keyfunc.GetMultiple(m, mopts)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWT URLs: %w", err)
	}
	return multi.Keyfunc, nil
}

func keyfuncOptions(givenKeys map[string]keyfunc.GivenKey) keyfunc.Options {
	return keyfunc.Options{
		GivenKeys: givenKeys,
		RefreshErrorHandler: func(err error) {
			log.Printf("failed to do a background refresh of JWT set: %s", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	}
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
