package identity

import (
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// GetFiberIdentity returns the identity the resolver middleware stored in the
// raw fiber locals. Use it from handlers that work against *fiber.Ctx
// directly instead of the router abstraction.
func GetFiberIdentity(c *fiber.Ctx, key string) (Identity, error) {
	v := c.Locals(key)
	if v == nil {
		return nil, ErrUnableToFindIdentity
	}

	id, ok := v.(Identity)
	if !ok || id == nil {
		return nil, ErrUnableToDecodeIdentity
	}

	return id, nil
}

// GetFiberSessionClaims recovers session claims from a *jwt.Token stored in
// locals by generic JWT middleware that does not resolve accounts.
func GetFiberSessionClaims(c *fiber.Ctx, key string) (*SessionClaims, error) {
	v := c.Locals(key)
	if v == nil {
		return nil, ErrUnableToFindIdentity
	}

	token, ok := v.(*jwt.Token)
	if token == nil || !ok {
		return nil, ErrUnableToDecodeIdentity
	}

	if claims, ok := token.Claims.(*SessionClaims); ok {
		return claims, nil
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if mapClaims == nil || !ok {
		return nil, ErrUnableToDecodeIdentity
	}

	return sessionClaimsFromMap(mapClaims)
}

func sessionClaimsFromMap(mc jwt.MapClaims) (*SessionClaims, error) {
	claims := &SessionClaims{}

	if sub, err := mc.GetSubject(); err == nil {
		claims.RegisteredClaims.Subject = sub
	}

	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.RegisteredClaims.ExpiresAt = exp
	}

	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		claims.RegisteredClaims.IssuedAt = iat
	}

	if use, ok := mc["use"].(string); ok {
		claims.TokenUse = TokenUse(use)
	}

	if raw, ok := mc["roles"].([]any); ok {
		for _, r := range raw {
			if s, ok := r.(string); ok {
				claims.Roles = append(claims.Roles, s)
			}
		}
	}

	return claims, nil
}
