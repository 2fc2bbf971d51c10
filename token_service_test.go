package identity_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identity "github.com/goliatone/go-identity"
)

func testTokenConfig() identity.SimpleConfig {
	return identity.SimpleConfig{
		SigningKey:      "test-signing-key",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		Issuer:          "test-issuer",
		Audience:        []string{"test-audience"},
	}
}

func TestNewTokenService(t *testing.T) {
	t.Run("creates token service with logger", func(t *testing.T) {
		service := identity.NewTokenService(testTokenConfig(), testLogger{t})
		assert.NotNil(t, service)
	})

	t.Run("creates token service with nil logger", func(t *testing.T) {
		service := identity.NewTokenService(testTokenConfig(), nil)
		assert.NotNil(t, service)
	})
}

func TestTokenService_IssueAccessToken(t *testing.T) {
	cfg := testTokenConfig()
	service := identity.NewTokenService(cfg, nil)

	t.Run("issues a valid access token", func(t *testing.T) {
		tokenString, err := service.IssueAccessToken("user@example.com")

		require.NoError(t, err)
		assert.NotEmpty(t, tokenString)

		claims, err := service.Validate(tokenString)
		require.NoError(t, err)

		assert.Equal(t, "user@example.com", claims.Subject())
		assert.Equal(t, identity.TokenUseAccess, claims.Use())
		assert.Equal(t, cfg.Issuer, claims.RegisteredClaims.Issuer)
		assert.Equal(t, jwt.ClaimStrings{"test-audience"}, claims.RegisteredClaims.Audience)
		assert.NotEmpty(t, claims.RegisteredClaims.ID)
	})

	t.Run("sets the access validity window", func(t *testing.T) {
		before := time.Now()
		tokenString, err := service.IssueAccessToken("user@example.com")
		after := time.Now()

		require.NoError(t, err)

		claims, err := service.Validate(tokenString)
		require.NoError(t, err)

		expiry := claims.Expires()
		assert.True(t, expiry.After(before.Add(cfg.AccessTokenTTL-time.Second)))
		assert.True(t, expiry.Before(after.Add(cfg.AccessTokenTTL+time.Second)))
	})

	t.Run("rejects an empty subject", func(t *testing.T) {
		_, err := service.IssueAccessToken("")
		assert.Error(t, err)
	})
}

func TestTokenService_IssueRefreshToken(t *testing.T) {
	cfg := testTokenConfig()
	service := identity.NewTokenService(cfg, nil)

	tokenString, err := service.IssueRefreshToken("user@example.com")
	require.NoError(t, err)

	claims, err := service.Validate(tokenString)
	require.NoError(t, err)

	assert.Equal(t, identity.TokenUseRefresh, claims.Use())
	assert.Equal(t, "user@example.com", claims.Subject())

	expiry := claims.Expires()
	assert.True(t, expiry.After(time.Now().Add(cfg.RefreshTokenTTL-time.Minute)))
}

func TestTokenService_Validate(t *testing.T) {
	cfg := testTokenConfig()

	t.Run("rejects a token signed with a different key", func(t *testing.T) {
		otherCfg := cfg
		otherCfg.SigningKey = "some-other-key"

		otherService := identity.NewTokenService(otherCfg, nil)
		tokenString, err := otherService.IssueAccessToken("user@example.com")
		require.NoError(t, err)

		service := identity.NewTokenService(cfg, nil)
		_, err = service.Validate(tokenString)
		assert.Error(t, err)
		assert.Equal(t, identity.TextCodeTokenInvalid, textCodeOf(t, err))
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		service := identity.NewTokenService(cfg, nil).(*identity.TokenServiceImpl)

		tokenString, err := service.IssueAccessToken("user@example.com")
		require.NoError(t, err)

		service.WithClock(func() time.Time {
			return time.Now().Add(cfg.AccessTokenTTL + time.Minute)
		})

		_, err = service.Validate(tokenString)
		require.Error(t, err)
		assert.True(t, identity.IsTokenExpiredError(err))
	})

	t.Run("rejects garbage", func(t *testing.T) {
		service := identity.NewTokenService(cfg, nil)
		_, err := service.Validate("not.a.token")
		assert.Error(t, err)
	})

	t.Run("rejects an issuer mismatch", func(t *testing.T) {
		otherCfg := cfg
		otherCfg.Issuer = "another-issuer"

		otherService := identity.NewTokenService(otherCfg, nil)
		tokenString, err := otherService.IssueAccessToken("user@example.com")
		require.NoError(t, err)

		service := identity.NewTokenService(cfg, nil)
		_, err = service.Validate(tokenString)
		assert.Error(t, err)
	})
}

func TestTokenService_VerifyAndExtractSubject(t *testing.T) {
	service := identity.NewTokenService(testTokenConfig(), nil)

	tokenString, err := service.IssueAccessToken("user@example.com")
	require.NoError(t, err)

	subject, err := service.VerifyAndExtractSubject(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", subject)

	_, err = service.VerifyAndExtractSubject("broken")
	assert.Error(t, err)
}

func TestTokenService_RefreshAccessToken(t *testing.T) {
	cfg := testTokenConfig()
	service := identity.NewTokenService(cfg, nil)

	t.Run("mints a new access token from a refresh token", func(t *testing.T) {
		refresh, err := service.IssueRefreshToken("user@example.com")
		require.NoError(t, err)

		access, err := service.RefreshAccessToken(refresh)
		require.NoError(t, err)

		claims, err := service.Validate(access)
		require.NoError(t, err)
		assert.Equal(t, identity.TokenUseAccess, claims.Use())
		assert.Equal(t, "user@example.com", claims.Subject())
	})

	t.Run("rejects an access token presented as refresh", func(t *testing.T) {
		access, err := service.IssueAccessToken("user@example.com")
		require.NoError(t, err)

		_, err = service.RefreshAccessToken(access)
		require.Error(t, err)
		assert.Equal(t, identity.TextCodeTokenInvalid, textCodeOf(t, err))
	})

	t.Run("rejects an expired refresh token", func(t *testing.T) {
		impl := identity.NewTokenService(cfg, nil).(*identity.TokenServiceImpl)

		refresh, err := impl.IssueRefreshToken("user@example.com")
		require.NoError(t, err)

		impl.WithClock(func() time.Time {
			return time.Now().Add(cfg.RefreshTokenTTL + time.Hour)
		})

		_, err = impl.RefreshAccessToken(refresh)
		require.Error(t, err)
		assert.True(t, identity.IsTokenExpiredError(err))
	})
}
