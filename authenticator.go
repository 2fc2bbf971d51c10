package identity

import (
	"context"
)

// TokenTypeBearer is the token transmission scheme returned with every pair.
const TokenTypeBearer = "Bearer"

// Auther orchestrates login, registration, and refresh over the lifecycle
// manager and the token service. Every call is an independent, stateless
// transaction.
type Auther struct {
	provider AccountProvider
	tokens   TokenService
	logger   Logger
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider AccountProvider, cfg Config) *Auther {
	return &Auther{
		provider: provider,
		tokens:   NewTokenService(cfg, defLogger{}),
		logger:   defLogger{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithTokenService overrides the token service, useful for custom clocks.
func (s *Auther) WithTokenService(tokens TokenService) *Auther {
	if tokens != nil {
		s.tokens = tokens
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokens
}

// Login verifies the credential and issues an access/refresh token pair keyed
// by the account's stable username (email).
func (s *Auther) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	account, err := s.provider.VerifyCredentials(ctx, email, password)
	if err != nil {
		s.logger.Debug("Login verification failed", "email", email, "error", err)
		return nil, err
	}

	accessToken, err := s.tokens.IssueAccessToken(account.Username())
	if err != nil {
		s.logger.Error("Login failed to issue access token", "error", err)
		return nil, err
	}

	refreshToken, err := s.tokens.IssueRefreshToken(account.Username())
	if err != nil {
		s.logger.Error("Login failed to issue refresh token", "error", err)
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    TokenTypeBearer,
	}, nil
}

// Register delegates to the lifecycle manager and surfaces its error taxonomy
// unchanged.
func (s *Auther) Register(ctx context.Context, msg RegisterAccountMessage) error {
	if _, err := s.provider.Register(ctx, msg); err != nil {
		return err
	}
	return nil
}

// Refresh validates the refresh token and mints a new access token. The same
// refresh token is echoed back; there is no rotation, callers may reuse it
// until its own expiry.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	accessToken, err := s.tokens.RefreshAccessToken(refreshToken)
	if err != nil {
		s.logger.Debug("Refresh failed", "error", err)
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    TokenTypeBearer,
	}, nil
}

var _ Authenticator = (*Auther)(nil)
