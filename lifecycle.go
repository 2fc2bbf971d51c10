package identity

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// MaxLoginAttempts is the maximum number of attempts an account gets
// in a period
var MaxLoginAttempts = 5

// CoolDownPeriod is the period in which we enforce a cool down
var CoolDownPeriod = "24h"

// DefaultPhoneRegion is the region hint used when parsing phone numbers that
// are not already in E.164 form.
var DefaultPhoneRegion = "US"

// RegisterAccountMessage carries everything registration needs.
type RegisterAccountMessage struct {
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone_number"`
	DateOfBirth     *time.Time `json:"date_of_birth"`
	Password        string     `json:"password"`
	ConfirmPassword string     `json:"confirm_password"`
	UseHashid       bool       `json:"-"`
}

func (m RegisterAccountMessage) Type() string { return "account.register" }

// ProfileUpdateRequest is the partial profile merge payload. Blank fields and
// fields equal to their stored value are left untouched.
type ProfileUpdateRequest struct {
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	DateOfBirth *time.Time `json:"date_of_birth"`
}

// AccountManager owns the account-state invariants: creation, activation,
// password changes, and profile merges. All mutations are single-row writes
// delegated to the store's own atomicity guarantees.
type AccountManager struct {
	repo        RepositoryManager
	hasher      PasswordAuthenticator
	defaultRole string
	logger      Logger
}

// NewAccountManager creates an AccountManager backed by the given repositories.
func NewAccountManager(repo RepositoryManager, cfg Config) *AccountManager {
	return &AccountManager{
		repo:        repo,
		hasher:      NewPasswordAuthenticator(),
		defaultRole: cfg.GetDefaultRoleName(),
		logger:      defLogger{},
	}
}

func (m *AccountManager) WithLogger(logger Logger) *AccountManager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// WithPasswordAuthenticator overrides the credential hasher, useful for tests
// that need a cheaper cost factor.
func (m *AccountManager) WithPasswordAuthenticator(hasher PasswordAuthenticator) *AccountManager {
	if hasher != nil {
		m.hasher = hasher
	}
	return m
}

// Register validates uniqueness and password confirmation, hashes the
// credential, attaches the default role, and persists the new account inside
// a single transaction.
func (m *AccountManager) Register(ctx context.Context, msg RegisterAccountMessage) (*Account, error) {
	if err := m.checkEmailAvailable(ctx, msg.Email); err != nil {
		return nil, err
	}

	if err := m.checkPhoneAvailable(ctx, msg.Phone); err != nil {
		return nil, err
	}

	if err := checkPasswordConfirmation(msg.Password, msg.ConfirmPassword); err != nil {
		return nil, err
	}

	account := &Account{}

	err := m.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		role, err := m.repo.Roles().FindByNameTx(ctx, tx, m.defaultRole)
		if err != nil {
			if goerrors.IsNotFound(err) {
				return ErrRoleNotConfigured
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve default role")
		}

		hash, err := m.hasher.HashPassword(msg.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		account.PasswordHash = hash
		account.Email = strings.TrimSpace(msg.Email)
		account.Phone = normalizePhoneNumber(msg.Phone)
		account.FirstName = msg.FirstName
		account.LastName = msg.LastName
		account.DateOfBirth = msg.DateOfBirth
		account.Enabled = true
		account.Locked = false
		account.CredentialsExpired = false
		account.EmailVerified = false
		account.PhoneVerified = false

		if msg.UseHashid {
			if id, err := hashid.NewUUID(account.Email); err == nil {
				account.ID = id
			}
		}

		if account, err = m.repo.Accounts().CreateTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
		}

		join := &AccountRole{AccountID: account.ID, RoleID: role.ID}
		if _, err := tx.NewInsert().Model(join).Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not attach default role")
		}

		account.Roles = append(account.Roles, role)

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "account registration transaction failed")
	}

	return account, nil
}

// FindForAuthentication resolves an account by email, case-insensitively.
// This is the hook used by credential verification and by request identity
// resolution.
func (m *AccountManager) FindForAuthentication(ctx context.Context, email string) (*Account, error) {
	account, err := m.repo.Accounts().FindByEmail(ctx, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account")
	}
	return account, nil
}

// VerifyCredentials resolves the account, enforces the state flags and the
// attempt cooldown, and compares the presented password against the stored
// hash. Failed comparisons increment the attempt counter.
func (m *AccountManager) VerifyCredentials(ctx context.Context, email, password string) (*Account, error) {
	account, err := m.FindForAuthentication(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := ensureAuthenticatable(account); err != nil {
		return nil, err
	}

	if account.LoginAttemptAt != nil {
		expired, err := IsOutsideThresholdPeriod(*account.LoginAttemptAt, CoolDownPeriod)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to calculate login attempt cooldown")
		}

		if expired {
			account.LoginAttempts = 0
		}
	}

	// if we have too many attempts in the given window, cool off!
	if account.LoginAttempts > MaxLoginAttempts {
		return nil, ErrTooManyLoginAttempts
	}

	if !m.hasher.PasswordMatches(password, account.PasswordHash) {
		if err := m.repo.Accounts().TrackAttemptedLogin(ctx, account); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to track login attempt")
		}
		return nil, ErrInvalidCredentials
	}

	if err := m.repo.Accounts().TrackSuccessfulLogin(ctx, account); err != nil {
		m.logger.Error("failed to track successful login", "error", err)
	}

	return account, nil
}

// ChangePassword re-hashes and persists the new credential. Tokens issued
// before the change remain valid until their natural expiry; sessions are
// stateless and there is no revocation store.
func (m *AccountManager) ChangePassword(ctx context.Context, id uuid.UUID, current, newPassword, confirmPassword string) error {
	if err := checkPasswordConfirmation(newPassword, confirmPassword); err != nil {
		return err
	}

	account, err := m.findByID(ctx, id)
	if err != nil {
		return err
	}

	if !m.hasher.PasswordMatches(current, account.PasswordHash) {
		return ErrInvalidCurrentPassword
	}

	hash, err := m.hasher.HashPassword(newPassword)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	if err := m.repo.Accounts().UpdatePassword(ctx, id, hash); err != nil {
		if goerrors.IsNotFound(err) {
			return ErrAccountNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist new password")
	}

	return nil
}

// UpdateProfile merges only the fields that are present, non-blank, and
// different from the stored value. When nothing changes, no write happens.
func (m *AccountManager) UpdateProfile(ctx context.Context, id uuid.UUID, req ProfileUpdateRequest) error {
	account, err := m.findByID(ctx, id)
	if err != nil {
		return err
	}

	changed := mergeProfile(account, req)
	if !changed {
		return nil
	}

	if _, err := m.repo.Accounts().Update(ctx, account, repository.UpdateByID(account.ID.String())); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist profile update")
	}

	return nil
}

// Deactivate disables the account. Disabling an already disabled account is
// rejected so callers can tell a state change from a no-op.
func (m *AccountManager) Deactivate(ctx context.Context, id uuid.UUID) error {
	return m.setEnabled(ctx, id, false)
}

// Reactivate re-enables a disabled account.
func (m *AccountManager) Reactivate(ctx context.Context, id uuid.UUID) error {
	return m.setEnabled(ctx, id, true)
}

// DeleteAccount schedules nothing yet: physical deletion is owned by an
// external asynchronous job, this core only ever flips state flags.
func (m *AccountManager) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (m *AccountManager) setEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	account, err := m.findByID(ctx, id)
	if err != nil {
		return err
	}

	if account.Enabled == enabled {
		return ErrAccountStateUnchanged
	}

	if err := m.repo.Accounts().SetEnabled(ctx, id, enabled); err != nil {
		if goerrors.IsNotFound(err) {
			return ErrAccountNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist enabled flag")
	}

	return nil
}

func (m *AccountManager) findByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	account, err := m.repo.Accounts().FindByID(ctx, id)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account")
	}
	return account, nil
}

func (m *AccountManager) checkEmailAvailable(ctx context.Context, email string) error {
	exists, err := m.repo.Accounts().ExistsByEmail(ctx, email)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
	}
	if exists {
		return ErrEmailTaken
	}
	return nil
}

func (m *AccountManager) checkPhoneAvailable(ctx context.Context, phone string) error {
	exists, err := m.repo.Accounts().ExistsByPhone(ctx, normalizePhoneNumber(phone))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check phone availability")
	}
	if exists {
		return ErrPhoneTaken
	}
	return nil
}

func checkPasswordConfirmation(password, confirm string) error {
	if password == "" || password != confirm {
		return ErrPasswordMismatch
	}
	return nil
}

func ensureAuthenticatable(account *Account) error {
	if account == nil {
		return ErrAccountNotFound
	}

	if !account.Enabled {
		return ErrAccountDisabled
	}

	if account.Locked {
		return ErrAccountLocked
	}

	if account.CredentialsExpired {
		return ErrCredentialsExpired
	}

	return nil
}

// mergeProfile applies req onto account and reports whether anything changed.
func mergeProfile(account *Account, req ProfileUpdateRequest) bool {
	changed := false

	if v := strings.TrimSpace(req.FirstName); v != "" && v != account.FirstName {
		account.FirstName = v
		changed = true
	}

	if v := strings.TrimSpace(req.LastName); v != "" && v != account.LastName {
		account.LastName = v
		changed = true
	}

	if req.DateOfBirth != nil {
		if account.DateOfBirth == nil || !req.DateOfBirth.Equal(*account.DateOfBirth) {
			account.DateOfBirth = req.DateOfBirth
			changed = true
		}
	}

	return changed
}

// normalizePhoneNumber formats parseable numbers as E.164 and leaves anything
// else untouched so storage-level uniqueness still applies to the raw value.
func normalizePhoneNumber(raw string) string {
	phone := strings.TrimSpace(raw)
	if phone == "" {
		return phone
	}

	num, err := phonenumbers.Parse(phone, DefaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return phone
	}

	return phonenumbers.Format(num, phonenumbers.E164)
}
