package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultRoleName is the role attached to every account at registration.
const DefaultRoleName = "user"

// Account is the registered principal model
type Account struct {
	bun.BaseModel      `bun:"table:accounts,alias:acc"`
	ID                 uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	FirstName          string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName           string     `bun:"last_name,notnull" json:"last_name,omitempty"`
	Email              string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone              string     `bun:"phone_number,unique" json:"phone_number,omitempty"`
	DateOfBirth        *time.Time `bun:"date_of_birth,nullzero" json:"date_of_birth,omitempty"`
	PasswordHash       string     `bun:"password_hash,notnull" json:"-"`
	Enabled            bool       `bun:"enabled,notnull,default:true" json:"enabled"`
	Locked             bool       `bun:"locked,notnull,default:false" json:"locked"`
	CredentialsExpired bool       `bun:"credentials_expired,notnull,default:false" json:"credentials_expired"`
	EmailVerified      bool       `bun:"is_email_verified,notnull,default:false" json:"is_email_verified"`
	PhoneVerified      bool       `bun:"is_phone_verified,notnull,default:false" json:"is_phone_verified"`
	Roles              []*Role    `bun:"m2m:account_roles,join:Account=Role" json:"roles,omitempty"`
	LoginAttempts      int        `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt     *time.Time `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt         *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	CreatedAt          *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt          *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt          *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Username is the account's stable login identifier. Tokens are keyed by it.
func (a *Account) Username() string {
	return a.Email
}

// RoleNames flattens the attached roles into their names.
func (a *Account) RoleNames() []string {
	if len(a.Roles) == 0 {
		return nil
	}
	names := make([]string, 0, len(a.Roles))
	for _, r := range a.Roles {
		if r != nil {
			names = append(names, r.Name)
		}
	}
	return names
}

// HasRole reports whether the account carries the named role.
func (a *Account) HasRole(name string) bool {
	for _, r := range a.Roles {
		if r != nil && r.Name == name {
			return true
		}
	}
	return false
}

// Role is a named permission group shared across accounts. Roles are
// provisioned out of band; this package only reads them.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// AccountRole is the accounts<->roles join row.
type AccountRole struct {
	bun.BaseModel `bun:"table:account_roles,alias:acr"`
	AccountID     uuid.UUID `bun:"account_id,pk,type:uuid" json:"account_id,omitempty"`
	Account       *Account  `bun:"rel:belongs-to,join:account_id=id" json:"account,omitempty"`
	RoleID        uuid.UUID `bun:"role_id,pk,type:uuid" json:"role_id,omitempty"`
	Role          *Role     `bun:"rel:belongs-to,join:role_id=id" json:"role,omitempty"`
}

// RegisterModels wires the m2m join table into a bun.DB. Call it before any
// query that loads account roles.
func RegisterModels(db *bun.DB) {
	db.RegisterModel((*AccountRole)(nil))
}
