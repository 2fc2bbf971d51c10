package identity

// AccountIdentity adapts an Account into the Identity interface consumed by
// downstream authorization checks. It is a request-scoped snapshot: mutating
// the account later does not change identities already attached to requests.
type AccountIdentity struct {
	account *Account
}

// NewIdentityFromAccount returns an Identity adapter for the provided account.
func NewIdentityFromAccount(account *Account) Identity {
	if account == nil {
		return nil
	}
	return AccountIdentity{account: account}
}

// ID returns the account's ID as a string.
func (a AccountIdentity) ID() string {
	if a.account == nil {
		return ""
	}
	return a.account.ID.String()
}

// Username returns the account's stable login identifier.
func (a AccountIdentity) Username() string {
	if a.account == nil {
		return ""
	}
	return a.account.Username()
}

// Email returns the account's email address.
func (a AccountIdentity) Email() string {
	if a.account == nil {
		return ""
	}
	return a.account.Email
}

// Roles returns the account's granted role names.
func (a AccountIdentity) Roles() []string {
	if a.account == nil {
		return nil
	}
	return a.account.RoleNames()
}

var _ Identity = AccountIdentity{}
