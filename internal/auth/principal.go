package auth

import "sort"

// Roles a token may carry.
const (
	RoleAdmin     = "admin"
	RoleWorker    = "worker"
	RoleValidator = "validator"
)

// Permissions checked by the API before calling into the service. The
// service still checks identity-level ownership (pool admin, claim worker,
// stake authority).
const (
	PermPoolCreate        = "pool.create"
	PermPoolManage        = "pool.manage"
	PermPremiumDeposit    = "premium.deposit"
	PermClaimSubmit       = "claim.submit"
	PermClaimWithdraw     = "claim.withdraw"
	PermClaimResolve      = "claim.resolve"
	PermClaimVote         = "claim.vote"
	PermValidatorRegister = "validator.register"
	PermAccountFund       = "account.fund"
	PermJournalRead       = "journal.read"
)

var rolePermissions = map[string][]string{
	RoleAdmin: {
		PermPoolCreate, PermPoolManage, PermClaimResolve, PermAccountFund, PermJournalRead,
	},
	RoleWorker: {
		PermPremiumDeposit, PermClaimSubmit, PermClaimWithdraw, PermClaimResolve,
	},
	RoleValidator: {
		PermClaimVote, PermValidatorRegister, PermClaimResolve,
	},
}

// KnownRole reports whether role grants anything.
func KnownRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// Principal is an authenticated caller: its identity and the permissions its
// roles grant.
type Principal struct {
	Subject     string
	Roles       []string
	Permissions map[string]struct{}
}

// NewPrincipal resolves roles into permissions. Unknown roles grant nothing.
func NewPrincipal(subject string, roles []string) Principal {
	roles = dedupeRoles(roles)
	set := make(map[string]struct{})
	for _, role := range roles {
		for _, perm := range rolePermissions[role] {
			set[perm] = struct{}{}
		}
	}
	return Principal{Subject: subject, Roles: roles, Permissions: set}
}

// HasPermission reports whether the principal can execute action identified by key.
func (p Principal) HasPermission(key string) bool {
	_, ok := p.Permissions[key]
	return ok
}

// HasRole reports whether the token carried role.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// PermissionList returns the granted permissions sorted.
func (p Principal) PermissionList() []string {
	out := make([]string, 0, len(p.Permissions))
	for k := range p.Permissions {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Authenticate validates a bearer token and returns its principal.
func Authenticate(token string) (Principal, error) {
	claims, err := ParseAndValidate(token)
	if err != nil {
		return Principal{}, err
	}
	return NewPrincipal(claims.Subject, claims.Roles), nil
}
