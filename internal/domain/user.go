package domain

import "time"

// Role is the access level granted to a user. Roles form an ascending
// authority chain: admin > supervisor > operator.
type Role string

const (
	RoleOperator   Role = "operator"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// Atleast reports whether this role carries at least the authority of min.
func (r Role) Atleast(min Role) bool {
	rank := map[Role]int{RoleOperator: 1, RoleSupervisor: 2, RoleAdmin: 3}
	return rank[r] >= rank[min]
}

// User is an operator console account.
type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	Role         Role      `json:"role"`
	Enabled      bool      `json:"enabled"`
	CreatedTS    time.Time `json:"created_ts"`
}
