// Package domain defines the user roles shared by tokens, sessions, and the
// authorization gate.
package domain

// Role is a user's role for role-based access control. Values match the
// vai_tro enum in the database and the vai_tro claim in access tokens.
type Role string

const (
	RoleAdmin           Role = "admin"
	RoleContractCreator Role = "nguoi_lap_hop_dong"
	RoleInsuredPerson   Role = "nguoi_duoc_bao_hiem"
	RoleAccounting      Role = "ke_toan"
	RoleSupervisor      Role = "giam_sat"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleContractCreator, RoleInsuredPerson, RoleAccounting, RoleSupervisor:
		return true
	}
	return false
}

// aliases maps the English role names some procedures report to the
// canonical database values.
var aliases = map[string]Role{
	"contract_creator": RoleContractCreator,
	"insured_person":   RoleInsuredPerson,
	"accounting":       RoleAccounting,
	"supervisor":       RoleSupervisor,
}

// ParseRole resolves s, canonical value or English alias, to a Role.
func ParseRole(s string) (Role, bool) {
	if r := Role(s); r.Valid() {
		return r, true
	}
	if r, ok := aliases[s]; ok {
		return r, true
	}
	return "", false
}
