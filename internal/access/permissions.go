package access

import "pesantren/internal/core"

// Module names a screen or API area guarded by the permission table.
type Module string

const (
	ModuleDashboard     Module = "dashboard"
	ModuleStudents      Module = "students"
	ModuleTeachers      Module = "teachers"
	ModuleSPP           Module = "spp"
	ModuleSavings       Module = "savings"
	ModuleCash          Module = "cash"
	ModuleExpenses      Module = "expenses"
	ModuleDonations     Module = "donations"
	ModuleReports       Module = "reports"
	ModuleRoles         Module = "roles"
	ModuleMonitoring    Module = "monitoring"
	ModuleSalaries      Module = "salaries"
	ModuleMyProfile     Module = "my-profile"
	ModuleMySavings     Module = "my-savings"
	ModuleMyPayments    Module = "my-payments"
	ModuleMySalary      Module = "my-salary"
	ModuleMyAssignments Module = "my-assignments"
)

var (
	everyone  = []core.Role{core.RoleAdmin, core.RoleStudent, core.RoleTeacher, core.RoleCommittee}
	adminOnly = []core.Role{core.RoleAdmin}
)

var permissions = map[Module][]core.Role{
	ModuleDashboard:     everyone,
	ModuleStudents:      adminOnly,
	ModuleTeachers:      adminOnly,
	ModuleSPP:           adminOnly,
	ModuleExpenses:      adminOnly,
	ModuleDonations:     adminOnly,
	ModuleReports:       adminOnly,
	ModuleRoles:         adminOnly,
	ModuleMonitoring:    adminOnly,
	ModuleSalaries:      adminOnly,
	ModuleSavings:       {core.RoleAdmin, core.RoleCommittee},
	ModuleCash:          {core.RoleAdmin, core.RoleCommittee},
	ModuleMyProfile:     everyone,
	ModuleMySavings:     {core.RoleStudent},
	ModuleMyPayments:    {core.RoleStudent},
	ModuleMySalary:      {core.RoleTeacher},
	ModuleMyAssignments: {core.RoleTeacher},
}

// CanAccess reports whether role may open module. Unknown modules are denied.
func CanAccess(role core.Role, module Module) bool {
	for _, r := range permissions[module] {
		if r == role {
			return true
		}
	}
	return false
}

// Modules lists the modules role may open, in table order.
func Modules(role core.Role) []Module {
	order := []Module{
		ModuleDashboard, ModuleStudents, ModuleTeachers, ModuleSPP, ModuleSavings,
		ModuleCash, ModuleExpenses, ModuleDonations, ModuleSalaries, ModuleReports,
		ModuleMonitoring, ModuleRoles, ModuleMyProfile, ModuleMySavings,
		ModuleMyPayments, ModuleMySalary, ModuleMyAssignments,
	}
	var out []Module
	for _, m := range order {
		if CanAccess(role, m) {
			out = append(out, m)
		}
	}
	return out
}
