package access

// Role-gated rules. Services call these instead of comparing role strings.

// CanCreateAccount: superadmin creates admins, admin creates doctors.
// Patients are only ever created through self-registration.
func CanCreateAccount(creator Role, target Role) bool {
	switch target {
	case RoleAdmin:
		return creator == RoleSuperAdmin
	case RoleDoctor:
		return creator == RoleAdmin
	default:
		return false
	}
}

// CanManageAccounts gates user listing and activation toggles.
func CanManageAccounts(r Role) bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

// CanManageTarget reports whether manager may toggle or edit an account of role target.
func CanManageTarget(manager, target Role) bool {
	switch manager {
	case RoleSuperAdmin:
		return target != RoleSuperAdmin
	case RoleAdmin:
		return target == RoleDoctor || target == RolePatient
	default:
		return false
	}
}

func IsStaff(r Role) bool {
	return r == RoleSuperAdmin || r == RoleAdmin || r == RoleDoctor
}

// SeesAllLabReports: doctors see every report, everyone else only their own.
func SeesAllLabReports(r Role) bool {
	return r == RoleDoctor
}

// SeesAllPatients covers patient-owned records other than lab reports
// (exercises, responses, health snapshots).
func SeesAllPatients(r Role) bool {
	return IsStaff(r)
}

// DietPlanScope describes which plans a role may list.
type DietPlanScope int

const (
	DietPlanScopeNone DietPlanScope = iota
	DietPlanScopeOwnPatient
	DietPlanScopeCreatedByDoctor
	DietPlanScopeAll
)

func DietPlanScopeFor(r Role) DietPlanScope {
	switch r {
	case RolePatient:
		return DietPlanScopeOwnPatient
	case RoleDoctor:
		return DietPlanScopeCreatedByDoctor
	case RoleAdmin, RoleSuperAdmin:
		return DietPlanScopeAll
	default:
		return DietPlanScopeNone
	}
}

// FollowsQuestionnaireWorkflow: only patients are gated by onboarding state.
func FollowsQuestionnaireWorkflow(r Role) bool {
	return r == RolePatient
}
